package sentinel

import "errors"

// Error kinds shared by every domain package. Domain errors wrap exactly one of
// these so the transport layer can classify them with errors.Is:
//   - ErrValidation: the request is malformed, nothing was written
//   - ErrConflict: the request is well-formed but the current state forbids it
//   - ErrNotFound: the referenced entity does not exist
//   - ErrConcurrency: a concurrent writer won the race; safe to retry
var (
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("conflict")
	ErrNotFound    = errors.New("not found")
	ErrConcurrency = errors.New("concurrent modification")
)

// Kind returns the sentinel kind wrapped by err, or nil when err is not a domain error.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrConflict, ErrNotFound, ErrConcurrency} {
		if errors.Is(err, kind) {
			return kind
		}
	}

	return nil
}
