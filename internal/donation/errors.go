package donation

import (
	"fmt"

	"github.com/MrJamesThe3rd/bantudesa/internal/sentinel"
)

var (
	ErrNotFound           = fmt.Errorf("donation %w", sentinel.ErrNotFound)
	ErrBelowMinimum       = fmt.Errorf("%w: amount below minimum donation", sentinel.ErrValidation)
	ErrAboveMaximum       = fmt.Errorf("%w: amount above maximum donation", sentinel.ErrValidation)
	ErrMissingProof       = fmt.Errorf("%w: payment proof is required", sentinel.ErrValidation)
	ErrForeignProof       = fmt.Errorf("%w: payment proof must be uploaded to this service", sentinel.ErrValidation)
	ErrTotalOverflow      = fmt.Errorf("%w: campaign total would overflow", sentinel.ErrConflict)
	ErrInvalidOutcome     = fmt.Errorf("%w: invalid outcome", sentinel.ErrValidation)
	ErrAlreadyDecided     = fmt.Errorf("%w: donation already decided", sentinel.ErrConflict)
	ErrDuplicateReference = fmt.Errorf("%w: payment reference already used", sentinel.ErrConflict)
)
