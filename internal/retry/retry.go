package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/MrJamesThe3rd/bantudesa/internal/sentinel"
)

// ErrExhausted is returned, wrapped together with the last conflict, once every
// attempt lost its race.
var ErrExhausted = errors.New("retries exhausted")

const (
	DefaultMaxAttempts     = 5
	DefaultInitialInterval = 10 * time.Millisecond
	DefaultMaxInterval     = 250 * time.Millisecond
)

// Policy retries operations that fail with sentinel.ErrConcurrency. Any other
// error stops the loop immediately and is returned unchanged.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// OnRetry is called before each new attempt with the conflict that caused it.
	OnRetry func(err error, wait time.Duration)
}

func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := 0

	op := func() error {
		attempts++

		err := fn()
		if err == nil || errors.Is(err, sentinel.ErrConcurrency) {
			return err
		}

		return backoff.Permanent(err)
	}

	err := backoff.RetryNotify(op, p.backOff(ctx), p.OnRetry)
	if err != nil && errors.Is(err, sentinel.ErrConcurrency) {
		return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, err)
	}

	return err
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = DefaultInitialInterval
	b.MaxInterval = DefaultMaxInterval
	b.MaxElapsedTime = 0

	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}

	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxAttempts-1)), ctx)
}
