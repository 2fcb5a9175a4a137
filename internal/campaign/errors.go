package campaign

import (
	"fmt"

	"github.com/MrJamesThe3rd/bantudesa/internal/sentinel"
)

var (
	ErrNotFound        = fmt.Errorf("campaign %w", sentinel.ErrNotFound)
	ErrNotActive       = fmt.Errorf("%w: campaign not active", sentinel.ErrConflict)
	ErrInvalidTarget   = fmt.Errorf("%w: target amount must be positive", sentinel.ErrValidation)
	ErrInvalidDeadline = fmt.Errorf("%w: deadline must be in the future", sentinel.ErrValidation)
	ErrMissingTitle    = fmt.Errorf("%w: title is required", sentinel.ErrValidation)
	ErrStaleVersion    = fmt.Errorf("campaign: %w", sentinel.ErrConcurrency)
)
