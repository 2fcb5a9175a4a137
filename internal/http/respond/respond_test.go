package respond_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
	"github.com/MrJamesThe3rd/bantudesa/internal/donation"
	"github.com/MrJamesThe3rd/bantudesa/internal/http/respond"
	"github.com/MrJamesThe3rd/bantudesa/internal/retry"
)

func TestError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"Validation", donation.ErrBelowMinimum, http.StatusBadRequest, "validation_error"},
		{"NotFound", campaign.ErrNotFound, http.StatusNotFound, "not_found"},
		{"Conflict", fmt.Errorf("deciding: %w", donation.ErrAlreadyDecided), http.StatusConflict, "conflict"},
		{"Concurrency", fmt.Errorf("%w: %w", retry.ErrExhausted, campaign.ErrStaleVersion), http.StatusServiceUnavailable, "concurrency_conflict"},
		{"Internal", errors.New("connection reset"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respond.Error(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestError_InternalHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	respond.Error(rec, errors.New("pq: password authentication failed"))

	assert.NotContains(t, rec.Body.String(), "password")
}
