// Package respond writes JSON bodies and maps domain errors to HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrJamesThe3rd/bantudesa/internal/sentinel"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Raw writes an already encoded JSON body.
func Raw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(body); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func Fail(w http.ResponseWriter, status int, code, msg string) {
	JSON(w, status, errorResponse{Error: code, Message: msg})
}

// Error classifies err by its sentinel kind. Unclassified errors are logged
// and reported as 500 without leaking their text.
func Error(w http.ResponseWriter, err error) {
	kind := sentinel.Kind(err)

	switch {
	case errors.Is(kind, sentinel.ErrValidation):
		Fail(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(kind, sentinel.ErrNotFound):
		Fail(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(kind, sentinel.ErrConflict):
		Fail(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(kind, sentinel.ErrConcurrency):
		w.Header().Set("Retry-After", "1")
		Fail(w, http.StatusServiceUnavailable, "concurrency_conflict", "the campaign is busy, please retry")
	default:
		slog.Error("request failed", "error", err)
		Fail(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func BadRequest(w http.ResponseWriter, msg string) {
	Fail(w, http.StatusBadRequest, "bad_request", msg)
}

func Forbidden(w http.ResponseWriter) {
	Fail(w, http.StatusForbidden, "forbidden", "not allowed to access this resource")
}
