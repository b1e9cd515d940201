// Package httpserver is the thin HTTP surface over the evaluation services.
// Handlers decode, delegate, and encode; all semantics live in the services.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/hireval/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error, details any) {
	status := http.StatusInternalServerError
	code := "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
		code = "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		code = "NOT_FOUND"
	case errors.Is(err, domain.ErrPermissionDenied):
		status = http.StatusForbidden
		code = "PERMISSION_DENIED"
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
		code = "CONFLICT"
	case errors.Is(err, domain.ErrQuotaExhausted):
		status = http.StatusServiceUnavailable
		code = "QUOTA_EXHAUSTED"
	case errors.Is(err, domain.ErrUpstreamTransient):
		status = http.StatusServiceUnavailable
		code = "UPSTREAM_UNAVAILABLE"
	case errors.Is(err, domain.ErrPersistence):
		status = http.StatusServiceUnavailable
		code = "STORAGE_UNAVAILABLE"
	}
	writeJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: err.Error(), Details: details}})
}
