// Package handler contains the HTTP layer: request parsing, the service
// calls, and the error-to-status mapping. No business rules live here.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/poemblog/internal/apperror"
)

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Error("failed to encode response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a service error to an HTTP status via the apperror
// sentinels. Anything outside the taxonomy is a storage or programming
// fault: it is logged in full and reported as a generic 500 so internals
// never leak to the caller.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, code := statusFor(appErr.Err)
		writeJSON(w, status, errorResponse{
			Error:   code,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	logger.Error("internal error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Error:   "internal",
		Message: "An internal error occurred",
	})
}

func statusFor(sentinel error) (int, string) {
	switch {
	case errors.Is(sentinel, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(sentinel, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(sentinel, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(sentinel, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(sentinel, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
