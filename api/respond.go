package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/garnizeh/resource/internal/assignment"
	"github.com/garnizeh/resource/internal/capacity"
)

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", slog.Any("err", err))
	}
}

// writeDomainError maps coordinator error kinds onto HTTP statuses. Anything
// unrecognized is an internal failure and the detail stays out of the body.
func writeDomainError(w http.ResponseWriter, err error) {
	var capErr *capacity.Error
	switch {
	case errors.Is(err, assignment.ErrValidation):
		writeJSON(w, map[string]any{"error": err.Error()}, http.StatusBadRequest)
	case errors.Is(err, assignment.ErrInvalidRole), errors.Is(err, assignment.ErrInactive):
		writeJSON(w, map[string]any{"error": err.Error()}, http.StatusBadRequest)
	case errors.Is(err, assignment.ErrForbidden):
		writeJSON(w, map[string]any{"error": err.Error()}, http.StatusForbidden)
	case errors.Is(err, assignment.ErrNotFound):
		writeJSON(w, map[string]any{"error": err.Error()}, http.StatusNotFound)
	case errors.Is(err, assignment.ErrAlreadyAssigned), errors.Is(err, assignment.ErrConflict):
		writeJSON(w, map[string]any{"error": err.Error()}, http.StatusConflict)
	case errors.As(err, &capErr):
		writeJSON(w, map[string]any{
			"error":     capErr.Error(),
			"allocated": capErr.Allocated,
			"requested": capErr.Requested,
			"limit":     capErr.Limit,
		}, http.StatusUnprocessableEntity)
	default:
		logger.Error("internal error", slog.Any("err", err))
		writeJSON(w, map[string]any{"error": "internal error"}, http.StatusInternalServerError)
	}
}
