package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/folio-sh/folio"
)

// ErrorResponse is the JSON error body. Details carries per-field
// validation errors when present.
type ErrorResponse struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, message string, details ...any) {
	resp := ErrorResponse{Message: message}
	if len(details) > 0 {
		resp.Details = details[0]
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError maps a domain error to an HTTP response. Unmapped errors
// are logged with context and surface as an opaque 500 carrying the
// handler's fallback message; nothing is retried.
func HandleError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, folio.ErrNotFound):
		WriteError(w, http.StatusNotFound, "Book not found")
	case errors.Is(err, folio.ErrGone):
		WriteError(w, http.StatusGone, "File missing in storage. Please re-upload.")
	case errors.Is(err, folio.ErrConflict):
		WriteError(w, http.StatusConflict, "Email already registered")
	case errors.Is(err, folio.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, folio.ErrForbidden):
		WriteError(w, http.StatusForbidden, "Forbidden: admin role required")
	default:
		slog.Error("request error", "error", err)
		WriteError(w, http.StatusInternalServerError, fallback)
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
