package http_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/folio-sh/folio"
	foliohttp "github.com/folio-sh/folio/http"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    int
		wantMessage string
	}{
		{"not found", folio.ErrNotFound, http.StatusNotFound, "Book not found"},
		{"gone", folio.ErrGone, http.StatusGone, "File missing in storage. Please re-upload."},
		{"conflict", folio.ErrConflict, http.StatusConflict, "Email already registered"},
		{"unauthorized", folio.ErrUnauthorized, http.StatusUnauthorized, "Invalid email or password"},
		{"forbidden", folio.ErrForbidden, http.StatusForbidden, "Forbidden: admin role required"},
		{"unmapped error gets the fallback", errors.New("pg: connection refused"), http.StatusInternalServerError, "Failed to list books"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			foliohttp.HandleError(rec, fmt.Errorf("op: %w", tt.err), "Failed to list books")

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantMessage, errorMessage(t, rec))
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestWriteError_Details(t *testing.T) {
	rec := httptest.NewRecorder()
	foliohttp.WriteError(rec, http.StatusBadRequest, "Validation failed", map[string][]string{
		"email": {"is required"},
	})

	assert.JSONEq(t, `{"message":"Validation failed","details":{"email":["is required"]}}`, rec.Body.String())
}

func TestWriteError_NoDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	foliohttp.WriteError(rec, http.StatusBadRequest, "Missing url")

	assert.JSONEq(t, `{"message":"Missing url"}`, rec.Body.String())
}
