package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

var (
	errBodyMissing = errors.New("missing request body")
	errBodyInvalid = errors.New("invalid JSON body")
)

type signupRequest struct {
	Email    string `json:"email" validate:"required,email,max=320"`
	Name     string `json:"name" validate:"required,max=200"`
	Password string `json:"password" validate:"required,min=8,max=200"`
}

// Login accepts any previously-valid password, so no minimum length
// here; only signup enforces the 8-char floor.
type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required,max=200"`
}

type uploadRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Author      string `json:"author" validate:"required,max=200"`
	Genre       string `json:"genre" validate:"omitempty,max=100"`
	FileName    string `json:"fileName" validate:"required,max=300"`
	ContentType string `json:"contentType" validate:"required,max=100"`
	FileBase64  string `json:"fileBase64" validate:"required"`
}

// decodeJSON reads the request body into dst. The body-presence check
// runs before the parse so the two failures stay distinguishable.
func decodeJSON(r *http.Request, dst any) error {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return errBodyInvalid
	}
	if len(raw) == 0 {
		return errBodyMissing
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errBodyInvalid
	}
	return nil
}

// writeBodyError maps decodeJSON failures to their 400 responses.
func writeBodyError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyMissing) {
		WriteError(w, http.StatusBadRequest, "Missing request body")
		return
	}
	WriteError(w, http.StatusBadRequest, "Invalid JSON body")
}
