package http

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/folio-sh/folio"
)

type Service interface {
	Signup(ctx context.Context, in folio.SignupInput) (folio.User, string, error)
	Login(ctx context.Context, email, password string) (folio.User, string, error)
	Upload(ctx context.Context, in folio.UploadInput) (folio.Book, error)
	MaxUploadBytes() int64
	List(ctx context.Context, q folio.ListQuery) (folio.ListResult, error)
	Get(ctx context.Context, bookID, disposition string) (folio.BookAccess, error)
	Delete(ctx context.Context, bookID string) error
}

type HandlerConfig struct {
	Verifier TokenVerifier
}

// Handler provides the HTTP handlers for the library API.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	return &Handler{
		config:  *config,
		service: service,
	}
}

// Router wires every route. The auth endpoints are open; everything
// under the group requires a valid bearer token.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Post("/auth/signup", h.handleSignup)
	r.Post("/auth/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(h.config.Verifier))
		r.Get("/auth/me", h.handleWhoami)
		r.Post("/books", h.handleUpload)
		r.Get("/books", h.handleList)
		r.Get("/books/{bookID}", h.handleGet)
		r.Delete("/books/{bookID}", h.handleDelete)
	})

	return r
}

type authResponse struct {
	Token string     `json:"token"`
	User  folio.User `json:"user"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if details := validationDetails(req); details != nil {
		WriteError(w, http.StatusBadRequest, "Validation failed", details)
		return
	}

	user, token, err := h.service.Signup(r.Context(), folio.SignupInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		HandleError(w, err, "Failed to sign up")
		return
	}

	_ = WriteJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if details := validationDetails(req); details != nil {
		WriteError(w, http.StatusBadRequest, "Validation failed", details)
		return
	}

	user, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		HandleError(w, err, "Failed to login")
		return
	}

	_ = WriteJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// handleWhoami reshapes the verified claims into a user record. No
// store lookup happens; a deleted user with a live token still gets an
// answer until the token expires.
func (h *Handler) handleWhoami(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		WriteError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	user := folio.User{
		UserID: claims.UserID(),
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   folio.Role(claims.Role),
	}

	_ = WriteJSON(w, http.StatusOK, map[string]folio.User{"user": user})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBodyError(w, err)
		return
	}
	if details := validationDetails(req); details != nil {
		WriteError(w, http.StatusBadRequest, "Validation failed", details)
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.FileBase64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "fileBase64 must be valid base64")
		return
	}

	book, err := h.service.Upload(r.Context(), folio.UploadInput{
		Title:       req.Title,
		Author:      req.Author,
		Genre:       req.Genre,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Data:        data,
	})
	if err != nil {
		switch {
		case errors.Is(err, folio.ErrInvalidInput):
			WriteError(w, http.StatusBadRequest, "Empty file")
		case errors.Is(err, folio.ErrTooLarge):
			WriteError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File too large (max %d bytes)", h.service.MaxUploadBytes()))
		default:
			HandleError(w, err, "Failed to upload book")
		}
		return
	}

	_ = WriteJSON(w, http.StatusCreated, book)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	query := folio.ListQuery{
		Q:       r.URL.Query().Get("q"),
		Genre:   r.URL.Query().Get("genre"),
		LastKey: r.URL.Query().Get("lastKey"),
	}

	// A non-numeric limit is ignored, not rejected. A numeric one is
	// clamped into [1,100] here so an explicit limit=0 scans a one-item
	// page rather than falling back to the absent-limit default.
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			if parsed < 1 {
				parsed = 1
			}
			if parsed > 100 {
				parsed = 100
			}
			query.Limit = parsed
		}
	}

	result, err := h.service.List(r.Context(), query)
	if err != nil {
		if errors.Is(err, folio.ErrInvalidInput) {
			WriteError(w, http.StatusBadRequest, "Invalid lastKey")
			return
		}
		HandleError(w, err, "Failed to list books")
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "bookID")
	if bookID == "" {
		WriteError(w, http.StatusBadRequest, "Missing bookId")
		return
	}

	access, err := h.service.Get(r.Context(), bookID, r.URL.Query().Get("disposition"))
	if err != nil {
		HandleError(w, err, "Failed to get book")
		return
	}

	_ = WriteJSON(w, http.StatusOK, access)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok || claims.Role != string(folio.RoleAdmin) {
		WriteError(w, http.StatusForbidden, "Forbidden: admin role required")
		return
	}

	bookID := chi.URLParam(r, "bookID")
	if bookID == "" {
		WriteError(w, http.StatusBadRequest, "Missing bookId")
		return
	}

	if err := h.service.Delete(r.Context(), bookID); err != nil {
		HandleError(w, err, "Failed to delete book")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
