package folio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PasswordHasher provides one-way password hashing and verification.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// TokenIssuer produces a signed bearer token embedding a user's claims.
type TokenIssuer interface {
	Issue(u User) (string, error)
}

const (
	// DefaultMaxUploadBytes caps upload payloads at 10 MiB.
	DefaultMaxUploadBytes = 10 << 20
	// DefaultPresignExpiry is the retrieval URL validity window.
	DefaultPresignExpiry = 300 * time.Second
)

// ServiceConfig holds configuration options for LibraryService.
type ServiceConfig struct {
	AdminEmail     string
	MaxUploadBytes int64
	PresignExpiry  time.Duration
}

// LibraryService implements the library operations over injected store
// clients. Every method is a single-shot request/response transform:
// sequential store calls, no retries, no rollback across the two-step
// writes (see Upload and Delete).
type LibraryService struct {
	users          UserRepo
	books          BookRepo
	objects        ObjectStore
	passwords      PasswordHasher
	tokens         TokenIssuer
	adminEmail     string
	maxUploadBytes int64
	presignExpiry  time.Duration
}

func NewLibraryService(users UserRepo, books BookRepo, objects ObjectStore, passwords PasswordHasher, tokens TokenIssuer, cfg ServiceConfig) (*LibraryService, error) {
	if users == nil || books == nil || objects == nil {
		return nil, errors.New("new library service: store clients are required")
	}
	if passwords == nil || tokens == nil {
		return nil, errors.New("new library service: credential providers are required")
	}

	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	presignExpiry := cfg.PresignExpiry
	if presignExpiry <= 0 {
		presignExpiry = DefaultPresignExpiry
	}

	return &LibraryService{
		users:          users,
		books:          books,
		objects:        objects,
		passwords:      passwords,
		tokens:         tokens,
		adminEmail:     NormalizeEmail(cfg.AdminEmail),
		maxUploadBytes: maxUploadBytes,
		presignExpiry:  presignExpiry,
	}, nil
}

// NormalizeEmail lowercases and trims an email for use as a lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates a user and returns it with a fresh bearer token.
//
// The duplicate-email check is read-then-write, not atomic: two
// concurrent signups with the same email can both pass it, and the
// store's per-key last-write-wins behavior decides which record
// survives. This is a documented property, not a bug to fix here.
//
// Returns ErrConflict if the email is already registered.
func (s *LibraryService) Signup(ctx context.Context, in SignupInput) (User, string, error) {
	if err := ctx.Err(); err != nil {
		return User{}, "", fmt.Errorf("signup: %w", err)
	}

	email := NormalizeEmail(in.Email)

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return User{}, "", fmt.Errorf("signup %s: %w", email, ErrConflict)
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, "", fmt.Errorf("signup: check existing: %w", err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return User{}, "", fmt.Errorf("signup: hash password: %w", err)
	}

	role := RoleUser
	if s.adminEmail != "" && email == s.adminEmail {
		role = RoleAdmin
	}

	u := User{
		UserID:       uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.users.Put(ctx, u); err != nil {
		return User{}, "", fmt.Errorf("signup: put user: %w", err)
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return User{}, "", fmt.Errorf("signup: issue token: %w", err)
	}

	return u, token, nil
}

// Login authenticates a user by email and password and returns a fresh
// bearer token. An unknown email and a wrong password both map to
// ErrUnauthorized; callers must not be able to tell them apart.
func (s *LibraryService) Login(ctx context.Context, email, password string) (User, string, error) {
	if err := ctx.Err(); err != nil {
		return User{}, "", fmt.Errorf("login: %w", err)
	}

	u, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return User{}, "", fmt.Errorf("login: %w", ErrUnauthorized)
	}
	if err != nil {
		return User{}, "", fmt.Errorf("login: get user: %w", err)
	}

	if !s.passwords.Verify(password, u.PasswordHash) {
		return User{}, "", fmt.Errorf("login: %w", ErrUnauthorized)
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return User{}, "", fmt.Errorf("login: issue token: %w", err)
	}

	return u, token, nil
}

// Upload stores the file bytes, then the book record, in that order.
// If the object write fails no record is created; if the record write
// fails the blob stays behind as an orphan and the error surfaces.
//
// Returns ErrInvalidInput for an empty payload and ErrTooLarge for one
// over the configured limit.
func (s *LibraryService) Upload(ctx context.Context, in UploadInput) (Book, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, fmt.Errorf("upload: %w", err)
	}

	if len(in.Data) == 0 {
		return Book{}, fmt.Errorf("upload: empty file: %w", ErrInvalidInput)
	}
	if int64(len(in.Data)) > s.maxUploadBytes {
		return Book{}, fmt.Errorf("upload: %d bytes: %w", len(in.Data), ErrTooLarge)
	}

	bookID := uuid.NewString()
	b := Book{
		BookID:           bookID,
		Title:            in.Title,
		Author:           in.Author,
		Genre:            in.Genre,
		S3Key:            StorageKey(bookID, in.FileName),
		ContentType:      in.ContentType,
		OriginalFileName: in.FileName,
		UploadedAt:       time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.objects.Put(ctx, b.S3Key, bytes.NewReader(in.Data), int64(len(in.Data)), in.ContentType); err != nil {
		return Book{}, fmt.Errorf("upload %s: put object: %w", b.S3Key, err)
	}

	if err := s.books.Put(ctx, b); err != nil {
		return Book{}, fmt.Errorf("upload %s: put record: %w", bookID, err)
	}

	return b, nil
}

// MaxUploadBytes reports the configured upload payload limit.
func (s *LibraryService) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// List fetches one store page and applies the q/genre filters to that
// page only. A filtered page can hold fewer than Limit matches even
// when later pages match; the caller follows LastKey to keep scanning.
// The page is sorted by uploadedAt descending, newest first.
func (s *LibraryService) List(ctx context.Context, q ListQuery) (ListResult, error) {
	if err := ctx.Err(); err != nil {
		return ListResult{}, fmt.Errorf("list books: %w", err)
	}

	// A zero limit means "not supplied" and takes the full-page
	// default; an explicit non-positive limit clamps to 1.
	limit := q.Limit
	if limit == 0 {
		limit = 100
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	page, err := s.books.Scan(ctx, ScanQuery{Limit: limit, StartKey: q.LastKey})
	if err != nil {
		return ListResult{}, fmt.Errorf("list books: %w", err)
	}

	items := page.Items

	if needle := strings.ToLower(strings.TrimSpace(q.Q)); needle != "" {
		filtered := items[:0]
		for _, b := range items {
			text := strings.ToLower(b.Title + " " + b.Author + " " + b.Genre)
			if strings.Contains(text, needle) {
				filtered = append(filtered, b)
			}
		}
		items = filtered
	}

	if genre := strings.ToLower(strings.TrimSpace(q.Genre)); genre != "" {
		filtered := items[:0]
		for _, b := range items {
			if strings.ToLower(b.Genre) == genre {
				filtered = append(filtered, b)
			}
		}
		items = filtered
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UploadedAt > items[j].UploadedAt
	})

	result := ListResult{Items: items}
	if page.LastKey != "" {
		result.LastKey = &page.LastKey
	}
	return result, nil
}

// Get looks up a record, probes that its blob still exists, and returns
// a time-limited signed retrieval URL scoped to the derived content
// type and requested disposition.
//
// Returns ErrNotFound if the record is absent and ErrGone if the record
// exists but the blob is missing; the latter tells the caller to
// re-upload rather than retry.
func (s *LibraryService) Get(ctx context.Context, bookID, disposition string) (BookAccess, error) {
	if err := ctx.Err(); err != nil {
		return BookAccess{}, fmt.Errorf("get book: %w", err)
	}

	if strings.ToLower(strings.TrimSpace(disposition)) == "inline" {
		disposition = "inline"
	} else {
		disposition = "attachment"
	}

	b, err := s.books.Get(ctx, bookID)
	if err != nil {
		return BookAccess{}, fmt.Errorf("get book %s: %w", bookID, err)
	}

	if err := s.objects.Stat(ctx, b.S3Key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return BookAccess{}, fmt.Errorf("get book %s: blob missing: %w", bookID, ErrGone)
		}
		return BookAccess{}, fmt.Errorf("get book %s: stat object: %w", bookID, err)
	}

	url, err := s.objects.PresignGet(ctx, b.S3Key, PresignOptions{
		Expiry:      s.presignExpiry,
		ContentType: DisplayContentType(b.OriginalFileName, b.ContentType),
		Disposition: disposition,
		FileName:    HeaderSafeFileName(b.OriginalFileName),
	})
	if err != nil {
		return BookAccess{}, fmt.Errorf("get book %s: presign: %w", bookID, err)
	}

	return BookAccess{
		Item:             b,
		URL:              url,
		ExpiresInSeconds: int(s.presignExpiry / time.Second),
	}, nil
}

// Delete removes the blob, then the record, in that order. If the blob
// deletion fails the record is deliberately left intact so the failure
// surfaces as a retryable error instead of a silently half-deleted
// book.
//
// Returns ErrNotFound if the record is absent. Authorization (admin
// role) is the transport layer's concern.
func (s *LibraryService) Delete(ctx context.Context, bookID string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	b, err := s.books.Get(ctx, bookID)
	if err != nil {
		return fmt.Errorf("delete book %s: %w", bookID, err)
	}

	if err := s.objects.Delete(ctx, b.S3Key); err != nil {
		return fmt.Errorf("delete book %s: delete object: %w", bookID, err)
	}

	if err := s.books.Delete(ctx, bookID); err != nil {
		return fmt.Errorf("delete book %s: delete record: %w", bookID, err)
	}

	return nil
}
