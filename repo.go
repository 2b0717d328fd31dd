package folio

import (
	"context"
	"io"
	"time"
)

// UserRepo defines the document-store operations for user records.
// The email, normalized to lowercase, is the primary key.
//
// All methods accept a context for cancellation and timeout control.
type UserRepo interface {
	// GetByEmail retrieves a user by normalized email.
	// Returns ErrNotFound if no such user exists.
	GetByEmail(ctx context.Context, email string) (User, error)

	// Put writes a user record. An existing record with the same email
	// is overwritten; uniqueness is enforced by the caller's
	// read-then-write check, not here.
	Put(ctx context.Context, u User) error
}

// BookRepo defines the document-store operations for book records,
// keyed by bookId.
type BookRepo interface {
	// Get retrieves a book record. Returns ErrNotFound if absent.
	Get(ctx context.Context, bookID string) (Book, error)

	// Put writes a book record.
	Put(ctx context.Context, b Book) error

	// Delete removes a book record. Returns ErrNotFound if absent.
	Delete(ctx context.Context, bookID string) error

	// Scan retrieves one page of records in the store's natural key
	// order. The query's StartKey is the LastKey of the previous page,
	// passed through verbatim.
	Scan(ctx context.Context, q ScanQuery) (ScanResult, error)
}

// PresignOptions scopes a signed retrieval URL to one object, response
// content type, and content disposition.
type PresignOptions struct {
	Expiry      time.Duration
	ContentType string
	Disposition string
	FileName    string
}

// ObjectStore defines the blob operations backing uploads. Keys are
// opaque storage paths; the store never interprets them.
type ObjectStore interface {
	// Put uploads a blob with the declared content type.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Stat probes for blob existence without fetching bytes.
	// Returns ErrNotFound if the blob is missing.
	Stat(ctx context.Context, key string) error

	// PresignGet generates a time-limited signed retrieval URL.
	PresignGet(ctx context.Context, key string, opts PresignOptions) (string, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, key string) error
}
