package folio

import (
	"errors"
	"fmt"
	"regexp"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// User is an account record. PasswordHash never leaves the server.
type User struct {
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

// Book is the metadata record for one uploaded file. UploadedAt is an
// RFC 3339 timestamp; string comparison sorts it chronologically.
type Book struct {
	BookID           string `json:"bookId"`
	Title            string `json:"title"`
	Author           string `json:"author"`
	Genre            string `json:"genre,omitempty"`
	S3Key            string `json:"s3Key"`
	ContentType      string `json:"contentType"`
	OriginalFileName string `json:"originalFileName"`
	UploadedAt       string `json:"uploadedAt"`
}

// BookAccess is the Get response: the record plus a time-limited
// retrieval URL.
type BookAccess struct {
	Item             Book   `json:"item"`
	URL              string `json:"url"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}

// SignupInput carries a validated signup request.
type SignupInput struct {
	Email    string
	Name     string
	Password string
}

// UploadInput carries a validated upload request with decoded bytes.
type UploadInput struct {
	Title       string
	Author      string
	Genre       string
	FileName    string
	ContentType string
	Data        []byte
}

// ListQuery holds the list operation's filters and pagination inputs.
// Q and Genre are applied to the fetched page only, not globally.
type ListQuery struct {
	Q       string
	Genre   string
	Limit   int
	LastKey string
}

// ListResult is one page of books. LastKey is nil once the scan is
// exhausted.
type ListResult struct {
	Items   []Book  `json:"items"`
	LastKey *string `json:"lastKey"`
}

// ScanQuery is the store-level pagination request: one unordered page
// starting after an opaque key.
type ScanQuery struct {
	Limit    int
	StartKey string
}

// ScanResult is one store page. LastKey is empty at the end of the
// table.
type ScanResult struct {
	Items   []Book
	LastKey string
}

// Tables holds configurable table names for the document store.
type Tables struct {
	Users string `mapstructure:"users"`
	Books string `mapstructure:"books"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set and valid.
func (t Tables) Validate() error {
	if t.Users == "" || t.Books == "" {
		return errors.New("validate tables: table names cannot be empty")
	}

	for _, name := range []string{t.Users, t.Books} {
		if !IsValidTableName(name) {
			return fmt.Errorf("validate tables: invalid table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", name)
		}
	}

	return nil
}
