// Package sqlite implements the document-store repos using SQLite
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/folio-sh/folio"
	"github.com/folio-sh/folio/database/internal"
)

// UserRepo implements folio.UserRepo over SQLite.
type UserRepo struct {
	db    *sql.DB
	table string
}

// BookRepo implements folio.BookRepo over SQLite.
type BookRepo struct {
	db    *sql.DB
	table string
}

// NewRepos builds the user and book repos over one open SQLite handle.
func NewRepos(db *sql.DB, tables folio.Tables) (*UserRepo, *BookRepo, error) {
	if err := tables.Validate(); err != nil {
		return nil, nil, fmt.Errorf("new sqlite repos: %w", err)
	}
	return &UserRepo{db: db, table: tables.Users}, &BookRepo{db: db, table: tables.Books}, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (folio.User, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT email, user_id, name, role, password_hash, created_at
		FROM %s
		WHERE email = ?`, r.table)

	var u folio.User
	var role string
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&u.Email, &u.UserID, &u.Name, &role, &u.PasswordHash, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return folio.User{}, folio.ErrNotFound
		}
		return folio.User{}, fmt.Errorf("get user: %w", err)
	}

	u.Role = folio.Role(role)
	return u, nil
}

func (r *UserRepo) Put(ctx context.Context, u folio.User) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (email, user_id, name, role, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			user_id = excluded.user_id,
			name = excluded.name,
			role = excluded.role,
			password_hash = excluded.password_hash,
			created_at = excluded.created_at`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		u.Email, u.UserID, u.Name, string(u.Role), u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

func (r *BookRepo) Get(ctx context.Context, bookID string) (folio.Book, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT book_id, title, author, genre, s3_key, content_type, original_file_name, uploaded_at
		FROM %s
		WHERE book_id = ?`, r.table)

	b, err := scanBook(r.db.QueryRowContext(ctx, query, bookID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return folio.Book{}, folio.ErrNotFound
		}
		return folio.Book{}, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

func (r *BookRepo) Put(ctx context.Context, b folio.Book) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (book_id, title, author, genre, s3_key, content_type, original_file_name, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(book_id) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			genre = excluded.genre,
			s3_key = excluded.s3_key,
			content_type = excluded.content_type,
			original_file_name = excluded.original_file_name,
			uploaded_at = excluded.uploaded_at`, r.table)

	var genre any
	if b.Genre != "" {
		genre = b.Genre
	}

	_, err := r.db.ExecContext(ctx, query,
		b.BookID, b.Title, b.Author, genre, b.S3Key, b.ContentType, b.OriginalFileName, b.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("put book: %w", err)
	}
	return nil
}

func (r *BookRepo) Delete(ctx context.Context, bookID string) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`DELETE FROM %s WHERE book_id = ?`, r.table)

	result, err := r.db.ExecContext(ctx, query, bookID)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete book: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("delete book: %w", folio.ErrNotFound)
	}

	return nil
}

func (r *BookRepo) Scan(ctx context.Context, q folio.ScanQuery) (folio.ScanResult, error) {
	key, err := internal.DecodeStartKey(q.StartKey)
	if err != nil {
		return folio.ScanResult{}, fmt.Errorf("scan: %w", err)
	}

	var query string
	var args []any

	if key.BookID == "" {
		query = fmt.Sprintf(`
			SELECT book_id, title, author, genre, s3_key, content_type, original_file_name, uploaded_at
			FROM %s
			ORDER BY book_id
			LIMIT ?
		`, r.table)
		args = []any{q.Limit + 1}
	} else {
		query = fmt.Sprintf(`
			SELECT book_id, title, author, genre, s3_key, content_type, original_file_name, uploaded_at
			FROM %s
			WHERE book_id > ?
			ORDER BY book_id
			LIMIT ?
		`, r.table)
		args = []any{key.BookID, q.Limit + 1}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return folio.ScanResult{}, fmt.Errorf("scan: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]folio.Book, 0, q.Limit)
	for rows.Next() {
		b, scanErr := scanBook(rows)
		if scanErr != nil {
			return folio.ScanResult{}, fmt.Errorf("scan: %w", scanErr)
		}
		items = append(items, b)
	}

	if err := rows.Err(); err != nil {
		return folio.ScanResult{}, fmt.Errorf("scan: rows: %w", err)
	}

	var lastKey string
	if len(items) > q.Limit {
		items = items[:q.Limit]
		lastKey = internal.EncodeStartKey(items[q.Limit-1].BookID)
	}

	return folio.ScanResult{Items: items, LastKey: lastKey}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (folio.Book, error) {
	var b folio.Book
	var genre sql.NullString

	err := row.Scan(
		&b.BookID, &b.Title, &b.Author, &genre, &b.S3Key, &b.ContentType, &b.OriginalFileName, &b.UploadedAt,
	)
	if err != nil {
		return folio.Book{}, err
	}

	b.Genre = genre.String
	return b, nil
}
