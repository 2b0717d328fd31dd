// Package postgres implements the document-store repos using Postgres
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/folio-sh/folio"
	"github.com/folio-sh/folio/database/internal"
)

// UserRepo implements folio.UserRepo over a pgx pool.
type UserRepo struct {
	pool  *pgxpool.Pool
	table string
}

// BookRepo implements folio.BookRepo over a pgx pool.
type BookRepo struct {
	pool  *pgxpool.Pool
	table string
}

// NewRepos builds the user and book repos over one connection pool.
func NewRepos(pool *pgxpool.Pool, tables folio.Tables) (*UserRepo, *BookRepo, error) {
	if err := tables.Validate(); err != nil {
		return nil, nil, fmt.Errorf("new postgres repos: %w", err)
	}
	return &UserRepo{pool: pool, table: tables.Users}, &BookRepo{pool: pool, table: tables.Books}, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (folio.User, error) {
	query := fmt.Sprintf(`
		SELECT email, user_id, name, role, password_hash, created_at
		FROM %s
		WHERE email = $1
	`, r.table)

	var u folio.User
	var role string
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&u.Email, &u.UserID, &u.Name, &role, &u.PasswordHash, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return folio.User{}, folio.ErrNotFound
		}
		return folio.User{}, fmt.Errorf("get user: %w", err)
	}

	u.Role = folio.Role(role)
	return u, nil
}

func (r *UserRepo) Put(ctx context.Context, u folio.User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (email, user_id, name, role, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO UPDATE
		SET user_id = EXCLUDED.user_id,
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			password_hash = EXCLUDED.password_hash,
			created_at = EXCLUDED.created_at
	`, r.table)

	_, err := r.pool.Exec(ctx, query,
		u.Email, u.UserID, u.Name, string(u.Role), u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

func (r *BookRepo) Get(ctx context.Context, bookID string) (folio.Book, error) {
	query := fmt.Sprintf(`
		SELECT book_id, title, author, genre, s3_key, content_type, original_file_name, uploaded_at
		FROM %s
		WHERE book_id = $1
	`, r.table)

	b, err := scanBook(r.pool.QueryRow(ctx, query, bookID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return folio.Book{}, folio.ErrNotFound
		}
		return folio.Book{}, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

func (r *BookRepo) Put(ctx context.Context, b folio.Book) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (book_id, title, author, genre, s3_key, content_type, original_file_name, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (book_id) DO UPDATE
		SET title = EXCLUDED.title,
			author = EXCLUDED.author,
			genre = EXCLUDED.genre,
			s3_key = EXCLUDED.s3_key,
			content_type = EXCLUDED.content_type,
			original_file_name = EXCLUDED.original_file_name,
			uploaded_at = EXCLUDED.uploaded_at
	`, r.table)

	var genre *string
	if b.Genre != "" {
		genre = &b.Genre
	}

	_, err := r.pool.Exec(ctx, query,
		b.BookID, b.Title, b.Author, genre, b.S3Key, b.ContentType, b.OriginalFileName, b.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("put book: %w", err)
	}
	return nil
}

func (r *BookRepo) Delete(ctx context.Context, bookID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE book_id = $1`, r.table)

	tag, err := r.pool.Exec(ctx, query, bookID)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if tag.RowsAffected() == 0 {
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
			LIMIT $1
		`, r.table)
		args = []any{q.Limit + 1}
	} else {
		query = fmt.Sprintf(`
			SELECT book_id, title, author, genre, s3_key, content_type, original_file_name, uploaded_at
			FROM %s
			WHERE book_id > $1
			ORDER BY book_id
			LIMIT $2
		`, r.table)
		args = []any{key.BookID, q.Limit + 1}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return folio.ScanResult{}, fmt.Errorf("scan: %w", err)
	}
	defer rows.Close()

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
	var genre *string

	err := row.Scan(
		&b.BookID, &b.Title, &b.Author, &genre, &b.S3Key, &b.ContentType, &b.OriginalFileName, &b.UploadedAt,
	)
	if err != nil {
		return folio.Book{}, err
	}

	if genre != nil {
		b.Genre = *genre
	}
	return b, nil
}
