package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/folio-sh/folio"
)

func createUsersTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	quotedTable := pgx.Identifier{tableName}.Sanitize()

	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			email TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
	`, quotedTable)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func createBooksTable(ctx context.Context, pool *pgxpool.Pool, tableName string) error {
	quotedTable := pgx.Identifier{tableName}.Sanitize()
	indexUploadedAt := pgx.Identifier{fmt.Sprintf("idx_%s_uploaded_at", tableName)}.Sanitize()

	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			book_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			genre TEXT,
			s3_key TEXT NOT NULL,
			content_type TEXT NOT NULL,
			original_file_name TEXT NOT NULL,
			uploaded_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS %s
		ON %s (uploaded_at);
	`, quotedTable, indexUploadedAt, quotedTable)

	if _, err := pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("create books table: %w", err)
	}
	return nil
}

func Migrate(ctx context.Context, pool *pgxpool.Pool, tables folio.Tables) error {
	if err := tables.Validate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if err := createUsersTable(ctx, pool, tables.Users); err != nil {
		return fmt.Errorf("migrate %s: %w", tables.Users, err)
	}
	if err := createBooksTable(ctx, pool, tables.Books); err != nil {
		return fmt.Errorf("migrate %s: %w", tables.Books, err)
	}

	return nil
}

func DropTables(ctx context.Context, pool *pgxpool.Pool, tables folio.Tables) error {
	for _, name := range []string{tables.Books, tables.Users} {
		sql := fmt.Sprintf("DROP TABLE IF EXISTS %s", pgx.Identifier{name}.Sanitize())
		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("drop table %s: %w", name, err)
		}
	}
	return nil
}

// ValidateSchema verifies the expected tables and columns exist by
// probing each with a zero-row select.
func ValidateSchema(ctx context.Context, pool *pgxpool.Pool, tables folio.Tables) error {
	probes := map[string]string{
		tables.Users: fmt.Sprintf(
			`SELECT email, user_id, name, role, password_hash, created_at FROM %s LIMIT 0`,
			pgx.Identifier{tables.Users}.Sanitize()),
		tables.Books: fmt.Sprintf(
			`SELECT book_id, title, author, genre, s3_key, content_type, original_file_name, uploaded_at FROM %s LIMIT 0`,
			pgx.Identifier{tables.Books}.Sanitize()),
	}

	for name, probe := range probes {
		rows, err := pool.Query(ctx, probe)
		if err != nil {
			return fmt.Errorf("validate schema %s: %w", name, err)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("validate schema %s: %w", name, err)
		}
	}

	return nil
}
