package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/folio-sh/folio"
)

// quoteIdentifier safely quotes a SQLite identifier
func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

type TableMigration struct {
	TableName string
	Up        func(ctx context.Context, db *sql.DB) error
	Down      func(ctx context.Context, db *sql.DB) error
}

// getTableMigrations returns all table migrations for the app
func getTableMigrations(tables folio.Tables) []TableMigration {
	return []TableMigration{
		{
			TableName: tables.Users,
			Up:        createUsersTable(tables.Users),
			Down:      dropTable(tables.Users),
		},
		{
			TableName: tables.Books,
			Up:        createBooksTable(tables.Books),
			Down:      dropTable(tables.Books),
		},
	}
}

func Migrate(ctx context.Context, db *sql.DB, tables folio.Tables) error {
	for _, migration := range getTableMigrations(tables) {
		if err := migration.Up(ctx, db); err != nil {
			return fmt.Errorf("migrate up %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func DropTables(ctx context.Context, db *sql.DB, tables folio.Tables) error {
	migrations := getTableMigrations(tables)

	for i := len(migrations) - 1; i >= 0; i-- {
		migration := migrations[i]
		if err := migration.Down(ctx, db); err != nil {
			return fmt.Errorf("migrate down %s: %w", migration.TableName, err)
		}
	}

	return nil
}

func createUsersTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		createTableSQL := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				email TEXT NOT NULL PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				role TEXT NOT NULL,
				password_hash TEXT NOT NULL,
				created_at TEXT NOT NULL
			)
		`, quoteIdentifier(tableName))

		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		return nil
	}
}

func createBooksTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		quotedTable := quoteIdentifier(tableName)
		indexUploadedAt := quoteIdentifier(fmt.Sprintf("idx_%s_uploaded_at", tableName))

		createTableSQL := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				book_id TEXT NOT NULL PRIMARY KEY,
				title TEXT NOT NULL,
				author TEXT NOT NULL,
				genre TEXT,
				s3_key TEXT NOT NULL,
				content_type TEXT NOT NULL,
				original_file_name TEXT NOT NULL,
				uploaded_at TEXT NOT NULL
			)
		`, quotedTable)

		if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		indexSQL := fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s ON %s (uploaded_at)
		`, indexUploadedAt, quotedTable)

		if _, err := db.ExecContext(ctx, indexSQL); err != nil {
			return fmt.Errorf("create index uploaded_at: %w", err)
		}

		return nil
	}
}

func dropTable(tableName string) func(context.Context, *sql.DB) error {
	return func(ctx context.Context, db *sql.DB) error {
		dropSQL := fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdentifier(tableName))

		_, err := db.ExecContext(ctx, dropSQL)
		return err
	}
}

// ValidateSchema verifies the expected tables and columns exist by
// probing each with a zero-row select.
func ValidateSchema(ctx context.Context, db *sql.DB, tables folio.Tables) error {
	probes := map[string]string{
		tables.Users: fmt.Sprintf(
			`SELECT email, user_id, name, role, password_hash, created_at FROM %s LIMIT 0`,
			quoteIdentifier(tables.Users)),
		tables.Books: fmt.Sprintf(
			`SELECT book_id, title, author, genre, s3_key, content_type, original_file_name, uploaded_at FROM %s LIMIT 0`,
			quoteIdentifier(tables.Books)),
	}

	for name, probe := range probes {
		rows, err := db.QueryContext(ctx, probe)
		if err != nil {
			return fmt.Errorf("validate schema %s: %w", name, err)
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("validate schema %s: %w", name, err)
		}
	}

	return nil
}
