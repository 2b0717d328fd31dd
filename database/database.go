// Package database connects the document store behind the user and
// book repos. Two backends exist: SQLite for local runs and Postgres
// for deployments.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/folio-sh/folio"
	"github.com/folio-sh/folio/database/postgres"
	"github.com/folio-sh/folio/database/sqlite"

	_ "modernc.org/sqlite" // SQLite driver
)

// Config holds the configuration for connecting to a document-store backend.
type Config struct {
	// Type specifies the database type: "sqlite" or "postgres"
	Type string `mapstructure:"type" validate:"required,oneof=sqlite postgres"`
	// DSN is the data source name (connection string)
	DSN string `mapstructure:"dsn" validate:"required"`
	// Tables holds the users and books table names
	Tables folio.Tables `mapstructure:"tables"`
}

// Connect establishes a connection to the configured backend, runs
// migrations, validates the schema, and returns the repos. The
// returned cleanup function should be called to close the connection.
func Connect(ctx context.Context, cfg Config) (folio.UserRepo, folio.BookRepo, func(), error) {
	switch cfg.Type {
	case "sqlite":
		return connectSQLite(ctx, cfg.DSN, cfg.Tables)
	case "postgres":
		return connectPostgres(ctx, cfg.DSN, cfg.Tables)
	default:
		return nil, nil, nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

func connectSQLite(ctx context.Context, dsn string, tables folio.Tables) (folio.UserRepo, folio.BookRepo, func(), error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection keeps :memory: databases coherent and avoids
	// writer contention on file databases.
	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err = sqlite.Migrate(ctx, db, tables); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	if err = sqlite.ValidateSchema(ctx, db, tables); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("validate sqlite schema: %w", err)
	}

	users, books, err := sqlite.NewRepos(db, tables)
	if err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("create sqlite repos: %w", err)
	}

	cleanup := func() {
		_ = db.Close()
	}

	return users, books, cleanup, nil
}

func connectPostgres(ctx context.Context, dsn string, tables folio.Tables) (folio.UserRepo, folio.BookRepo, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err = postgres.Migrate(ctx, pool, tables); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	if err = postgres.ValidateSchema(ctx, pool, tables); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("validate postgres schema: %w", err)
	}

	users, books, err := postgres.NewRepos(pool, tables)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("create postgres repos: %w", err)
	}

	return users, books, pool.Close, nil
}
