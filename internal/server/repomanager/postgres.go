// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/netsoclabs/memberd/internal/dbx"
	"github.com/netsoclabs/memberd/internal/server/migrations"
	"github.com/netsoclabs/memberd/internal/server/repositories/dbaccounts"
	"github.com/netsoclabs/memberd/internal/server/repositories/members"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository
// implementations and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

// Members returns a members.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Members(db dbx.DBTX) members.Repository {
	return members.NewPostgresRepository(db)
}

// DBAccounts returns a dbaccounts.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) DBAccounts(db dbx.DBTX) dbaccounts.Repository {
	return dbaccounts.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}
