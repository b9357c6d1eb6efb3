// Package repomanager wires repository constructors and goose migrations
// for the supported database engines.
package repomanager

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/vkuzmenko/photovault/internal/dbx"
	"github.com/vkuzmenko/photovault/internal/migrations"
	"github.com/vkuzmenko/photovault/internal/repositories/credentials"
	"github.com/vkuzmenko/photovault/internal/repositories/sessions"
)

// SQLiteRepositoryManager vends sqlite-backed repository implementations.
type SQLiteRepositoryManager struct{}

// NewSQLiteRepositoryManager constructs a sqlite-backed RepositoryManager.
func NewSQLiteRepositoryManager() *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{}
}

// Credentials returns a credentials.Repository bound to the provided DBTX.
func (m *SQLiteRepositoryManager) Credentials(db dbx.DBTX) credentials.Repository {
	return credentials.NewSQLiteRepository(db)
}

// Sessions returns a sessions.Repository bound to the provided DBTX.
func (m *SQLiteRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewSQLiteRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded sqlite migrations and runs
// them against the provided database connection.
func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	sub, err := fs.Sub(migrations.Migrations, "sqlite")
	if err != nil {
		return err
	}
	goose.SetBaseFS(sub)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
