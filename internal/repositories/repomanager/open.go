package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Open connects to the vault database, selects a manager for the DSN's
// engine, and runs migrations. Postgres is recognized by the postgres://
// (or postgresql://) scheme; anything else is treated as a sqlite path.
func Open(ctx context.Context, dsn string) (*sql.DB, RepositoryManager, error) {
	var (
		driver string
		m      RepositoryManager
	)

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "pgx"
		m = NewPostgresRepositoryManager()
	} else {
		driver = "sqlite"
		m = NewSQLiteRepositoryManager()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}

	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db migration error: %w", err)
	}

	return db, m, nil
}
