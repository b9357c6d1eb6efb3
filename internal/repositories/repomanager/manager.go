package repomanager

import (
	"context"
	"database/sql"

	"github.com/vkuzmenko/photovault/internal/dbx"
	"github.com/vkuzmenko/photovault/internal/repositories/credentials"
	"github.com/vkuzmenko/photovault/internal/repositories/sessions"
)

// RepositoryManager vends engine-specific repository implementations and
// exposes a schema migration hook. Concrete managers exist for sqlite
// (device-resident default) and postgres.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Credentials(db dbx.DBTX) credentials.Repository
	Sessions(db dbx.DBTX) sessions.Repository
}
