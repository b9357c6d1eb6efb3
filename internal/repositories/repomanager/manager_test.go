package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"

	"github.com/vkuzmenko/photovault/internal/repositories/credentials"
	"github.com/vkuzmenko/photovault/internal/repositories/sessions"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func stubGoose(t *testing.T, fn func(dir string) error) {
	t.Helper()
	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return fn(dir)
	}
	t.Cleanup(func() { gooseUpContext = orig })
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	for _, m := range []RepositoryManager{
		NewSQLiteRepositoryManager(),
		NewPostgresRepositoryManager(),
	} {
		if c := m.Credentials(db); c == nil {
			t.Fatal("Credentials() nil")
		}
		if s := m.Sessions(db); s == nil {
			t.Fatal("Sessions() nil")
		}
		var _ credentials.Repository = m.Credentials(db)
		var _ sessions.Repository = m.Sessions(db)
	}
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	stubGoose(t, func(dir string) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return nil
	})

	if err := NewSQLiteRepositoryManager().RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("sqlite RunMigrations error: %v", err)
	}
	if err := NewPostgresRepositoryManager().RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("postgres RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	stubGoose(t, func(string) error { return errors.New("migration boom") })

	err := NewSQLiteRepositoryManager().RunMigrations(context.Background(), db)
	if err == nil || err.Error() != "migration boom" {
		t.Fatalf("expected migration boom, got %v", err)
	}
}

func TestOpen_SelectsEngineByDSN(t *testing.T) {
	stubGoose(t, func(string) error { return nil })

	db, m, err := Open(context.Background(), "file:open_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Open sqlite error: %v", err)
	}
	defer db.Close()

	if _, ok := m.(*SQLiteRepositoryManager); !ok {
		t.Fatalf("expected sqlite manager for a file DSN, got %T", m)
	}

	db2, m2, err := Open(context.Background(), "postgres://user:pw@localhost:5432/vault")
	if err != nil {
		t.Fatalf("Open postgres error: %v", err)
	}
	defer db2.Close()

	if _, ok := m2.(*PostgresRepositoryManager); !ok {
		t.Fatalf("expected postgres manager for a postgres:// DSN, got %T", m2)
	}
}
