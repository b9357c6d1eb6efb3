package credentials

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vkuzmenko/photovault/internal/common"
	"github.com/vkuzmenko/photovault/internal/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const selectCols = `(?s)^SELECT\s+id,\s*account_id,\s*login_id,\s*secret_ciphertext,\s*secret_nonce,\s*secret_salt,\s*active,\s*requires_second_factor,\s*last_auth_at,\s*created_at\s+FROM\s+credentials\s+`

func credentialRows(created time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "account_id", "login_id", "secret_ciphertext", "secret_nonce", "secret_salt",
		"active", "requires_second_factor", "last_auth_at", "created_at",
	}).AddRow("cred-1", "acc-1", "login-1", []byte("ct"), []byte("n"), []byte("s"),
		true, false, nil, created)
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+credentials\s*\(id,\s*account_id,\s*login_id,\s*secret_ciphertext,\s*secret_nonce,\s*secret_salt,\s*active,\s*requires_second_factor\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7,\s*\$8\)\s*RETURNING\s+created_at\s*$`

	created := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"created_at"}).AddRow(created)
	mock.ExpectQuery(q).
		WithArgs("cred-1", "acc-1", "login-1", []byte("ct"), []byte("n"), []byte("s"), true, false).
		WillReturnRows(rows)

	c := &models.Credential{
		ID: "cred-1", AccountID: "acc-1", LoginID: "login-1",
		SecretCiphertext: []byte("ct"), SecretNonce: []byte("n"), SecretSalt: []byte("s"),
		Active: true,
	}
	got, err := repo.Create(context.Background(), c)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected created_at: %v", got.CreatedAt)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+credentials`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.Credential{ID: "cred-1"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByID_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectCols + `WHERE\s+id\s*=\s*\$1\s*$`).
		WithArgs("cred-1").
		WillReturnRows(credentialRows(time.Now()))

	got, err := repo.GetByID(context.Background(), "cred-1")
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got.ID != "cred-1" || got.AccountID != "acc-1" || !got.Active {
		t.Fatalf("unexpected credential: %+v", got)
	}
	if got.LastAuthAt != nil {
		t.Fatalf("expected nil LastAuthAt for NULL column")
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectCols + `WHERE\s+id\s*=\s*\$1\s*$`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "ghost")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByAccountLogin_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectCols + `WHERE\s+account_id\s*=\s*\$1\s+AND\s+login_id\s*=\s*\$2\s*$`).
		WithArgs("acc-1", "login-1").
		WillReturnRows(credentialRows(time.Now()))

	got, err := repo.GetByAccountLogin(context.Background(), "acc-1", "login-1")
	if err != nil {
		t.Fatalf("GetByAccountLogin error: %v", err)
	}
	if got.LoginID != "login-1" {
		t.Fatalf("unexpected credential: %+v", got)
	}
}

func TestReplaceSecret(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+credentials\s+SET\s+secret_ciphertext\s*=\s*\$2,\s*secret_nonce\s*=\s*\$3,\s*secret_salt\s*=\s*\$4,\s*active\s*=\s*TRUE\s+WHERE\s+id\s*=\s*\$1\s*$`

	mock.ExpectExec(q).
		WithArgs("cred-1", []byte("ct2"), []byte("n2"), []byte("s2")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.ReplaceSecret(context.Background(), "cred-1", []byte("ct2"), []byte("n2"), []byte("s2")); err != nil {
		t.Fatalf("ReplaceSecret error: %v", err)
	}
}

func TestSetRequiresSecondFactor(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+credentials\s+SET\s+requires_second_factor\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("cred-1", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetRequiresSecondFactor(context.Background(), "cred-1", true); err != nil {
		t.Fatalf("SetRequiresSecondFactor error: %v", err)
	}
}

func TestTouchAuth(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+credentials\s+SET\s+last_auth_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("cred-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.TouchAuth(context.Background(), "cred-1"); err != nil {
		t.Fatalf("TouchAuth error: %v", err)
	}
}
