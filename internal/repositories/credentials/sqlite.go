package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vkuzmenko/photovault/internal/common"
	"github.com/vkuzmenko/photovault/internal/dbx"
	"github.com/vkuzmenko/photovault/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, c *models.Credential) (*models.Credential, error) {
	c.CreatedAt = time.Now().UTC()

	query :=
		`INSERT INTO credentials (id, account_id, login_id, secret_ciphertext, secret_nonce, secret_salt, active, requires_second_factor, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 `

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.AccountID, c.LoginID, c.SecretCiphertext, c.SecretNonce, c.SecretSalt,
		c.Active, c.RequiresSecondFactor, c.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return c, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	query :=
		`SELECT id, account_id, login_id, secret_ciphertext, secret_nonce, secret_salt,
		        active, requires_second_factor, last_auth_at, created_at
		 FROM credentials
		 WHERE id = ?
		 `
	return scanCredential(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteRepository) GetByAccountLogin(ctx context.Context, accountID, loginID string) (*models.Credential, error) {
	query :=
		`SELECT id, account_id, login_id, secret_ciphertext, secret_nonce, secret_salt,
		        active, requires_second_factor, last_auth_at, created_at
		 FROM credentials
		 WHERE account_id = ? AND login_id = ?
		 `
	return scanCredential(r.db.QueryRowContext(ctx, query, accountID, loginID))
}

func scanCredential(row *sql.Row) (*models.Credential, error) {
	c := &models.Credential{}
	var lastAuth sql.NullTime

	err := row.Scan(&c.ID, &c.AccountID, &c.LoginID, &c.SecretCiphertext, &c.SecretNonce, &c.SecretSalt,
		&c.Active, &c.RequiresSecondFactor, &lastAuth, &c.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if lastAuth.Valid {
		c.LastAuthAt = &lastAuth.Time
	}

	return c, nil
}

func (r *SQLiteRepository) ReplaceSecret(ctx context.Context, id string, ciphertext, nonce, salt []byte) error {
	query :=
		`UPDATE credentials
		 SET secret_ciphertext = ?, secret_nonce = ?, secret_salt = ?, active = 1
		 WHERE id = ?
		 `
	if _, err := r.db.ExecContext(ctx, query, ciphertext, nonce, salt, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) SetRequiresSecondFactor(ctx context.Context, id string, v bool) error {
	query := `UPDATE credentials SET requires_second_factor = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, v, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) TouchAuth(ctx context.Context, id string) error {
	query := `UPDATE credentials SET last_auth_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
