package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vkuzmenko/photovault/internal/common"
	"github.com/vkuzmenko/photovault/internal/dbx"
	"github.com/vkuzmenko/photovault/internal/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Credential) (*models.Credential, error) {

	query :=
		`INSERT INTO credentials (id, account_id, login_id, secret_ciphertext, secret_nonce, secret_salt, active, requires_second_factor)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		c.ID, c.AccountID, c.LoginID, c.SecretCiphertext, c.SecretNonce, c.SecretSalt,
		c.Active, c.RequiresSecondFactor).Scan(&c.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return c, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	query :=
		`SELECT id, account_id, login_id, secret_ciphertext, secret_nonce, secret_salt,
		        active, requires_second_factor, last_auth_at, created_at
		 FROM credentials
		 WHERE id = $1
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByAccountLogin(ctx context.Context, accountID, loginID string) (*models.Credential, error) {
	query :=
		`SELECT id, account_id, login_id, secret_ciphertext, secret_nonce, secret_salt,
		        active, requires_second_factor, last_auth_at, created_at
		 FROM credentials
		 WHERE account_id = $1 AND login_id = $2
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, accountID, loginID))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Credential, error) {
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

func (r *PostgresRepository) ReplaceSecret(ctx context.Context, id string, ciphertext, nonce, salt []byte) error {
	query :=
		`UPDATE credentials
		 SET secret_ciphertext = $2, secret_nonce = $3, secret_salt = $4, active = TRUE
		 WHERE id = $1
		 `
	if _, err := r.db.ExecContext(ctx, query, id, ciphertext, nonce, salt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetRequiresSecondFactor(ctx context.Context, id string, v bool) error {
	query := `UPDATE credentials SET requires_second_factor = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, v); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) TouchAuth(ctx context.Context, id string) error {
	query := `UPDATE credentials SET last_auth_at = now() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
