package sessions

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

func (r *PostgresRepository) Create(ctx context.Context, s *models.AuthSession) (*models.AuthSession, error) {
	query :=
		`INSERT INTO auth_sessions (` + sessionColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 `

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.CredentialID, s.Token, s.StateCiphertext, s.StateNonce,
		s.DevicesCiphertext, s.DevicesNonce, s.Salt, s.Authenticated, s.AwaitingSecondFactor,
		s.CreatedAt, s.ExpiresAt, s.LastUsedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.AuthSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM auth_sessions WHERE token = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, token))
}

func (r *PostgresRepository) GetCurrent(ctx context.Context, credentialID string) (*models.AuthSession, error) {
	query := `SELECT ` + sessionColumns + `
		 FROM auth_sessions
		 WHERE credential_id = $1 AND authenticated AND NOT awaiting_second_factor
		 ORDER BY last_used_at DESC
		 LIMIT 1
		 `
	return r.scanOne(r.db.QueryRowContext(ctx, query, credentialID))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.AuthSession, error) {
	s := &models.AuthSession{}

	err := row.Scan(&s.ID, &s.CredentialID, &s.Token, &s.StateCiphertext, &s.StateNonce,
		&s.DevicesCiphertext, &s.DevicesNonce, &s.Salt, &s.Authenticated, &s.AwaitingSecondFactor,
		&s.CreatedAt, &s.ExpiresAt, &s.LastUsedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

func (r *PostgresRepository) MarkAuthenticated(ctx context.Context, id string, stateCiphertext, stateNonce []byte) error {
	query :=
		`UPDATE auth_sessions
		 SET authenticated = TRUE, awaiting_second_factor = FALSE,
		     state_ciphertext = $2, state_nonce = $3, last_used_at = now()
		 WHERE id = $1
		 `
	if _, err := r.db.ExecContext(ctx, query, id, stateCiphertext, stateNonce); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) TouchLastUsed(ctx context.Context, id string) error {
	query := `UPDATE auth_sessions SET last_used_at = now() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
