package sessions

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

const sessionColumns = `id, credential_id, token, state_ciphertext, state_nonce,
	devices_ciphertext, devices_nonce, salt, authenticated, awaiting_second_factor,
	created_at, expires_at, last_used_at`

func (r *SQLiteRepository) Create(ctx context.Context, s *models.AuthSession) (*models.AuthSession, error) {
	query :=
		`INSERT INTO auth_sessions (` + sessionColumns + `)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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

func (r *SQLiteRepository) GetByToken(ctx context.Context, token string) (*models.AuthSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM auth_sessions WHERE token = ?`
	return scanSession(r.db.QueryRowContext(ctx, query, token))
}

func (r *SQLiteRepository) GetCurrent(ctx context.Context, credentialID string) (*models.AuthSession, error) {
	query := `SELECT ` + sessionColumns + `
		 FROM auth_sessions
		 WHERE credential_id = ? AND authenticated = 1 AND awaiting_second_factor = 0
		 ORDER BY last_used_at DESC
		 LIMIT 1
		 `
	return scanSession(r.db.QueryRowContext(ctx, query, credentialID))
}

func scanSession(row *sql.Row) (*models.AuthSession, error) {
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

func (r *SQLiteRepository) MarkAuthenticated(ctx context.Context, id string, stateCiphertext, stateNonce []byte) error {
	query :=
		`UPDATE auth_sessions
		 SET authenticated = 1, awaiting_second_factor = 0,
		     state_ciphertext = ?, state_nonce = ?, last_used_at = ?
		 WHERE id = ?
		 `
	if _, err := r.db.ExecContext(ctx, query, stateCiphertext, stateNonce, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) TouchLastUsed(ctx context.Context, id string) error {
	query := `UPDATE auth_sessions SET last_used_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
