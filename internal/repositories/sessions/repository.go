// Package sessions persists provider auth sessions for the vault.
package sessions

import (
	"context"

	"github.com/vkuzmenko/photovault/internal/models"
)

// Repository is the persistence surface for auth sessions.
type Repository interface {
	// Create inserts a new session.
	Create(ctx context.Context, s *models.AuthSession) (*models.AuthSession, error)

	// GetByToken returns the session with the given opaque token,
	// or common.ErrNotFound.
	GetByToken(ctx context.Context, token string) (*models.AuthSession, error)

	// GetCurrent returns the most recent authenticated, non-pending session
	// for the credential (ordered by last_used_at descending), or
	// common.ErrNotFound. Expiry is the caller's concern.
	GetCurrent(ctx context.Context, credentialID string) (*models.AuthSession, error)

	// MarkAuthenticated flips the session to the authenticated state and
	// stores refreshed encrypted provider state.
	MarkAuthenticated(ctx context.Context, id string, stateCiphertext, stateNonce []byte) error

	// TouchLastUsed refreshes the last-used timestamp.
	TouchLastUsed(ctx context.Context, id string) error
}
