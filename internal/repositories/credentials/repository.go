// Package credentials persists provider credentials for the vault.
package credentials

import (
	"context"

	"github.com/vkuzmenko/photovault/internal/models"
)

// Repository is the persistence surface for credentials. Implementations
// exist for sqlite (device-resident default) and postgres.
type Repository interface {
	// Create inserts a new credential and returns it with the ID populated.
	Create(ctx context.Context, c *models.Credential) (*models.Credential, error)

	// GetByID returns a credential by primary key, or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Credential, error)

	// GetByAccountLogin returns the credential for (accountID, loginID),
	// or common.ErrNotFound.
	GetByAccountLogin(ctx context.Context, accountID, loginID string) (*models.Credential, error)

	// ReplaceSecret swaps the encrypted secret material and reactivates the
	// credential.
	ReplaceSecret(ctx context.Context, id string, ciphertext, nonce, salt []byte) error

	// SetRequiresSecondFactor records that the provider demanded a second
	// factor, so future runs can anticipate the prompt.
	SetRequiresSecondFactor(ctx context.Context, id string, v bool) error

	// TouchAuth updates the last-successful-auth timestamp.
	TouchAuth(ctx context.Context, id string) error
}
