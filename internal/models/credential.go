// Package models defines the persisted and wire-level data types shared by
// the vault, sync, and audit layers.
package models

import "time"

// Credential identifies one account at the external identity provider.
// The secret is stored encrypted (AES-GCM) under a key derived from the
// configured vault passphrase and the per-row salt.
//
// Owned exclusively by the vault: the sync path only ever updates the
// last-auth timestamp and the requires-second-factor flag.
type Credential struct {
	ID                   string
	AccountID            string
	LoginID              string
	SecretCiphertext     []byte
	SecretNonce          []byte
	SecretSalt           []byte
	Active               bool
	RequiresSecondFactor bool
	LastAuthAt           *time.Time
	CreatedAt            time.Time
}
