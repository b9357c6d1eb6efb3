// Package common defines shared constants and sentinel errors used across
// photovault components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Vault / session lifecycle errors.
	ErrSessionNotPending    = errors.New("session is not awaiting a second factor")
	ErrSecondFactorRejected = errors.New("second factor code rejected")
	ErrCredentialInactive   = errors.New("credential is not active")
)
