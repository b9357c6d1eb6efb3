package models

import "time"

// TrustedDevice describes one device the provider may deliver a second
// factor to. Captured at login time and persisted (encrypted) on the
// pending session so the CLI can show it when prompting for a code.
type TrustedDevice struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Label string `json:"label"`
}

// AuthSession is one authentication attempt against the provider. It belongs
// to exactly one Credential. Provider session state (cookie-like key/value
// pairs) and the trusted-device list are stored encrypted under a key derived
// from the vault passphrase and the session's salt.
//
// At most one session per credential is the "current" one for resumption:
// the most recent authenticated, non-pending, non-expired by last-used time.
type AuthSession struct {
	ID                   string
	CredentialID         string
	Token                string
	StateCiphertext      []byte
	StateNonce           []byte
	DevicesCiphertext    []byte
	DevicesNonce         []byte
	Salt                 []byte
	Authenticated        bool
	AwaitingSecondFactor bool
	CreatedAt            time.Time
	ExpiresAt            time.Time
	LastUsedAt           time.Time
}

// Expired reports whether the session's expiry has passed at the given time.
// Expiry is detected lazily at lookup; there is no background sweep.
func (s *AuthSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
