// Package provider defines the narrow capability surface this system needs
// from the external identity provider and its media library. The dispatcher
// and detector depend only on these interfaces, never on a concrete provider
// client, so provider-library churn stays contained here.
package provider

import (
	"context"
	"io"
	"time"

	"github.com/vkuzmenko/photovault/internal/models"
)

// LoginResult reports the outcome of a provider login attempt.
type LoginResult struct {
	// RequiresSecondFactor is set when the provider demands a code before
	// the session becomes usable.
	RequiresSecondFactor bool

	// TrustedDevices lists devices the provider can deliver a code to,
	// when it supplies such a list.
	TrustedDevices []models.TrustedDevice
}

// Client is one logical session with the identity provider.
type Client interface {
	// Login authenticates with the credentials the client was dialed with.
	Login(ctx context.Context) (*LoginResult, error)

	// ValidateCode submits a second-factor code for the pending login.
	ValidateCode(ctx context.Context, code string) error

	// TrustSession asks the provider to mark the session as trusted so
	// future logins skip the second factor. Failures are non-fatal.
	TrustSession(ctx context.Context) error

	// SessionState exports the provider session as cookie-like key/value
	// pairs suitable for encrypted persistence.
	SessionState() map[string]string

	// RestoreSession replays previously exported session state into the
	// client, rehydrating an authenticated session without a fresh login.
	RestoreSession(state map[string]string) error

	// Library returns the media library reachable through this session.
	Library() Library
}

// Library enumerates the account's local captures.
type Library interface {
	Assets(ctx context.Context) ([]Asset, error)
}

// Rendition describes one available representation of an asset.
type Rendition struct {
	Kind        models.RenditionKind
	Filename    string
	Size        int64
	Width       int
	Height      int
	ContentType string
}

// Asset is the read-only capability handle for one capture.
type Asset interface {
	ID() string
	CapturedAt() time.Time

	// ModifiedAt returns the modification time and whether one is known.
	ModifiedAt() (time.Time, bool)

	Trashed() bool
	Dimensions() (width, height int)
	Renditions() []Rendition

	// Download streams the content of one rendition.
	Download(ctx context.Context, kind models.RenditionKind) (io.ReadCloser, error)
}

// Dialer builds a provider Client for a login id and decrypted secret.
type Dialer interface {
	Dial(ctx context.Context, loginID string, secret []byte) (Client, error)
}
