// Package services contains the business logic of photovault. This file
// implements VaultService: encrypted credential storage and the provider
// authentication session state machine (unauthenticated → awaiting second
// factor → authenticated → expired).
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vkuzmenko/photovault/internal/common"
	"github.com/vkuzmenko/photovault/internal/cryptox"
	"github.com/vkuzmenko/photovault/internal/dbx"
	"github.com/vkuzmenko/photovault/internal/logging"
	"github.com/vkuzmenko/photovault/internal/models"
	"github.com/vkuzmenko/photovault/internal/provider"
	"github.com/vkuzmenko/photovault/internal/repositories/repomanager"
)

// VaultService owns credentials and auth sessions. Provider-side failures
// during authentication degrade to an absent session or handle (nil, nil);
// non-nil errors are reserved for storage faults and invalid requests.
type VaultService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	dialer      provider.Dialer
	passphrase  []byte
	sessionTTL  time.Duration
	logger      logging.Logger

	// now is a test seam for expiry checks.
	now func() time.Time
}

// NewVaultService constructs a VaultService. sessionTTL bounds how long an
// authenticated session remains resumable; zero means the default 7 days.
func NewVaultService(db *sql.DB, m repomanager.RepositoryManager, dialer provider.Dialer,
	passphrase []byte, sessionTTL time.Duration, logger logging.Logger) *VaultService {

	if sessionTTL <= 0 {
		sessionTTL = common.SessionTTLDays * 24 * time.Hour
	}

	return &VaultService{
		db:          db,
		repomanager: m,
		dialer:      dialer,
		passphrase:  passphrase,
		sessionTTL:  sessionTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateOrUpdateCredential encrypts the secret at rest and either creates a
// credential for (accountID, loginID) or replaces the existing one's secret,
// reactivating it. No network call is made.
func (s *VaultService) CreateOrUpdateCredential(ctx context.Context, accountID, loginID string, secret []byte) (*models.Credential, error) {
	repo := s.repomanager.Credentials(s.db)

	salt, err := cryptox.GenerateSalt(16)
	if err != nil {
		return nil, err
	}
	key := cryptox.DeriveKey(s.passphrase, salt)

	ciphertext, nonce, err := cryptox.Seal(secret, key)
	if err != nil {
		return nil, fmt.Errorf("error encrypting secret: %w", err)
	}

	existing, err := repo.GetByAccountLogin(ctx, accountID, loginID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		if err := repo.ReplaceSecret(ctx, existing.ID, ciphertext, nonce, salt); err != nil {
			return nil, err
		}
		existing.SecretCiphertext = ciphertext
		existing.SecretNonce = nonce
		existing.SecretSalt = salt
		existing.Active = true
		return existing, nil
	}

	c := &models.Credential{
		ID:               uuid.New().String(),
		AccountID:        accountID,
		LoginID:          loginID,
		SecretCiphertext: ciphertext,
		SecretNonce:      nonce,
		SecretSalt:       salt,
		Active:           true,
	}

	return repo.Create(ctx, c)
}

// decryptSecret recovers the provider secret for a credential.
func (s *VaultService) decryptSecret(c *models.Credential) ([]byte, error) {
	key := cryptox.DeriveKey(s.passphrase, c.SecretSalt)
	secret, err := cryptox.Open(c.SecretCiphertext, c.SecretNonce, key)
	if err != nil {
		return nil, fmt.Errorf("error decrypting secret: %w", err)
	}
	return secret, nil
}

// InitiateAuthentication attempts a provider login for the credential.
//
// On provider failure it returns (nil, nil): the caller must check for an
// absent session. On success it persists a new AuthSession — authenticated
// when the provider let us straight in, or awaiting a second factor when the
// provider demanded one (with any trusted-device list captured, encrypted).
// Either way the session expires 7 days (sessionTTL) from now.
func (s *VaultService) InitiateAuthentication(ctx context.Context, credentialID string) (*models.AuthSession, error) {
	credRepo := s.repomanager.Credentials(s.db)

	cred, err := credRepo.GetByID(ctx, credentialID)
	if err != nil {
		return nil, err
	}
	if !cred.Active {
		return nil, common.ErrCredentialInactive
	}

	secret, err := s.decryptSecret(cred)
	if err != nil {
		return nil, err
	}

	client, err := s.dialer.Dial(ctx, cred.LoginID, secret)
	if err != nil {
		s.logger.Warn(ctx, "provider dial failed", "credential_id", credentialID, "error", err)
		return nil, nil
	}

	res, err := client.Login(ctx)
	if err != nil {
		s.logger.Warn(ctx, "provider login failed", "credential_id", credentialID, "error", err)
		return nil, nil
	}

	salt, err := cryptox.GenerateSalt(16)
	if err != nil {
		return nil, err
	}
	key := cryptox.DeriveKey(s.passphrase, salt)

	now := s.now().UTC()
	session := &models.AuthSession{
		ID:           uuid.New().String(),
		CredentialID: cred.ID,
		Token:        uuid.New().String(),
		Salt:         salt,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.sessionTTL),
		LastUsedAt:   now,
	}

	if res.RequiresSecondFactor {
		session.AwaitingSecondFactor = true
		if len(res.TrustedDevices) > 0 {
			ct, nonce, err := cryptox.SealJSON(res.TrustedDevices, key)
			if err != nil {
				return nil, fmt.Errorf("error encrypting device list: %w", err)
			}
			session.DevicesCiphertext = ct
			session.DevicesNonce = nonce
		}
	} else {
		session.Authenticated = true
		ct, nonce, err := cryptox.SealJSON(client.SessionState(), key)
		if err != nil {
			return nil, fmt.Errorf("error encrypting session state: %w", err)
		}
		session.StateCiphertext = ct
		session.StateNonce = nonce

		if err := credRepo.TouchAuth(ctx, cred.ID); err != nil {
			return nil, err
		}
	}

	return s.repomanager.Sessions(s.db).Create(ctx, session)
}

// SubmitSecondFactor validates a code for a pending session. On acceptance
// the session becomes authenticated, the provider session is (best effort)
// marked trusted, and the credential is flagged as requiring a second factor
// for future runs. On provider rejection nothing is persisted and
// common.ErrSecondFactorRejected is returned.
func (s *VaultService) SubmitSecondFactor(ctx context.Context, sessionToken, code string) error {
	sessRepo := s.repomanager.Sessions(s.db)

	session, err := sessRepo.GetByToken(ctx, sessionToken)
	if err != nil {
		return err
	}
	if !session.AwaitingSecondFactor {
		return common.ErrSessionNotPending
	}

	cred, err := s.repomanager.Credentials(s.db).GetByID(ctx, session.CredentialID)
	if err != nil {
		return err
	}

	secret, err := s.decryptSecret(cred)
	if err != nil {
		return err
	}

	client, err := s.dialer.Dial(ctx, cred.LoginID, secret)
	if err != nil {
		return fmt.Errorf("provider dial failed: %w", err)
	}

	// The provider login has to be re-established before the code can be
	// validated against it.
	if _, err := client.Login(ctx); err != nil {
		return fmt.Errorf("provider login failed: %w", err)
	}

	if err := client.ValidateCode(ctx, code); err != nil {
		return fmt.Errorf("%w: %v", common.ErrSecondFactorRejected, err)
	}

	if err := client.TrustSession(ctx); err != nil {
		s.logger.Warn(ctx, "trust session request failed", "credential_id", cred.ID, "error", err)
	}

	key := cryptox.DeriveKey(s.passphrase, session.Salt)
	stateCt, stateNonce, err := cryptox.SealJSON(client.SessionState(), key)
	if err != nil {
		return fmt.Errorf("error encrypting session state: %w", err)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Sessions(tx).MarkAuthenticated(ctx, session.ID, stateCt, stateNonce); err != nil {
			return err
		}
		credTx := s.repomanager.Credentials(tx)
		if err := credTx.SetRequiresSecondFactor(ctx, cred.ID, true); err != nil {
			return err
		}
		return credTx.TouchAuth(ctx, cred.ID)
	})
}

// GetAuthenticatedHandle rehydrates a provider client from the credential's
// current session: the most recent authenticated, non-pending one, provided
// its expiry has not passed. Returns (nil, nil) when no usable session
// exists or the provider rejects rehydration.
func (s *VaultService) GetAuthenticatedHandle(ctx context.Context, credentialID string) (provider.Client, error) {
	sessRepo := s.repomanager.Sessions(s.db)

	session, err := sessRepo.GetCurrent(ctx, credentialID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if session.Expired(s.now().UTC()) {
		s.logger.Info(ctx, "current session expired", "credential_id", credentialID, "expired_at", session.ExpiresAt)
		return nil, nil
	}

	cred, err := s.repomanager.Credentials(s.db).GetByID(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	secret, err := s.decryptSecret(cred)
	if err != nil {
		return nil, err
	}

	client, err := s.dialer.Dial(ctx, cred.LoginID, secret)
	if err != nil {
		s.logger.Warn(ctx, "provider dial failed", "credential_id", credentialID, "error", err)
		return nil, nil
	}

	key := cryptox.DeriveKey(s.passphrase, session.Salt)
	var state map[string]string
	if err := cryptox.OpenJSON(session.StateCiphertext, session.StateNonce, key, &state); err != nil {
		return nil, fmt.Errorf("error decrypting session state: %w", err)
	}

	if err := client.RestoreSession(state); err != nil {
		s.logger.Warn(ctx, "session rehydration failed", "credential_id", credentialID, "error", err)
		return nil, nil
	}

	if err := sessRepo.TouchLastUsed(ctx, session.ID); err != nil {
		return nil, err
	}

	return client, nil
}

// PendingDevices decrypts the trusted-device list captured on a pending
// session, for display when prompting the user for a code. Returns nil when
// the session carries no list.
func (s *VaultService) PendingDevices(session *models.AuthSession) ([]models.TrustedDevice, error) {
	if len(session.DevicesCiphertext) == 0 {
		return nil, nil
	}
	key := cryptox.DeriveKey(s.passphrase, session.Salt)
	var devices []models.TrustedDevice
	if err := cryptox.OpenJSON(session.DevicesCiphertext, session.DevicesNonce, key, &devices); err != nil {
		return nil, fmt.Errorf("error decrypting device list: %w", err)
	}
	return devices, nil
}
