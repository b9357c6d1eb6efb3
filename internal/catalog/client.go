// Package catalog implements the authenticated remote client for the catalog
// service. It knows nothing about catalog semantics beyond authentication
// and transient-failure recovery: bearer token on every request, exactly one
// re-authentication on 401, bounded exponential backoff on 5xx and network
// errors, and everything else handed back to the caller unmodified.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sethvargo/go-retry"

	"github.com/vkuzmenko/photovault/internal/common"
	"github.com/vkuzmenko/photovault/internal/logging"
)

const (
	// defaultInitialBackoff is the first wait before a transient retry;
	// it doubles on each subsequent attempt.
	defaultInitialBackoff = 500 * time.Millisecond

	// defaultMaxAttempts bounds transient retries per request cycle.
	defaultMaxAttempts = 4

	// tokenExpiryLeeway re-authenticates slightly before the token's exp
	// to avoid a guaranteed 401 round trip.
	tokenExpiryLeeway = 30 * time.Second
)

// StatusError is a non-2xx catalog response that is not retried (other than
// the single 401 re-auth). The body is preserved for the caller.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog returned status %d: %s", e.StatusCode, e.Body)
}

// Client is the authenticated remote client. It is safe for concurrent use:
// the dispatcher's worker pool issues deletes through the same client that
// serves the collector stream's batch upserts.
type Client struct {
	baseURL    string
	account    string
	password   string
	httpClient *http.Client
	logger     logging.Logger

	// mu guards the token pair and generation. authGen increments on every
	// successful (re-)authentication so callers can tell whether someone
	// else already refreshed the tokens they saw go stale.
	mu           sync.Mutex
	accessToken  string
	refreshToken string
	authGen      uint64

	// authMu serializes re-authentication so N concurrent stale callers
	// produce one login, not N.
	authMu sync.Mutex

	initialBackoff time.Duration
	maxAttempts    uint64
}

// NewClient constructs a catalog client for the given base URL and account
// credentials. The client logs in lazily on the first request.
func NewClient(baseURL, account, password string, logger logging.Logger) *Client {
	return &Client{
		baseURL:        baseURL,
		account:        account,
		password:       password,
		httpClient:     &http.Client{Timeout: 60 * time.Second},
		logger:         logger,
		initialBackoff: defaultInitialBackoff,
		maxAttempts:    defaultMaxAttempts,
	}
}

// Login authenticates against the catalog and stores the token pair.
func (c *Client) Login(ctx context.Context) error {
	req := map[string]string{"account": c.account, "password": c.password}

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.send(ctx, http.MethodPost, "/auth/login", req, &resp, false); err != nil {
		return fmt.Errorf("catalog login failed: %w", err)
	}

	c.setTokens(resp.AccessToken, resp.RefreshToken)
	return nil
}

// token returns the current access token and auth generation.
func (c *Client) token() (string, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.authGen
}

func (c *Client) setTokens(access, refresh string) {
	c.mu.Lock()
	c.accessToken = access
	c.refreshToken = refresh
	c.authGen++
	c.mu.Unlock()
}

// reauthenticate tries a refresh-token rotation first and falls back to a
// full login when rotation fails or no refresh token is held. seen is the
// auth generation the caller observed; if it has moved on by the time the
// auth lock is acquired, another caller already re-authenticated and this
// one returns immediately.
func (c *Client) reauthenticate(ctx context.Context, seen uint64) error {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	c.mu.Lock()
	gen, refresh := c.authGen, c.refreshToken
	c.mu.Unlock()
	if gen != seen {
		return nil
	}

	if refresh != "" {
		req := map[string]string{"refresh_token": refresh}
		var resp struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.send(ctx, http.MethodPost, "/auth/refresh", req, &resp, false); err == nil {
			c.setTokens(resp.AccessToken, resp.RefreshToken)
			return nil
		}
		c.logger.Debug(ctx, "refresh token rotation failed, falling back to login")
	}
	return c.Login(ctx)
}

// tokenStale reports whether the given access token is absent or expires
// within the leeway window. The claim is read without signature verification;
// trust in the token is the server's concern, we only schedule re-auth.
func (c *Client) tokenStale(token string) bool {
	if token == "" {
		return true
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Now().Add(tokenExpiryLeeway).After(exp.Time)
}

// do performs one authenticated request cycle: proactive re-auth when the
// token looks stale, then a backoff-bounded attempt; a 401 triggers exactly
// one re-authentication followed by one more attempt cycle.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	token, gen := c.token()
	if c.tokenStale(token) {
		if err := c.reauthenticate(ctx, gen); err != nil {
			return err
		}
		_, gen = c.token()
	}

	err := c.attempt(ctx, method, path, body, result)

	var se *StatusError
	if e, ok := err.(*StatusError); ok && e.StatusCode == http.StatusUnauthorized {
		se = e
	}
	if se == nil {
		return err
	}

	c.logger.Debug(ctx, "catalog rejected token, re-authenticating once", "path", path)
	if err := c.reauthenticate(ctx, gen); err != nil {
		return err
	}
	return c.attempt(ctx, method, path, body, result)
}

// attempt performs the request, retrying 5xx and network errors with
// exponential backoff (initial wait doubling per attempt) up to maxAttempts,
// then propagating the last error. Non-retryable statuses surface directly.
func (c *Client) attempt(ctx context.Context, method, path string, body, result any) error {
	backoff := retry.WithMaxRetries(c.maxAttempts-1, retry.NewExponential(c.initialBackoff))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.send(ctx, method, path, body, result, true)
		if err == nil {
			return nil
		}
		if se, ok := err.(*StatusError); ok {
			if se.StatusCode >= 500 {
				c.logger.Debug(ctx, "catalog transient failure, will retry", "path", path, "status", se.StatusCode)
				return retry.RetryableError(err)
			}
			return err
		}
		// Network-level failure.
		c.logger.Debug(ctx, "catalog request failed, will retry", "path", path, "error", err)
		return retry.RetryableError(err)
	})
}

// send performs a single HTTP round trip.
func (c *Client) send(ctx context.Context, method, path string, body, result any, authed bool) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token, _ := c.token()
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
