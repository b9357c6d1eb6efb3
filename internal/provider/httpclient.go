package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vkuzmenko/photovault/internal/models"
)

// HTTPDialer builds HTTPClient sessions against a provider base URL.
type HTTPDialer struct {
	BaseURL string
}

func (d *HTTPDialer) Dial(ctx context.Context, loginID string, secret []byte) (Client, error) {
	return NewHTTPClient(d.BaseURL, loginID, secret)
}

// HTTPClient talks to the identity provider over HTTP. Session state lives
// in the cookie jar; SessionState/RestoreSession translate between the jar
// and the flat key/value form the vault persists.
type HTTPClient struct {
	baseURL    string
	loginID    string
	secret     []byte
	jar        *cookiejar.Jar
	httpClient *http.Client
}

func NewHTTPClient(baseURL, loginID string, secret []byte) (*HTTPClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &HTTPClient{
		baseURL: baseURL,
		loginID: loginID,
		secret:  secret,
		jar:     jar,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Jar:     jar,
		},
	}, nil
}

func (c *HTTPClient) doRequest(ctx context.Context, method, path string, body, result any) error {
	u := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (c *HTTPClient) Login(ctx context.Context) (*LoginResult, error) {
	req := map[string]string{"login": c.loginID, "secret": string(c.secret)}

	var resp struct {
		RequiresSecondFactor bool                   `json:"requires_second_factor"`
		TrustedDevices       []models.TrustedDevice `json:"trusted_devices"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/login", req, &resp); err != nil {
		return nil, err
	}

	return &LoginResult{
		RequiresSecondFactor: resp.RequiresSecondFactor,
		TrustedDevices:       resp.TrustedDevices,
	}, nil
}

func (c *HTTPClient) ValidateCode(ctx context.Context, code string) error {
	req := map[string]string{"code": code}
	return c.doRequest(ctx, http.MethodPost, "/validate", req, nil)
}

func (c *HTTPClient) TrustSession(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodPost, "/trust", nil, nil)
}

// SessionState flattens the cookie jar for the provider origin into a map.
func (c *HTTPClient) SessionState() map[string]string {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil
	}
	state := make(map[string]string)
	for _, cookie := range c.jar.Cookies(u) {
		state[cookie.Name] = cookie.Value
	}
	return state
}

// RestoreSession replays persisted cookie key/value pairs into the jar.
func (c *HTTPClient) RestoreSession(state map[string]string) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	cookies := make([]*http.Cookie, 0, len(state))
	for name, value := range state {
		cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	c.jar.SetCookies(u, cookies)
	return nil
}

func (c *HTTPClient) Library() Library {
	return &httpLibrary{c: c}
}

type httpLibrary struct {
	c *HTTPClient
}

type assetPayload struct {
	ID         string     `json:"id"`
	CapturedAt time.Time  `json:"captured_at"`
	ModifiedAt *time.Time `json:"modified_at"`
	Trashed    bool       `json:"trashed"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Renditions []struct {
		Kind        string `json:"kind"`
		Filename    string `json:"filename"`
		Size        int64  `json:"size"`
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		ContentType string `json:"content_type"`
	} `json:"renditions"`
}

func (l *httpLibrary) Assets(ctx context.Context) ([]Asset, error) {
	var resp struct {
		Assets []assetPayload `json:"assets"`
	}
	if err := l.c.doRequest(ctx, http.MethodGet, "/library/assets", nil, &resp); err != nil {
		return nil, err
	}

	assets := make([]Asset, 0, len(resp.Assets))
	for _, p := range resp.Assets {
		assets = append(assets, &httpAsset{c: l.c, payload: p})
	}
	return assets, nil
}

type httpAsset struct {
	c       *HTTPClient
	payload assetPayload
}

func (a *httpAsset) ID() string            { return a.payload.ID }
func (a *httpAsset) CapturedAt() time.Time { return a.payload.CapturedAt }
func (a *httpAsset) Trashed() bool         { return a.payload.Trashed }

func (a *httpAsset) ModifiedAt() (time.Time, bool) {
	if a.payload.ModifiedAt == nil {
		return time.Time{}, false
	}
	return *a.payload.ModifiedAt, true
}

func (a *httpAsset) Dimensions() (int, int) {
	return a.payload.Width, a.payload.Height
}

func (a *httpAsset) Renditions() []Rendition {
	rs := make([]Rendition, 0, len(a.payload.Renditions))
	for _, r := range a.payload.Renditions {
		rs = append(rs, Rendition{
			Kind:        models.RenditionKind(r.Kind),
			Filename:    r.Filename,
			Size:        r.Size,
			Width:       r.Width,
			Height:      r.Height,
			ContentType: r.ContentType,
		})
	}
	return rs
}

// Download streams one rendition, retrying transient failures with a bounded
// exponential backoff before giving up.
func (a *httpAsset) Download(ctx context.Context, kind models.RenditionKind) (io.ReadCloser, error) {
	u := fmt.Sprintf("%s/library/assets/%s/%s", a.c.baseURL, a.payload.ID, kind)

	var body io.ReadCloser
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		resp, err := a.c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		if resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			return retry.RetryableError(fmt.Errorf("download failed: %s", resp.Status))
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return fmt.Errorf("download failed: %s", resp.Status)
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}
