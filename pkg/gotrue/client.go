package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/habets/authkit/pkg/auth"
)

// Client is the low-level HTTP client for the GoTrue API. It maps one
// method to one endpoint and leaves session keeping to Service.
// Zero value is not usable; use NewClient.
type Client struct {
	baseURL string
	apiKey  string
	// client is reused across requests for connection pooling
	client *http.Client
	now    func() time.Time
}

// NewClient creates a GoTrue API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: BaseURL is required", ErrInvalidConfig)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("%w: BaseURL: %v", ErrInvalidConfig, err)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: APIKey is required", ErrInvalidConfig)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		now: time.Now,
	}, nil
}

// NewClientWithHTTP creates a client with a custom HTTP client, for
// proxies or testing.
func NewClientWithHTTP(cfg Config, hc *http.Client) (*Client, error) {
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if hc != nil {
		c.client = hc
	}
	return c, nil
}

// PasswordGrant exchanges an email/password credential for a session.
func (c *Client) PasswordGrant(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	return c.grant(ctx, "password", body)
}

// Signup registers a new account. Display metadata rides along in the
// data object and lands in user_metadata.
func (c *Client) Signup(ctx context.Context, email, password, fullName string) (*Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"full_name": fullName},
	}
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/signup", nil, body, "", &resp); err != nil {
		return nil, err
	}
	return resp.toSession(c.now())
}

// IdentityTokenGrant trades a provider identity token for a session.
// The nonce is the raw value whose hash was bound into the token.
func (c *Client) IdentityTokenGrant(ctx context.Context, provider, idToken, nonce string) (*Session, error) {
	body := map[string]string{
		"provider": provider,
		"id_token": idToken,
	}
	if nonce != "" {
		body["nonce"] = nonce
	}
	return c.grant(ctx, "id_token", body)
}

// ExchangeCode completes a PKCE authorization-code flow.
func (c *Client) ExchangeCode(ctx context.Context, authCode, codeVerifier string) (*Session, error) {
	body := map[string]string{
		"auth_code":     authCode,
		"code_verifier": codeVerifier,
	}
	return c.grant(ctx, "pkce", body)
}

// RefreshGrant renews a session from its refresh token.
func (c *Client) RefreshGrant(ctx context.Context, refreshToken string) (*Session, error) {
	body := map[string]string{"refresh_token": refreshToken}
	return c.grant(ctx, "refresh_token", body)
}

// AuthorizeURL builds the browser URL that starts an OAuth
// authorization-code flow with a S256 PKCE challenge.
func (c *Client) AuthorizeURL(provider, redirectTo, codeChallenge string) string {
	q := url.Values{}
	q.Set("provider", provider)
	q.Set("redirect_to", redirectTo)
	q.Set("code_challenge", codeChallenge)
	q.Set("code_challenge_method", "s256")
	return c.baseURL + "/authorize?" + q.Encode()
}

// Logout revokes the session behind the access token.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil, accessToken, nil)
}

// User fetches the user record behind the access token.
func (c *Client) User(ctx context.Context, accessToken string) (*auth.SessionUser, error) {
	var u apiUser
	if err := c.do(ctx, http.MethodGet, "/user", nil, nil, accessToken, &u); err != nil {
		return nil, err
	}
	return u.toSessionUser()
}

func (c *Client) grant(ctx context.Context, grantType string, body any) (*Session, error) {
	q := url.Values{"grant_type": []string{grantType}}
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/token", q, body, "", &resp); err != nil {
		return nil, err
	}
	return resp.toSession(c.now())
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, accessToken string, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gotrue: marshal request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, payload)
	if err != nil {
		return fmt.Errorf("gotrue: build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	if accessToken == "" {
		accessToken = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrRequestFailed, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		// A non-JSON error body still yields a usable status-only error.
		_ = json.Unmarshal(raw, apiErr)
		return apiErr.taxonomy()
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("gotrue: decode response: %w", err)
		}
	}
	return nil
}
