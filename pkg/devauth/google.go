package devauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/habets/authkit/pkg/auth"
)

// GoogleConfig holds the Google OAuth application settings.
type GoogleConfig struct {
	ClientID     string   `env:"GOOGLE_OAUTH_CLIENT_ID,required"`
	ClientSecret string   `env:"GOOGLE_OAUTH_CLIENT_SECRET,required"`
	Scopes       []string `env:"GOOGLE_OAUTH_SCOPES" envSeparator:"," envDefault:"openid,https://www.googleapis.com/auth/userinfo.email,https://www.googleapis.com/auth/userinfo.profile"`

	// RedirectAddr is the loopback address the callback listener binds
	// to. Port 0 picks a free port.
	RedirectAddr string        `env:"GOOGLE_OAUTH_REDIRECT_ADDR" envDefault:"127.0.0.1:0"`
	StateTTL     time.Duration `env:"GOOGLE_OAUTH_STATE_TTL" envDefault:"10m"`

	// Endpoint overrides, used by tests to point the flow at a stub.
	AuthURL     string `env:"GOOGLE_OAUTH_AUTH_URL"`
	TokenURL    string `env:"GOOGLE_OAUTH_TOKEN_URL"`
	UserInfoURL string `env:"GOOGLE_OAUTH_USERINFO_URL" envDefault:"https://www.googleapis.com/oauth2/v3/userinfo"`
}

// googleFlow runs the authorization-code exchange and userinfo fetch.
type googleFlow struct {
	conf        oauth2.Config
	userInfoURL string
	stateTTL    time.Duration
	httpClient  *http.Client
}

func newGoogleFlow(cfg GoogleConfig) *googleFlow {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &googleFlow{
		conf: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: cfg.UserInfoURL,
		stateTTL:    ttl,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// authCodeURL builds the authorization URL for one flow instance. The
// redirect URL differs per flow because the loopback listener picks
// its port at bind time.
func (g *googleFlow) authCodeURL(redirectURL, state, verifier string) string {
	conf := g.conf
	conf.RedirectURL = redirectURL
	return conf.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
}

// resolve exchanges the authorization code and fetches the user's
// profile from the userinfo endpoint.
func (g *googleFlow) resolve(ctx context.Context, redirectURL, code, verifier string) (*googleIdentity, error) {
	conf := g.conf
	conf.RedirectURL = redirectURL

	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
	tok, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %v", auth.ErrAuthenticationFailed, err)
	}

	return g.fetchIdentity(ctx, tok.AccessToken)
}

func (g *googleFlow) fetchIdentity(ctx context.Context, accessToken string) (*googleIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("devauth: fetch google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("devauth: google userinfo returned status %d", resp.StatusCode)
	}

	var id googleIdentity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, fmt.Errorf("devauth: decode google userinfo: %w", err)
	}
	if id.Subject == "" {
		return nil, fmt.Errorf("%w: userinfo missing subject", auth.ErrAuthenticationFailed)
	}
	return &id, nil
}

// googleIdentity is the OpenID Connect userinfo shape.
type googleIdentity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}
