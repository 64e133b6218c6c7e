package gotrue

import "time"

// Config holds the connection settings for a GoTrue-compatible API.
type Config struct {
	// BaseURL is the root of the auth API, e.g.
	// https://project.supabase.co/auth/v1.
	BaseURL string `env:"GOTRUE_URL,required"`
	// APIKey is the public (anon) API key sent with every request.
	APIKey string `env:"GOTRUE_ANON_KEY,required"`

	// RedirectAddr is the loopback address the PKCE callback listener
	// binds to. Port 0 picks a free port.
	RedirectAddr string `env:"GOTRUE_REDIRECT_ADDR" envDefault:"127.0.0.1:0"`

	RequestTimeout time.Duration `env:"GOTRUE_REQUEST_TIMEOUT" envDefault:"30s"`

	// RefreshLead is how long before access-token expiry the refresh
	// loop renews the session.
	RefreshLead time.Duration `env:"GOTRUE_REFRESH_LEAD" envDefault:"60s"`
}
