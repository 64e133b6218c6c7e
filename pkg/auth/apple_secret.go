package auth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const appleAudience = "https://appleid.apple.com"

// Apple rotates client secrets at most every six months; the generator
// uses the maximum lifetime Apple accepts.
const appleSecretLifetime = 6 * 30 * 24 * time.Hour

var (
	ErrAppleKeyMissing    = errors.New("apple private key is required")
	ErrAppleConfigMissing = errors.New("apple team id, key id and client id are required")
)

// AppleConfig holds the developer-account coordinates needed to mint
// client secrets for Sign in with Apple token exchanges.
type AppleConfig struct {
	TeamID         string `env:"APPLE_TEAM_ID,required"`
	KeyID          string `env:"APPLE_KEY_ID,required"`
	ClientID       string `env:"APPLE_CLIENT_ID,required"` // bundle or service identifier, e.g. me.habets.app
	PrivateKeyPath string `env:"APPLE_PRIVATE_KEY_PATH"`
	PrivateKeyPEM  string `env:"APPLE_PRIVATE_KEY_PEM"`
}

// AppleSecretSource mints the ES256-signed client secret Apple requires
// when exchanging identity tokens server-side. Secrets are cached until
// shortly before expiry so repeated exchanges do not re-sign.
type AppleSecretSource struct {
	cfg AppleConfig
	key *ecdsa.PrivateKey
	now func() time.Time

	cached    string
	expiresAt time.Time
}

// NewAppleSecretSource parses the .p8 signing key from the config and
// returns a source ready to mint client secrets.
func NewAppleSecretSource(cfg AppleConfig) (*AppleSecretSource, error) {
	if cfg.TeamID == "" || cfg.KeyID == "" || cfg.ClientID == "" {
		return nil, ErrAppleConfigMissing
	}

	pemBytes := []byte(cfg.PrivateKeyPEM)
	if len(pemBytes) == 0 && cfg.PrivateKeyPath != "" {
		b, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read apple private key: %w", err)
		}
		pemBytes = b
	}
	if len(pemBytes) == 0 {
		return nil, ErrAppleKeyMissing
	}

	key, err := jwt.ParseECPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse apple private key: %w", err)
	}

	return &AppleSecretSource{cfg: cfg, key: key, now: time.Now}, nil
}

// ClientSecret returns a signed client secret, minting a fresh one when
// the cached secret is within an hour of expiry.
func (s *AppleSecretSource) ClientSecret() (string, error) {
	now := s.now()
	if s.cached != "" && now.Before(s.expiresAt.Add(-time.Hour)) {
		return s.cached, nil
	}

	expiresAt := now.Add(appleSecretLifetime)
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.RegisteredClaims{
		Issuer:    s.cfg.TeamID,
		Subject:   s.cfg.ClientID,
		Audience:  jwt.ClaimStrings{appleAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	token.Header["kid"] = s.cfg.KeyID

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign apple client secret: %w", err)
	}

	s.cached = signed
	s.expiresAt = expiresAt
	return signed, nil
}
