package devauth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/habets/authkit/pkg/auth"
	"github.com/habets/authkit/pkg/logger"
)

const appleIssuer = "https://appleid.apple.com"

// ErrInvalidVerifierConfig reports missing Apple verifier settings.
var ErrInvalidVerifierConfig = errors.New("invalid apple verifier config")

// AppleVerifierConfig bundles the settings for offline Apple identity
// token verification.
type AppleVerifierConfig struct {
	// ClientID is the expected audience: the app's bundle ID for native
	// tokens, the services ID for web tokens.
	ClientID string        `env:"APPLE_CLIENT_ID,required"`
	JWKSURL  string        `env:"APPLE_JWKS_URL" envDefault:"https://appleid.apple.com/auth/keys"`
	CacheTTL time.Duration `env:"APPLE_JWKS_CACHE_TTL" envDefault:"10m"`
}

// AppleClaims is the validated claim data a verified token yields.
type AppleClaims struct {
	Subject string
	Email   string
	Expiry  time.Time
}

// appleTokenClaims is the wire shape of an Apple identity token.
type appleTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Nonce string `json:"nonce"`
}

// AppleVerifier verifies Apple identity tokens offline against a
// cached copy of Apple's JWKS.
type AppleVerifier struct {
	clientID   string
	jwksURL    string
	httpClient *http.Client
	logger     *slog.Logger
	clock      func() time.Time
	cache      *jwksCache
}

// AppleVerifierOption configures an AppleVerifier.
type AppleVerifierOption func(*AppleVerifier)

// WithAppleHTTPClient replaces the JWKS fetch client.
func WithAppleHTTPClient(hc *http.Client) AppleVerifierOption {
	return func(v *AppleVerifier) {
		if hc != nil {
			v.httpClient = hc
		}
	}
}

// WithAppleLogger sets a custom logger for the verifier.
func WithAppleLogger(l *slog.Logger) AppleVerifierOption {
	return func(v *AppleVerifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewAppleVerifier constructs a verifier with validated configuration.
func NewAppleVerifier(cfg AppleVerifierConfig, opts ...AppleVerifierOption) (*AppleVerifier, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: ClientID is required", ErrInvalidVerifierConfig)
	}
	if cfg.JWKSURL == "" {
		return nil, fmt.Errorf("%w: JWKSURL is required", ErrInvalidVerifierConfig)
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	v := &AppleVerifier{
		clientID:   cfg.ClientID,
		jwksURL:    cfg.JWKSURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger.NewDiscard(),
		clock:      time.Now,
		cache:      &jwksCache{ttl: ttl},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify validates an identity token and, when rawNonce is non-empty,
// checks that the token's nonce claim is the SHA-256 hash of it.
func (v *AppleVerifier) Verify(ctx context.Context, rawToken, rawNonce string) (AppleClaims, error) {
	if rawToken == "" {
		return AppleClaims{}, fmt.Errorf("%w: empty token", auth.ErrTokenInvalid)
	}

	claims := &appleTokenClaims{}
	token, err := jwt.ParseWithClaims(
		rawToken,
		claims,
		func(token *jwt.Token) (any, error) {
			keyID, _ := token.Header["kid"].(string)
			if keyID == "" {
				return nil, errors.New("token missing key identifier")
			}
			return v.lookupKey(ctx, keyID)
		},
		jwt.WithAudience(v.clientID),
		jwt.WithIssuer(appleIssuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(v.clock),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return AppleClaims{}, fmt.Errorf("%w: %v", auth.ErrTokenExpired, err)
	case err != nil:
		return AppleClaims{}, fmt.Errorf("%w: %v", auth.ErrTokenInvalid, err)
	case !token.Valid:
		return AppleClaims{}, auth.ErrTokenInvalid
	}

	if claims.Subject == "" {
		return AppleClaims{}, fmt.Errorf("%w: missing subject", auth.ErrTokenInvalid)
	}
	if rawNonce != "" && claims.Nonce != auth.HashNonce(rawNonce) {
		return AppleClaims{}, fmt.Errorf("%w: nonce mismatch", auth.ErrTokenInvalid)
	}

	var expiry time.Time
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}

	return AppleClaims{
		Subject: claims.Subject,
		Email:   claims.Email,
		Expiry:  expiry,
	}, nil
}

func (v *AppleVerifier) lookupKey(ctx context.Context, keyID string) (*rsa.PublicKey, error) {
	now := v.clock()
	if key := v.cache.get(keyID, now); key != nil {
		return key, nil
	}

	if err := v.refreshKeys(ctx, now); err != nil {
		return nil, err
	}

	if key := v.cache.get(keyID, now); key != nil {
		return key, nil
	}
	return nil, errors.New("signing key not found in JWKS")
}

func (v *AppleVerifier) refreshKeys(ctx context.Context, fetchedAt time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return err
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("devauth: fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("devauth: jwks request returned status %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("devauth: decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, key := range doc.Keys {
		if key.KeyType != "RSA" {
			continue
		}
		pub, err := key.toRSAPublicKey()
		if err != nil {
			v.logger.DebugContext(ctx, "skipping malformed jwk",
				slog.String("kid", key.KeyID),
				logger.Error(err),
				logger.Component("devauth"),
			)
			continue
		}
		keys[key.KeyID] = pub
	}
	if len(keys) == 0 {
		return errors.New("devauth: jwks document contained no usable keys")
	}

	v.cache.store(keys, fetchedAt)
	return nil
}

// jwksCache holds the fetched signing keys for a TTL.
type jwksCache struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
	ttl       time.Duration
}

func (c *jwksCache) get(keyID string, now time.Time) *rsa.PublicKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.keys == nil || now.After(c.expiresAt) {
		return nil
	}
	return c.keys[keyID]
}

func (c *jwksCache) store(keys map[string]*rsa.PublicKey, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = keys
	c.expiresAt = now.Add(c.ttl)
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	KeyType string `json:"kty"`
	KeyID   string `json:"kid"`
	Use     string `json:"use"`
	Modulus string `json:"n"`
	Exp     string `json:"e"`
}

func (k jwk) toRSAPublicKey() (*rsa.PublicKey, error) {
	modulus, err := base64.RawURLEncoding.DecodeString(k.Modulus)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus encoding: %w", err)
	}
	exponentBytes, err := base64.RawURLEncoding.DecodeString(k.Exp)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent encoding: %w", err)
	}
	if len(exponentBytes) == 0 {
		return nil, errors.New("missing exponent bytes")
	}

	exponent := 0
	for _, b := range exponentBytes {
		exponent = exponent<<8 + int(b)
	}
	if exponent == 0 {
		return nil, errors.New("invalid exponent value")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(modulus),
		E: exponent,
	}, nil
}
