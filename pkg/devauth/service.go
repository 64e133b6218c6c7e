package devauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/habets/authkit/pkg/auth"
	"github.com/habets/authkit/pkg/broadcast"
	"github.com/habets/authkit/pkg/logger"
	"github.com/habets/authkit/pkg/sanitizer"
)

// Option configures a Service during construction.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGoogle enables the Google OAuth code flow.
func WithGoogle(cfg GoogleConfig) Option {
	return func(s *Service) {
		s.google = newGoogleFlow(cfg)
		s.redirectAddr = cfg.RedirectAddr
	}
}

// WithAppleVerifier enables Apple identity token exchange.
func WithAppleVerifier(v *AppleVerifier) Option {
	return func(s *Service) {
		s.apple = v
	}
}

// WithStateStore replaces the in-memory one-time state store, e.g.
// with the Redis-backed one.
func WithStateStore(store StateStore) Option {
	return func(s *Service) {
		if store != nil {
			s.states = store
		}
	}
}

// WithBcryptCost sets the password hashing cost. Tests pass
// bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.accounts = NewAccounts(cost)
	}
}

// pendingFlow is the per-flow state between Begin and Complete.
type pendingFlow struct {
	state    string
	verifier string
	listener *auth.CallbackListener
}

// Service is a self-contained auth.Service for development and tests.
// Sessions are a single in-process slot; there is no token layer.
type Service struct {
	accounts *Accounts
	google   *googleFlow
	apple    *AppleVerifier
	states   StateStore
	events   *broadcast.Broadcaster[auth.SessionChange]
	logger   *slog.Logger

	mu      sync.RWMutex
	current *auth.SessionUser
	pending *pendingFlow
	// identities pins a stable account id to each provider subject, so
	// repeat sign-ins hit the same profile row.
	identities map[string]uuid.UUID

	redirectAddr string
}

// NewService creates a development auth service. Without options it
// supports password accounts only.
func NewService(opts ...Option) *Service {
	s := &Service{
		accounts:     NewAccounts(bcrypt.DefaultCost),
		states:       NewMemoryStateStore(),
		events:       broadcast.New[auth.SessionChange](8),
		logger:       logger.NewDiscard(),
		identities:   make(map[string]uuid.UUID),
		redirectAddr: "127.0.0.1:0",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentUser returns the signed-in user, or nil.
func (s *Service) CurrentUser() *auth.SessionUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Service) setCurrent(user *auth.SessionUser) {
	s.mu.Lock()
	s.current = user
	s.mu.Unlock()

	s.events.Publish(auth.SessionChange{User: user})
}

// identityFor pins a uuid to a provider subject.
func (s *Service) identityFor(provider, subject string) uuid.UUID {
	key := provider + ":" + subject

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.identities[key]; ok {
		return id
	}
	id := uuid.New()
	s.identities[key] = id
	return id
}

// VerifyPassword exchanges a password credential for a session.
func (s *Service) VerifyPassword(ctx context.Context, email, password string) (*auth.SessionUser, error) {
	user, err := s.accounts.Verify(email, password)
	if err != nil {
		return nil, err
	}
	s.setCurrent(user)
	return user, nil
}

// CreateAccount registers a new account and signs it in.
func (s *Service) CreateAccount(ctx context.Context, email, password string, meta auth.UserMetadata) (*auth.SessionUser, error) {
	user, err := s.accounts.Create(email, password, meta)
	if err != nil {
		return nil, err
	}
	s.setCurrent(user)
	return user, nil
}

// ExchangeIdentityToken verifies an Apple identity token and signs its
// subject in. Only the apple provider is supported.
func (s *Service) ExchangeIdentityToken(ctx context.Context, provider, token, nonce string) (*auth.SessionUser, error) {
	if provider != auth.ProviderApple {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnsupported, provider)
	}
	if s.apple == nil {
		return nil, ErrAppleNotConfigured
	}

	claims, err := s.apple.Verify(ctx, token, nonce)
	if err != nil {
		return nil, err
	}

	user := &auth.SessionUser{
		ID:       s.identityFor(auth.ProviderApple, claims.Subject),
		Email:    sanitizer.NormalizeEmail(claims.Email),
		Provider: auth.ProviderApple,
	}
	s.setCurrent(user)
	return user, nil
}

// BeginOAuthRedirect starts a Google authorization-code flow: it binds
// the loopback callback listener, stores a one-time CSRF state, and
// returns the authorization URL. A second Begin before Complete
// abandons the first flow.
func (s *Service) BeginOAuthRedirect(ctx context.Context, provider string) (string, error) {
	if provider != auth.ProviderGoogle {
		return "", fmt.Errorf("%w: %s", ErrProviderUnsupported, provider)
	}
	if s.google == nil {
		return "", ErrGoogleNotConfigured
	}

	state, err := newStateToken()
	if err != nil {
		return "", err
	}
	verifier := oauth2.GenerateVerifier()

	if err := s.states.Put(ctx, state, s.google.stateTTL); err != nil {
		return "", err
	}

	listener, err := auth.NewCallbackListener(s.redirectAddr)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	prev := s.pending
	s.pending = &pendingFlow{state: state, verifier: verifier, listener: listener}
	s.mu.Unlock()

	if prev != nil {
		prev.listener.Close()
	}

	return s.google.authCodeURL(listener.RedirectURL(), state, verifier), nil
}

// CompleteOAuthRedirect waits for the pending flow's redirect and
// exchanges the code. A canceled context or a provider error reports
// an abandoned flow as (nil, nil). The CSRF state must match and is
// consumed exactly once.
func (s *Service) CompleteOAuthRedirect(ctx context.Context) (*auth.SessionUser, error) {
	s.mu.Lock()
	flow := s.pending
	s.pending = nil
	s.mu.Unlock()

	if flow == nil {
		return nil, ErrNoPendingFlow
	}
	defer flow.listener.Close()

	res, err := flow.listener.Wait(ctx)
	if err != nil {
		return nil, nil
	}
	if res.ErrorCode != "" {
		s.logger.InfoContext(ctx, "authorization flow abandoned",
			slog.String("reason", res.ErrorCode),
			logger.Component("devauth"),
		)
		return nil, nil
	}

	if res.State != flow.state {
		return nil, ErrStateMismatch
	}
	ok, err := s.states.Consume(ctx, res.State)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStateMismatch
	}

	identity, err := s.google.resolve(ctx, flow.listener.RedirectURL(), res.Code, flow.verifier)
	if err != nil {
		return nil, err
	}

	user := &auth.SessionUser{
		ID:       s.identityFor(auth.ProviderGoogle, identity.Subject),
		Email:    sanitizer.NormalizeEmail(identity.Email),
		Provider: auth.ProviderGoogle,
		Metadata: auth.UserMetadata{
			FullName:  identity.Name,
			AvatarURL: identity.Picture,
		},
	}
	s.setCurrent(user)
	return user, nil
}

// InvalidateSession signs the current session out. Signing out without
// a session is a no-op.
func (s *Service) InvalidateSession(ctx context.Context) error {
	s.mu.Lock()
	had := s.current != nil
	s.current = nil
	s.mu.Unlock()

	if had {
		s.events.Publish(auth.SessionChange{})
	}
	return nil
}

// SessionChanges subscribes to session lifecycle notifications for the
// lifetime of ctx.
func (s *Service) SessionChanges(ctx context.Context) <-chan auth.SessionChange {
	return s.events.Subscribe(ctx)
}

// Close shuts down the subscriber fan-out and any pending redirect
// listener.
func (s *Service) Close() error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if pending != nil {
		pending.listener.Close()
	}
	return s.events.Close()
}

// Compile-time interface assertion
var _ auth.Service = (*Service)(nil)

func newStateToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("devauth: generate state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
