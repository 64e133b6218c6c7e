package gotrue

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/habets/authkit/pkg/auth"
	"github.com/habets/authkit/pkg/broadcast"
	"github.com/habets/authkit/pkg/logger"
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

// WithHTTPClient replaces the underlying HTTP client, for proxies or
// testing.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Service) {
		if hc != nil {
			s.client.client = hc
		}
	}
}

// WithSubscriberBuffer sets the channel buffer for session-change
// subscribers. When a subscriber's buffer is full, notifications are
// dropped for it rather than blocking the service.
func WithSubscriberBuffer(n int) Option {
	return func(s *Service) {
		s.events = broadcast.New[auth.SessionChange](n)
	}
}

// pendingFlow is the per-flow state between BeginOAuthRedirect and
// CompleteOAuthRedirect.
type pendingFlow struct {
	verifier string
	listener *auth.CallbackListener
}

// Service keeps a session against a GoTrue-compatible API and
// implements the remote auth service boundary. At most one session and
// one pending redirect flow exist at a time.
type Service struct {
	client *Client
	logger *slog.Logger

	mu      sync.RWMutex
	session *Session
	pending *pendingFlow
	events  *broadcast.Broadcaster[auth.SessionChange]

	redirectAddr string
	refreshLead  time.Duration
	// wake nudges the refresh loop whenever the session is replaced.
	wake chan struct{}
	now  func() time.Time
}

// NewService creates a session-keeping service over the GoTrue API.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	lead := cfg.RefreshLead
	if lead <= 0 {
		lead = time.Minute
	}
	addr := cfg.RedirectAddr
	if addr == "" {
		addr = "127.0.0.1:0"
	}

	s := &Service{
		client:       client,
		logger:       logger.NewDiscard(),
		events:       broadcast.New[auth.SessionChange](8),
		redirectAddr: addr,
		refreshLead:  lead,
		wake:         make(chan struct{}, 1),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Session returns the current session, or nil when signed out.
func (s *Service) Session() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// setSession installs a new session and notifies subscribers.
func (s *Service) setSession(sess *Session) {
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	var change auth.SessionChange
	if sess != nil {
		change.User = sess.User
	}
	s.events.Publish(change)

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// replaceSession swaps prev for next only when prev is still current,
// so a stale refresh never clobbers a newer sign-in.
func (s *Service) replaceSession(prev, next *Session) bool {
	s.mu.Lock()
	if s.session != prev {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	s.setSession(next)
	return true
}

// VerifyPassword exchanges a password credential for a session.
func (s *Service) VerifyPassword(ctx context.Context, email, password string) (*auth.SessionUser, error) {
	sess, err := s.client.PasswordGrant(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.setSession(sess)
	return sess.User, nil
}

// CreateAccount registers a new identity and establishes its session.
func (s *Service) CreateAccount(ctx context.Context, email, password string, meta auth.UserMetadata) (*auth.SessionUser, error) {
	sess, err := s.client.Signup(ctx, email, password, meta.FullName)
	if err != nil {
		return nil, err
	}
	s.setSession(sess)
	return sess.User, nil
}

// ExchangeIdentityToken trades a provider identity token for a session.
func (s *Service) ExchangeIdentityToken(ctx context.Context, provider, token, nonce string) (*auth.SessionUser, error) {
	sess, err := s.client.IdentityTokenGrant(ctx, provider, token, nonce)
	if err != nil {
		return nil, err
	}
	s.setSession(sess)
	return sess.User, nil
}

// BeginOAuthRedirect starts a PKCE authorization-code flow: it binds
// the loopback callback listener, generates the verifier, and returns
// the authorization URL to open in a browser. A second Begin before
// Complete abandons the first flow.
func (s *Service) BeginOAuthRedirect(ctx context.Context, provider string) (string, error) {
	verifier, err := GenerateVerifier()
	if err != nil {
		return "", err
	}

	listener, err := auth.NewCallbackListener(s.redirectAddr)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	prev := s.pending
	s.pending = &pendingFlow{verifier: verifier, listener: listener}
	s.mu.Unlock()

	if prev != nil {
		prev.listener.Close()
	}

	return s.client.AuthorizeURL(provider, listener.RedirectURL(), ChallengeS256(verifier)), nil
}

// CompleteOAuthRedirect waits for the pending flow's redirect to land
// and exchanges the code for a session. A canceled context or a
// provider error (the user backed out) reports an abandoned flow as
// (nil, nil).
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
			logger.Component("gotrue"),
		)
		return nil, nil
	}

	sess, err := s.client.ExchangeCode(ctx, res.Code, flow.verifier)
	if err != nil {
		return nil, err
	}
	s.setSession(sess)
	return sess.User, nil
}

// InvalidateSession revokes the current session. Signing out without a
// session is a no-op. The local session is only cleared after the
// revocation succeeds.
func (s *Service) InvalidateSession(ctx context.Context) error {
	sess := s.Session()
	if sess == nil {
		return nil
	}

	if err := s.client.Logout(ctx, sess.AccessToken); err != nil {
		return err
	}
	s.replaceSession(sess, nil)
	return nil
}

// Run is the session refresh loop: it renews the access token ahead of
// expiry and drops the session when the refresh token is rejected. Run
// blocks until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	for {
		sess := s.Session()

		var timerC <-chan time.Time
		var timer *time.Timer
		if sess != nil && sess.RefreshToken != "" {
			wait := sess.ExpiresAt.Sub(s.now()) - s.refreshLead
			// Floor keeps a pathologically short expiry from spinning
			// the loop.
			if wait < 100*time.Millisecond {
				wait = 100 * time.Millisecond
			}
			timer = time.NewTimer(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case <-s.wake:
			if timer != nil {
				timer.Stop()
			}
			continue
		case <-timerC:
		}

		refreshed, err := s.client.RefreshGrant(ctx, sess.RefreshToken)
		switch {
		case err == nil:
			s.replaceSession(sess, refreshed)
		case errors.Is(err, auth.ErrAuthenticationFailed) || errors.Is(err, auth.ErrTokenExpired):
			s.logger.WarnContext(ctx, "refresh token rejected, dropping session",
				logger.Error(err),
				logger.Component("gotrue"),
			)
			s.replaceSession(sess, nil)
		default:
			s.logger.WarnContext(ctx, "session refresh failed, will retry",
				logger.Error(err),
				logger.Component("gotrue"),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
		}
	}
}

// Compile-time interface assertion
var _ auth.Service = (*Service)(nil)

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
