package authstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/habets/authkit/pkg/auth"
	"github.com/habets/authkit/pkg/logger"
	"github.com/habets/authkit/pkg/profile"
	"github.com/habets/authkit/pkg/sanitizer"
	"github.com/habets/authkit/pkg/validator"
)

// ErrAppleUnavailable reports a LoginWithApple call without a configured
// native authorizer.
var ErrAppleUnavailable = errors.New("apple sign-in is not configured")

// Registration enforces a minimum password length; everything stricter
// is a UI concern.
const minPasswordLen = 6

// Store coordinates the remote auth service, the profile store, and the
// native identity surfaces, and owns the published auth state.
type Store struct {
	svc      auth.Service
	profiles profile.Store
	apple    auth.AppleAuthorizer
	opener   auth.RedirectOpener
	logger   *slog.Logger

	mu        sync.RWMutex
	state     State
	subs      map[*subscriber]struct{}
	closed    bool
	subBuffer int
	cleanupWg sync.WaitGroup
}

// New creates a store in the initial loading state: no user, no profile,
// not authenticated, loading until the first session check resolves.
func New(svc auth.Service, profiles profile.Store, opts ...Option) *Store {
	s := &Store{
		svc:       svc,
		profiles:  profiles,
		opener:    auth.SystemBrowser{},
		logger:    logger.NewDiscard(),
		state:     State{IsLoading: true},
		subs:      make(map[*subscriber]struct{}),
		subBuffer: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// setState replaces the whole state atomically and fans the snapshot out
// to subscribers. Partial writes are impossible by construction: this is
// the only state writer.
func (s *Store) setState(st State) {
	st.resolved = true

	s.mu.Lock()
	s.state = st
	subs := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	s.fanOut(st, subs)
}

// beginOperation flips the loading flag, keeping the (possibly stale)
// user and profile visible, and returns the prior state for restoration
// on failure or cancellation.
func (s *Store) beginOperation() State {
	s.mu.Lock()
	prior := s.state
	next := prior
	next.IsLoading = true
	next.resolved = true
	s.state = next
	subs := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	s.fanOut(next, subs)
	return prior
}

// restore reinstates the pre-operation user, profile and authenticated
// flag with loading cleared, regardless of why the operation ended.
func (s *Store) restore(prior State) {
	prior.IsLoading = false
	s.setState(prior)
}

// Login verifies a password credential and establishes a session. The
// profile is fetched but never created here: password accounts are
// provisioned by Register, and a missing profile is accepted as-is.
func (s *Store) Login(ctx context.Context, email, password string) error {
	email = sanitizer.NormalizeEmail(email)
	if err := validator.Apply(
		validator.Required("email", email),
		validator.Required("password", password),
	); err != nil {
		return err
	}

	prior := s.beginOperation()

	user, err := s.svc.VerifyPassword(ctx, email, password)
	if err != nil {
		s.restore(prior)
		return err
	}

	p, err := s.profiles.Get(ctx, user.ID)
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		s.restore(prior)
		return fmt.Errorf("fetch profile: %w", err)
	}

	s.setState(State{User: user, Profile: p, IsAuthenticated: true})
	s.logger.InfoContext(ctx, "signed in",
		logger.UserID(user.ID),
		logger.Provider(auth.ProviderPassword),
		logger.Component("authstore"),
	)
	return nil
}

// Register creates a new identity and provisions its profile with the
// username defaulted from the email local-part and counters at zero.
// A concurrent duplicate profile insert is converged by re-fetching the
// existing row; any other provisioning failure fails the operation
// without advancing to the authenticated state.
func (s *Store) Register(ctx context.Context, email, password, fullName string) error {
	email = sanitizer.NormalizeEmail(email)
	if err := validator.Apply(
		validator.ValidEmail("email", email),
		validator.MinLen("password", password, minPasswordLen),
		validator.Required("full_name", fullName),
	); err != nil {
		return err
	}

	prior := s.beginOperation()

	user, err := s.svc.CreateAccount(ctx, email, password, auth.UserMetadata{FullName: fullName})
	if err != nil {
		s.restore(prior)
		return err
	}

	stored, err := s.profiles.Create(ctx, profile.New(user.ID, fullName, email))
	if errors.Is(err, profile.ErrDuplicate) {
		// A prior partial registration already provisioned this id.
		stored, err = s.profiles.Get(ctx, user.ID)
	}
	if err != nil {
		s.restore(prior)
		return fmt.Errorf("provision profile: %w", err)
	}

	s.setState(State{User: user, Profile: stored, IsAuthenticated: true})
	s.logger.InfoContext(ctx, "registered",
		logger.UserID(user.ID),
		logger.Provider(auth.ProviderPassword),
		logger.Component("authstore"),
	)
	return nil
}

// LoginWithApple runs the native Sign in with Apple flow. Dismissing the
// sheet is a silent no-op: the prior state is reinstated with loading
// cleared and no error is surfaced. Apple only supplies name and email
// on the first authorization, so profile provisioning falls back to the
// session user's metadata when the credential carries none.
func (s *Store) LoginWithApple(ctx context.Context) error {
	if s.apple == nil {
		return ErrAppleUnavailable
	}

	prior := s.beginOperation()

	cred, err := s.apple.RequestCredential(ctx)
	if err != nil {
		s.restore(prior)
		if errors.Is(err, auth.ErrRequestCanceled) {
			return nil
		}
		return err
	}

	user, err := s.svc.ExchangeIdentityToken(ctx, auth.ProviderApple, cred.IdentityToken, cred.Nonce)
	if err != nil {
		s.restore(prior)
		return err
	}

	fullName := cred.FullName
	if fullName == "" {
		fullName = user.Metadata.FullName
	}
	email := cred.Email
	if email == "" {
		email = user.Email
	}

	p, err := s.getOrCreateProfile(ctx, user, fullName, email)
	if err != nil {
		s.restore(prior)
		return err
	}

	s.setState(State{User: user, Profile: p, IsAuthenticated: true})
	s.logger.InfoContext(ctx, "signed in",
		logger.UserID(user.ID),
		logger.Provider(auth.ProviderApple),
		logger.Component("authstore"),
	)
	return nil
}

// LoginWithGoogle runs the OAuth redirect flow through the configured
// browser surface. An abandoned redirect is treated exactly like Apple
// cancellation: prior state reinstated, loading cleared, no error.
func (s *Store) LoginWithGoogle(ctx context.Context) error {
	prior := s.beginOperation()

	url, err := s.svc.BeginOAuthRedirect(ctx, auth.ProviderGoogle)
	if err != nil {
		s.restore(prior)
		return err
	}

	if err := s.opener.Open(ctx, url); err != nil {
		s.restore(prior)
		return err
	}

	user, err := s.svc.CompleteOAuthRedirect(ctx)
	if err != nil {
		s.restore(prior)
		return err
	}
	if user == nil {
		s.restore(prior)
		return nil
	}

	p, err := s.getOrCreateProfile(ctx, user, user.Metadata.FullName, user.Email)
	if err != nil {
		s.restore(prior)
		return err
	}

	s.setState(State{User: user, Profile: p, IsAuthenticated: true})
	s.logger.InfoContext(ctx, "signed in",
		logger.UserID(user.ID),
		logger.Provider(auth.ProviderGoogle),
		logger.Component("authstore"),
	)
	return nil
}

// Logout invalidates the remote session, then clears the state. On
// failure the state is left untouched; nothing is cleared optimistically.
func (s *Store) Logout(ctx context.Context) error {
	var uid any
	if user := s.State().User; user != nil {
		uid = user.ID
	}

	if err := s.svc.InvalidateSession(ctx); err != nil {
		return err
	}

	s.setState(State{})
	s.logger.InfoContext(ctx, "signed out",
		logger.UserID(uid),
		logger.Component("authstore"),
	)
	return nil
}

// UpdateProfile applies a partial update to the current user's profile
// row, then merges the confirmed fields into the in-memory profile.
// Unlike the session user, the profile is merged field-by-field, never
// replaced wholesale. Requires an active session; no store call is made
// without one.
func (s *Store) UpdateProfile(ctx context.Context, update profile.Update) error {
	current := s.State()
	if current.User == nil {
		return auth.ErrNotAuthenticated
	}

	stored, err := s.profiles.Update(ctx, current.User.ID, update)
	if err != nil {
		return err
	}

	s.mu.Lock()
	next := s.state
	if next.Profile != nil {
		next.Profile = update.Apply(next.Profile)
	} else {
		// No local profile to merge into; adopt the confirmed row.
		next.Profile = stored
	}
	next.resolved = true
	s.state = next
	subs := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	s.fanOut(next, subs)
	return nil
}

// getOrCreateProfile implements lazy provisioning for social logins: the
// row is fetched first, created when absent, and a creation race with a
// concurrent insert falls back to re-fetching the winner's row.
func (s *Store) getOrCreateProfile(ctx context.Context, user *auth.SessionUser, fullName, email string) (*profile.Profile, error) {
	p, err := s.profiles.Get(ctx, user.ID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, profile.ErrNotFound) {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	created, err := s.profiles.Create(ctx, profile.New(user.ID, fullName, email))
	if err == nil {
		return created, nil
	}
	if errors.Is(err, profile.ErrDuplicate) {
		existing, err := s.profiles.Get(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch profile after duplicate insert: %w", err)
		}
		return existing, nil
	}
	return nil, fmt.Errorf("provision profile: %w", err)
}
