package authstore

import (
	"log/slog"

	"github.com/habets/authkit/pkg/auth"
)

// Option configures a Store during construction.
type Option func(*Store)

// WithLogger sets a custom logger for the store.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAppleAuthorizer wires the native Sign in with Apple surface.
// LoginWithApple fails until one is configured; the UI only offers the
// button where the capability exists.
func WithAppleAuthorizer(a auth.AppleAuthorizer) Option {
	return func(s *Store) {
		s.apple = a
	}
}

// WithRedirectOpener replaces the browser surface used for OAuth
// redirect flows. Defaults to the system browser; web hosts supply an
// opener that navigates the current page instead.
func WithRedirectOpener(o auth.RedirectOpener) Option {
	return func(s *Store) {
		if o != nil {
			s.opener = o
		}
	}
}

// WithSubscriberBuffer sets the channel buffer for state subscribers.
// When a subscriber's buffer is full, snapshots are dropped for it
// rather than blocking a publish.
func WithSubscriberBuffer(n int) Option {
	return func(s *Store) {
		s.subBuffer = max(n, 1)
	}
}
