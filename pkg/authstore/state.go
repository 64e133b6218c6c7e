package authstore

import (
	"github.com/habets/authkit/pkg/auth"
	"github.com/habets/authkit/pkg/profile"
)

// Status is the coarse auth lifecycle phase derived from a State.
type Status string

const (
	// StatusInit is the phase before the first session check resolves.
	StatusInit Status = "init"
	// StatusAnonymous means no active session.
	StatusAnonymous Status = "anonymous"
	// StatusAuthenticating means an operation is in flight; the user field
	// may hold a stale value from the previous session.
	StatusAuthenticating Status = "authenticating"
	// StatusAuthenticated means a session is established. The profile may
	// still be absent.
	StatusAuthenticated Status = "authenticated"
)

// State is an immutable snapshot of the auth state. IsAuthenticated is
// true exactly when User is non-nil; Profile may lag User transiently
// during provisioning.
type State struct {
	User            *auth.SessionUser
	Profile         *profile.Profile
	IsAuthenticated bool
	IsLoading       bool

	// resolved flips once the first operation or session-change event has
	// published, separating INIT from a later loading phase.
	resolved bool
}

// Status derives the lifecycle phase.
func (s State) Status() Status {
	switch {
	case !s.resolved:
		return StatusInit
	case s.IsLoading:
		return StatusAuthenticating
	case s.User != nil:
		return StatusAuthenticated
	default:
		return StatusAnonymous
	}
}
