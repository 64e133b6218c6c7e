package auth

import "context"

// Service is the remote authentication service boundary. It verifies
// identity proofs (password credentials, provider identity tokens,
// completed OAuth redirects), owns the session lifecycle, and pushes
// session-change notifications.
//
// Every call suspends until the remote resolves; cancellation and
// timeouts propagate through ctx. Implementations never retry.
type Service interface {
	// VerifyPassword exchanges a password credential for a session.
	// Returns ErrAuthenticationFailed for any bad credential.
	VerifyPassword(ctx context.Context, email, password string) (*SessionUser, error)

	// CreateAccount registers a new identity with the given credential and
	// metadata and establishes a session for it. Returns
	// ErrEmailAlreadyRegistered when the email is taken.
	CreateAccount(ctx context.Context, email, password string, meta UserMetadata) (*SessionUser, error)

	// ExchangeIdentityToken trades a provider identity token (e.g. an Apple
	// identity token) for a session. The nonce is the raw value whose hash
	// was bound into the token at authorization time.
	ExchangeIdentityToken(ctx context.Context, provider, token, nonce string) (*SessionUser, error)

	// BeginOAuthRedirect starts an authorization-code flow for the given
	// provider and returns the authorization URL to open in a browser
	// surface. The service keeps whatever per-flow state it needs to
	// complete the redirect.
	BeginOAuthRedirect(ctx context.Context, provider string) (authorizationURL string, err error)

	// CompleteOAuthRedirect waits for the pending redirect flow started by
	// BeginOAuthRedirect to return to the app. A (nil, nil) result reports
	// an abandoned flow; callers treat it like a cancellation.
	CompleteOAuthRedirect(ctx context.Context) (*SessionUser, error)

	// InvalidateSession signs the current session out. State held by the
	// caller must only be cleared after this succeeds.
	InvalidateSession(ctx context.Context) error

	// SessionChanges subscribes to session lifecycle notifications for the
	// lifetime of ctx. The channel is closed when the subscription ends.
	// Slow consumers may have notifications dropped rather than blocking
	// the service.
	SessionChanges(ctx context.Context) <-chan SessionChange
}
