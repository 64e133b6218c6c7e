package devauth

import "errors"

var (
	// ErrProviderUnsupported reports a provider this service has no flow
	// for.
	ErrProviderUnsupported = errors.New("provider not supported")

	// ErrGoogleNotConfigured reports a Google flow call without
	// WithGoogle.
	ErrGoogleNotConfigured = errors.New("google oauth is not configured")

	// ErrAppleNotConfigured reports an Apple token exchange without
	// WithAppleVerifier.
	ErrAppleNotConfigured = errors.New("apple verifier is not configured")

	// ErrNoPendingFlow reports CompleteOAuthRedirect without a prior
	// BeginOAuthRedirect.
	ErrNoPendingFlow = errors.New("no pending authorization flow")

	// ErrStateMismatch reports a callback whose CSRF state was unknown,
	// already consumed, or expired.
	ErrStateMismatch = errors.New("authorization state mismatch")
)
