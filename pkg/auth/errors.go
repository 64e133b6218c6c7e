package auth

import "errors"

// Credential and account errors, surfaced verbatim to the caller.
var (
	ErrAuthenticationFailed   = errors.New("invalid email or password")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
)

// Flow control errors.
var (
	// ErrRequestCanceled reports that the user dismissed a native identity
	// flow. Callers treat it as a silent no-op, never as a user-visible error.
	ErrRequestCanceled = errors.New("authentication request canceled")

	// ErrNotAuthenticated reports a call that requires an active session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Token errors returned by identity-proof verification.
var (
	ErrTokenInvalid = errors.New("invalid identity token")
	ErrTokenExpired = errors.New("identity token expired")
)
