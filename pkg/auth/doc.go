// Package auth defines the boundary between the Habets app core and the
// remote authentication service that verifies identity proofs and owns
// the session lifecycle.
//
// The package contains no transport: it declares the Service interface,
// the typed error taxonomy shared by every implementation, and the
// provider plumbing that is independent of which backend is in use
// (native Apple authorization, Apple client secrets, the browser
// redirect surface for OAuth flows).
//
// Two implementations ship with authkit: pkg/gotrue talks to the hosted
// GoTrue-compatible API the production app uses, and pkg/devauth is a
// self-hosted in-process service for development and tests. The state
// container in pkg/authstore is written against this package only and
// does not care which one it is given.
//
// # Error taxonomy
//
// Implementations classify failures at the boundary that owns them and
// return the package sentinels; callers match with errors.Is and never
// inspect message text:
//
//   - ErrAuthenticationFailed: bad credential, user-correctable
//   - ErrEmailAlreadyRegistered: distinct so the UI can suggest sign-in
//   - ErrRequestCanceled: user dismissed a native identity flow; not an
//     error condition for the caller
//   - ErrNotAuthenticated: operation requires a session and none exists
//
// Anything else is wrapped and surfaced as an opaque failure. No
// implementation retries internally.
package auth
