package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// AppleCredential is the result of a native Sign in with Apple
// authorization. Name and Email are only populated on the user's first
// authorization for this app; subsequent sign-ins return empty strings.
type AppleCredential struct {
	IdentityToken string
	// Nonce is the raw nonce whose SHA-256 hash was passed to the native
	// authorization request and bound into the identity token.
	Nonce    string
	FullName string
	Email    string
}

// AppleAuthorizer presents the native Sign in with Apple sheet scoped to
// full name and email. Implementations return ErrRequestCanceled when the
// user dismisses the sheet; availability of the native capability is the
// caller's concern and is not re-checked here.
type AppleAuthorizer interface {
	RequestCredential(ctx context.Context) (*AppleCredential, error)
}

// GenerateNonce returns a random URL-safe nonce for an Apple
// authorization request. AppleAuthorizer implementations call it before
// presenting the sheet, pass the HashNonce digest to the request, and
// return the raw value in AppleCredential.Nonce for token verification.
func GenerateNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashNonce returns the hex-encoded SHA-256 digest of a raw nonce, the
// form Apple expects in the authorization request.
func HashNonce(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
