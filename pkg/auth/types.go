package auth

import (
	"github.com/google/uuid"
)

// Identity provider identifiers used across the auth system.
const (
	ProviderPassword = "password"
	ProviderApple    = "apple"
	ProviderGoogle   = "google"
)

// UserMetadata carries the provider-supplied display fields attached to
// an account at creation time. Apple only supplies them on the first
// authorization, so they must never be relied on after that.
type UserMetadata struct {
	FullName  string
	AvatarURL string
}

// SessionUser is the identity-provider-verified principal returned by the
// remote auth service. It is replaced wholesale on every successful
// login or registration, never merged field by field.
type SessionUser struct {
	ID       uuid.UUID
	Email    string
	Provider string
	Metadata UserMetadata
}

// SessionChange is a session lifecycle notification pushed by the remote
// auth service independently of any direct operation call. A nil User
// reports that no session exists (external sign-out, expiry).
type SessionChange struct {
	User *SessionUser
}
