package gotrue

import (
	"errors"
	"fmt"

	"github.com/habets/authkit/pkg/auth"
)

var (
	// ErrInvalidConfig reports missing or malformed connection settings.
	ErrInvalidConfig = errors.New("invalid gotrue config")

	// ErrNoSession reports an operation that needs an established
	// session when none exists.
	ErrNoSession = errors.New("no active session")

	// ErrNoPendingFlow reports CompleteOAuthRedirect without a prior
	// BeginOAuthRedirect.
	ErrNoPendingFlow = errors.New("no pending authorization flow")

	// ErrRequestFailed wraps transport-level failures talking to the API.
	ErrRequestFailed = errors.New("gotrue request failed")
)

// apiError is the error envelope GoTrue returns. Older deployments use
// error/error_description, newer ones code/error_code/msg; both are
// decoded and either may be populated.
type apiError struct {
	Status      int    `json:"-"`
	Code        string `json:"error_code"`
	Message     string `json:"msg"`
	Err         string `json:"error"`
	Description string `json:"error_description"`
}

func (e *apiError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Description
	}
	if msg == "" {
		msg = e.Err
	}
	if msg == "" {
		msg = "unknown error"
	}
	return fmt.Sprintf("gotrue: %s (status %d)", msg, e.Status)
}

// taxonomy maps an API error onto the sentinel errors callers branch
// on. Unmapped errors pass through as *apiError.
func (e *apiError) taxonomy() error {
	code := e.Code
	if code == "" {
		code = e.Err
	}
	switch code {
	case "invalid_credentials", "invalid_grant":
		return auth.ErrAuthenticationFailed
	case "user_already_exists", "email_exists":
		return auth.ErrEmailAlreadyRegistered
	case "bad_jwt":
		return auth.ErrTokenInvalid
	case "session_expired", "refresh_token_not_found":
		return auth.ErrTokenExpired
	}
	return e
}
