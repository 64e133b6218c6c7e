package gotrue

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/habets/authkit/pkg/auth"
)

// Session is an established token pair bound to a verified user.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         *auth.SessionUser
}

// Valid reports whether the access token is still usable at t.
func (s *Session) Valid(t time.Time) bool {
	return s != nil && s.AccessToken != "" && t.Before(s.ExpiresAt)
}

// tokenResponse is the wire shape of every grant endpoint.
type tokenResponse struct {
	AccessToken  string  `json:"access_token"`
	TokenType    string  `json:"token_type"`
	ExpiresIn    int64   `json:"expires_in"`
	RefreshToken string  `json:"refresh_token"`
	User         apiUser `json:"user"`
}

func (r *tokenResponse) toSession(now time.Time) (*Session, error) {
	user, err := r.User.toSessionUser()
	if err != nil {
		return nil, err
	}
	return &Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(r.ExpiresIn) * time.Second),
		User:         user,
	}, nil
}

// apiUser is the wire shape of a GoTrue user record. Display fields
// live under user_metadata, the identity provider under app_metadata.
type apiUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	AppMetadata struct {
		Provider string `json:"provider"`
	} `json:"app_metadata"`
	UserMetadata struct {
		FullName  string `json:"full_name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user_metadata"`
}

func (u *apiUser) toSessionUser() (*auth.SessionUser, error) {
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return nil, fmt.Errorf("gotrue: malformed user id %q: %w", u.ID, err)
	}
	return &auth.SessionUser{
		ID:       id,
		Email:    u.Email,
		Provider: u.AppMetadata.Provider,
		Metadata: auth.UserMetadata{
			FullName:  u.UserMetadata.FullName,
			AvatarURL: u.UserMetadata.AvatarURL,
		},
	}, nil
}
