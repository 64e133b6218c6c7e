package profile

import (
	"time"

	"github.com/google/uuid"

	"github.com/habets/authkit/pkg/sanitizer"
)

// Profile is the per-user application record. ID always equals the
// session user id.
type Profile struct {
	ID              uuid.UUID
	Username        string
	FullName        string
	AvatarURL       string
	StreakCount     int
	TotalChallenges int
	WinsCount       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// New builds the initial profile row for a freshly created account. The
// username defaults to the email local-part and all counters start at
// zero; the store fills in the timestamps.
func New(userID uuid.UUID, fullName, email string) *Profile {
	return &Profile{
		ID:       userID,
		Username: sanitizer.EmailLocalPart(email),
		FullName: fullName,
	}
}

// Update is a partial profile update. Nil fields are left untouched;
// set fields replace the stored value. This field-level merge is
// deliberate and contrasts with the wholesale replacement policy used
// for the session user.
type Update struct {
	Username        *string
	FullName        *string
	AvatarURL       *string
	StreakCount     *int
	TotalChallenges *int
	WinsCount       *int
}

// IsZero reports whether the update would change nothing.
func (u Update) IsZero() bool {
	return u.Username == nil && u.FullName == nil && u.AvatarURL == nil &&
		u.StreakCount == nil && u.TotalChallenges == nil && u.WinsCount == nil
}

// Apply merges the update into a copy of p and returns it. The receiver
// is never mutated so published snapshots stay immutable.
func (u Update) Apply(p *Profile) *Profile {
	if p == nil {
		return nil
	}
	merged := *p
	if u.Username != nil {
		merged.Username = *u.Username
	}
	if u.FullName != nil {
		merged.FullName = *u.FullName
	}
	if u.AvatarURL != nil {
		merged.AvatarURL = *u.AvatarURL
	}
	if u.StreakCount != nil {
		merged.StreakCount = *u.StreakCount
	}
	if u.TotalChallenges != nil {
		merged.TotalChallenges = *u.TotalChallenges
	}
	if u.WinsCount != nil {
		merged.WinsCount = *u.WinsCount
	}
	return &merged
}
