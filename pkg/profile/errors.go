package profile

import "errors"

var (
	// ErrNotFound reports that no profile row exists for the user id.
	ErrNotFound = errors.New("profile not found")

	// ErrDuplicate reports a unique-key violation on insert: a profile for
	// this user id already exists. Provisioning treats it as success and
	// re-fetches the existing row.
	ErrDuplicate = errors.New("profile already exists")

	// ErrEmptyUpdate reports an update with no fields set.
	ErrEmptyUpdate = errors.New("profile update has no fields")
)
