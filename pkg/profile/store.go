package profile

import (
	"context"

	"github.com/google/uuid"
)

// Store is the profile persistence boundary. Implementations classify
// their own failures: Get returns ErrNotFound, Create returns
// ErrDuplicate on a unique-key violation, and anything else is wrapped
// and surfaced as an opaque failure. No implementation retries.
type Store interface {
	// Get fetches the single profile row for the user id.
	Get(ctx context.Context, id uuid.UUID) (*Profile, error)

	// Create inserts a new profile row and returns it as stored, with
	// timestamps populated.
	Create(ctx context.Context, p *Profile) (*Profile, error)

	// Update applies a partial update to the row for the user id and
	// returns the row as stored after the update.
	Update(ctx context.Context, id uuid.UUID, update Update) (*Profile, error)
}
