package gotrue

import (
	"context"

	"github.com/habets/authkit/pkg/auth"
)

// SessionChanges subscribes to session lifecycle notifications for the
// lifetime of ctx. The channel is closed when ctx ends or the service
// closes. Notifications may be dropped for slow consumers.
func (s *Service) SessionChanges(ctx context.Context) <-chan auth.SessionChange {
	return s.events.Subscribe(ctx)
}
