package authstore

import (
	"context"
	"errors"

	"github.com/habets/authkit/pkg/auth"
	"github.com/habets/authkit/pkg/logger"
	"github.com/habets/authkit/pkg/profile"
)

// Run is the remote session-change bridge: it subscribes once to the
// auth service's session notifications and folds each one into the
// state, independent of any direct operation call. The first event
// resolves the initial loading state. Run blocks until ctx ends or the
// service closes the subscription.
//
// The bridge and direct operations both write to the same state; the
// last writer wins and no merge reconciles concurrent writes.
func (s *Store) Run(ctx context.Context) error {
	changes := s.svc.SessionChanges(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			s.applySessionChange(ctx, change)
		}
	}
}

// applySessionChange publishes the state a notification implies. Profile
// rows are fetched but never created here; provisioning belongs to the
// login and register operations. Fetch failures cannot propagate to a
// caller, so they are logged and the profile reported absent.
func (s *Store) applySessionChange(ctx context.Context, change auth.SessionChange) {
	if change.User == nil {
		s.setState(State{})
		return
	}

	p, err := s.profiles.Get(ctx, change.User.ID)
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		s.logger.WarnContext(ctx, "session change: profile fetch failed",
			logger.UserID(change.User.ID),
			logger.Error(err),
			logger.Component("authstore"),
		)
		p = nil
	}

	s.setState(State{User: change.User, Profile: p, IsAuthenticated: true})
}
