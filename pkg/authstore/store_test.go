package authstore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/habets/authkit/pkg/auth"
	"github.com/habets/authkit/pkg/profile"
)

func ptr[T any](v T) *T { return &v }

func sessionUser(id uuid.UUID, email string) *auth.SessionUser {
	return &auth.SessionUser{ID: id, Email: email, Provider: auth.ProviderPassword}
}

// seedAuthenticated drives the store into an authenticated state with a
// provisioned profile through the public API.
func seedAuthenticated(t *testing.T, svc *MockService, profiles *profile.MemoryStore, s *Store) (*auth.SessionUser, *profile.Profile) {
	t.Helper()

	ctx := context.Background()
	id := uuid.New()
	user := sessionUser(id, "ann@x.com")

	seeded, err := profiles.Create(ctx, &profile.Profile{ID: id, Username: "ann", FullName: "Ann", StreakCount: 2})
	require.NoError(t, err)

	svc.On("VerifyPassword", mock.Anything, "ann@x.com", "secret1").Return(user, nil).Once()
	require.NoError(t, s.Login(ctx, "ann@x.com", "secret1"))
	return user, seeded
}

func TestNew(t *testing.T) {
	t.Parallel()

	s := New(&MockService{}, profile.NewMemoryStore())

	st := s.State()
	assert.Nil(t, st.User)
	assert.Nil(t, st.Profile)
	assert.False(t, st.IsAuthenticated)
	assert.True(t, st.IsLoading)
	assert.Equal(t, StatusInit, st.Status())
}

func TestStore_Login(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("success with existing profile", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		profiles := profile.NewMemoryStore()
		s := New(svc, profiles)

		id := uuid.New()
		_, err := profiles.Create(ctx, &profile.Profile{ID: id, Username: "ann"})
		require.NoError(t, err)

		svc.On("VerifyPassword", mock.Anything, "ann@x.com", "secret1").
			Return(sessionUser(id, "ann@x.com"), nil)

		require.NoError(t, s.Login(ctx, "ann@x.com", "secret1"))

		st := s.State()
		assert.Equal(t, StatusAuthenticated, st.Status())
		assert.True(t, st.IsAuthenticated)
		assert.False(t, st.IsLoading)
		require.NotNil(t, st.User)
		assert.Equal(t, id, st.User.ID)
		require.NotNil(t, st.Profile)
		assert.Equal(t, "ann", st.Profile.Username)
		svc.AssertExpectations(t)
	})

	t.Run("email is normalized before the call", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		s := New(svc, profile.NewMemoryStore())

		id := uuid.New()
		svc.On("VerifyPassword", mock.Anything, "ann@x.com", "secret1").
			Return(sessionUser(id, "ann@x.com"), nil)

		require.NoError(t, s.Login(ctx, "  Ann@X.COM ", "secret1"))
		svc.AssertExpectations(t)
	})

	t.Run("missing profile is accepted, not repaired", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		s := New(svc, profile.NewMemoryStore())

		id := uuid.New()
		svc.On("VerifyPassword", mock.Anything, "ann@x.com", "secret1").
			Return(sessionUser(id, "ann@x.com"), nil)

		require.NoError(t, s.Login(ctx, "ann@x.com", "secret1"))

		st := s.State()
		assert.True(t, st.IsAuthenticated)
		assert.Nil(t, st.Profile)
	})

	t.Run("bad credential surfaces and state stays anonymous", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		s := New(svc, profile.NewMemoryStore())

		svc.On("VerifyPassword", mock.Anything, "ann@x.com", "wrong").
			Return(nil, auth.ErrAuthenticationFailed)

		err := s.Login(ctx, "ann@x.com", "wrong")
		assert.ErrorIs(t, err, auth.ErrAuthenticationFailed)

		st := s.State()
		assert.Nil(t, st.User)
		assert.False(t, st.IsAuthenticated)
		assert.False(t, st.IsLoading)
	})

	t.Run("empty input fails before any network call", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		s := New(svc, profile.NewMemoryStore())

		assert.Error(t, s.Login(ctx, "", "secret1"))
		assert.Error(t, s.Login(ctx, "ann@x.com", ""))
		svc.AssertNotCalled(t, "VerifyPassword", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestStore_Register(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("provisions profile with defaults", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		profiles := profile.NewMemoryStore()
		s := New(svc, profiles)

		id := uuid.New()
		svc.On("CreateAccount", mock.Anything, "a@x.com", "secret1", auth.UserMetadata{FullName: "Ann"}).
			Return(sessionUser(id, "a@x.com"), nil)

		require.NoError(t, s.Register(ctx, "a@x.com", "secret1", "Ann"))

		st := s.State()
		assert.Equal(t, StatusAuthenticated, st.Status())
		require.NotNil(t, st.Profile)
		assert.Equal(t, id, st.Profile.ID)
		assert.Equal(t, "a", st.Profile.Username)
		assert.Equal(t, "Ann", st.Profile.FullName)
		assert.Zero(t, st.Profile.StreakCount)
		assert.Zero(t, st.Profile.TotalChallenges)
		assert.Zero(t, st.Profile.WinsCount)

		row, err := profiles.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "a", row.Username)
	})

	t.Run("taken email fails with the dedicated error", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		s := New(svc, profile.NewMemoryStore())

		svc.On("CreateAccount", mock.Anything, "a@x.com", "secret1", mock.Anything).
			Return(nil, auth.ErrEmailAlreadyRegistered)

		err := s.Register(ctx, "a@x.com", "secret1", "Ann")
		assert.ErrorIs(t, err, auth.ErrEmailAlreadyRegistered)
		assert.False(t, s.State().IsAuthenticated)
	})

	t.Run("duplicate profile insert converges to the existing row", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		profiles := profile.NewMemoryStore()
		s := New(svc, profiles)

		id := uuid.New()
		existing, err := profiles.Create(ctx, &profile.Profile{ID: id, Username: "a", FullName: "Ann"})
		require.NoError(t, err)

		svc.On("CreateAccount", mock.Anything, "a@x.com", "secret1", mock.Anything).
			Return(sessionUser(id, "a@x.com"), nil)

		require.NoError(t, s.Register(ctx, "a@x.com", "secret1", "Ann"))

		st := s.State()
		assert.True(t, st.IsAuthenticated)
		assert.Equal(t, existing, st.Profile)
	})

	t.Run("other provisioning failure does not advance to authenticated", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		profiles := &MockProfileStore{}
		s := New(svc, profiles)

		id := uuid.New()
		svc.On("CreateAccount", mock.Anything, "a@x.com", "secret1", mock.Anything).
			Return(sessionUser(id, "a@x.com"), nil)
		profiles.On("Create", mock.Anything, mock.Anything).
			Return(nil, errors.New("connection reset"))

		err := s.Register(ctx, "a@x.com", "secret1", "Ann")
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrEmailAlreadyRegistered)

		st := s.State()
		assert.False(t, st.IsAuthenticated)
		assert.Nil(t, st.User)
		assert.False(t, st.IsLoading)
	})

	t.Run("input policy enforced before any network call", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		s := New(svc, profile.NewMemoryStore())

		assert.Error(t, s.Register(ctx, "not-an-email", "secret1", "Ann"))
		assert.Error(t, s.Register(ctx, "a@x.com", "short", "Ann"))
		assert.Error(t, s.Register(ctx, "a@x.com", "secret1", ""))
		svc.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestStore_LoginWithApple(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("fails without a configured authorizer", func(t *testing.T) {
		t.Parallel()

		s := New(&MockService{}, profile.NewMemoryStore())
		assert.ErrorIs(t, s.LoginWithApple(ctx), ErrAppleUnavailable)
	})

	t.Run("first authorization provisions from the credential", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		apple := &MockAppleAuthorizer{}
		profiles := profile.NewMemoryStore()
		s := New(svc, profiles, WithAppleAuthorizer(apple))

		id := uuid.New()
		apple.On("RequestCredential", mock.Anything).Return(&auth.AppleCredential{
			IdentityToken: "id-token",
			Nonce:         "nonce",
			FullName:      "Ann Apple",
			Email:         "ann@privaterelay.appleid.com",
		}, nil)
		svc.On("ExchangeIdentityToken", mock.Anything, auth.ProviderApple, "id-token", "nonce").
			Return(&auth.SessionUser{ID: id, Provider: auth.ProviderApple}, nil)

		require.NoError(t, s.LoginWithApple(ctx))

		st := s.State()
		require.NotNil(t, st.Profile)
		assert.Equal(t, "Ann Apple", st.Profile.FullName)
		assert.Equal(t, "ann", st.Profile.Username)
		assert.True(t, st.IsAuthenticated)
	})

	t.Run("subsequent sign-in reuses the existing profile", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		apple := &MockAppleAuthorizer{}
		profiles := profile.NewMemoryStore()
		s := New(svc, profiles, WithAppleAuthorizer(apple))

		id := uuid.New()
		existing, err := profiles.Create(ctx, &profile.Profile{ID: id, Username: "ann", FullName: "Ann Apple"})
		require.NoError(t, err)

		// Apple supplies name and email only on first authorization.
		apple.On("RequestCredential", mock.Anything).Return(&auth.AppleCredential{
			IdentityToken: "id-token",
			Nonce:         "nonce",
		}, nil)
		svc.On("ExchangeIdentityToken", mock.Anything, auth.ProviderApple, "id-token", "nonce").
			Return(&auth.SessionUser{ID: id, Provider: auth.ProviderApple}, nil)

		require.NoError(t, s.LoginWithApple(ctx))
		assert.Equal(t, existing, s.State().Profile)
	})

	t.Run("creation race falls back to the winner's row", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		apple := &MockAppleAuthorizer{}
		profiles := &MockProfileStore{}
		s := New(svc, profiles, WithAppleAuthorizer(apple))

		id := uuid.New()
		winner := &profile.Profile{ID: id, Username: "ann"}

		apple.On("RequestCredential", mock.Anything).
			Return(&auth.AppleCredential{IdentityToken: "id-token", Nonce: "nonce"}, nil)
		svc.On("ExchangeIdentityToken", mock.Anything, auth.ProviderApple, "id-token", "nonce").
			Return(&auth.SessionUser{ID: id, Provider: auth.ProviderApple}, nil)
		profiles.On("Get", mock.Anything, id).Return(nil, profile.ErrNotFound).Once()
		profiles.On("Create", mock.Anything, mock.Anything).Return(nil, profile.ErrDuplicate).Once()
		profiles.On("Get", mock.Anything, id).Return(winner, nil).Once()

		require.NoError(t, s.LoginWithApple(ctx))
		assert.Equal(t, winner, s.State().Profile)
		profiles.AssertExpectations(t)
	})

	t.Run("cancellation is a silent no-op preserving prior state", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		apple := &MockAppleAuthorizer{}
		profiles := profile.NewMemoryStore()
		s := New(svc, profiles, WithAppleAuthorizer(apple))

		user, seeded := seedAuthenticated(t, svc, profiles, s)

		apple.On("RequestCredential", mock.Anything).Return(nil, auth.ErrRequestCanceled)

		require.NoError(t, s.LoginWithApple(ctx))

		st := s.State()
		assert.Equal(t, user, st.User)
		assert.Equal(t, seeded, st.Profile)
		assert.True(t, st.IsAuthenticated)
		assert.False(t, st.IsLoading)
		svc.AssertNotCalled(t, "ExchangeIdentityToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("exchange failure restores prior state with loading cleared", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		apple := &MockAppleAuthorizer{}
		s := New(svc, profile.NewMemoryStore(), WithAppleAuthorizer(apple))

		apple.On("RequestCredential", mock.Anything).
			Return(&auth.AppleCredential{IdentityToken: "bad", Nonce: "nonce"}, nil)
		svc.On("ExchangeIdentityToken", mock.Anything, auth.ProviderApple, "bad", "nonce").
			Return(nil, auth.ErrTokenInvalid)

		err := s.LoginWithApple(ctx)
		assert.ErrorIs(t, err, auth.ErrTokenInvalid)

		st := s.State()
		assert.Nil(t, st.User)
		assert.False(t, st.IsAuthenticated)
		assert.False(t, st.IsLoading)
	})
}

func TestStore_LoginWithGoogle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("opens the authorization URL and completes the flow", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		profiles := profile.NewMemoryStore()

		var opened string
		s := New(svc, profiles, WithRedirectOpener(
			auth.RedirectOpenerFunc(func(ctx context.Context, url string) error {
				opened = url
				return nil
			}),
		))

		id := uuid.New()
		svc.On("BeginOAuthRedirect", mock.Anything, auth.ProviderGoogle).
			Return("https://accounts.google.com/o/oauth2/auth?state=s", nil)
		svc.On("CompleteOAuthRedirect", mock.Anything).Return(&auth.SessionUser{
			ID:       id,
			Email:    "ann@gmail.com",
			Provider: auth.ProviderGoogle,
			Metadata: auth.UserMetadata{FullName: "Ann G"},
		}, nil)

		require.NoError(t, s.LoginWithGoogle(ctx))

		assert.Equal(t, "https://accounts.google.com/o/oauth2/auth?state=s", opened)

		st := s.State()
		assert.True(t, st.IsAuthenticated)
		require.NotNil(t, st.Profile)
		assert.Equal(t, "ann", st.Profile.Username)
		assert.Equal(t, "Ann G", st.Profile.FullName)
	})

	t.Run("abandoned redirect is a silent no-op", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		profiles := profile.NewMemoryStore()
		s := New(svc, profiles, WithRedirectOpener(
			auth.RedirectOpenerFunc(func(context.Context, string) error { return nil }),
		))

		user, seeded := seedAuthenticated(t, svc, profiles, s)

		svc.On("BeginOAuthRedirect", mock.Anything, auth.ProviderGoogle).Return("https://example.com/auth", nil)
		svc.On("CompleteOAuthRedirect", mock.Anything).Return(nil, nil)

		require.NoError(t, s.LoginWithGoogle(ctx))

		st := s.State()
		assert.Equal(t, user, st.User)
		assert.Equal(t, seeded, st.Profile)
		assert.True(t, st.IsAuthenticated)
		assert.False(t, st.IsLoading)
	})

	t.Run("opener failure restores prior state", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		s := New(svc, profile.NewMemoryStore(), WithRedirectOpener(
			auth.RedirectOpenerFunc(func(context.Context, string) error {
				return errors.New("no browser")
			}),
		))

		svc.On("BeginOAuthRedirect", mock.Anything, auth.ProviderGoogle).Return("https://example.com/auth", nil)

		require.Error(t, s.LoginWithGoogle(ctx))

		st := s.State()
		assert.False(t, st.IsAuthenticated)
		assert.False(t, st.IsLoading)
		svc.AssertNotCalled(t, "CompleteOAuthRedirect", mock.Anything)
	})
}

func TestStore_Logout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("clears everything on success", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		profiles := profile.NewMemoryStore()
		s := New(svc, profiles)

		seedAuthenticated(t, svc, profiles, s)

		svc.On("InvalidateSession", mock.Anything).Return(nil)

		require.NoError(t, s.Logout(ctx))

		st := s.State()
		assert.Nil(t, st.User)
		assert.Nil(t, st.Profile)
		assert.False(t, st.IsAuthenticated)
		assert.False(t, st.IsLoading)
		assert.Equal(t, StatusAnonymous, st.Status())
	})

	t.Run("leaves state unchanged on failure", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		profiles := profile.NewMemoryStore()
		s := New(svc, profiles)

		seedAuthenticated(t, svc, profiles, s)
		before := s.State()

		svc.On("InvalidateSession", mock.Anything).Return(errors.New("network down"))

		require.Error(t, s.Logout(ctx))
		assert.Equal(t, before, s.State())
	})
}

func TestStore_UpdateProfile(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("requires a session and makes no store call without one", func(t *testing.T) {
		t.Parallel()

		profiles := &MockProfileStore{}
		s := New(&MockService{}, profiles)

		err := s.UpdateProfile(ctx, profile.Update{StreakCount: ptr(5)})
		assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
		profiles.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("merges confirmed fields, leaving the rest untouched", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		profiles := profile.NewMemoryStore()
		s := New(svc, profiles)

		user, seeded := seedAuthenticated(t, svc, profiles, s)
		require.Equal(t, 2, seeded.StreakCount)

		require.NoError(t, s.UpdateProfile(ctx, profile.Update{StreakCount: ptr(5)}))

		st := s.State()
		require.NotNil(t, st.Profile)
		assert.Equal(t, 5, st.Profile.StreakCount)
		assert.Equal(t, seeded.Username, st.Profile.Username)
		assert.Equal(t, seeded.FullName, st.Profile.FullName)
		assert.Equal(t, user, st.User)

		row, err := profiles.Get(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, row.StreakCount)
	})

	t.Run("store failure leaves in-memory profile unchanged", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		profiles := &MockProfileStore{}
		s := New(svc, profiles)

		id := uuid.New()
		seeded := &profile.Profile{ID: id, Username: "ann", StreakCount: 2}
		svc.On("VerifyPassword", mock.Anything, "ann@x.com", "secret1").
			Return(sessionUser(id, "ann@x.com"), nil)
		profiles.On("Get", mock.Anything, id).Return(seeded, nil)
		require.NoError(t, s.Login(ctx, "ann@x.com", "secret1"))

		profiles.On("Update", mock.Anything, id, mock.Anything).
			Return(nil, errors.New("connection reset"))

		require.Error(t, s.UpdateProfile(ctx, profile.Update{StreakCount: ptr(9)}))
		assert.Equal(t, 2, s.State().Profile.StreakCount)
	})

	t.Run("adopts the stored row when no local profile exists", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		profiles := &MockProfileStore{}
		s := New(svc, profiles)

		id := uuid.New()
		svc.On("VerifyPassword", mock.Anything, "ann@x.com", "secret1").
			Return(sessionUser(id, "ann@x.com"), nil)
		profiles.On("Get", mock.Anything, id).Return(nil, profile.ErrNotFound)
		require.NoError(t, s.Login(ctx, "ann@x.com", "secret1"))
		require.Nil(t, s.State().Profile)

		stored := &profile.Profile{ID: id, Username: "ann", StreakCount: 9}
		profiles.On("Update", mock.Anything, id, mock.Anything).Return(stored, nil)

		require.NoError(t, s.UpdateProfile(ctx, profile.Update{StreakCount: ptr(9)}))
		assert.Equal(t, stored, s.State().Profile)
	})
}

func TestStore_Subscribe(t *testing.T) {
	t.Parallel()

	t.Run("delivers the current state immediately", func(t *testing.T) {
		t.Parallel()

		s := New(&MockService{}, profile.NewMemoryStore())

		updates := s.Subscribe(context.Background())
		st := <-updates
		assert.True(t, st.IsLoading)
		assert.Equal(t, StatusInit, st.Status())
	})

	t.Run("receives operation publications in order", func(t *testing.T) {
		t.Parallel()

		svc := &MockService{}
		s := New(svc, profile.NewMemoryStore())

		updates := s.Subscribe(context.Background())
		<-updates // initial

		id := uuid.New()
		svc.On("VerifyPassword", mock.Anything, "ann@x.com", "secret1").
			Return(sessionUser(id, "ann@x.com"), nil)
		require.NoError(t, s.Login(context.Background(), "ann@x.com", "secret1"))

		loading := <-updates
		assert.True(t, loading.IsLoading)

		final := <-updates
		assert.True(t, final.IsAuthenticated)
		assert.False(t, final.IsLoading)
	})

	t.Run("subscription ends with its context", func(t *testing.T) {
		t.Parallel()

		s := New(&MockService{}, profile.NewMemoryStore())

		ctx, cancel := context.WithCancel(context.Background())
		updates := s.Subscribe(ctx)
		<-updates
		cancel()

		for range updates {
			// drain until close
		}
	})

	t.Run("closed store returns a closed channel", func(t *testing.T) {
		t.Parallel()

		s := New(&MockService{}, profile.NewMemoryStore())
		require.NoError(t, s.Close())

		updates := s.Subscribe(context.Background())
		_, open := <-updates
		assert.False(t, open)
	})
}
