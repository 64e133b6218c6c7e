package authstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/habets/authkit/pkg/auth"
	"github.com/habets/authkit/pkg/profile"
)

// MockService is a mock implementation of auth.Service.
type MockService struct {
	mock.Mock
}

func (m *MockService) VerifyPassword(ctx context.Context, email, password string) (*auth.SessionUser, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.SessionUser), args.Error(1)
}

func (m *MockService) CreateAccount(ctx context.Context, email, password string, meta auth.UserMetadata) (*auth.SessionUser, error) {
	args := m.Called(ctx, email, password, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.SessionUser), args.Error(1)
}

func (m *MockService) ExchangeIdentityToken(ctx context.Context, provider, token, nonce string) (*auth.SessionUser, error) {
	args := m.Called(ctx, provider, token, nonce)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.SessionUser), args.Error(1)
}

func (m *MockService) BeginOAuthRedirect(ctx context.Context, provider string) (string, error) {
	args := m.Called(ctx, provider)
	return args.String(0), args.Error(1)
}

func (m *MockService) CompleteOAuthRedirect(ctx context.Context) (*auth.SessionUser, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.SessionUser), args.Error(1)
}

func (m *MockService) InvalidateSession(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockService) SessionChanges(ctx context.Context) <-chan auth.SessionChange {
	args := m.Called(ctx)
	return args.Get(0).(<-chan auth.SessionChange)
}

// MockProfileStore is a mock implementation of profile.Store.
type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) Get(ctx context.Context, id uuid.UUID) (*profile.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*profile.Profile), args.Error(1)
}

func (m *MockProfileStore) Create(ctx context.Context, p *profile.Profile) (*profile.Profile, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*profile.Profile), args.Error(1)
}

func (m *MockProfileStore) Update(ctx context.Context, id uuid.UUID, update profile.Update) (*profile.Profile, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*profile.Profile), args.Error(1)
}

// MockAppleAuthorizer is a mock implementation of auth.AppleAuthorizer.
type MockAppleAuthorizer struct {
	mock.Mock
}

func (m *MockAppleAuthorizer) RequestCredential(ctx context.Context) (*auth.AppleCredential, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.AppleCredential), args.Error(1)
}
