package devauth

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/habets/authkit/pkg/auth"
	"github.com/habets/authkit/pkg/sanitizer"
)

type account struct {
	id    uuid.UUID
	email string
	hash  []byte
	meta  auth.UserMetadata
}

func (a *account) sessionUser() *auth.SessionUser {
	return &auth.SessionUser{
		ID:       a.id,
		Email:    a.email,
		Provider: auth.ProviderPassword,
		Metadata: a.meta,
	}
}

// Accounts is an in-memory password account registry. Passwords are
// bcrypt-hashed; plaintext is never retained.
type Accounts struct {
	mu      sync.RWMutex
	byEmail map[string]*account
	cost    int
}

// NewAccounts creates an empty registry. Cost below bcrypt.MinCost
// falls back to bcrypt.DefaultCost; tests pass bcrypt.MinCost to keep
// hashing fast.
func NewAccounts(cost int) *Accounts {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &Accounts{
		byEmail: make(map[string]*account),
		cost:    cost,
	}
}

// Create registers a new account. Returns ErrEmailAlreadyRegistered
// when the normalized email is taken.
func (r *Accounts) Create(email, password string, meta auth.UserMetadata) (*auth.SessionUser, error) {
	email = sanitizer.NormalizeEmail(email)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if err != nil {
		return nil, fmt.Errorf("devauth: hash password: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[email]; exists {
		return nil, auth.ErrEmailAlreadyRegistered
	}

	acc := &account{
		id:    uuid.New(),
		email: email,
		hash:  hash,
		meta:  meta,
	}
	r.byEmail[email] = acc
	return acc.sessionUser(), nil
}

// Verify checks a password credential. Unknown emails and wrong
// passwords both return ErrAuthenticationFailed so callers cannot
// probe which emails exist.
func (r *Accounts) Verify(email, password string) (*auth.SessionUser, error) {
	email = sanitizer.NormalizeEmail(email)

	r.mu.RLock()
	acc, ok := r.byEmail[email]
	r.mu.RUnlock()

	if !ok {
		return nil, auth.ErrAuthenticationFailed
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return nil, auth.ErrAuthenticationFailed
	}
	return acc.sessionUser(), nil
}
