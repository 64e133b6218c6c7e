package devauth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateStore holds one-time CSRF state tokens for in-flight OAuth
// flows. Consume is strictly once: the second consume of the same
// token reports it unknown.
type StateStore interface {
	// Put stores a state token for ttl.
	Put(ctx context.Context, state string, ttl time.Duration) error
	// Consume removes the token and reports whether it was present and
	// unexpired.
	Consume(ctx context.Context, state string) (bool, error)
}

// MemoryStateStore keeps state tokens in process memory.
type MemoryStateStore struct {
	mu     sync.Mutex
	expiry map[string]time.Time
	now    func() time.Time
}

// NewMemoryStateStore creates an empty in-memory state store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		expiry: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (s *MemoryStateStore) Put(_ context.Context, state string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	// Opportunistic sweep keeps abandoned flows from accumulating.
	for k, exp := range s.expiry {
		if now.After(exp) {
			delete(s.expiry, k)
		}
	}
	s.expiry[state] = now.Add(ttl)
	return nil
}

func (s *MemoryStateStore) Consume(_ context.Context, state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.expiry[state]
	if !ok {
		return false, nil
	}
	delete(s.expiry, state)
	return s.now().Before(exp), nil
}

// RedisStateStore keeps state tokens in Redis, for running several dev
// instances against one flow.
type RedisStateStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStateStore creates a state store over an established Redis
// client, typically one dialed with the redis package's Connect.
func NewRedisStateStore(client redis.UniversalClient) *RedisStateStore {
	return &RedisStateStore{
		client: client,
		prefix: "devauth:state:",
	}
}

func (s *RedisStateStore) Put(ctx context.Context, state string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+state, "1", ttl).Err(); err != nil {
		return fmt.Errorf("devauth: store state: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Consume(ctx context.Context, state string) (bool, error) {
	err := s.client.GetDel(ctx, s.prefix+state).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("devauth: consume state: %w", err)
	}
}
