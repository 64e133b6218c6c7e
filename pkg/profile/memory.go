package profile

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for development and tests. All
// methods are safe for concurrent use and return copies, never internal
// pointers.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]Profile
	now  func() time.Time
}

// NewMemoryStore creates an empty in-memory profile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[uuid.UUID]Profile),
		now:  time.Now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

func (s *MemoryStore) Create(ctx context.Context, p *Profile) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[p.ID]; exists {
		return nil, ErrDuplicate
	}

	row := *p
	now := s.now()
	row.CreatedAt = now
	row.UpdatedAt = now
	s.rows[p.ID] = row

	stored := row
	return &stored, nil
}

func (s *MemoryStore) Update(ctx context.Context, id uuid.UUID, update Update) (*Profile, error) {
	if update.IsZero() {
		return nil, ErrEmptyUpdate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}

	merged := update.Apply(&row)
	merged.UpdatedAt = s.now()
	s.rows[id] = *merged

	stored := *merged
	return &stored, nil
}

var _ Store = (*MemoryStore)(nil)
