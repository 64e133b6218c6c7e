package authstore

import (
	"context"
	"sync"
)

// subscriber is a single state-snapshot listener. Sends never block: a
// full buffer drops the snapshot for that listener, and the next publish
// delivers a complete state anyway since every snapshot is whole.
type subscriber struct {
	ch     chan State
	closed bool
	mu     sync.Mutex
}

func (sub *subscriber) send(st State) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed {
		return false
	}
	select {
	case sub.ch <- st:
		return true
	default:
		return false
	}
}

func (sub *subscriber) close() {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if !sub.closed {
		close(sub.ch)
		sub.closed = true
	}
}

// Subscribe registers a listener for state snapshots for the lifetime of
// ctx. The current state is delivered immediately so late subscribers
// start consistent. The channel is closed when ctx ends or the store
// closes.
func (s *Store) Subscribe(ctx context.Context) <-chan State {
	sub := &subscriber{ch: make(chan State, s.subBuffer)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.close()
		return sub.ch
	}
	s.subs[sub] = struct{}{}
	current := s.state
	s.mu.Unlock()

	sub.send(current)

	if ctx.Done() != nil {
		s.cleanupWg.Add(1)
		go func() {
			defer s.cleanupWg.Done()
			<-ctx.Done()
			s.unsubscribe(sub)
		}()
	}

	return sub.ch
}

// Close shuts down the store's subscriber fan-out. Operations remain
// usable but no further snapshots are delivered.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for sub := range s.subs {
		sub.close()
	}
	clear(s.subs)
	s.mu.Unlock()

	s.cleanupWg.Wait()
	return nil
}

func (s *Store) unsubscribe(sub *subscriber) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
	sub.close()
}

// fanOut delivers a snapshot to all subscribers. Callers must not hold
// s.mu.
func (s *Store) fanOut(st State, subs []*subscriber) {
	for _, sub := range subs {
		if !sub.send(st) {
			go s.unsubscribe(sub)
		}
	}
}
