package broadcast

import (
	"context"
	"sync"
)

// subscriber owns one delivery channel. send never blocks: a full
// buffer drops the value for this subscriber.
type subscriber[T any] struct {
	ch     chan T
	closed bool
	mu     sync.Mutex
}

func (sub *subscriber[T]) send(v T) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed {
		return false
	}
	select {
	case sub.ch <- v:
		return true
	default:
		return false
	}
}

func (sub *subscriber[T]) close() {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if !sub.closed {
		close(sub.ch)
		sub.closed = true
	}
}

// Broadcaster fans values out to any number of context-scoped
// subscribers. All methods are safe for concurrent use.
type Broadcaster[T any] struct {
	mu        sync.RWMutex
	subs      map[*subscriber[T]]struct{}
	buffer    int
	closed    bool
	cleanupWg sync.WaitGroup
}

// New creates a broadcaster whose subscriber channels hold buffer
// values. A minimum of 1 is enforced so sends stay non-blocking.
func New[T any](buffer int) *Broadcaster[T] {
	return &Broadcaster[T]{
		subs:   make(map[*subscriber[T]]struct{}),
		buffer: max(buffer, 1),
	}
}

// Subscribe registers a listener for the lifetime of ctx. The channel
// is closed when ctx ends or the broadcaster closes; on an already
// closed broadcaster it is returned closed.
func (b *Broadcaster[T]) Subscribe(ctx context.Context) <-chan T {
	sub := &subscriber[T]{ch: make(chan T, b.buffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.close()
		return sub.ch
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	if ctx.Done() != nil {
		b.cleanupWg.Add(1)
		go func() {
			defer b.cleanupWg.Done()
			<-ctx.Done()
			b.unsubscribe(sub)
		}()
	}

	return sub.ch
}

// Publish delivers v to every subscriber. Subscribers whose buffer is
// full are dropped rather than blocking the publish.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for sub := range b.subs {
		if !sub.send(v) {
			go b.unsubscribe(sub)
		}
	}
}

// Close shuts down the broadcaster and closes all subscriber channels.
// Close is idempotent.
func (b *Broadcaster[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for sub := range b.subs {
		sub.close()
	}
	clear(b.subs)
	b.mu.Unlock()

	b.cleanupWg.Wait()
	return nil
}

func (b *Broadcaster[T]) unsubscribe(sub *subscriber[T]) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
	sub.close()
}
