package bus

import (
	"context"
	"sync"

	"github.com/canonical/sqliteweb/internal/messages"
)

// MemoryRegistry hands out in-process Bus instances keyed by bus name, so
// multiple "tabs" simulated as goroutines inside one process (or one test
// binary) can address the same bus the way separate browser tabs in one
// origin address the same BroadcastChannel. Adapted from
// lxd/cluster/events.go's pattern of keeping a mutex-protected list of
// listeners and looping over it on every fan-out.
type MemoryRegistry struct {
	mu    sync.Mutex
	buses map[string]*memoryBus
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{buses: make(map[string]*memoryBus)}
}

// Bus returns the Bus for name, creating it on first use. All callers
// passing the same name within one registry observe each other's messages.
func (r *MemoryRegistry) Bus(name string) Bus {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buses[name]
	if !ok {
		b = &memoryBus{}
		r.buses[name] = b
	}

	return b
}

type memoryBus struct {
	mu          sync.Mutex
	subscribers map[int]chan messages.BusMessage
	nextID      int
}

func (b *memoryBus) Publish(_ context.Context, msg messages.BusMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- msg:
		default:
			// Best-effort: a slow subscriber drops the message rather than
			// stalling every other sender, matching BroadcastChannel's
			// unreliable delivery contract (spec.md §2).
		}
	}

	return nil
}

func (b *memoryBus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers == nil {
		b.subscribers = make(map[int]chan messages.BusMessage)
	}

	id := b.nextID
	b.nextID++
	ch := make(chan messages.BusMessage, 64)
	b.subscribers[id] = ch

	return &Subscription{
		C: ch,
		close: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers, id)
			close(ch)
		},
	}
}

func (b *memoryBus) Close() error { return nil }
