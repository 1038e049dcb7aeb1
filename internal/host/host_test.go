package host

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/canonical/sqliteweb/internal/messages"
)

type fakeCoordinator struct {
	mu   sync.Mutex
	reqs []messages.ExecuteQuery
}

func (f *fakeCoordinator) HandleHostQuery(_ context.Context, req messages.ExecuteQuery) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
}

// TestReadyLatchesOnce is spec.md §8 property 4: WorkerReady resolves every
// awaiter, and a later WorkerError after Ready is already latched must not
// un-latch it.
func TestReadyLatchesOnce(t *testing.T) {
	h := New(&fakeCoordinator{})

	h.Deliver(messages.WorkerReadyMsg())
	h.Deliver(messages.WorkerErrorMsg("should be ignored"))

	select {
	case <-h.ready.done:
	default:
		t.Fatal("expected ready state to be latched")
	}

	if h.ready.failed {
		t.Fatal("a WorkerError delivered after Ready must not flip the latch to failed")
	}
}

// TestQueryResolvesExactlyOnce is spec.md §8 property 3/invariant: a single
// host-request id resolves exactly once.
func TestQueryResolvesExactlyOnce(t *testing.T) {
	coord := &fakeCoordinator{}
	h := New(coord)
	h.Deliver(messages.WorkerReadyMsg())

	resultCh := make(chan struct {
		result string
		err    error
	}, 1)

	go func() {
		result, err := h.Query(context.Background(), "SELECT 1", nil)
		resultCh <- struct {
			result string
			err    error
		}{result, err}
	}()

	var requestID uint32
	for requestID == 0 {
		coord.mu.Lock()
		if len(coord.reqs) > 0 {
			requestID = coord.reqs[0].RequestID
		}
		coord.mu.Unlock()

		if requestID == 0 {
			time.Sleep(time.Millisecond)
		}
	}

	h.Deliver(messages.QueryResultOK(requestID, `[{"n":1}]`))
	// A duplicate delivery for the same id must be dropped silently, not
	// resolve a second waiter or panic on a full channel.
	h.Deliver(messages.QueryResultOK(requestID, `[{"n":2}]`))

	got := <-resultCh
	if got.err != nil {
		t.Fatalf("unexpected error: %v", got.err)
	}

	if got.result != `[{"n":1}]` {
		t.Fatalf("got %q, want first delivery's result", got.result)
	}
}
