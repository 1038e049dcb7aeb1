package dbworker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/canonical/sqliteweb/internal/engine"
)

// fakeEngine records the order statements were executed and lets a test
// make individual calls block, to probe the at-most-one-active-execution
// guarantee.
type fakeEngine struct {
	mu      sync.Mutex
	order   []string
	gate    chan struct{} // if non-nil, Exec waits on it before returning
	inside  int32
	maxSeen int32
}

func (e *fakeEngine) Initialize(context.Context, string) error { return nil }
func (e *fakeEngine) Close() error                              { return nil }

func (e *fakeEngine) Exec(_ context.Context, sql string, _ []any) (string, error) {
	e.mu.Lock()
	e.inside++
	if e.inside > e.maxSeen {
		e.maxSeen = e.inside
	}
	gate := e.gate
	e.mu.Unlock()

	if gate != nil {
		<-gate
	}

	e.mu.Lock()
	e.order = append(e.order, sql)
	e.inside--
	e.mu.Unlock()

	return fmt.Sprintf(`{"echo":%q}`, sql), nil
}

var _ engine.Engine = (*fakeEngine)(nil)

// TestWorkerFIFOOrder is spec.md §8 property 6: N enqueued jobs are
// executed, and their results posted, in enqueue order.
func TestWorkerFIFOOrder(t *testing.T) {
	eng := &fakeEngine{}

	results := make(chan uint32, 10)
	w := New(eng, func(requestID uint32, result string, err error) {
		if err != nil {
			t.Errorf("unexpected error for request %d: %v", requestID, err)
		}
		results <- requestID
	})

	for i := uint32(1); i <= 10; i++ {
		w.Enqueue(Job{RequestID: i, SQL: fmt.Sprintf("SELECT %d", i)})
	}

	for i := uint32(1); i <= 10; i++ {
		select {
		case got := <-results:
			if got != i {
				t.Fatalf("expected result %d next, got %d", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for result %d", i)
		}
	}

	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.maxSeen > 1 {
		t.Fatalf("observed %d concurrent executions, want at most 1", eng.maxSeen)
	}
}

// TestWorkerReentersAfterRaceWithEnqueue exercises spec.md §9's re-entry
// rule: an Enqueue landing exactly as the queue drains still gets served
// without needing a second external kick.
func TestWorkerReentersAfterRaceWithEnqueue(t *testing.T) {
	eng := &fakeEngine{gate: make(chan struct{})}

	results := make(chan uint32, 2)
	w := New(eng, func(requestID uint32, _ string, _ error) {
		results <- requestID
	})

	w.Enqueue(Job{RequestID: 1, SQL: "SELECT 1"})

	// Let the first job start executing (it's now blocked on the gate),
	// then enqueue a second job while drain() is mid-flight.
	time.Sleep(20 * time.Millisecond)
	w.Enqueue(Job{RequestID: 2, SQL: "SELECT 2"})

	close(eng.gate)

	for _, want := range []uint32{1, 2} {
		select {
		case got := <-results:
			if got != want {
				t.Fatalf("expected result %d next, got %d", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for result %d", want)
		}
	}
}
