// Package host implements the host-facing per-database handle (spec.md §3
// "HostSide", §4.7): the in-process caller that issues query(sql, params)
// and awaits a result string, tracked against the coordinator's control and
// result messages. Grounded on lxd/cluster/gateway.go's "upgradeCh" —
// a channel closed exactly once to broadcast a one-shot event to an
// unbounded number of waiters, some of which may not have started waiting
// yet when the event fires.
package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/canonical/sqliteweb/internal/idgen"
	"github.com/canonical/sqliteweb/internal/messages"
)

// Coordinator is the subset of coordinator.Coordinator the host handle
// drives: route a host-originated query into the coordination core.
type Coordinator interface {
	HandleHostQuery(ctx context.Context, req messages.ExecuteQuery)
}

// ErrInitializationPending is returned by Query when an individual query
// completes with the INITIALIZATION_PENDING error kind (Query itself does not
// wait for or check a Ready latch; it only fails early once the latch is
// Failed), so callers can distinguish
// "not fatal, just not warm yet" from every other failure (spec.md §4.7,
// §7's InitializationPending error kind).
var ErrInitializationPending = fmt.Errorf("sqliteweb: database initialization pending")

type pendingQuery struct {
	resultCh chan queryOutcome
}

type queryOutcome struct {
	result string
	err    error
}

// readyState is the latch of spec.md §3's readySignal: Pending until the
// first WorkerReady or WorkerError arrives, then Ready or Failed(reason)
// forever after. done closes on either outcome; failedCh closes only on
// the Failed outcome, so a waiter can select on "terminally failed" without
// also waking (and having to re-check) on a plain Ready.
type readyState struct {
	mu       sync.Mutex
	done     chan struct{}
	failedCh chan struct{}
	failed   bool
	reason   string
}

func newReadyState() *readyState {
	return &readyState{done: make(chan struct{}), failedCh: make(chan struct{})}
}

func (r *readyState) resolveReady() {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.done:
		return
	default:
	}

	close(r.done)
}

func (r *readyState) resolveFailed(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.done:
		return
	default:
	}

	r.failed = true
	r.reason = reason
	close(r.failedCh)
	close(r.done)
}

// Handle is one host-side database connection (spec.md §3's HostSide
// per-database handle). Query is safe to call from multiple goroutines.
type Handle struct {
	coord Coordinator

	mu             sync.Mutex
	nextRequestID  uint32
	pendingQueries map[uint32]*pendingQuery
	ready          *readyState
}

// New returns a Handle that routes queries through coord. Call Deliver with
// every coordinator-originated HostMessage as it arrives.
func New(coord Coordinator) *Handle {
	return &Handle{
		coord:          coord,
		pendingQueries: make(map[uint32]*pendingQuery),
		ready:          newReadyState(),
	}
}

// Query implements spec.md §4.7: allocate a request id, register a waiter,
// post ExecuteQuery to the coordinator, and await its resolution (or ctx
// cancellation, or a latched ready-signal failure).
func (h *Handle) Query(ctx context.Context, sql string, params []byte) (string, error) {
	h.mu.Lock()
	ready := h.ready
	h.mu.Unlock()

	select {
	case <-ready.done:
		if ready.failed {
			return "", fmt.Errorf("sqliteweb: %s", ready.reason)
		}
	default:
	}

	h.mu.Lock()
	requestID := idgen.Next(&h.nextRequestID)
	pq := &pendingQuery{resultCh: make(chan queryOutcome, 1)}
	h.pendingQueries[requestID] = pq
	h.mu.Unlock()

	h.coord.HandleHostQuery(ctx, messages.ExecuteQuery{RequestID: requestID, SQL: sql, Params: params})

	select {
	case outcome := <-pq.resultCh:
		return outcome.result, outcome.err
	case <-ready.failedCh:
		h.mu.Lock()
		delete(h.pendingQueries, requestID)
		h.mu.Unlock()

		return "", fmt.Errorf("sqliteweb: %s", ready.reason)
	case <-ctx.Done():
		h.mu.Lock()
		delete(h.pendingQueries, requestID)
		h.mu.Unlock()

		return "", ctx.Err()
	}
}

// Deliver processes one coordinator-originated control/result message
// (spec.md §4.7's "On incoming coordinator control messages").
func (h *Handle) Deliver(msg messages.HostMessage) {
	switch msg.Type {
	case messages.HostWorkerReady:
		h.ready.resolveReady()
	case messages.HostWorkerError:
		h.ready.resolveFailed(msg.Error)
	case messages.HostQueryResult:
		h.resolveQuery(msg)
	}
}

func (h *Handle) resolveQuery(msg messages.HostMessage) {
	h.mu.Lock()
	pq, ok := h.pendingQueries[msg.RequestID]
	if ok {
		delete(h.pendingQueries, msg.RequestID)
	}
	h.mu.Unlock()

	if !ok {
		return
	}

	if msg.QueryErr != nil {
		if msg.QueryErr.Type == messages.ErrorKindInitializationPending {
			pq.resultCh <- queryOutcome{err: ErrInitializationPending}
			return
		}

		message := msg.QueryErr.Message
		if message == "" {
			message = string(msg.QueryErr.Type)
		}

		pq.resultCh <- queryOutcome{err: fmt.Errorf("sqliteweb: %s", message)}
		return
	}

	result := ""
	if msg.Result != nil {
		result = *msg.Result
	}

	pq.resultCh <- queryOutcome{result: result}
}
