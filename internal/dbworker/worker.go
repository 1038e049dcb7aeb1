// Package dbworker implements the DB worker runtime from spec.md §4.5: a
// single owned SQL engine handle, a FIFO queue of execute jobs, and an
// at-most-one-active-execution guard. Adapted from
// lxd/cluster/gateway.go's dqlite-server lifecycle (init, then signal
// ready, then serialize access to one owned engine handle) and rebuilt
// against a plain FIFO queue instead of a gRPC service.
package dbworker

import (
	"context"
	"sync"

	"github.com/canonical/sqliteweb/internal/engine"
)

// Job is one queued execute request (spec.md §3's DbJob).
type Job struct {
	RequestID uint32
	SQL       string
	Params    []any
}

// ResultFunc is invoked, exactly once per enqueued Job and in enqueue
// order, once that job finishes executing. Exactly one of result/err is
// meaningful.
type ResultFunc func(requestID uint32, result string, err error)

// Worker owns a SQL engine handle and serializes every statement run
// through it, per spec.md §4.5 and §9 ("at-most-one DB execution").
type Worker struct {
	engine   engine.Engine
	onResult ResultFunc

	mu         sync.Mutex
	queue      []Job
	processing bool
}

// New returns a Worker that dispatches to engine and reports completions
// via onResult.
func New(eng engine.Engine, onResult ResultFunc) *Worker {
	return &Worker{engine: eng, onResult: onResult}
}

// Enqueue appends job to the end of the queue. If no processor is
// currently draining the queue, one is started (spec.md §4.5 point 2).
func (w *Worker) Enqueue(job Job) {
	w.mu.Lock()
	w.queue = append(w.queue, job)
	start := !w.processing
	if start {
		w.processing = true
	}
	w.mu.Unlock()

	if start {
		go w.drain()
	}
}

// drain processes jobs in FIFO order, one at a time, until the queue is
// empty, then clears the processing flag. Because clearing the flag and
// checking queue length happen under the same lock, an Enqueue racing with
// the final iteration either observes processing==true (and does not start
// a second drain) or lands after the flag clears (and starts a fresh
// drain) — never both at once, per spec.md §9's re-entry rule.
func (w *Worker) drain() {
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			w.processing = false
			w.mu.Unlock()
			return
		}

		job := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		result, err := w.engine.Exec(context.Background(), job.SQL, job.Params)
		w.onResult(job.RequestID, result, err)
	}
}
