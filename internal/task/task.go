// Package task implements a small periodic-task scheduler. Its public shape
// mirrors github.com/canonical/lxd/lxd/task — task.Start(f, schedule),
// task.Every(interval, opts...), a reset function, and SkipFirst — confirmed
// by that package's surviving test file; the implementation itself was
// filtered out of the retrieval pack, so this rebuilds it from the
// documented contract rather than copying dead code. It backs both the
// coordinator's 250ms leader probe and its one-shot query timer
// (spec.md §4.1, §4.2, §9).
package task

import (
	"context"
	"errors"
	"time"
)

// Func is a unit of work invoked by the scheduler.
type Func func(context.Context)

// Schedule returns how long to wait before the next invocation. Returning
// ErrNeverRun permanently disables the task (until Reset is called).
type Schedule func() (time.Duration, error)

// ErrNeverRun is returned by a Schedule to mean "do not run, ever" —
// distinct from a transient error, which is retried after the duration the
// Schedule returned alongside it (or a 250ms backoff if that is not positive).
var ErrNeverRun = errors.New("task: schedule disabled")

type options struct {
	skipFirst bool
}

// Option configures a Schedule built with Every.
type Option func(*options)

// SkipFirst causes the first round to wait a full interval before running,
// instead of running immediately.
func SkipFirst(o *options) {
	o.skipFirst = true
}

// Every returns a Schedule that fires at a fixed interval, run immediately
// on the first round unless SkipFirst is given. An interval <= 0 disables
// the task (it never runs) until the caller constructs a fresh schedule
// with Reset semantics.
func Every(interval time.Duration, opts ...Option) Schedule {
	o := &options{}
	for _, apply := range opts {
		apply(o)
	}

	if interval <= 0 {
		return func() (time.Duration, error) { return 0, ErrNeverRun }
	}

	first := true
	return func() (time.Duration, error) {
		if first {
			first = false
			if o.skipFirst {
				return interval, nil
			}

			return 0, nil
		}

		return interval, nil
	}
}

// After returns a Schedule that fires exactly once, after d, then disables
// itself permanently (ErrNeverRun). Used for the coordinator's one-shot
// query timer (spec.md §4.2, §9), reusing the same Start/stop/
// reset contract as the periodic probe instead of a bare time.AfterFunc.
func After(d time.Duration) Schedule {
	fired := false
	return func() (time.Duration, error) {
		if fired {
			return 0, ErrNeverRun
		}

		fired = true
		return d, nil
	}
}

const scheduleErrorBackoff = 250 * time.Millisecond

// Start begins running f according to schedule in a new goroutine: wait for
// the interval schedule() reports, then run f, then ask schedule() again.
// It returns a stop function (cancels and waits up to timeout for the
// goroutine to exit) and a reset function (wakes an in-progress wait so the
// next round starts immediately, re-querying schedule()).
func Start(f Func, schedule Schedule) (stop func(timeout time.Duration) error, reset func()) {
	ctx, cancel := context.WithCancel(context.Background())
	resetCh := make(chan struct{}, 1)
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)

		for {
			interval, err := schedule()
			if errors.Is(err, ErrNeverRun) {
				if !wait(ctx, resetCh, nil) {
					return
				}

				continue
			}

			if err != nil {
				retry := scheduleErrorBackoff
				if interval > 0 {
					retry = interval
				}

				if !wait(ctx, resetCh, durationPtr(retry)) {
					return
				}

				continue
			}

			if !wait(ctx, resetCh, durationPtr(interval)) {
				return
			}

			f(ctx)
		}
	}()

	stop = func(timeout time.Duration) error {
		cancel()
		select {
		case <-doneCh:
			return nil
		case <-time.After(timeout):
			return context.DeadlineExceeded
		}
	}

	reset = func() {
		select {
		case resetCh <- struct{}{}:
		default:
		}
	}

	return stop, reset
}

// wait blocks until the context is cancelled (returns false), a reset is
// requested (returns true immediately), or, if d is non-nil, d elapses
// (returns true). A nil d waits indefinitely for reset or cancellation.
func wait(ctx context.Context, resetCh <-chan struct{}, d *time.Duration) bool {
	var timeout <-chan time.Time
	if d != nil {
		if *d <= 0 {
			return true
		}

		t := time.NewTimer(*d)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-ctx.Done():
		return false
	case <-resetCh:
		return true
	case <-timeout:
		return true
	}
}

func durationPtr(d time.Duration) *time.Duration { return &d }
