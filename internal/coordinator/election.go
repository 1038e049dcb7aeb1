package coordinator

import (
	"context"
	"time"

	"github.com/canonical/sqliteweb/internal/logger"
	"github.com/canonical/sqliteweb/internal/messages"
	"github.com/canonical/sqliteweb/internal/task"
)

const probeInterval = 250 * time.Millisecond

// Start runs the concurrent promotion attempt and leader probe of spec.md
// §4.1, and begins listening to the bus. It must be called exactly once.
//
// When the platform exposes no locking facility, promotion has nothing to
// wait on, so it happens synchronously here rather than racing the probe's
// first tick in its own goroutine: spec.md §4.1's "promotion proceeds
// immediately" describes a single-threaded host where the lock-unavailable
// fast path and the probe's first timer tick cannot both be in flight at
// once, and a goroutine-based probe must preserve that ordering explicitly.
func (c *Coordinator) Start(ctx context.Context) {
	c.sub = c.bus.Subscribe()
	go c.readBus(ctx)

	if !c.locker.Available() {
		c.becomeLeader(ctx)
		return
	}

	go c.promote(ctx)
	c.startProbe(ctx)
}

func (c *Coordinator) readBus(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.sub.C:
			if !ok {
				return
			}

			c.handleBusMessage(ctx, msg)
		}
	}
}

// promote requests the exclusive election lock. The lock-unavailable
// degenerate case (spec.md §4.1) is handled synchronously by Start before
// this ever runs.
func (c *Coordinator) promote(ctx context.Context) {
	if _, err := c.locker.Acquire(ctx); err != nil {
		// Context cancelled (tab shutdown) or lock facility failed; no
		// leadership to claim.
		return
	}

	// The lock is held for the coordinator's lifetime (spec.md §4.1: "a
	// never-resolving continuation"); Release is intentionally never
	// called here.
	c.becomeLeader(ctx)
}

func (c *Coordinator) becomeLeader(ctx context.Context) {
	c.mu.Lock()
	c.role = RoleLeader
	c.knownLeaderID = c.workerID
	c.haveLeader = true
	c.mu.Unlock()

	c.stopProbe()

	if err := c.bus.Publish(ctx, messages.NewLeader(c.workerID)); err != nil {
		logger.Warn("coordinator failed to publish NewLeader", logger.Ctx{"err": err})
	}

	c.spawnDBWorker(ctx)
}

// startProbe begins the 250ms LeaderPing broadcast, bounded by
// followerTimeoutMs cumulative wall time (spec.md §4.1, §9's "min(probe
// interval, remaining budget)" rule). A budget of 0 means immediate timeout
// (the first schedule call reports the election timeout unless a leader is
// already known); InfiniteTimeout probes every 250ms until a leader is seen.
func (c *Coordinator) startProbe(ctx context.Context) {
	budget := c.cfg.FollowerTimeoutMs
	infinite := budget == InfiniteTimeout
	immediate := budget == 0

	var deadline time.Time
	if !infinite && !immediate {
		deadline = time.Now().Add(budget)
	}

	schedule := func() (time.Duration, error) {
		c.mu.Lock()
		known := c.haveLeader
		c.mu.Unlock()

		if known {
			return 0, task.ErrNeverRun
		}

		if immediate {
			c.onElectionTimeout(ctx)
			return 0, task.ErrNeverRun
		}

		if infinite {
			return probeInterval, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.onElectionTimeout(ctx)
			return 0, task.ErrNeverRun
		}

		if remaining < probeInterval {
			return remaining, nil
		}

		return probeInterval, nil
	}

	stop, reset := task.Start(func(taskCtx context.Context) {
		c.mu.Lock()
		known := c.haveLeader
		c.mu.Unlock()

		if known {
			return
		}

		if err := c.bus.Publish(taskCtx, messages.LeaderPing(c.workerID)); err != nil {
			logger.Warn("coordinator failed to publish LeaderPing", logger.Ctx{"err": err})
		}
	}, schedule)

	c.mu.Lock()
	c.probeStop = stop
	c.probeReset = reset
	c.mu.Unlock()
}

func (c *Coordinator) stopProbe() {
	c.mu.Lock()
	stop := c.probeStop
	c.mu.Unlock()

	if stop != nil {
		_ = stop(time.Second)
	}
}

// onElectionTimeout fires the surfaceable initialization error spec.md
// §4.1 requires when followerTimeoutMs elapses with no known leader.
func (c *Coordinator) onElectionTimeout(ctx context.Context) {
	c.mu.Lock()
	if c.haveLeader {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.host.Deliver(messages.WorkerErrorMsg("election timeout: no leader found"))
}
