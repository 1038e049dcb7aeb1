package coordinator

import "github.com/canonical/sqliteweb/internal/messages"

// signalReadyOnce is idempotent (spec.md §4.6): the first call latches
// readySignaled and tells the host; every later call is silent. A leader
// calls it once its DB worker is ready; a follower calls it once upon the
// first LeaderReady it observes.
func (c *Coordinator) signalReadyOnce() {
	c.mu.Lock()
	if c.readySignaled {
		c.mu.Unlock()
		return
	}

	c.readySignaled = true
	c.mu.Unlock()

	c.host.Deliver(messages.WorkerReadyMsg())
}
