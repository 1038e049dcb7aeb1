package coordinator

import (
	"github.com/hashicorp/go-multierror"
)

// Close tears down this coordinator's tab-lifetime resources: the probe
// timer, the bus subscription, and (leader-only) the DB-worker child. It
// does not release the election lock (spec.md §4.1's lock is held for the
// tab's lifetime and is reclaimed by the OS when the process exits), and it
// is safe to call even if Start was never called or promotion never
// happened. Errors from each step are collected rather than short-circuited,
// matching the teacher's hashicorp/go-multierror use for daemon shutdown
// sequences that must attempt every step regardless of earlier failures.
func (c *Coordinator) Close() error {
	c.stopProbe()

	var result *multierror.Error

	c.mu.Lock()
	sub := c.sub
	child := c.child
	c.sub = nil
	c.child = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Close()
	}

	if child != nil {
		if err := child.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}
