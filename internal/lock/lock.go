// Package lock provides the exclusive, origin-scoped named lock spec.md
// §4.1 uses as the single source of truth for leadership: "whichever tab
// wins the exclusive lock becomes leader". Two implementations exist: a
// flock(2)-backed Locker for real cross-process exclusivity, grounded
// directly on lxc/cookiejar/filelock_unix.go's syscall.Flock pattern, and an
// in-process named-lock registry for simulating many "tabs" as goroutines
// inside one test binary, grounded on lxd/locking's LockFriendly(ctx, key)
// contract (only that package's test file survived retrieval).
package lock

import "context"

// Lock represents a held exclusive lock. Release gives it up; per spec.md
// §4.1 the coordinator normally never calls Release on its own promotion
// lock (the "never-resolving continuation" is held for the tab's lifetime),
// but tests and the unsupported-platform fallback need it.
type Lock interface {
	Release() error
}

// Locker requests an exclusive named lock.
type Locker interface {
	// Available reports whether this Locker's backing facility exists on
	// the current platform. When false, spec.md §4.1 says promotion must
	// proceed immediately without ever attempting to acquire a lock.
	Available() bool

	// TryAcquire makes one non-blocking attempt. ok is false if someone
	// else already holds the lock.
	TryAcquire() (l Lock, ok bool, err error)

	// Acquire blocks (respecting ctx) until the lock is granted.
	Acquire(ctx context.Context) (Lock, error)
}

type noopLock struct{}

func (noopLock) Release() error { return nil }
