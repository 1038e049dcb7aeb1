//go:build !windows

package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"

	"github.com/canonical/sqliteweb/internal/sanitize"
)

// ErrLocked is returned by TryAcquire when another process already holds
// the lock.
var ErrLocked = errors.New("lock: already held by another process")

// FileLock is a Locker backed by flock(2) on a dedicated lock file, one per
// database name, named "sqlite-database-<sanitized>.lock" per spec.md §4.1.
type FileLock struct {
	path string
}

// NewFileLock returns a Locker for dbName whose lock file lives under dir.
func NewFileLock(dir, dbName string) *FileLock {
	name := sanitize.LockName(dbName) + ".lock"
	return &FileLock{path: filepath.Join(dir, name)}
}

// Available is always true on unix: flock(2) is always present.
func (*FileLock) Available() bool { return true }

type flockHandle struct {
	file *os.File
}

func (h *flockHandle) Release() error {
	if h.file == nil {
		return nil
	}

	err := flock(h.file, syscall.LOCK_UN)
	closeErr := h.file.Close()
	h.file = nil
	if err != nil {
		return err
	}

	return closeErr
}

// TryAcquire attempts a single non-blocking flock(2) LOCK_EX|LOCK_NB.
func (l *FileLock) TryAcquire() (Lock, bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, false, err
	}

	if err := flock(f, syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, false, nil
		}

		return nil, false, err
	}

	return &flockHandle{file: f}, true, nil
}

// Acquire blocks on flock(2) LOCK_EX (no LOCK_NB), which natively queues
// behind whoever currently holds it, in a goroutine so ctx cancellation can
// abandon the wait (the underlying syscall itself cannot be interrupted by
// context, so a cancelled Acquire leaves the blocked goroutine running until
// the lock is eventually granted).
func (l *FileLock) Acquire(ctx context.Context) (Lock, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	type result struct {
		err error
	}

	done := make(chan result, 1)
	go func() {
		done <- result{err: flock(f, syscall.LOCK_EX)}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			_ = f.Close()
			return nil, r.err
		}

		return &flockHandle{file: f}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// flock calls the flock syscall. It does not retry on EINTR, so a signal
// delivered during the call cancels it rather than silently resuming it.
// Adapted from lxc/cookiejar/filelock_unix.go's flock helper, generalized
// from a fixed set of read/write/unlock ops to the exclusive-only ops this
// package needs.
func flock(f *os.File, op int) error {
	return syscall.Flock(int(f.Fd()), op)
}
