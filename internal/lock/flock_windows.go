//go:build windows

package lock

import "context"

// FileLock has no flock(2)-based implementation on windows in this module;
// Available reports false so the coordinator's promotion step falls back to
// the single-tab degenerate case described in spec.md §4.1 ("If the
// platform does not expose a locks facility, promotion proceeds
// immediately").
type FileLock struct{}

// NewFileLock returns a Locker that reports itself unavailable on windows.
func NewFileLock(dir, dbName string) *FileLock { return &FileLock{} }

func (*FileLock) Available() bool { return false }

func (*FileLock) TryAcquire() (Lock, bool, error) { return noopLock{}, true, nil }

func (*FileLock) Acquire(ctx context.Context) (Lock, error) { return noopLock{}, nil }
