package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

// TestMemoryRegistryExclusive simulates N tabs racing for the same named
// lock (spec.md §8 property 1, at the locking layer): at most one holder
// at a time, and every caller eventually gets a turn.
func TestMemoryRegistryExclusive(t *testing.T) {
	reg := NewMemoryRegistry()

	const n = 20
	var wg sync.WaitGroup
	var concurrent int32
	var maxConcurrent int32

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			l, err := reg.Locker("db").Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}

			cur := atomic.AddInt32(&concurrent, 1)
			for {
				prev := atomic.LoadInt32(&maxConcurrent)
				if cur <= prev || atomic.CompareAndSwapInt32(&maxConcurrent, prev, cur) {
					break
				}
			}

			atomic.AddInt32(&concurrent, -1)

			if err := l.Release(); err != nil {
				t.Errorf("Release: %v", err)
			}
		}()
	}

	wg.Wait()

	if maxConcurrent != 1 {
		t.Fatalf("observed %d concurrent holders, want 1", maxConcurrent)
	}
}

func TestMemoryRegistryTryAcquireFailsWhenHeld(t *testing.T) {
	reg := NewMemoryRegistry()
	locker := reg.Locker("db")

	l, ok, err := locker.TryAcquire()
	if err != nil || !ok {
		t.Fatalf("expected first TryAcquire to succeed, got ok=%v err=%v", ok, err)
	}

	_, ok, err = locker.TryAcquire()
	if err != nil || ok {
		t.Fatalf("expected second TryAcquire to fail while held, got ok=%v err=%v", ok, err)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	_, ok, err = locker.TryAcquire()
	if err != nil || !ok {
		t.Fatalf("expected TryAcquire to succeed after release, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryRegistryDistinctKeysIndependent(t *testing.T) {
	reg := NewMemoryRegistry()

	_, ok1, err := reg.Locker("a").TryAcquire()
	_, ok2, err2 := reg.Locker("b").TryAcquire()

	if err != nil || err2 != nil || !ok1 || !ok2 {
		t.Fatalf("expected independent locks for distinct keys, got ok1=%v ok2=%v", ok1, ok2)
	}
}
