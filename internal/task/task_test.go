package task_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonical/sqliteweb/internal/task"
)

func TestExecuteImmediately(t *testing.T) {
	notified := make(chan struct{}, 1)
	f := func(context.Context) { notified <- struct{}{} }

	stop, _ := task.Start(f, task.Every(time.Second))
	defer stop(time.Second)

	select {
	case <-notified:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("task was not executed immediately")
	}
}

func TestExecutePeriodically(t *testing.T) {
	notified := make(chan struct{}, 8)
	f := func(context.Context) { notified <- struct{}{} }

	stop, _ := task.Start(f, task.Every(30*time.Millisecond))
	defer stop(time.Second)

	for i := 0; i < 3; i++ {
		select {
		case <-notified:
		case <-time.After(200 * time.Millisecond):
			t.Fatalf("round %d: no execution observed", i)
		}
	}
}

func TestSkipFirst(t *testing.T) {
	notified := make(chan struct{}, 8)
	f := func(context.Context) { notified <- struct{}{} }

	stop, _ := task.Start(f, task.Every(60*time.Millisecond, task.SkipFirst))
	defer stop(time.Second)

	select {
	case <-notified:
		t.Fatal("SkipFirst should not run immediately")
	case <-time.After(20 * time.Millisecond):
	}

	select {
	case <-notified:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("task never ran after the first interval")
	}
}

func TestZeroIntervalNeverRuns(t *testing.T) {
	notified := make(chan struct{}, 1)
	f := func(context.Context) { notified <- struct{}{} }

	stop, _ := task.Start(f, task.Every(0))
	defer stop(time.Second)

	select {
	case <-notified:
		t.Fatal("a zero interval schedule must never run")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReset(t *testing.T) {
	notified := make(chan struct{}, 8)
	f := func(context.Context) { notified <- struct{}{} }

	stop, reset := task.Start(f, task.Every(time.Hour))
	defer stop(time.Second)

	select {
	case <-notified:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("first round did not run immediately")
	}

	reset()

	select {
	case <-notified:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("reset did not trigger an immediate re-run")
	}
}

func TestScheduleTemporaryError(t *testing.T) {
	errored := false
	schedule := func() (time.Duration, error) {
		if !errored {
			errored = true
			return time.Millisecond, fmt.Errorf("boom")
		}

		return 10 * time.Millisecond, nil
	}

	notified := make(chan struct{}, 1)
	f := func(context.Context) { notified <- struct{}{} }

	stop, _ := task.Start(f, schedule)
	defer stop(time.Second)

	select {
	case <-notified:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("task never recovered from a temporary schedule error")
	}
}

func TestStopWaitsForGoroutineExit(t *testing.T) {
	running := make(chan struct{})
	release := make(chan struct{})
	f := func(context.Context) {
		close(running)
		<-release
	}

	stop, _ := task.Start(f, task.Every(time.Hour))

	<-running
	close(release)
	require.NoError(t, stop(time.Second))
	assert.True(t, true)
}
