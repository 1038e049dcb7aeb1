package bus

import (
	"context"
	"testing"
	"time"

	"github.com/canonical/sqliteweb/internal/messages"
)

func TestMemoryBusFanOut(t *testing.T) {
	reg := NewMemoryRegistry()
	b := reg.Bus("sqlite-queries-t")

	subA := b.Subscribe()
	subB := b.Subscribe()
	defer subA.Close()
	defer subB.Close()

	if err := b.Publish(context.Background(), messages.LeaderPing("x")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for _, sub := range []*Subscription{subA, subB} {
		select {
		case msg := <-sub.C:
			if msg.Type != messages.BusLeaderPing {
				t.Fatalf("unexpected message: %#v", msg)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not observe published message")
		}
	}
}

func TestMemoryBusPerSenderOrdering(t *testing.T) {
	reg := NewMemoryRegistry()
	b := reg.Bus("sqlite-queries-t")

	sub := b.Subscribe()
	defer sub.Close()

	ctx := context.Background()
	_ = b.Publish(ctx, messages.LeaderPing("1"))
	_ = b.Publish(ctx, messages.LeaderPing("2"))
	_ = b.Publish(ctx, messages.LeaderPing("3"))

	for _, want := range []string{"1", "2", "3"} {
		select {
		case msg := <-sub.C:
			if msg.RequesterID != want {
				t.Fatalf("got requester %q, want %q", msg.RequesterID, want)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for message")
		}
	}
}

func TestMemoryBusCloseStopsDelivery(t *testing.T) {
	reg := NewMemoryRegistry()
	b := reg.Bus("sqlite-queries-t")

	sub := b.Subscribe()
	sub.Close()

	if _, ok := <-sub.C; ok {
		t.Fatal("expected subscription channel to be closed")
	}
}
