// Package bus implements the inter-tab broadcast bus spec.md §2, §4.2 and
// §6.2 describe: an origin-scoped, database-named, best-effort channel that
// is in-order per sender but gives no cross-sender ordering and no delivery
// guarantee across tab lifetimes (spec.md §5).
package bus

import (
	"context"

	"github.com/canonical/sqliteweb/internal/messages"
)

// Bus is a named broadcast channel: each Publish is offered, in order per
// sender, to every current Subscriber (spec.md §5's ordering guarantee).
// Delivery is best-effort: a subscriber whose buffer is full misses the
// message.
type Bus interface {
	// Publish broadcasts msg to every current subscriber of this bus.
	Publish(ctx context.Context, msg messages.BusMessage) error

	// Subscribe registers a new listener. The returned Subscription's
	// channel receives messages Published after this call returns;
	// messages sent before subscribing are not replayed (best-effort, per
	// spec.md §2).
	Subscribe() *Subscription

	// Close releases any resources the Bus holds (sockets, goroutines).
	Close() error
}

// Subscription is a single listener's view of a Bus.
type Subscription struct {
	C     <-chan messages.BusMessage
	close func()
}

// Close stops delivery to this subscription and releases it from the Bus.
func (s *Subscription) Close() {
	if s.close != nil {
		s.close()
	}
}
