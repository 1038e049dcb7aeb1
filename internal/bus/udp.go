package bus

import (
	"context"
	"fmt"
	"hash/fnv"
	"net"
	"sync"

	"github.com/canonical/sqliteweb/internal/logger"
	"github.com/canonical/sqliteweb/internal/messages"
)

// multicastBase is the low byte range reserved, within the administratively
// scoped IPv4 multicast block, for sqliteweb buses.
const multicastBase = "239.192.%d.%d"

// groupForName derives a deterministic multicast group address from a bus
// name, so distinct databases are isolated (spec.md §2: "the bus is named
// ... so distinct databases are isolated") without a coordination service.
func groupForName(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	sum := h.Sum32()
	return fmt.Sprintf(multicastBase, byte(sum>>8), byte(sum))
}

// UDPBus is a cross-process Bus backed by UDP multicast: every tab process
// on the host joins the same multicast group and both sends and receives on
// it. This is the real-world analogue of BroadcastChannel's best-effort,
// no-delivery-guarantee, same-origin semantics (spec.md §2, §5) — no pack
// library offers a closer-fitting primitive; always-on broker-based pub/sub
// (e.g. Redis) assumes a long-lived broker process, which the browser bus
// does not have.
type UDPBus struct {
	name    string
	port    int
	conn    *net.UDPConn
	sendTo  *net.UDPAddr

	mu          sync.Mutex
	subscribers map[int]chan messages.BusMessage
	nextID      int
	closed      bool
}

// NewUDPBus joins the multicast group derived from name on port and returns
// a ready-to-use Bus. The caller must call Close when done.
func NewUDPBus(name string, port int) (*UDPBus, error) {
	groupIP := net.ParseIP(groupForName(name))
	addr := &net.UDPAddr{IP: groupIP, Port: port}

	conn, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("bus: join multicast group for %q: %w", name, err)
	}

	_ = conn.SetReadBuffer(1 << 20)

	b := &UDPBus{
		name:        name,
		port:        port,
		conn:        conn,
		sendTo:      addr,
		subscribers: make(map[int]chan messages.BusMessage),
	}

	go b.readLoop()

	return b, nil
}

func (b *UDPBus) readLoop() {
	buf := make([]byte, 64*1024)
	for {
		n, _, err := b.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}

		msg, err := messages.Decode(buf[:n])
		if err != nil {
			logger.Debugf("bus: dropping malformed datagram on %s: %v", b.name, err)
			continue
		}

		b.mu.Lock()
		for _, ch := range b.subscribers {
			select {
			case ch <- msg:
			default:
			}
		}
		b.mu.Unlock()
	}
}

func (b *UDPBus) Publish(ctx context.Context, msg messages.BusMessage) error {
	data, err := messages.Encode(msg)
	if err != nil {
		return err
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline {
		_ = b.conn.SetWriteDeadline(deadline)
	}

	_, err = b.conn.WriteToUDP(data, b.sendTo)
	return err
}

func (b *UDPBus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan messages.BusMessage, 64)
	b.subscribers[id] = ch

	return &Subscription{
		C: ch,
		close: func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(ch)
			}
		},
	}
}

func (b *UDPBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}

	b.closed = true
	b.mu.Unlock()

	return b.conn.Close()
}
