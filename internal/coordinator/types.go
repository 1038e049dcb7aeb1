// Package coordinator implements the per-tab coordinator runtime: leader
// election, bus routing, DB-worker lifecycle and the ready handshake
// (spec.md §3, §4.1–§4.4, §4.6, §7). Adapted from lxd/cluster/gateway.go's
// shape — a struct owning an election primitive, a fan-out bus, a child
// process handle, and a set of periodic/one-shot timers driving role
// transitions — generalized from dqlite's Raft-backed election to this
// spec's named-lock election.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/canonical/sqliteweb/internal/bus"
	"github.com/canonical/sqliteweb/internal/lock"
	"github.com/canonical/sqliteweb/internal/messages"
)

// Role is a coordinator's current position in the election (spec.md §3).
type Role int

const (
	RoleFollower Role = iota
	RoleLeader
)

func (r Role) String() string {
	if r == RoleLeader {
		return "leader"
	}

	return "follower"
}

// RequestOrigin records who to answer once a DB-worker request completes
// (spec.md §3's RequestOrigin sum type). Exactly one of the two fields is
// meaningful, selected by Forwarded.
type RequestOrigin struct {
	Forwarded bool

	// Local
	HostRequestID uint32

	// Forwarded
	QueryID string
}

// LocalOrigin builds a RequestOrigin for a host-originated request.
func LocalOrigin(hostRequestID uint32) RequestOrigin {
	return RequestOrigin{HostRequestID: hostRequestID}
}

// ForwardedOrigin builds a RequestOrigin for a bus-forwarded request.
func ForwardedOrigin(queryID string) RequestOrigin {
	return RequestOrigin{Forwarded: true, QueryID: queryID}
}

// InfiniteTimeout is the sentinel internal/config normalizes every
// non-finite or negative configured timeout to (spec.md §4.1: "a
// non-finite or negative configured timeout is treated as infinite").
// Zero is a distinct, literal value meaning "time out immediately"
// (spec.md §4.1: "0 is treated as immediate timeout").
const InfiniteTimeout time.Duration = -1

// Config is the immutable per-worker configuration (spec.md §3's
// WorkerConfig), already validated by internal/config.
type Config struct {
	DBName            string
	FollowerTimeoutMs time.Duration // InfiniteTimeout, 0 (immediate), or >0
	QueryTimeoutMs    time.Duration // InfiniteTimeout, 0 (immediate), or >0
}

// ChildHandle is a running DB-worker child (spec.md §4.3). Send posts a
// request over whatever transport backs it (a real child process's stdin,
// or an in-process fake for tests); Close terminates it.
type ChildHandle interface {
	Send(req messages.DbRequest) error
	Close() error
}

// ChildSpawner starts a new DB-worker child for dbName and returns a handle
// to it plus a channel of its replies. The channel is closed when the
// child's output stream ends (crash or clean exit), which the coordinator
// treats as an implicit worker-error if no explicit one was seen (spec.md
// §4.3's Recovery clause).
type ChildSpawner func(ctx context.Context, dbName string) (ChildHandle, <-chan messages.DbReply, error)

// HostSink receives the coordinator's in-process messages to its own host
// handle (spec.md §6.1).
type HostSink interface {
	Deliver(messages.HostMessage)
}

type followerWait struct {
	hostRequestID uint32
	stop          func(time.Duration) error
}

// Coordinator is one tab's coordinator runtime (spec.md §3's
// CoordinatorState).
type Coordinator struct {
	cfg      Config
	workerID string

	bus     bus.Bus
	locker  lock.Locker
	spawner ChildSpawner
	host    HostSink

	mu              sync.Mutex
	role            Role
	knownLeaderID   string
	haveLeader      bool
	leaderReady     bool
	readySignaled   bool
	dbWorkerReady   bool
	child           ChildHandle
	dbPending       map[uint32]RequestOrigin
	followerPending map[string]followerWait
	nextDbRequestID uint32

	probeStop  func(time.Duration) error
	probeReset func()

	sub *bus.Subscription
}

// New constructs a Coordinator for cfg, communicating over b, electing via
// locker, spawning DB-worker children via spawner, and delivering host
// control/result messages to host.
func New(cfg Config, b bus.Bus, locker lock.Locker, spawner ChildSpawner, host HostSink) *Coordinator {
	return &Coordinator{
		cfg:             cfg,
		workerID:        uuid.New().String(),
		bus:             b,
		locker:          locker,
		spawner:         spawner,
		host:            host,
		dbPending:       make(map[uint32]RequestOrigin),
		followerPending: make(map[string]followerWait),
	}
}

// WorkerID returns this coordinator's opaque identity.
func (c *Coordinator) WorkerID() string {
	return c.workerID
}

// SetHost wires the host sink. cmd/sqliteworkerd calls this once, before
// Start, to break the construction cycle between a Coordinator and the
// host.Handle that wraps it (the Handle itself needs a reference to the
// Coordinator it routes queries through).
func (c *Coordinator) SetHost(host HostSink) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.host = host
}

// Snapshot is a point-in-time view of coordinator state for the debug API.
type Snapshot struct {
	WorkerID        string `json:"workerId"`
	Role            string `json:"role"`
	KnownLeaderID   string `json:"knownLeaderId,omitempty"`
	LeaderReady     bool   `json:"leaderReady"`
	ReadySignaled   bool   `json:"readySignaled"`
	DBWorkerReady   bool   `json:"dbWorkerReady"`
	PendingDBJobs   int    `json:"pendingDbJobs"`
	PendingFollower int    `json:"pendingFollowerQueries"`
}

// Snapshot returns the current state for observability (internal/api).
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		WorkerID:        c.workerID,
		Role:            c.role.String(),
		KnownLeaderID:   c.knownLeaderID,
		LeaderReady:     c.leaderReady,
		ReadySignaled:   c.readySignaled,
		DBWorkerReady:   c.dbWorkerReady,
		PendingDBJobs:   len(c.dbPending),
		PendingFollower: len(c.followerPending),
	}
}
