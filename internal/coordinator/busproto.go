package coordinator

import (
	"context"
	"time"

	"github.com/canonical/sqliteweb/internal/idgen"
	"github.com/canonical/sqliteweb/internal/logger"
	"github.com/canonical/sqliteweb/internal/messages"
	"github.com/canonical/sqliteweb/internal/task"
)

// handleBusMessage dispatches one received bus message per spec.md §4.2's
// receive-dispatch table.
func (c *Coordinator) handleBusMessage(ctx context.Context, msg messages.BusMessage) {
	switch msg.Type {
	case messages.BusLeaderPing:
		c.onLeaderPing(ctx, msg)
	case messages.BusNewLeader:
		c.onNewLeader(msg)
	case messages.BusLeaderReady:
		c.onLeaderReady(msg)
	case messages.BusQueryRequest:
		c.onQueryRequest(ctx, msg)
	case messages.BusQueryResponse:
		c.onQueryResponse(msg)
	}
}

// onLeaderPing replies per spec.md §4.2: a leader announces whether it is
// serving; a non-leader that already knows a ready leader advises the
// prober (a transient, advisory reply — spec.md §9's second open question).
func (c *Coordinator) onLeaderPing(ctx context.Context, _ messages.BusMessage) {
	c.mu.Lock()
	role := c.role
	dbReady := c.dbWorkerReady
	leaderReady := c.leaderReady
	known := c.knownLeaderID
	self := c.workerID
	c.mu.Unlock()

	var reply messages.BusMessage
	switch {
	case role == RoleLeader && dbReady:
		reply = messages.LeaderReady(self)
	case role == RoleLeader:
		reply = messages.NewLeader(self)
	case leaderReady:
		id := known
		if id == "" {
			id = self
		}
		reply = messages.LeaderReady(id)
	default:
		return
	}

	if err := c.bus.Publish(ctx, reply); err != nil {
		logger.Warn("coordinator failed to reply to LeaderPing", logger.Ctx{"err": err})
	}
}

func (c *Coordinator) onNewLeader(msg messages.BusMessage) {
	c.mu.Lock()
	c.knownLeaderID = msg.LeaderID
	c.haveLeader = true
	c.mu.Unlock()

	c.wakeProbe()
}

func (c *Coordinator) onLeaderReady(msg messages.BusMessage) {
	c.mu.Lock()
	c.knownLeaderID = msg.LeaderID
	c.haveLeader = true
	c.leaderReady = true
	c.mu.Unlock()

	c.wakeProbe()
	c.signalReadyOnce()
}

// wakeProbe interrupts an in-progress probe wait so it re-evaluates its
// schedule (and parks for good) as soon as a leader becomes known, instead
// of waiting out the rest of the current 250ms tick.
func (c *Coordinator) wakeProbe() {
	c.mu.Lock()
	reset := c.probeReset
	c.mu.Unlock()

	if reset != nil {
		reset()
	}
}

// onQueryRequest handles a forwarded query; only leaders act on it (spec.md
// §4.2).
func (c *Coordinator) onQueryRequest(ctx context.Context, msg messages.BusMessage) {
	c.mu.Lock()
	isLeader := c.role == RoleLeader
	dbReady := c.dbWorkerReady
	c.mu.Unlock()

	if !isLeader {
		return
	}

	if !dbReady {
		c.publishQueryResponse(ctx, msg.QueryID, "", string(messages.ErrorKindInitializationPending))
		return
	}

	c.forwardToChild(ForwardedOrigin(msg.QueryID), msg.SQL, msg.Params)
}

// onQueryResponse resolves a follower-side pending forwarded query (spec.md
// §4.2). Unknown queryIds are silently dropped.
func (c *Coordinator) onQueryResponse(msg messages.BusMessage) {
	c.mu.Lock()
	wait, ok := c.followerPending[msg.QueryID]
	if ok {
		delete(c.followerPending, msg.QueryID)
	}
	c.mu.Unlock()

	if !ok {
		return
	}

	_ = wait.stop(time.Second)

	if msg.Error != nil {
		kind := messages.ErrorKindGeneric
		if *msg.Error == string(messages.ErrorKindInitializationPending) {
			kind = messages.ErrorKindInitializationPending
		}

		c.host.Deliver(messages.QueryResultErr(wait.hostRequestID, kind, *msg.Error))
		return
	}

	result := ""
	if msg.Result != nil {
		result = *msg.Result
	}

	c.host.Deliver(messages.QueryResultOK(wait.hostRequestID, result))
}

func (c *Coordinator) publishQueryResponse(ctx context.Context, queryID, result, errMsg string) {
	var reply messages.BusMessage
	if errMsg == "" {
		reply = messages.QueryResponseOK(queryID, result)
	} else {
		reply = messages.QueryResponseErr(queryID, errMsg)
	}

	if err := c.bus.Publish(ctx, reply); err != nil {
		logger.Warn("coordinator failed to publish QueryResponse", logger.Ctx{"err": err})
	}
}

// HandleHostQuery routes a host-originated ExecuteQuery per spec.md §4.2's
// "Routing of host-originated queries".
func (c *Coordinator) HandleHostQuery(ctx context.Context, req messages.ExecuteQuery) {
	c.mu.Lock()
	role := c.role
	dbReady := c.dbWorkerReady
	leaderReady := c.leaderReady
	c.mu.Unlock()

	if role == RoleLeader {
		if !dbReady {
			c.host.Deliver(messages.QueryResultErr(req.RequestID, messages.ErrorKindInitializationPending, "database initialization pending"))
			return
		}

		c.forwardToChild(LocalOrigin(req.RequestID), req.SQL, req.Params)
		return
	}

	if !leaderReady {
		c.host.Deliver(messages.QueryResultErr(req.RequestID, messages.ErrorKindInitializationPending, "leader initialization pending"))
		return
	}

	c.forwardToLeader(ctx, req)
}

func (c *Coordinator) forwardToLeader(ctx context.Context, req messages.ExecuteQuery) {
	queryID := idgen.NewQueryID()

	stop, _ := task.Start(func(context.Context) {
		c.onFollowerTimeout(queryID)
	}, task.After(c.followerQueryTimeout()))

	c.mu.Lock()
	c.followerPending[queryID] = followerWait{hostRequestID: req.RequestID, stop: stop}
	c.mu.Unlock()

	if err := c.bus.Publish(ctx, messages.QueryRequest(queryID, req.SQL, req.Params)); err != nil {
		c.mu.Lock()
		delete(c.followerPending, queryID)
		c.mu.Unlock()

		_ = stop(time.Second)
		c.host.Deliver(messages.QueryResultErr(req.RequestID, messages.ErrorKindGeneric, err.Error()))
	}
}

func (c *Coordinator) followerQueryTimeout() time.Duration {
	if c.cfg.QueryTimeoutMs == InfiniteTimeout {
		return time.Duration(1<<63 - 1)
	}

	return c.cfg.QueryTimeoutMs
}

// onFollowerTimeout fails a still-outstanding forwarded query with "Query
// timeout" (spec.md §4.2, testable property 5).
func (c *Coordinator) onFollowerTimeout(queryID string) {
	c.mu.Lock()
	wait, ok := c.followerPending[queryID]
	if ok {
		delete(c.followerPending, queryID)
	}
	c.mu.Unlock()

	if !ok {
		return
	}

	c.host.Deliver(messages.QueryResultErr(wait.hostRequestID, messages.ErrorKindGeneric, "Query timeout"))
}
