package coordinator

import (
	"context"
	"encoding/json"

	"github.com/canonical/sqliteweb/internal/idgen"
	"github.com/canonical/sqliteweb/internal/logger"
	"github.com/canonical/sqliteweb/internal/messages"
)

// spawnDBWorker starts a fresh DB-worker child and wires its reply stream
// to handleChildReply (spec.md §4.3). Called on promotion and again by
// recovery after a crash.
func (c *Coordinator) spawnDBWorker(ctx context.Context) {
	child, replies, err := c.spawner(ctx, c.cfg.DBName)
	if err != nil {
		logger.Error("failed to spawn DB worker", logger.Ctx{"db": c.cfg.DBName, "err": err})
		c.onDBWorkerError(ctx, "failed to start database worker: "+err.Error())
		return
	}

	c.mu.Lock()
	c.child = child
	c.mu.Unlock()

	go c.readChildReplies(ctx, child, replies)
}

func (c *Coordinator) readChildReplies(ctx context.Context, child ChildHandle, replies <-chan messages.DbReply) {
	for reply := range replies {
		c.handleChildReply(ctx, reply)
	}

	// The channel closed without an explicit worker-error message: the
	// child process exited or its pipe broke. Treat it the same as a
	// reported crash (spec.md §4.3's Recovery clause). If this child is no
	// longer the current one (an explicit worker-error already replaced it,
	// or Close detached it), there is nothing left to recover.
	c.mu.Lock()
	stillCurrent := c.child == child && (c.dbWorkerReady || len(c.dbPending) > 0)
	c.mu.Unlock()

	if stillCurrent {
		c.onDBWorkerError(ctx, "database worker exited unexpectedly")
	}
}

// handleChildReply decodes the three shapes a DB-worker child emits
// (spec.md §4.3).
func (c *Coordinator) handleChildReply(ctx context.Context, reply messages.DbReply) {
	switch reply.Type {
	case messages.DbReplyWorkerReady:
		c.onDBWorkerReady(ctx)
	case messages.DbReplyQueryResult:
		c.onDBQueryResult(reply)
	case messages.DbReplyWorkerError:
		msg := "database worker reported an error"
		if reply.Error != nil {
			msg = *reply.Error
		}
		c.onDBWorkerError(ctx, msg)
	}
}

func (c *Coordinator) onDBWorkerReady(ctx context.Context) {
	c.mu.Lock()
	c.dbWorkerReady = true
	c.leaderReady = true
	c.mu.Unlock()

	if err := c.bus.Publish(ctx, messages.LeaderReady(c.workerID)); err != nil {
		logger.Warn("coordinator failed to publish LeaderReady", logger.Ctx{"err": err})
	}

	c.signalReadyOnce()
}

// onDBQueryResult looks up and removes the pending origin for a completed
// job, then dispatches the outcome (spec.md §4.3, §4.4). An unrecognized
// requestId, or a reply with neither result nor error set, follows the
// rules in spec.md §4.3/§7 ("drop silently" / "Invalid response").
func (c *Coordinator) onDBQueryResult(reply messages.DbReply) {
	c.mu.Lock()
	origin, ok := c.dbPending[reply.RequestID]
	if ok {
		delete(c.dbPending, reply.RequestID)
	}
	c.mu.Unlock()

	if !ok {
		return
	}

	if reply.Result == nil && reply.Error == nil {
		c.dispatch(origin, "", "Invalid response")
		return
	}

	if reply.Error != nil {
		c.dispatch(origin, "", *reply.Error)
		return
	}

	c.dispatch(origin, *reply.Result, "")
}

// onDBWorkerError runs the full recovery sequence (spec.md §4.3): the
// leader keeps its lock and respawns, it does not step down.
func (c *Coordinator) onDBWorkerError(ctx context.Context, reason string) {
	c.mu.Lock()
	c.dbWorkerReady = false
	c.leaderReady = false
	c.readySignaled = false

	child := c.child
	c.child = nil

	pending := c.dbPending
	c.dbPending = make(map[uint32]RequestOrigin)
	c.mu.Unlock()

	if child != nil {
		if err := child.Close(); err != nil {
			logger.Warn("coordinator failed to close crashed DB worker", logger.Ctx{"err": err})
		}
	}

	for _, origin := range pending {
		c.dispatch(origin, "", reason)
	}

	c.spawnDBWorker(ctx)
}

// forwardToChild allocates a wrap-safe dbRequestId, records the origin, and
// posts the request to the DB-worker child (spec.md §4.3's "Forwarding to
// DB worker"). There is no implicit retry: a post failure immediately fails
// the origin.
func (c *Coordinator) forwardToChild(origin RequestOrigin, sql string, params json.RawMessage) {
	c.mu.Lock()
	requestID := idgen.Next(&c.nextDbRequestID)
	c.dbPending[requestID] = origin
	child := c.child
	c.mu.Unlock()

	if child == nil {
		c.mu.Lock()
		delete(c.dbPending, requestID)
		c.mu.Unlock()

		c.dispatch(origin, "", "database worker is not available")
		return
	}

	req := messages.DbRequest{RequestID: requestID, SQL: sql, Params: params}
	if err := child.Send(req); err != nil {
		c.mu.Lock()
		delete(c.dbPending, requestID)
		c.mu.Unlock()

		c.dispatch(origin, "", err.Error())
	}
}
