package coordinator

import (
	"context"

	"github.com/canonical/sqliteweb/internal/logger"
	"github.com/canonical/sqliteweb/internal/messages"
)

// dispatch delivers a completed DB-worker outcome to its origin (spec.md
// §4.4). Exactly one of result/errMsg is meaningful; errMsg == "" means
// success. INITIALIZATION_PENDING is the only error tagged specially on
// the host side — everything else is "generic".
func (c *Coordinator) dispatch(origin RequestOrigin, result, errMsg string) {
	if origin.Forwarded {
		ctx := context.Background()
		if errMsg == "" {
			if err := c.bus.Publish(ctx, messages.QueryResponseOK(origin.QueryID, result)); err != nil {
				logger.Warn("coordinator failed to publish QueryResponse", logger.Ctx{"err": err})
			}
			return
		}

		if err := c.bus.Publish(ctx, messages.QueryResponseErr(origin.QueryID, errMsg)); err != nil {
			logger.Warn("coordinator failed to publish QueryResponse", logger.Ctx{"err": err})
		}
		return
	}

	if errMsg == "" {
		c.host.Deliver(messages.QueryResultOK(origin.HostRequestID, result))
		return
	}

	kind := messages.ErrorKindGeneric
	if errMsg == string(messages.ErrorKindInitializationPending) {
		kind = messages.ErrorKindInitializationPending
	}

	c.host.Deliver(messages.QueryResultErr(origin.HostRequestID, kind, errMsg))
}
