// Package idgen implements the wrap-safe counter rule used for every
// request id in this module (spec.md §9: "on increment-overflow, reset to
// 1, never 0"). Both the coordinator's dbRequestId counter and the host
// handle's hostRequestId counter share this single definition.
package idgen

import "github.com/google/uuid"

// Next advances *counter and returns the new value, skipping 0 on wrap.
func Next(counter *uint32) uint32 {
	*counter++
	if *counter == 0 {
		*counter = 1
	}

	return *counter
}

// NewQueryID returns a fresh identifier for a follower-forwarded query
// (spec.md §4.2: "generate a fresh queryId"). Its format is not part of the
// wire contract; any globally-unique string works.
func NewQueryID() string {
	return uuid.New().String()
}
