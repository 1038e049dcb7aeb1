// Package messages defines the closed, tagged-union wire schemas spec.md
// §4.2, §6.1, §6.2 and §6.3 describe: the inter-tab bus protocol, the
// host<->coordinator in-process protocol, and the coordinator<->DB-worker
// child-process protocol. BusMessage rejects unknown tags on decode
// (Decode, Validate). DbReply and HostMessage carry a tag but have no
// decode-time check; a value with an unknown tag decodes without error and
// is ignored by the code that handles it.
package messages

import (
	"encoding/json"
	"fmt"
)

// BusTag identifies which variant of BusMessage is populated.
type BusTag string

// The five bus message tags from spec.md §4.2's table.
const (
	BusLeaderPing     BusTag = "LeaderPing"
	BusNewLeader      BusTag = "NewLeader"
	BusLeaderReady    BusTag = "LeaderReady"
	BusQueryRequest   BusTag = "QueryRequest"
	BusQueryResponse  BusTag = "QueryResponse"
)

// BusMessage is the closed sum type carried over the broadcast bus (spec.md
// §4.2). Only the fields relevant to Type are populated; the wire encoding
// is a single-line JSON object per spec.md §6.2.
type BusMessage struct {
	Type        BusTag          `json:"type"`
	RequesterID string          `json:"requesterId,omitempty"`
	LeaderID    string          `json:"leaderId,omitempty"`
	QueryID     string          `json:"queryId,omitempty"`
	SQL         string          `json:"sql,omitempty"`
	Params      json.RawMessage `json:"params,omitempty"`
	Result      *string         `json:"result,omitempty"`
	Error       *string         `json:"error,omitempty"`
}

var validBusTags = map[BusTag]bool{
	BusLeaderPing:    true,
	BusNewLeader:     true,
	BusLeaderReady:   true,
	BusQueryRequest:  true,
	BusQueryResponse: true,
}

// Validate rejects messages carrying an unrecognized tag.
func (m BusMessage) Validate() error {
	if !validBusTags[m.Type] {
		return fmt.Errorf("messages: unknown bus message tag %q", m.Type)
	}

	return nil
}

// LeaderPing builds a LeaderPing{requesterId} message (spec.md §4.1).
func LeaderPing(requesterID string) BusMessage {
	return BusMessage{Type: BusLeaderPing, RequesterID: requesterID}
}

// NewLeader builds a NewLeader{leaderId} message (spec.md §4.1).
func NewLeader(leaderID string) BusMessage {
	return BusMessage{Type: BusNewLeader, LeaderID: leaderID}
}

// LeaderReady builds a LeaderReady{leaderId} message (spec.md §4.2, §4.3).
func LeaderReady(leaderID string) BusMessage {
	return BusMessage{Type: BusLeaderReady, LeaderID: leaderID}
}

// QueryRequest builds a QueryRequest{queryId, sql, params?} message (spec.md §4.2).
func QueryRequest(queryID, sql string, params json.RawMessage) BusMessage {
	return BusMessage{Type: BusQueryRequest, QueryID: queryID, SQL: sql, Params: params}
}

// QueryResponseOK builds a QueryResponse{queryId, result} message.
func QueryResponseOK(queryID, result string) BusMessage {
	return BusMessage{Type: BusQueryResponse, QueryID: queryID, Result: &result}
}

// QueryResponseErr builds a QueryResponse{queryId, error} message.
func QueryResponseErr(queryID, errMsg string) BusMessage {
	return BusMessage{Type: BusQueryResponse, QueryID: queryID, Error: &errMsg}
}

// Encode marshals m as a single line of JSON (no trailing newline).
func Encode(m BusMessage) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a single line of JSON into a BusMessage and validates its tag.
func Decode(line []byte) (BusMessage, error) {
	var m BusMessage
	if err := json.Unmarshal(line, &m); err != nil {
		return BusMessage{}, fmt.Errorf("messages: decode bus message: %w", err)
	}

	if err := m.Validate(); err != nil {
		return BusMessage{}, err
	}

	return m, nil
}
