package messages

import "encoding/json"

// DbRequest is the Coordinator -> DB-worker-child message (spec.md §4.3,
// "Forwarding to DB worker"), encoded as a single line of JSON over the
// child's stdin.
type DbRequest struct {
	RequestID uint32          `json:"requestId"`
	SQL       string          `json:"sql"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// DbReplyTag identifies which of the three DB-worker-child -> Coordinator
// message shapes spec.md §4.3 describes is populated.
type DbReplyTag string

// The three message shapes a DB-worker child emits over stdout.
const (
	DbReplyWorkerReady  DbReplyTag = "WorkerReady"
	DbReplyQueryResult  DbReplyTag = "QueryResult"
	DbReplyWorkerError  DbReplyTag = "worker-error"
)

// DbReply is the closed sum type a DB-worker child emits on stdout, one per
// line of JSON.
type DbReply struct {
	Type      DbReplyTag `json:"type"`
	RequestID uint32     `json:"requestId,omitempty"`
	Result    *string    `json:"result,omitempty"`
	Error     *string    `json:"error,omitempty"`
}

// DbWorkerReady builds the child's startup-complete reply.
func DbWorkerReady() DbReply {
	return DbReply{Type: DbReplyWorkerReady}
}

// DbQueryResultOK builds a successful QueryResult reply.
func DbQueryResultOK(requestID uint32, result string) DbReply {
	return DbReply{Type: DbReplyQueryResult, RequestID: requestID, Result: &result}
}

// DbQueryResultErr builds a failed QueryResult reply.
func DbQueryResultErr(requestID uint32, errMsg string) DbReply {
	return DbReply{Type: DbReplyQueryResult, RequestID: requestID, Error: &errMsg}
}

// DbWorkerError builds an unrecoverable worker-error reply (spec.md §4.3).
func DbWorkerError(errMsg string) DbReply {
	return DbReply{Type: DbReplyWorkerError, Error: &errMsg}
}
