package messages

import "encoding/json"

// ExecuteQuery is the Host -> Coordinator message from spec.md §6.1.
// RequestID is never 0 (spec.md §3's wrap-safe counter rule).
type ExecuteQuery struct {
	RequestID uint32          `json:"requestId"`
	SQL       string          `json:"sql"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// ErrorKind distinguishes a retryable "not ready yet" condition from every
// other error, per spec.md §6.1 and §7.
type ErrorKind string

// The two error kinds the host-facing QueryResult payload can carry.
const (
	ErrorKindInitializationPending ErrorKind = "INITIALIZATION_PENDING"
	ErrorKindGeneric               ErrorKind = "generic"
)

// StructuredError is the QueryResult.error payload shape from spec.md §6.1.
type StructuredError struct {
	Type    ErrorKind `json:"type"`
	Message string    `json:"message"`
}

// HostTag identifies which variant of HostMessage is populated.
type HostTag string

// The three Coordinator -> Host message tags from spec.md §6.1.
const (
	HostWorkerReady HostTag = "WorkerReady"
	HostWorkerError HostTag = "WorkerError"
	HostQueryResult HostTag = "QueryResult"
)

// HostMessage is the closed sum type the coordinator emits to its host
// handle over the in-process channel (spec.md §6.1).
type HostMessage struct {
	Type      HostTag          `json:"type"`
	Error     string           `json:"error,omitempty"`
	RequestID uint32           `json:"requestId,omitempty"`
	Result    *string          `json:"result,omitempty"`
	QueryErr  *StructuredError `json:"queryError,omitempty"`
}

// WorkerReadyMsg builds a host-bound WorkerReady{} message.
func WorkerReadyMsg() HostMessage {
	return HostMessage{Type: HostWorkerReady}
}

// WorkerErrorMsg builds a host-bound WorkerError{error} message.
func WorkerErrorMsg(reason string) HostMessage {
	return HostMessage{Type: HostWorkerError, Error: reason}
}

// QueryResultOK builds a host-bound QueryResult carrying a successful result.
func QueryResultOK(requestID uint32, result string) HostMessage {
	return HostMessage{Type: HostQueryResult, RequestID: requestID, Result: &result}
}

// QueryResultErr builds a host-bound QueryResult carrying a structured error.
func QueryResultErr(requestID uint32, kind ErrorKind, message string) HostMessage {
	return HostMessage{
		Type:      HostQueryResult,
		RequestID: requestID,
		QueryErr:  &StructuredError{Type: kind, Message: message},
	}
}
