package protocol

// TableUpdate carries one table's inserted and deleted rows within a
// single update batch.
type TableUpdate struct {
	TableID   uint32
	TableName string
	Inserts   RowList
	Deletes   RowList
}

// DatabaseUpdate is an ordered set of per-table row deltas.
type DatabaseUpdate struct {
	Tables []TableUpdate
}

// QueryUpdate scopes a DatabaseUpdate to the subscription query that
// produced it, per spec §5's querySets shape on TransactionUpdate.
type QueryUpdate struct {
	QueryID uint32
	Update  DatabaseUpdate
}

// ServerMessage is the sum type of every message the server may send.
// Exactly one of the embedded pointer fields is non-nil.
type ServerMessage struct {
	InitialConnection      *InitialConnection
	InitialSubscription    *InitialSubscription
	TransactionUpdate      *TransactionUpdate
	TransactionUpdateLight *TransactionUpdateLight
	SubscribeApplied       *SubscribeApplied
	UnsubscribeApplied     *UnsubscribeApplied
	SubscriptionError      *SubscriptionError
	ReducerResult          *ReducerResult
	OneOffQueryResponse    *OneOffQueryResponse
}

// InitialConnection is sent once, immediately after the WebSocket upgrade
// completes, carrying the connection id the server assigned.
type InitialConnection struct {
	ConnectionID [16]byte
}

// InitialSubscription is the first full snapshot for a newly-applied
// subscription set, sent before any TransactionUpdate can reference it.
type InitialSubscription struct {
	Update    DatabaseUpdate
	RequestID uint32
}

// TransactionUpdateStatus classifies whether a reducer's transaction
// committed, or failed and why.
type TransactionUpdateStatus byte

const (
	StatusCommitted TransactionUpdateStatus = iota
	StatusFailed
	StatusOutOfEnergy
)

// TransactionUpdate reports the outcome of a reducer call (the caller's
// own, or another client's broadcast to this connection) plus the set of
// per-query row deltas it produced for this connection's subscriptions.
type TransactionUpdate struct {
	Status              TransactionUpdateStatus
	FailureMessage      string
	ReducerName         string
	ReducerRequestID    uint64
	Timestamp           int64
	EnergyUsed          uint64
	HostExecutionMicros uint64
	QuerySets           []QueryUpdate
	CallerConnectionID  *[16]byte
}

// TransactionUpdateLight carries row deltas not attributable to any
// caller-visible reducer, sent instead of TransactionUpdate when the
// connection opted into light mode.
type TransactionUpdateLight struct {
	QuerySets []QueryUpdate
}

// ReducerResultStatus classifies the direct, request-scoped response to a
// reducer call this client initiated.
type ReducerResultStatus byte

const (
	ReducerOk ReducerResultStatus = iota
	ReducerErr
	ReducerInternalError
)

// ReducerResult is the direct response to a CallReducer this connection
// sent, keyed by RequestID rather than delivered only via a broadcast
// TransactionUpdate. On ReducerOk, RetValue is the reducer's encoded
// return value and QuerySets carries the row deltas it produced; on
// ReducerErr, ErrPayload is the server's decoded failure text; on
// ReducerInternalError, InternalMessage describes the host-side failure.
type ReducerResult struct {
	RequestID       uint64
	Timestamp       int64
	Status          ReducerResultStatus
	RetValue        []byte
	QuerySets       []QueryUpdate
	ErrPayload      string
	InternalMessage string
}

// OneOffQueryResponse answers a synchronous ad-hoc OneOffQuery, matched by
// MessageID. Error is non-empty when the query failed; Tables carries the
// result rows otherwise.
type OneOffQueryResponse struct {
	MessageID []byte
	Tables    []TableUpdate
	Error     string
}

// SubscribeApplied confirms a single subscribe request took effect and
// carries its initial matching rows.
type SubscribeApplied struct {
	QueryID   uint32
	RequestID uint32
	TableID   uint32
	TableName string
	Rows      RowList
}

// UnsubscribeApplied confirms a subscription was torn down; no further
// updates for QueryID will arrive after this message.
type UnsubscribeApplied struct {
	QueryID   uint32
	RequestID uint32
}

// SubscriptionError reports that a subscribe or unsubscribe request
// failed. QueryID is nil when the server could not even assign one (e.g.
// a malformed query string).
type SubscriptionError struct {
	QueryID   *uint32
	RequestID uint32
	Error     string
}

// ClientMessage is the sum type of every message this client may send.
type ClientMessage struct {
	Subscribe   *SubscribeSingle
	Unsubscribe *UnsubscribeSingle
	CallReducer *CallReducer
	OneOffQuery *OneOffQuery
}

// SubscribeSingle requests a new query subscription.
type SubscribeSingle struct {
	QueryString string
	RequestID   uint32
	QueryID     uint32
}

// UnsubscribeSingle tears down an existing query subscription.
type UnsubscribeSingle struct {
	QueryID   uint32
	RequestID uint32
}

// CallReducer invokes a reducer by name with BSATN-encoded arguments.
type CallReducer struct {
	ReducerName string
	Args        []byte
	RequestID   uint64
	Flags       uint8
}

// OneOffQuery runs a single SQL query outside any subscription, answered
// by a matching OneOffQueryResponse carrying the same MessageID.
type OneOffQuery struct {
	MessageID   []byte
	QueryString string
}
