// Package client wires the wire codec, frame pipeline, table cache,
// subscription and reducer state machines, callback scheduler, and
// transport into the single connection object applications hold: the
// generated `.db.<table>` / `.reducers.<name>` surface is a thin wrapper
// constructed at Build time, not code generation.
package client

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/replistream/client-go/bsatn"
	"github.com/replistream/client-go/event"
	"github.com/replistream/client-go/internal/logging"
	"github.com/replistream/client-go/protocol"
	"github.com/replistream/client-go/reducer"
	"github.com/replistream/client-go/stats"
	"github.com/replistream/client-go/subscription"
	"github.com/replistream/client-go/table"
	"github.com/replistream/client-go/transport"
)

// Connection is the live connection to one module: the single
// `.db`/`.reducers`/`.subscriptionBuilder` surface an application holds
// after Builder.Build succeeds.
type Connection struct {
	log logging.Logger
	t   *transport.Connection
	ids stats.IDAllocator

	closed atomic.Bool

	mu               sync.Mutex
	tables           map[string]*TableHandle // keyed by both canonical and accessor name
	pendingSubscribe map[uint32]*subscription.Handle
	pendingUnsub     map[uint32]*subscription.Handle
	pendingLegacy    map[uint32]*subscription.LegacyHandle
	byQueryID        map[uint32]*subscription.Handle
	reducerCallbacks map[string]*event.Registry[func(error)]
	pendingOneOff    map[string]chan *protocol.OneOffQueryResponse

	tracker *reducer.Tracker

	onConnect      []func()
	onConnectError []func(error)
	onDisconnect   []func(error)
}

func newConnection(t *transport.Connection, log logging.Logger) *Connection {
	return &Connection{
		log:              log,
		t:                t,
		tables:           make(map[string]*TableHandle),
		pendingSubscribe: make(map[uint32]*subscription.Handle),
		pendingUnsub:     make(map[uint32]*subscription.Handle),
		pendingLegacy:    make(map[uint32]*subscription.LegacyHandle),
		byQueryID:        make(map[uint32]*subscription.Handle),
		reducerCallbacks: make(map[string]*event.Registry[func(error)]),
		pendingOneOff:    make(map[string]chan *protocol.OneOffQueryResponse),
		tracker:          reducer.NewTracker(),
	}
}

// RegisterTable declares a table this connection should cache, under
// both its canonical (wire) and accessor names, per the dual-name lookup
// rule: a delta tagged with the canonical name must still reach handlers
// registered through the accessor name.
func (c *Connection) RegisterTable(opts TableOptions) (*TableHandle, error) {
	h, err := newTableHandle(opts, c.log)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[opts.CanonicalName] = h
	if opts.AccessorName != "" && opts.AccessorName != opts.CanonicalName {
		c.tables[opts.AccessorName] = h
	}
	return h, nil
}

// Table looks up a previously registered table by either its canonical
// or accessor name.
func (c *Connection) Table(name string) (*TableHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.tables[name]
	return h, ok
}

// SubscriptionBuilder starts a new per-query subscription request.
func (c *Connection) SubscriptionBuilder() *SubscriptionBuilder {
	return &SubscriptionBuilder{conn: c}
}

// OnReducer registers a callback invoked every time a TransactionUpdate
// for the named reducer resolves, whether this client initiated the call
// or another client's invocation was broadcast to it. The callback
// receives the failure (nil on success) and fires after that update's
// row callbacks have already run.
func (c *Connection) OnReducer(name string, fn func(error)) event.Disposer {
	c.mu.Lock()
	reg, ok := c.reducerCallbacks[name]
	if !ok {
		reg = event.NewRegistry[func(error)]()
		c.reducerCallbacks[name] = reg
	}
	c.mu.Unlock()
	return reg.Add(fn)
}

// ReducerCall is the pending result of a CallReducer invocation.
type ReducerCall struct {
	requestID uint64
	done      chan struct{} // closed once outcome is set
	outcome   reducer.Outcome
}

// Wait blocks until the server resolves this reducer call and returns its
// encoded return value. RetValue is only meaningful on success; a failed
// call returns a nil slice alongside its error.
func (r *ReducerCall) Wait() ([]byte, error) {
	<-r.done
	return r.outcome.RetValue, r.outcome.Err
}

// CallReducer invokes a reducer by name with its pre-encoded BSATN
// arguments and returns a future for its outcome. The row deltas the
// reducer produces are delivered to table observers before the future
// resolves, per the reducer-call-ordering contract.
func (c *Connection) CallReducer(name string, args []byte) (*ReducerCall, error) {
	if c.isClosed() {
		return nil, ErrNotConnected
	}

	requestID := c.ids.Next()
	c.tracker.Register(requestID, name)
	call := &ReducerCall{requestID: requestID, done: make(chan struct{})}
	c.tracker.OnDone(requestID, func(o reducer.Outcome) {
		call.outcome = o
		close(call.done)
	})

	if err := c.send(protocol.ClientMessage{
		CallReducer: &protocol.CallReducer{ReducerName: name, Args: args, RequestID: requestID},
	}); err != nil {
		c.tracker.Resolve(requestID, reducer.Outcome{Err: &reducer.InternalError{Err: err}})
		return nil, err
	}

	return call, nil
}

// OneOffQuery runs a synchronous ad-hoc SQL query outside any subscription
// and blocks for its result, matched to the request by a random message id.
func (c *Connection) OneOffQuery(sql string) ([]protocol.TableUpdate, error) {
	if c.isClosed() {
		return nil, ErrNotConnected
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("client: generating one-off query id: %w", err)
	}
	messageID := id[:]
	ch := make(chan *protocol.OneOffQueryResponse, 1)

	c.mu.Lock()
	c.pendingOneOff[string(messageID)] = ch
	c.mu.Unlock()

	if err := c.send(protocol.ClientMessage{OneOffQuery: &protocol.OneOffQuery{MessageID: messageID, QueryString: sql}}); err != nil {
		c.mu.Lock()
		delete(c.pendingOneOff, string(messageID))
		c.mu.Unlock()
		return nil, err
	}

	resp := <-ch
	if resp.Error != "" {
		return nil, fmt.Errorf("client: one-off query failed: %s", resp.Error)
	}
	return resp.Tables, nil
}

// Disconnect is terminal: it closes the transport, rejects every
// in-flight reducer call, and ends every active subscription with an
// error. The table caches are not cleared: their rows stay readable
// through the table handles. Calling it more than once is a no-op.
func (c *Connection) Disconnect() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if c.t != nil {
		err = c.t.Close()
	}
	c.teardown(&ConnectionError{Err: fmt.Errorf("client: disconnected")})
	return err
}

func (c *Connection) isClosed() bool { return c.closed.Load() }

func (c *Connection) send(msg protocol.ClientMessage) error {
	if c.isClosed() || c.t == nil {
		return ErrNotConnected
	}
	return c.t.Send(msg)
}

func (c *Connection) registerPendingSubscribe(requestID uint32, h *subscription.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingSubscribe[requestID] = h
}

func (c *Connection) dropPendingSubscribe(requestID uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pendingSubscribe, requestID)
}

func (c *Connection) registerPendingUnsubscribe(requestID uint32, h *subscription.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingUnsub[requestID] = h
}

func (c *Connection) registerPendingLegacy(requestID uint32, h *subscription.LegacyHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingLegacy[requestID] = h
}

func (c *Connection) dropPendingLegacy(requestID uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pendingLegacy, requestID)
}

// teardown runs the Disconnect-time cleanup shared with an unexpected
// transport close: reject every in-flight reducer call and end every
// active subscription with cause.
func (c *Connection) teardown(cause error) {
	c.mu.Lock()
	pendingSub := c.pendingSubscribe
	c.pendingSubscribe = make(map[uint32]*subscription.Handle)
	byQuery := c.byQueryID
	c.byQueryID = make(map[uint32]*subscription.Handle)
	legacy := c.pendingLegacy
	c.pendingLegacy = make(map[uint32]*subscription.LegacyHandle)
	oneOff := c.pendingOneOff
	c.pendingOneOff = make(map[string]chan *protocol.OneOffQueryResponse)
	onDisconnect := c.onDisconnect
	c.mu.Unlock()

	for _, h := range pendingSub {
		h.MarkError(cause.Error())
	}
	for _, h := range byQuery {
		h.MarkError(cause.Error())
	}
	for _, h := range legacy {
		h.MarkEnded()
	}
	for _, ch := range oneOff {
		ch <- &protocol.OneOffQueryResponse{Error: cause.Error()}
	}

	c.tracker.RejectAll(&reducer.InternalError{Err: cause})

	for _, fn := range onDisconnect {
		fn(cause)
	}
}

// HandleMessage implements transport.Sink, dispatching one decoded
// server message to the right table caches, subscription handles, and
// reducer tracker, then draining the resulting callback queue. The
// receive loop calls this from a single goroutine, satisfying the
// single-threaded dispatch requirement without an explicit lock around
// the dispatch itself.
func (c *Connection) HandleMessage(msg protocol.ServerMessage) {
	var q event.Queue

	switch {
	case msg.InitialConnection != nil:
		for _, fn := range c.onConnect {
			fn()
		}

	case msg.InitialSubscription != nil:
		c.handleInitialSubscription(&q, msg.InitialSubscription)

	case msg.SubscribeApplied != nil:
		c.handleSubscribeApplied(&q, msg.SubscribeApplied)

	case msg.UnsubscribeApplied != nil:
		c.handleUnsubscribeApplied(msg.UnsubscribeApplied)

	case msg.SubscriptionError != nil:
		c.handleSubscriptionError(msg.SubscriptionError)

	case msg.TransactionUpdate != nil:
		c.handleTransactionUpdate(&q, msg.TransactionUpdate)

	case msg.TransactionUpdateLight != nil:
		for _, qs := range msg.TransactionUpdateLight.QuerySets {
			c.applyDatabaseUpdate(&q, qs.Update)
		}

	case msg.ReducerResult != nil:
		c.handleReducerResult(&q, msg.ReducerResult)

	case msg.OneOffQueryResponse != nil:
		c.handleOneOffQueryResponse(msg.OneOffQueryResponse)
	}

	q.Drain()
}

// HandleClose implements transport.Sink for an unexpected transport
// failure: the same teardown Disconnect performs, but the cause is
// attributed to the connection rather than caller intent.
func (c *Connection) HandleClose(err error) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	cause := &ConnectionError{Err: err}
	for _, fn := range c.onConnectError {
		fn(cause)
	}
	c.teardown(cause)
}

func (c *Connection) handleInitialSubscription(q *event.Queue, msg *protocol.InitialSubscription) {
	c.mu.Lock()
	legacy, ok := c.pendingLegacy[msg.RequestID]
	if ok {
		delete(c.pendingLegacy, msg.RequestID)
	}
	c.mu.Unlock()

	for _, t := range msg.Update.Tables {
		if len(t.Deletes.RowsData) > 0 {
			c.log.Warn("client: InitialSubscription carries deletes; applying them anyway", "table", t.TableName)
		}
	}
	c.applyDatabaseUpdate(q, msg.Update)

	if ok {
		q.Enqueue(func() { legacy.MarkApplied() })
	} else {
		c.log.Warn("client: InitialSubscription for unknown request id", "requestId", msg.RequestID)
	}
}

func (c *Connection) handleSubscribeApplied(q *event.Queue, msg *protocol.SubscribeApplied) {
	c.mu.Lock()
	h, ok := c.pendingSubscribe[msg.RequestID]
	if ok {
		delete(c.pendingSubscribe, msg.RequestID)
		c.byQueryID[msg.QueryID] = h
	}
	c.mu.Unlock()

	c.applyTableDelta(q, msg.TableName, msg.Rows, protocol.RowList{})

	if ok {
		q.Enqueue(func() { h.MarkApplied(msg.QueryID) })
	} else {
		c.log.Warn("client: SubscribeApplied for unknown request id", "requestId", msg.RequestID)
	}
}

func (c *Connection) handleUnsubscribeApplied(msg *protocol.UnsubscribeApplied) {
	c.mu.Lock()
	h, ok := c.byQueryID[msg.QueryID]
	if ok {
		delete(c.byQueryID, msg.QueryID)
	}
	delete(c.pendingUnsub, msg.RequestID)
	c.mu.Unlock()

	if ok {
		h.MarkUnsubscribed()
	}
}

func (c *Connection) handleSubscriptionError(msg *protocol.SubscriptionError) {
	c.mu.Lock()
	var h *subscription.Handle
	var ok bool
	if msg.QueryID != nil {
		h, ok = c.byQueryID[*msg.QueryID]
		if ok {
			delete(c.byQueryID, *msg.QueryID)
		}
	}
	if !ok {
		h, ok = c.pendingSubscribe[msg.RequestID]
		if ok {
			delete(c.pendingSubscribe, msg.RequestID)
		}
	}
	c.mu.Unlock()

	if ok {
		h.MarkError(msg.Error)
		return
	}

	// Unattributed failure: per the error-handling policy, a
	// subscription error the client cannot pin to a handle tears down
	// the connection instead of being silently dropped.
	c.log.Error("client: unattributed subscription error, disconnecting", "err", msg.Error)
	c.Disconnect()
}

func (c *Connection) handleTransactionUpdate(q *event.Queue, msg *protocol.TransactionUpdate) {
	for _, qs := range msg.QuerySets {
		c.applyDatabaseUpdate(q, qs.Update)
	}

	var callErr error
	switch msg.Status {
	case protocol.StatusCommitted, protocol.StatusOutOfEnergy:
		callErr = nil // OutOfEnergy still resolves the call; it is not a sender-level rejection
	default:
		callErr = &reducer.SenderError{ReducerName: msg.ReducerName, Message: msg.FailureMessage}
	}

	c.mu.Lock()
	reg, hasListeners := c.reducerCallbacks[msg.ReducerName]
	c.mu.Unlock()
	if hasListeners {
		for _, fn := range reg.Snapshot() {
			fn := fn
			q.Enqueue(func() { fn(callErr) })
		}
	}

	if msg.ReducerRequestID == 0 {
		return // broadcast update with no caller-side reducer call to resolve
	}

	requestID, reducerName := msg.ReducerRequestID, msg.ReducerName
	q.Enqueue(func() {
		if err := c.tracker.Resolve(requestID, reducer.Outcome{Err: callErr}); err != nil {
			c.log.Warn("client: resolving unknown reducer call", "reducer", reducerName, "requestId", requestID)
		}
	})
}

// handleReducerResult settles the direct, request-scoped response to a
// CallReducer this connection sent. On ReducerOk the embedded row deltas
// are applied before the call's promise resolves, matching the ordering
// contract; ReducerErr and ReducerInternalError reject the promise and
// apply no row deltas at all.
func (c *Connection) handleReducerResult(q *event.Queue, msg *protocol.ReducerResult) {
	switch msg.Status {
	case protocol.ReducerOk:
		for _, qs := range msg.QuerySets {
			c.applyDatabaseUpdate(q, qs.Update)
		}
		requestID, retValue := msg.RequestID, msg.RetValue
		q.Enqueue(func() {
			if err := c.tracker.Resolve(requestID, reducer.Outcome{RetValue: retValue}); err != nil {
				c.log.Warn("client: resolving unknown reducer call", "requestId", requestID)
			}
		})

	case protocol.ReducerErr:
		requestID := msg.RequestID
		reducerName, _ := c.tracker.ReducerName(requestID)
		callErr := &reducer.SenderError{ReducerName: reducerName, Message: msg.ErrPayload}
		q.Enqueue(func() {
			if err := c.tracker.Resolve(requestID, reducer.Outcome{Err: callErr}); err != nil {
				c.log.Warn("client: resolving unknown reducer call", "requestId", requestID)
			}
		})

	case protocol.ReducerInternalError:
		requestID := msg.RequestID
		callErr := &reducer.InternalError{Err: errors.New(msg.InternalMessage)}
		q.Enqueue(func() {
			if err := c.tracker.Resolve(requestID, reducer.Outcome{Err: callErr}); err != nil {
				c.log.Warn("client: resolving unknown reducer call", "requestId", requestID)
			}
		})
	}
}

// handleOneOffQueryResponse delivers a synchronous ad-hoc query's result to
// whichever OneOffQuery call is blocked waiting on its message id.
func (c *Connection) handleOneOffQueryResponse(msg *protocol.OneOffQueryResponse) {
	c.mu.Lock()
	ch, ok := c.pendingOneOff[string(msg.MessageID)]
	if ok {
		delete(c.pendingOneOff, string(msg.MessageID))
	}
	c.mu.Unlock()

	if !ok {
		c.log.Warn("client: OneOffQueryResponse for unknown message id")
		return
	}
	ch <- msg
}

func (c *Connection) applyDatabaseUpdate(q *event.Queue, upd protocol.DatabaseUpdate) {
	for _, t := range upd.Tables {
		c.applyTableDelta(q, t.TableName, t.Inserts, t.Deletes)
	}
}

func (c *Connection) applyTableDelta(q *event.Queue, tableName string, inserts, deletes protocol.RowList) {
	h, ok := c.Table(tableName)
	if !ok {
		c.log.Warn("client: delta for unregistered table dropped", "table", tableName)
		return
	}

	ops, err := decodeRowOps(h.cache.Schema().RowType, inserts, deletes)
	if err != nil {
		c.log.Warn("client: dropping frame with undecodable row", "table", tableName, "err", err)
		return
	}

	if err := h.apply(q, ops); err != nil {
		c.log.Warn("client: applying row operations failed", "table", tableName, "err", err)
	}
}

func decodeRowOps(rowType bsatn.Type, inserts, deletes protocol.RowList) ([]table.RowOp, error) {
	var ops []table.RowOp

	insRows, err := inserts.Rows()
	if err != nil {
		return nil, err
	}
	for _, raw := range insRows {
		v, _, err := bsatn.Decode(rowType, raw)
		if err != nil {
			return nil, err
		}
		ops = append(ops, table.RowOp{Kind: table.OpInsert, Row: v})
	}

	delRows, err := deletes.Rows()
	if err != nil {
		return nil, err
	}
	for _, raw := range delRows {
		v, _, err := bsatn.Decode(rowType, raw)
		if err != nil {
			return nil, err
		}
		ops = append(ops, table.RowOp{Kind: table.OpDelete, Row: v})
	}

	return ops, nil
}
