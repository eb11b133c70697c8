package client

import (
	"github.com/replistream/client-go/protocol"
	"github.com/replistream/client-go/subscription"
)

// SubscriptionBuilder accumulates onApplied/onError callbacks for a
// subscription before it is issued with Subscribe.
type SubscriptionBuilder struct {
	conn      *Connection
	onApplied []func()
	onError   []func(string)
}

// OnApplied registers a callback fired once, when this subscription's
// initial rows have been applied.
func (b *SubscriptionBuilder) OnApplied(fn func()) *SubscriptionBuilder {
	b.onApplied = append(b.onApplied, fn)
	return b
}

// OnError registers a callback fired once, if the server rejects this
// subscription or later tears it down with an error.
func (b *SubscriptionBuilder) OnError(fn func(string)) *SubscriptionBuilder {
	b.onError = append(b.onError, fn)
	return b
}

// Subscribe issues sql as a new query subscription and returns its
// handle immediately, in StatePending; OnApplied/OnError fire once the
// server responds.
func (b *SubscriptionBuilder) Subscribe(sql string) (*subscription.Handle, error) {
	if b.conn.isClosed() {
		return nil, ErrNotConnected
	}

	requestID := b.conn.ids.NextU32()
	handle := subscription.NewHandle(requestID)
	for _, fn := range b.onApplied {
		handle.OnApplied(fn)
	}
	for _, fn := range b.onError {
		handle.OnError(fn)
	}

	b.conn.registerPendingSubscribe(requestID, handle)

	err := b.conn.send(protocol.ClientMessage{
		Subscribe: &protocol.SubscribeSingle{QueryString: sql, RequestID: requestID},
	})
	if err != nil {
		b.conn.dropPendingSubscribe(requestID)
		return nil, err
	}
	return handle, nil
}

// SubscribeToAllTables issues the legacy whole-database subscription,
// which the server confirms with an InitialSubscription rather than the
// per-query SubscribeApplied/SubscriptionError pair and never assigns a
// query id to.
func (c *Connection) SubscribeToAllTables() (*subscription.LegacyHandle, error) {
	if c.isClosed() {
		return nil, ErrNotConnected
	}

	requestID := c.ids.NextU32()
	handle := subscription.NewLegacyHandle()
	c.registerPendingLegacy(requestID, handle)

	err := c.send(protocol.ClientMessage{
		Subscribe: &protocol.SubscribeSingle{QueryString: "SELECT * FROM *", RequestID: requestID},
	})
	if err != nil {
		c.dropPendingLegacy(requestID)
		return nil, err
	}
	return handle, nil
}

// Unsubscribe tears down an active subscription.
func (c *Connection) Unsubscribe(handle *subscription.Handle) error {
	if c.isClosed() {
		return ErrNotConnected
	}
	queryID, ok := handle.QueryID()
	if !ok {
		return ErrNotYetApplied
	}

	requestID := c.ids.NextU32()
	c.registerPendingUnsubscribe(requestID, handle)

	return c.send(protocol.ClientMessage{
		Unsubscribe: &protocol.UnsubscribeSingle{QueryID: queryID, RequestID: requestID},
	})
}
