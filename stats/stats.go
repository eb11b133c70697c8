// Package stats provides the connection-wide atomic counters and
// monotonic id allocators shared across transport, subscription, and
// reducer calls, following the teacher's network.Connection
// bytesRead/bytesWritten counter style.
package stats

import "sync/atomic"

// Counters tracks byte and message throughput for one connection.
type Counters struct {
	bytesSent        atomic.Uint64
	bytesReceived    atomic.Uint64
	messagesSent     atomic.Uint64
	messagesReceived atomic.Uint64
}

func (c *Counters) AddSent(bytes uint64) {
	c.bytesSent.Add(bytes)
	c.messagesSent.Add(1)
}

func (c *Counters) AddReceived(bytes uint64) {
	c.bytesReceived.Add(bytes)
	c.messagesReceived.Add(1)
}

func (c *Counters) BytesSent() uint64        { return c.bytesSent.Load() }
func (c *Counters) BytesReceived() uint64    { return c.bytesReceived.Load() }
func (c *Counters) MessagesSent() uint64     { return c.messagesSent.Load() }
func (c *Counters) MessagesReceived() uint64 { return c.messagesReceived.Load() }

// IDAllocator hands out strictly increasing ids starting at 1, used for
// reducer and subscription request ids alike. Zero is reserved
// as a sentinel "no id assigned" value across the module.
type IDAllocator struct {
	next atomic.Uint64
}

// Next returns the next id in sequence.
func (a *IDAllocator) Next() uint64 {
	return a.next.Add(1)
}

// NextU32 is a convenience for callers needing a 32-bit id (subscription
// request ids on the wire are u32); it wraps at 2^32 only after roughly
// four billion allocations, which no single connection's lifetime will
// reach.
func (a *IDAllocator) NextU32() uint32 {
	return uint32(a.Next())
}
