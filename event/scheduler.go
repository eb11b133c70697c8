package event

// Queue accumulates callbacks that must run in a fixed order once a
// single incoming message has been fully applied: all row-level
// observers across every affected table before the reducer-resolution
// promise/callback for that same message, and all of a table's
// beforeDelete observers before its insert/update/delete callbacks. Every
// queued callback runs after the message's cache mutations have been
// applied. Queue enforces none of this by itself
// — it is just an ordered accumulator — the caller is responsible for
// enqueueing in the right sequence; Queue guarantees only that Drain runs
// them in that sequence and that a panic in one callback does not stop
// the rest from running.
type Queue struct {
	fns []func()
}

// Enqueue appends fn to the queue.
func (q *Queue) Enqueue(fn func()) {
	q.fns = append(q.fns, fn)
}

// Drain runs every queued callback in FIFO order and empties the queue.
// A callback that panics is recovered and does not prevent later
// callbacks in the same drain from running, matching the scheduler's
// job of isolating unrelated subscriptions from one misbehaving handler.
func (q *Queue) Drain() {
	fns := q.fns
	q.fns = nil

	for _, fn := range fns {
		runProtected(fn)
	}
}

func runProtected(fn func()) {
	defer func() { recover() }()
	fn()
}

// Len reports how many callbacks are currently queued.
func (q *Queue) Len() int { return len(q.fns) }
