package subscription

import "sync"

// LegacyHandle tracks the older whole-database subscribe-all request,
// which the server confirms with an InitialSubscription carrying no
// per-query id and ends only when the connection itself closes — there
// is no UnsubscribeApplied/SubscriptionError pair for it.
type LegacyHandle struct {
	mu     sync.Mutex
	state  State
	onceFn []func()
}

// NewLegacyHandle returns a Pending legacy handle.
func NewLegacyHandle() *LegacyHandle { return &LegacyHandle{state: StatePending} }

func (h *LegacyHandle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// MarkApplied transitions Pending -> Active on receipt of the initial
// subscription snapshot.
func (h *LegacyHandle) MarkApplied() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StatePending {
		return ErrNotPending
	}
	h.state = StateActive
	for _, fn := range h.onceFn {
		fn()
	}
	return nil
}

// MarkEnded transitions to Ended, called when the underlying connection
// closes.
func (h *LegacyHandle) MarkEnded() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = StateEnded
}

// OnApplied registers a callback fired once when the legacy subscription
// receives its initial snapshot.
func (h *LegacyHandle) OnApplied(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StatePending {
		h.onceFn = append(h.onceFn, fn)
	}
}
