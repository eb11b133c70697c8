package reducer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_RegisterAndResolve(t *testing.T) {
	tr := NewTracker()
	tr.Register(1, "send_message")

	var called bool
	tr.OnDone(1, func(o Outcome) {
		called = true
		assert.NoError(t, o.Err)
	})

	require.NoError(t, tr.Resolve(1, Outcome{}))
	assert.True(t, called)
	assert.Equal(t, 0, tr.Len())
}

func TestTracker_ResolveCarriesRetValue(t *testing.T) {
	tr := NewTracker()
	tr.Register(1, "add_player")

	var got []byte
	tr.OnDone(1, func(o Outcome) { got = o.RetValue })

	require.NoError(t, tr.Resolve(1, Outcome{RetValue: []byte{1, 2, 3}}))
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestTracker_ResolveUnknownFails(t *testing.T) {
	tr := NewTracker()
	err := tr.Resolve(999, Outcome{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTracker_ResolveWithSenderError(t *testing.T) {
	tr := NewTracker()
	tr.Register(1, "withdraw")

	var gotErr error
	tr.OnDone(1, func(o Outcome) { gotErr = o.Err })

	senderErr := &SenderError{ReducerName: "withdraw", Message: "insufficient funds"}
	require.NoError(t, tr.Resolve(1, Outcome{Err: senderErr}))

	var se *SenderError
	require.ErrorAs(t, gotErr, &se)
	assert.Equal(t, "insufficient funds", se.Message)
}

func TestTracker_CallbackOrderingAgainstExternalQueue(t *testing.T) {
	// Simulates the contract: the caller drains row callbacks via its own
	// queue before calling Resolve, so Resolve's callback always observes
	// a fully-updated cache.
	tr := NewTracker()
	tr.Register(1, "r")

	var order []string
	rowCallbackRan := func() { order = append(order, "row") }
	tr.OnDone(1, func(Outcome) { order = append(order, "resolve") })

	rowCallbackRan()
	require.NoError(t, tr.Resolve(1, Outcome{}))

	assert.Equal(t, []string{"row", "resolve"}, order)
}

func TestTracker_WaitBlocksUntilResolve(t *testing.T) {
	tr := NewTracker()
	tr.Register(1, "r")

	done := make(chan Outcome, 1)
	go func() {
		o, ok := tr.Wait(1)
		require.True(t, ok)
		done <- o
	}()

	require.NoError(t, tr.Resolve(1, Outcome{Err: errors.New("boom")}))
	o := <-done
	assert.EqualError(t, o.Err, "boom")
}

func TestTracker_RejectAllSettlesEveryInFlightCall(t *testing.T) {
	tr := NewTracker()
	tr.Register(1, "a")
	tr.Register(2, "b")

	var gotA, gotB error
	tr.OnDone(1, func(o Outcome) { gotA = o.Err })
	tr.OnDone(2, func(o Outcome) { gotB = o.Err })

	boom := errors.New("connection closed")
	tr.RejectAll(boom)

	assert.ErrorIs(t, gotA, boom)
	assert.ErrorIs(t, gotB, boom)
	assert.Equal(t, 0, tr.Len())

	// Already-settled calls are untouched by a second RejectAll.
	tr.RejectAll(errors.New("ignored"))
}

func TestTracker_ReducerName(t *testing.T) {
	tr := NewTracker()
	tr.Register(5, "tick")
	name, ok := tr.ReducerName(5)
	assert.True(t, ok)
	assert.Equal(t, "tick", name)

	_, ok = tr.ReducerName(6)
	assert.False(t, ok)
}
