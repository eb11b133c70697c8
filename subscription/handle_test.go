package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_PendingToActive(t *testing.T) {
	h := NewHandle(1)
	assert.Equal(t, StatePending, h.State())

	var applied bool
	h.OnApplied(func() { applied = true })

	require.NoError(t, h.MarkApplied(42))
	assert.Equal(t, StateActive, h.State())
	assert.True(t, applied)

	qid, ok := h.QueryID()
	assert.True(t, ok)
	assert.Equal(t, uint32(42), qid)
}

func TestHandle_ActiveToEnded_Unsubscribed(t *testing.T) {
	h := NewHandle(1)
	require.NoError(t, h.MarkApplied(1))

	var endedReason EndReason
	var gotEnd bool
	h.OnEnded(func(r EndReason, msg string) { gotEnd = true; endedReason = r })

	require.NoError(t, h.MarkUnsubscribed())
	assert.Equal(t, StateEnded, h.State())
	assert.True(t, gotEnd)
	assert.Equal(t, EndUnsubscribed, endedReason)
}

func TestHandle_PendingToEnded_Error(t *testing.T) {
	h := NewHandle(1)

	var gotErr string
	h.OnError(func(msg string) { gotErr = msg })

	require.NoError(t, h.MarkError("bad query"))
	assert.Equal(t, StateEnded, h.State())
	assert.Equal(t, "bad query", gotErr)
}

func TestHandle_DoubleApplyFails(t *testing.T) {
	h := NewHandle(1)
	require.NoError(t, h.MarkApplied(1))
	assert.ErrorIs(t, h.MarkApplied(2), ErrNotPending)
}

func TestHandle_DoubleEndFails(t *testing.T) {
	h := NewHandle(1)
	require.NoError(t, h.MarkApplied(1))
	require.NoError(t, h.MarkUnsubscribed())
	assert.ErrorIs(t, h.MarkUnsubscribed(), ErrAlreadyTerminal)
}

func TestLegacyHandle_Lifecycle(t *testing.T) {
	h := NewLegacyHandle()
	var applied bool
	h.OnApplied(func() { applied = true })

	require.NoError(t, h.MarkApplied())
	assert.True(t, applied)
	assert.Equal(t, StateActive, h.State())

	h.MarkEnded()
	assert.Equal(t, StateEnded, h.State())
}
