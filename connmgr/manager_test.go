package connmgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	closed bool
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func TestManager_RetainOpensOnce(t *testing.T) {
	var opens int
	factory := func(uri, module string) (Conn, error) {
		opens++
		return &fakeConn{}, nil
	}
	m := NewManager(Config{Factory: factory})

	c1, err := m.Retain("ws://x", "mod")
	require.NoError(t, err)
	c2, err := m.Retain("ws://x", "mod")
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.Equal(t, 1, opens)
	assert.Equal(t, 2, m.RefCount("ws://x", "mod"))
}

func TestManager_DistinctKeysOpenSeparately(t *testing.T) {
	var opens int
	factory := func(uri, module string) (Conn, error) {
		opens++
		return &fakeConn{}, nil
	}
	m := NewManager(Config{Factory: factory})

	_, err := m.Retain("ws://x", "mod-a")
	require.NoError(t, err)
	_, err = m.Retain("ws://x", "mod-b")
	require.NoError(t, err)

	assert.Equal(t, 2, opens)
}

func TestManager_ReleaseToZeroClosesAfterDelay(t *testing.T) {
	conn := &fakeConn{}
	factory := func(uri, module string) (Conn, error) { return conn, nil }
	m := NewManager(Config{Factory: factory, ReleaseDelay: 20 * time.Millisecond})

	_, err := m.Retain("ws://x", "mod")
	require.NoError(t, err)
	m.Release("ws://x", "mod")

	assert.False(t, conn.closed)
	time.Sleep(50 * time.Millisecond)
	assert.True(t, conn.closed)
}

// TestManager_RetainCancelsPendingRelease models a UI remounting its
// subscribing component immediately after unmount (React StrictMode
// double-invoke, or any synchronous re-subscribe): the connection must
// survive, not get torn down and reopened.
func TestManager_RetainCancelsPendingRelease(t *testing.T) {
	var opens int
	factory := func(uri, module string) (Conn, error) {
		opens++
		return &fakeConn{}, nil
	}
	m := NewManager(Config{Factory: factory, ReleaseDelay: 30 * time.Millisecond})

	_, err := m.Retain("ws://x", "mod")
	require.NoError(t, err)
	m.Release("ws://x", "mod")

	_, err = m.Retain("ws://x", "mod")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, m.RefCount("ws://x", "mod"))
}

func TestManager_ZeroDelayClosesImmediately(t *testing.T) {
	conn := &fakeConn{}
	factory := func(uri, module string) (Conn, error) { return conn, nil }
	m := NewManager(Config{Factory: factory})

	_, err := m.Retain("ws://x", "mod")
	require.NoError(t, err)
	m.Release("ws://x", "mod")

	assert.True(t, conn.closed)
	assert.Equal(t, 0, m.RefCount("ws://x", "mod"))
}
