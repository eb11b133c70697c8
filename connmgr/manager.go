// Package connmgr shares one logical connection across every caller that
// asks for the same (uri, moduleName) pair, so that e.g. a UI remounting
// a component tree does not tear down and reopen a WebSocket on every
// render pass.
package connmgr

import (
	"sync"
	"time"

	"github.com/replistream/client-go/internal/logging"
)

// Factory opens a new underlying connection for key. Manager calls it at
// most once per key while that key has at least one outstanding Retain.
type Factory func(uri, moduleName string) (Conn, error)

// Conn is the minimal lifecycle surface connmgr needs from whatever
// transport.Connection (or a test double) it is holding a reference to.
type Conn interface {
	Close() error
}

// entry is one shared connection's refcount bookkeeping.
type entry struct {
	conn     Conn
	refCount int
	// releaseTimer is non-nil while a deferred release is pending; a
	// Retain arriving before it fires cancels it instead of letting the
	// connection close and immediately reopen.
	releaseTimer *time.Timer
}

// Manager deduplicates connections by "${uri}::${moduleName}".
type Manager struct {
	mu            sync.Mutex
	entries       map[string]*entry
	factory       Factory
	releaseDelay  time.Duration
	log           logging.Logger
}

// Config configures a Manager. ReleaseDelay is how long a connection
// with zero retainers lingers before actually closing, giving a
// re-mounting caller time to Retain it again. Zero means close
// immediately.
type Config struct {
	Factory      Factory
	ReleaseDelay time.Duration
	Logger       logging.Logger
}

// DefaultConfig returns a Config with a short release delay suited to
// surviving a synchronous unmount/remount cycle.
func DefaultConfig(factory Factory) Config {
	return Config{Factory: factory, ReleaseDelay: 50 * time.Millisecond}
}

// NewManager constructs a Manager from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{
		entries:      make(map[string]*entry),
		factory:      cfg.Factory,
		releaseDelay: cfg.ReleaseDelay,
		log:          logging.Default(cfg.Logger),
	}
}

func key(uri, moduleName string) string { return uri + "::" + moduleName }

// Retain returns the shared connection for (uri, moduleName), opening one
// via Factory if none exists yet, and increments its refcount. Each
// successful Retain must be matched by exactly one Release.
func (m *Manager) Retain(uri, moduleName string) (Conn, error) {
	k := key(uri, moduleName)

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[k]; ok {
		if e.releaseTimer != nil {
			e.releaseTimer.Stop()
			e.releaseTimer = nil
		}
		e.refCount++
		return e.conn, nil
	}

	conn, err := m.factory(uri, moduleName)
	if err != nil {
		return nil, err
	}

	m.entries[k] = &entry{conn: conn, refCount: 1}
	return conn, nil
}

// Release decrements the refcount for (uri, moduleName). When it reaches
// zero, the connection is closed after ReleaseDelay unless a Retain
// arrives first.
func (m *Manager) Release(uri, moduleName string) {
	k := key(uri, moduleName)

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[k]
	if !ok {
		return
	}

	e.refCount--
	if e.refCount > 0 {
		return
	}

	if m.releaseDelay <= 0 {
		delete(m.entries, k)
		if err := e.conn.Close(); err != nil {
			m.log.Warn("connmgr: error closing released connection", "key", k, "err", err)
		}
		return
	}

	e.releaseTimer = time.AfterFunc(m.releaseDelay, func() {
		m.finalizeRelease(k)
	})
}

func (m *Manager) finalizeRelease(k string) {
	m.mu.Lock()
	e, ok := m.entries[k]
	if !ok || e.refCount > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.entries, k)
	m.mu.Unlock()

	if err := e.conn.Close(); err != nil {
		m.log.Warn("connmgr: error closing released connection", "key", k, "err", err)
	}
}

// RefCount reports the current retainer count for (uri, moduleName), or
// 0 if there is no such entry. Intended for tests.
func (m *Manager) RefCount(uri, moduleName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key(uri, moduleName)]
	if !ok {
		return 0
	}
	return e.refCount
}
