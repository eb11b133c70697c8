package table

import (
	"bytes"
	"sync"

	"github.com/replistream/client-go/bsatn"
	"github.com/replistream/client-go/internal/logging"
)

// OpKind distinguishes an insert from a delete within a batch of row
// operations applied atomically to one table.
type OpKind byte

const (
	OpInsert OpKind = iota
	OpDelete
)

// RowOp is one row-level operation from a server update batch.
type RowOp struct {
	Kind OpKind
	Row  bsatn.Value
}

// EventKind classifies a row-level effect of applying a batch, used to
// pick which observer callbacks (OnInsert/OnUpdate/OnDelete) to invoke.
type EventKind byte

const (
	EventInsert EventKind = iota
	EventUpdate
	EventDelete
)

// RowEvent is a single observable effect of ApplyOperations: a row
// becoming newly visible, a visible row's value changing, or a row
// becoming no longer visible. OldRow is only set for EventUpdate.
type RowEvent struct {
	Kind   EventKind
	Row    bsatn.Value
	OldRow bsatn.Value
}

// cachedRow is the multiset entry for one row identity: the row's current
// value plus how many outstanding server-side references justify its
// presence in the cache.
type cachedRow struct {
	row      bsatn.Value
	encoded  []byte
	refCount int
}

// Cache is a client-side replica of one server table: a refcounted
// multiset keyed by row identity (primary key when the table declares
// one, full row bytes otherwise), following the same generic
// map-plus-mutex shape as the teacher's Store[T], specialized here to the
// multiset-apply semantics a replicated table needs.
type Cache struct {
	mu     sync.RWMutex
	schema Schema
	rows   map[any]*cachedRow
	log    logging.Logger
}

// NewCache constructs an empty cache for schema.
func NewCache(schema Schema, log logging.Logger) *Cache {
	return &Cache{
		schema: schema,
		rows:   make(map[any]*cachedRow),
		log:    logging.Default(log),
	}
}

func (c *Cache) Schema() Schema { return c.schema }

// Len reports how many distinct rows are currently visible (refCount > 0).
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}

// Rows returns a snapshot of every currently visible row.
func (c *Cache) Rows() []bsatn.Value {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]bsatn.Value, 0, len(c.rows))
	for _, r := range c.rows {
		out = append(out, r.row)
	}
	return out
}

// Get returns the visible row for key, if any.
func (c *Cache) Get(key any) (bsatn.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.rows[key]
	if !ok {
		return bsatn.Value{}, false
	}
	return r.row, true
}

// ApplyOperations applies a batch of inserts and deletes atomically and
// returns the row-level events observers should be notified of.
//
// Within the batch, operations are first grouped by row identity. For
// each identity the inserts and deletes present are paired off:
//   - an insert paired with a delete of byte-identical row contents
//     cancels out entirely (a keep-alive, no refcount change, no event);
//   - an insert paired with a delete of *different* row contents is a
//     value update (refcount unchanged, one Update event using the new
//     bytes);
//   - any unpaired insert increments refCount by one, emitting an Insert
//     event only if the row was not previously visible (refCount 0 -> 1);
//   - any unpaired delete decrements refCount by one, emitting a Delete
//     event only when the row stops being visible (refCount 1 -> 0).
//
// A delete that would take refCount below zero is clamped to zero and
// logged at warn level rather than treated as an error: the server is
// the source of truth and a transient over-delete should not crash the
// client's view of the table.
func (c *Cache) ApplyOperations(ops []RowOp) ([]RowEvent, error) {
	type group struct {
		inserts [][]byte
		deletes [][]byte
		rowVal  map[string]bsatn.Value // encoded bytes -> decoded value, for dedup + lookup
	}

	groups := make(map[any]*group)
	order := make([]any, 0, len(ops))

	for _, op := range ops {
		key, encoded, err := c.schema.identity(op.Row)
		if err != nil {
			return nil, err
		}

		g, ok := groups[key]
		if !ok {
			g = &group{rowVal: make(map[string]bsatn.Value)}
			groups[key] = g
			order = append(order, key)
		}
		g.rowVal[string(encoded)] = op.Row

		switch op.Kind {
		case OpInsert:
			g.inserts = appendDeduped(g.inserts, encoded)
		case OpDelete:
			g.deletes = appendDeduped(g.deletes, encoded)
		}
	}

	var events []RowEvent

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range order {
		g := groups[key]
		existing := c.rows[key]

		pairs := len(g.inserts)
		if len(g.deletes) < pairs {
			pairs = len(g.deletes)
		}

		for i := 0; i < pairs; i++ {
			insB, delB := g.inserts[i], g.deletes[i]
			if bytes.Equal(insB, delB) {
				continue // keep-alive: cancels out, refCount and visibility unchanged
			}

			newRow := g.rowVal[string(insB)]
			oldRow := g.rowVal[string(delB)]

			if existing == nil || existing.refCount == 0 {
				// Nothing was visible for this identity, so an
				// insert+delete pair with different bytes has no
				// observable old state to update from; treat as a
				// fresh, currently-invisible entry instead of an update.
				// Not written to c.rows yet: it only becomes part of the
				// visible cache once an unpaired insert below raises its
				// refCount above zero.
				existing = &cachedRow{row: newRow, encoded: insB, refCount: 0}
				continue
			}

			events = append(events, RowEvent{Kind: EventUpdate, Row: newRow, OldRow: oldRow})
			existing.row = newRow
			existing.encoded = insB
		}

		for i := pairs; i < len(g.inserts); i++ {
			encoded := g.inserts[i]
			row := g.rowVal[string(encoded)]

			if existing == nil {
				existing = &cachedRow{row: row, encoded: encoded, refCount: 0}
			}
			wasVisible := existing.refCount > 0
			existing.refCount++
			existing.row = row
			existing.encoded = encoded
			if !wasVisible {
				c.rows[key] = existing
				events = append(events, RowEvent{Kind: EventInsert, Row: row})
			}
		}

		for i := pairs; i < len(g.deletes); i++ {
			if existing == nil {
				c.log.Warn("table: delete of row not present in cache", "table", c.schema.Name)
				continue
			}

			wasVisible := existing.refCount > 0
			if existing.refCount == 0 {
				c.log.Warn("table: refcount underflow clamped to zero", "table", c.schema.Name)
				continue
			}
			existing.refCount--
			if wasVisible && existing.refCount == 0 {
				events = append(events, RowEvent{Kind: EventDelete, Row: existing.row})
				delete(c.rows, key)
			}
		}
	}

	return events, nil
}

// appendDeduped appends encoded to list only if an identical entry is not
// already present, implementing the "repeated same-row-same-batch op"
// dedup rule: two identical Insert (or Delete) ops for the same row
// within one batch count once, since they cannot represent two distinct
// server-side references.
func appendDeduped(list [][]byte, encoded []byte) [][]byte {
	for _, existing := range list {
		if bytes.Equal(existing, encoded) {
			return list
		}
	}
	return append(list, encoded)
}
