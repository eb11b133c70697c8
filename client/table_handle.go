package client

import (
	"github.com/replistream/client-go/bsatn"
	"github.com/replistream/client-go/event"
	"github.com/replistream/client-go/internal/logging"
	"github.com/replistream/client-go/table"
)

// TableOptions describes one generated table binding: its wire (canonical)
// name and the application-facing accessor name it is reachable under,
// which may differ from the canonical name.
type TableOptions struct {
	CanonicalName string
	AccessorName  string
	RowType       bsatn.Type
	PrimaryKey    string
}

// TableHandle is the `.db.<table>` surface: row count, iteration, the
// insert/update/delete observer registrations, and lookup by a
// unique-indexed column.
type TableHandle struct {
	canonicalName string
	accessorName  string
	cache         *table.Cache
	observers     *table.Observers
}

func newTableHandle(opts TableOptions, log logging.Logger) (*TableHandle, error) {
	schema, err := table.NewSchema(opts.CanonicalName, opts.RowType, opts.PrimaryKey)
	if err != nil {
		return nil, err
	}
	return &TableHandle{
		canonicalName: opts.CanonicalName,
		accessorName:  opts.AccessorName,
		cache:         table.NewCache(schema, log),
		observers:     table.NewObservers(),
	}, nil
}

func (h *TableHandle) CanonicalName() string { return h.canonicalName }
func (h *TableHandle) AccessorName() string  { return h.accessorName }

// Count returns the number of rows currently visible in the cache.
func (h *TableHandle) Count() int { return h.cache.Len() }

// Iter returns a snapshot of every row currently visible in the cache.
func (h *TableHandle) Iter() []bsatn.Value { return h.cache.Rows() }

// Find scans the cache for a row whose column field equals value,
// comparing via bsatn.IntoMapKey so the comparison matches how the cache
// itself identifies rows. Intended for columns declared unique by the
// schema; with a non-unique column this returns the first match found,
// in no particular order.
func (h *TableHandle) Find(column string, value bsatn.Value) (bsatn.Value, bool) {
	schema := h.cache.Schema()
	idx := schema.RowType.FieldIndex(column)
	if idx < 0 {
		return bsatn.Value{}, false
	}
	fieldType := schema.RowType.Elements[idx].Type

	wantKey, err := bsatn.IntoMapKey(fieldType, value)
	if err != nil {
		return bsatn.Value{}, false
	}

	for _, row := range h.cache.Rows() {
		field, err := row.Field(schema.RowType, column)
		if err != nil {
			continue
		}
		key, err := bsatn.IntoMapKey(fieldType, field)
		if err != nil {
			continue
		}
		if key == wantKey {
			return row, true
		}
	}
	return bsatn.Value{}, false
}

func (h *TableHandle) OnInsert(fn func(bsatn.Value)) event.Disposer       { return h.observers.OnInsert(fn) }
func (h *TableHandle) OnDelete(fn func(bsatn.Value)) event.Disposer       { return h.observers.OnDelete(fn) }
func (h *TableHandle) OnBeforeDelete(fn func(bsatn.Value)) event.Disposer { return h.observers.OnBeforeDelete(fn) }
func (h *TableHandle) OnUpdate(fn func(old, new bsatn.Value)) event.Disposer {
	return h.observers.OnUpdate(fn)
}

// apply runs ops through the underlying cache and enqueues the resulting
// observer callbacks on q, in the order table.Observers.Dispatch defines.
func (h *TableHandle) apply(q *event.Queue, ops []table.RowOp) error {
	events, err := h.cache.ApplyOperations(ops)
	if err != nil {
		return err
	}
	h.observers.Dispatch(q, events)
	return nil
}
