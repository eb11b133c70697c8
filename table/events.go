package table

import (
	"github.com/replistream/client-go/bsatn"
	"github.com/replistream/client-go/event"
)

// Observers holds the per-table callback registries a generated table
// accessor exposes as OnInsert/OnUpdate/OnDelete/OnBeforeDelete.
// All four fire after the cache has already been mutated: beforeDelete
// runs ahead of the batch's insert/update/delete callbacks and receives the
// deleted row, but the row is no longer in the cache when it runs.
type Observers struct {
	beforeDelete *event.Registry[func(bsatn.Value)]
	onInsert     *event.Registry[func(bsatn.Value)]
	onUpdate     *event.Registry[func(oldRow, newRow bsatn.Value)]
	onDelete     *event.Registry[func(bsatn.Value)]
}

// NewObservers returns an empty set of callback registries.
func NewObservers() *Observers {
	return &Observers{
		beforeDelete: event.NewRegistry[func(bsatn.Value)](),
		onInsert:     event.NewRegistry[func(bsatn.Value)](),
		onUpdate:     event.NewRegistry[func(oldRow, newRow bsatn.Value)](),
		onDelete:     event.NewRegistry[func(bsatn.Value)](),
	}
}

func (o *Observers) OnInsert(fn func(bsatn.Value)) event.Disposer       { return o.onInsert.Add(fn) }
func (o *Observers) OnDelete(fn func(bsatn.Value)) event.Disposer       { return o.onDelete.Add(fn) }
func (o *Observers) OnBeforeDelete(fn func(bsatn.Value)) event.Disposer { return o.beforeDelete.Add(fn) }
func (o *Observers) OnUpdate(fn func(old, new bsatn.Value)) event.Disposer {
	return o.onUpdate.Add(fn)
}

// Dispatch enqueues the callbacks implied by events onto q, in the order
// required by the callback-ordering contract: every row's beforeDelete
// observers run first (events come from ApplyOperations, so the cache
// has already dropped the row), then
// the insert/update/delete callbacks run in the order the events were
// produced by ApplyOperations.
func (o *Observers) Dispatch(q *event.Queue, events []RowEvent) {
	for _, ev := range events {
		if ev.Kind != EventDelete {
			continue
		}
		row := ev.Row
		for _, fn := range o.beforeDelete.Snapshot() {
			q.Enqueue(func() { fn(row) })
		}
	}

	for _, ev := range events {
		ev := ev
		switch ev.Kind {
		case EventInsert:
			for _, fn := range o.onInsert.Snapshot() {
				q.Enqueue(func() { fn(ev.Row) })
			}
		case EventUpdate:
			for _, fn := range o.onUpdate.Snapshot() {
				q.Enqueue(func() { fn(ev.OldRow, ev.Row) })
			}
		case EventDelete:
			for _, fn := range o.onDelete.Snapshot() {
				q.Enqueue(func() { fn(ev.Row) })
			}
		}
	}
}
