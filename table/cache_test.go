package table

import (
	"testing"

	"github.com/replistream/client-go/bsatn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func playersSchema(t *testing.T) Schema {
	t.Helper()
	rowType := bsatn.Product(
		Field("id", bsatn.U64()),
		Field("name", bsatn.String()),
	)
	s, err := NewSchema("players", rowType, "id")
	require.NoError(t, err)
	return s
}

// Field is a tiny local alias so tests read closer to a schema literal.
func Field(name string, ty bsatn.Type) bsatn.Field { return bsatn.Field{Name: name, Type: ty} }

func row(id uint64, name string) bsatn.Value {
	return bsatn.NewProduct(bsatn.NewU64(id), bsatn.NewString(name))
}

func TestCache_Insert_NewRowEmitsInsert(t *testing.T) {
	c := NewCache(playersSchema(t), nil)

	events, err := c.ApplyOperations([]RowOp{{Kind: OpInsert, Row: row(1, "alice")}})
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, EventInsert, events[0].Kind)
	assert.Equal(t, 1, c.Len())
}

func TestCache_DuplicateInsertSameBatchDeduped(t *testing.T) {
	c := NewCache(playersSchema(t), nil)

	events, err := c.ApplyOperations([]RowOp{
		{Kind: OpInsert, Row: row(1, "alice")},
		{Kind: OpInsert, Row: row(1, "alice")},
	})
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, 1, c.Len())
}

func TestCache_DeleteThenRowIsGone(t *testing.T) {
	c := NewCache(playersSchema(t), nil)
	_, err := c.ApplyOperations([]RowOp{{Kind: OpInsert, Row: row(1, "alice")}})
	require.NoError(t, err)

	events, err := c.ApplyOperations([]RowOp{{Kind: OpDelete, Row: row(1, "alice")}})
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, EventDelete, events[0].Kind)
	assert.Equal(t, 0, c.Len())
}

func TestCache_InsertThenDeleteSameBatchIsNoop(t *testing.T) {
	c := NewCache(playersSchema(t), nil)

	events, err := c.ApplyOperations([]RowOp{
		{Kind: OpInsert, Row: row(1, "alice")},
		{Kind: OpDelete, Row: row(1, "alice")},
	})
	require.NoError(t, err)

	assert.Empty(t, events)
	assert.Equal(t, 0, c.Len())
}

func TestCache_UpdateWithinBatchEmitsUpdate(t *testing.T) {
	c := NewCache(playersSchema(t), nil)
	_, err := c.ApplyOperations([]RowOp{{Kind: OpInsert, Row: row(1, "alice")}})
	require.NoError(t, err)

	events, err := c.ApplyOperations([]RowOp{
		{Kind: OpDelete, Row: row(1, "alice")},
		{Kind: OpInsert, Row: row(1, "alice-renamed")},
	})
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, EventUpdate, events[0].Kind)
	assert.Equal(t, 1, c.Len())

	key, _, err := playersSchema(t).identity(row(1, ""))
	require.NoError(t, err)
	got, ok := c.Get(key)
	require.True(t, ok)
	name, err := got.Field(playersSchema(t).RowType, "name")
	require.NoError(t, err)
	assert.Equal(t, "alice-renamed", name.String())
}

func TestCache_DeleteOfAbsentRowClampsWithoutError(t *testing.T) {
	c := NewCache(playersSchema(t), nil)

	events, err := c.ApplyOperations([]RowOp{{Kind: OpDelete, Row: row(1, "ghost")}})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 0, c.Len())
}

func TestCache_NoPrimaryKey_IdentityIsFullRow(t *testing.T) {
	rowType := bsatn.Product(Field("x", bsatn.I32()), Field("y", bsatn.I32()))
	schema, err := NewSchema("points", rowType, "")
	require.NoError(t, err)
	c := NewCache(schema, nil)

	p := func(x, y int32) bsatn.Value { return bsatn.NewProduct(bsatn.NewI32(x), bsatn.NewI32(y)) }

	events, err := c.ApplyOperations([]RowOp{
		{Kind: OpInsert, Row: p(1, 2)},
		{Kind: OpInsert, Row: p(3, 4)},
	})
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, 2, c.Len())

	events, err = c.ApplyOperations([]RowOp{{Kind: OpDelete, Row: p(1, 2)}})
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 1, c.Len())
}

func TestCache_MultipleReferencesRequireMultipleDeletes(t *testing.T) {
	rowType := bsatn.Product(Field("tag", bsatn.String()))
	schema, err := NewSchema("tags", rowType, "")
	require.NoError(t, err)
	c := NewCache(schema, nil)

	tagRow := bsatn.NewProduct(bsatn.NewString("same"))

	events, err := c.ApplyOperations([]RowOp{
		{Kind: OpInsert, Row: tagRow},
	})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	// A second, separate insert of the identical row (different batch)
	// increments the refcount without re-emitting Insert, since the row
	// was already visible.
	events, err = c.ApplyOperations([]RowOp{{Kind: OpInsert, Row: tagRow}})
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = c.ApplyOperations([]RowOp{{Kind: OpDelete, Row: tagRow}})
	require.NoError(t, err)
	assert.Empty(t, events) // still one reference outstanding

	events, err = c.ApplyOperations([]RowOp{{Kind: OpDelete, Row: tagRow}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventDelete, events[0].Kind)
}
