package table

import "github.com/replistream/client-go/bsatn"

// Schema describes one client-cached table: its row shape and, if it has
// one, which field is the primary key. PrimaryKey is empty for tables
// with no declared primary key, in which case row identity is the full
// encoded row.
type Schema struct {
	Name       string
	RowType    bsatn.Type
	PrimaryKey string
}

// NewSchema validates that a declared PrimaryKey field actually exists on
// rowType before returning the Schema.
func NewSchema(name string, rowType bsatn.Type, primaryKey string) (Schema, error) {
	if primaryKey != "" && rowType.FieldIndex(primaryKey) < 0 {
		return Schema{}, ErrNoSuchPrimaryKeyField
	}
	return Schema{Name: name, RowType: rowType, PrimaryKey: primaryKey}, nil
}

// hasPrimaryKey reports whether the schema identifies rows by a single
// field rather than by full-row equality.
func (s Schema) hasPrimaryKey() bool { return s.PrimaryKey != "" }

// identity derives the multiset key for row, and the encoded row bytes
// used to detect whether two rows sharing a key are byte-identical.
func (s Schema) identity(row bsatn.Value) (any, []byte, error) {
	encoded, err := bsatn.Encode(s.RowType, row)
	if err != nil {
		return nil, nil, err
	}

	if !s.hasPrimaryKey() {
		key, err := bsatn.IntoMapKey(s.RowType, row)
		if err != nil {
			return nil, nil, err
		}
		return key, encoded, nil
	}

	idx := s.RowType.FieldIndex(s.PrimaryKey)
	pkValue, err := row.Field(s.RowType, s.PrimaryKey)
	if err != nil {
		return nil, nil, err
	}
	key, err := bsatn.IntoMapKey(s.RowType.Elements[idx].Type, pkValue)
	if err != nil {
		return nil, nil, err
	}
	return key, encoded, nil
}
