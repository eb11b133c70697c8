package table

import "errors"

var (
	ErrNoSuchPrimaryKeyField = errors.New("table: schema names a primary key field that does not exist on the row type")
	ErrRowTypeMismatch       = errors.New("table: row does not match the table's declared row type")
)
