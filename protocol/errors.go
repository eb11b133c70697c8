package protocol

import "errors"

var (
	ErrUnknownCompression = errors.New("protocol: unknown compression discriminant")
	ErrEmptyFrame         = errors.New("protocol: frame has no compression discriminant byte")
	ErrUnknownMessageTag  = errors.New("protocol: unknown message tag")
	ErrRowListMismatch    = errors.New("protocol: row list size hint does not account for all row data")
)
