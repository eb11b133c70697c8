package transport

import "errors"

var (
	ErrAlreadyConnected = errors.New("transport: already connected")
	ErrNotConnected     = errors.New("transport: not connected")
	ErrClosed           = errors.New("transport: connection closed")
)
