package subscription

import "errors"

var (
	ErrAlreadyTerminal = errors.New("subscription: handle already in a terminal state")
	ErrNotPending      = errors.New("subscription: handle is not pending")
)
