package vchan

import "errors"

var (
	ErrClosed         = errors.New("vchan: channel is closed")
	ErrDisconnected   = errors.New("vchan: peer disconnected")
	ErrAlreadyStarted = errors.New("vchan: worker already started")
	ErrInvalidConfig  = errors.New("vchan: invalid configuration")
)
