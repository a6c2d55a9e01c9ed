package exception

import "github.com/yanun0323/errors"

// Bus errors
var (
	ErrNotSubscribed = errors.New("bus: handler not subscribed")
	ErrQueueFull     = errors.New("bus: queue full")
	ErrQueueClosed   = errors.New("bus: queue closed")
	ErrHandlerPanic  = errors.New("bus: handler panic")
	ErrPayloadType   = errors.New("bus: payload type mismatch")
)
