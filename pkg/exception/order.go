package exception

import "github.com/yanun0323/errors"

var (
	ErrInvalidOrder      = errors.New("order: invalid request")
	ErrInvalidFill       = errors.New("order: invalid fill")
	ErrInvalidSignal     = errors.New("order: invalid signal")
	ErrDuplicateOrder    = errors.New("order: already exists")
	ErrUnknownOrder      = errors.New("order: not found")
	ErrInvalidTransition = errors.New("order: invalid state transition")
)
