package exception

import "github.com/yanun0323/errors"

// General errors
var (
	ErrNilInstance     = errors.New("nil instance")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownEnum     = errors.New("unknown enum value")
	ErrInvalidConfig   = errors.New("invalid config")
)
