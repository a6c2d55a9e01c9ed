package exception

import "github.com/yanun0323/errors"

var (
	ErrInvalidTick    = errors.New("market data: invalid tick")
	ErrNoSymbols      = errors.New("market data: no symbols")
	ErrUnknownTapeRow = errors.New("market data: unknown tape row type")
)
