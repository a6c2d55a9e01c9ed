package risk

import (
	"fmt"

	"tradesim/internal/schema"

	"github.com/shopspring/decimal"
)

// Config defines the pre-trade limits.
type Config struct {
	MaxOrderValue   decimal.Decimal `json:"maxOrderValue"`
	MaxPositionSize decimal.Decimal `json:"maxPositionSize"`
	// MaxDrawdown is a fraction of initial cash, e.g. 0.05.
	MaxDrawdown decimal.Decimal `json:"maxDrawdown"`
	// DefaultPrice is used when no tick has been seen for a symbol.
	DefaultPrice decimal.Decimal `json:"defaultPrice"`
}

// StateView is the portfolio state an order is evaluated against.
type StateView struct {
	Position       int64
	ReferencePrice decimal.Decimal
	InitialCash    decimal.Decimal
	Equity         decimal.Decimal
}

// Decision is the outcome of a risk evaluation.
type Decision struct {
	Approved bool
	Reason   schema.RiskReason
	Message  string
}

// Engine evaluates risk decisions. It holds no state besides its limits.
type Engine struct {
	cfg Config
}

// NewEngine creates a risk engine with static limits.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the engine limits.
func (e *Engine) Config() Config {
	return e.cfg
}

// Evaluate checks order value, projected position value and drawdown in
// that order. The first failing limit decides.
func (e *Engine) Evaluate(order schema.OrderRequest, state StateView) Decision {
	price := state.ReferencePrice
	if !price.IsPositive() {
		price = e.cfg.DefaultPrice
	}

	orderValue := price.Mul(decimal.NewFromInt(order.Quantity))
	if orderValue.GreaterThan(e.cfg.MaxOrderValue) {
		return deny(schema.RiskReasonMaxOrderValue,
			fmt.Sprintf("Order value %s exceeds limit %s", orderValue, e.cfg.MaxOrderValue))
	}

	projected := applySide(state.Position, order.Side, order.Quantity)
	projectedValue := price.Mul(decimal.NewFromInt(absInt64(projected)))
	if projectedValue.GreaterThan(e.cfg.MaxPositionSize) {
		return deny(schema.RiskReasonMaxPositionSize,
			fmt.Sprintf("Projected position %s exceeds limit %s", projectedValue, e.cfg.MaxPositionSize))
	}

	if state.InitialCash.IsPositive() {
		drawdown := state.InitialCash.Sub(state.Equity).Div(state.InitialCash)
		if drawdown.GreaterThan(e.cfg.MaxDrawdown) {
			return deny(schema.RiskReasonMaxDrawdown,
				fmt.Sprintf("Portfolio drawdown %s exceeds limit %s", drawdown.StringFixed(4), e.cfg.MaxDrawdown))
		}
	}

	return Decision{Approved: true, Reason: schema.RiskReasonNone}
}

func deny(reason schema.RiskReason, msg string) Decision {
	return Decision{Approved: false, Reason: reason, Message: msg}
}

func applySide(pos int64, side schema.Side, qty int64) int64 {
	switch side {
	case schema.SideBuy:
		return pos + qty
	case schema.SideSell:
		return pos - qty
	default:
		return pos
	}
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
