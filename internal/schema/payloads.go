package schema

import (
	"math"
	"time"

	"tradesim/pkg/exception"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// Tick is one market price observation for a symbol.
type Tick struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Volume    int64           `json:"volume"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Timestamp time.Time       `json:"timestamp"`
}

// Validate checks the tick can be used as a mark price.
func (t Tick) Validate() error {
	if t.Symbol == "" {
		return errors.Wrap(exception.ErrInvalidTick, "empty symbol")
	}
	if !t.Price.IsPositive() {
		return errors.Wrapf(exception.ErrInvalidTick, "symbol: %s, price: %s", t.Symbol, t.Price)
	}
	return nil
}

// Signal is a strategy's trade intent. Strength in [0,1] maps to order size.
type Signal struct {
	StrategyID string    `json:"strategy_id"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Strength   float64   `json:"strength"`
	Timestamp  time.Time `json:"timestamp"`
}

// Validate checks the signal can be turned into an order.
func (s Signal) Validate() error {
	if s.Symbol == "" {
		return errors.Wrap(exception.ErrInvalidSignal, "empty symbol")
	}
	if !s.Side.IsAvailable() {
		return errors.Wrapf(exception.ErrInvalidSignal, "symbol: %s, side: %d", s.Symbol, s.Side)
	}
	if math.IsNaN(s.Strength) || s.Strength < 0 || s.Strength > 1 {
		return errors.Wrapf(exception.ErrInvalidSignal, "symbol: %s, strength: %v", s.Symbol, s.Strength)
	}
	return nil
}

// OrderRequest is created once by the order manager and never mutated.
// Status is the status at creation; later transitions travel as OrderUpdate.
type OrderRequest struct {
	ID         uuid.UUID        `json:"id"`
	Symbol     string           `json:"symbol"`
	Side       Side             `json:"side"`
	Quantity   int64            `json:"quantity"`
	Type       OrderType        `json:"order_type"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`
	StrategyID string           `json:"strategy_id"`
	Timestamp  time.Time        `json:"timestamp"`
	Status     OrderStatus      `json:"status"`
}

// OrderParams are the caller supplied fields of an OrderRequest.
type OrderParams struct {
	Symbol     string
	Side       Side
	Quantity   int64
	Type       OrderType
	LimitPrice *decimal.Decimal
	StrategyID string
}

// NewOrderRequest validates params and assigns a fresh id and timestamp.
func NewOrderRequest(p OrderParams) (OrderRequest, error) {
	if p.Type == _orderType_beg {
		p.Type = OrderTypeMarket
	}
	if p.Symbol == "" {
		return OrderRequest{}, errors.Wrap(exception.ErrInvalidOrder, "empty symbol")
	}
	if !p.Side.IsAvailable() {
		return OrderRequest{}, errors.Wrapf(exception.ErrInvalidOrder, "symbol: %s, side: %d", p.Symbol, p.Side)
	}
	if p.Quantity <= 0 {
		return OrderRequest{}, errors.Wrapf(exception.ErrInvalidOrder, "symbol: %s, quantity: %d", p.Symbol, p.Quantity)
	}
	if !p.Type.IsAvailable() {
		return OrderRequest{}, errors.Wrapf(exception.ErrInvalidOrder, "symbol: %s, type: %d", p.Symbol, p.Type)
	}
	if p.Type == OrderTypeLimit && (p.LimitPrice == nil || !p.LimitPrice.IsPositive()) {
		return OrderRequest{}, errors.Wrapf(exception.ErrInvalidOrder, "symbol: %s, limit order without positive price", p.Symbol)
	}
	return OrderRequest{
		ID:         uuid.New(),
		Symbol:     p.Symbol,
		Side:       p.Side,
		Quantity:   p.Quantity,
		Type:       p.Type,
		LimitPrice: p.LimitPrice,
		StrategyID: p.StrategyID,
		Timestamp:  time.Now().UTC(),
		Status:     OrderStatusPending,
	}, nil
}

// OrderUpdate reports a status transition of an existing order.
type OrderUpdate struct {
	OrderID        uuid.UUID        `json:"order_id"`
	Status         OrderStatus      `json:"status"`
	FilledQuantity int64            `json:"filled_quantity"`
	FilledPrice    *decimal.Decimal `json:"filled_price,omitempty"`
	Reason         string           `json:"reason,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

// Fill is the simulated execution of an order. One per accepted order.
type Fill struct {
	OrderID   uuid.UUID       `json:"order_id"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp"`
}

// Validate checks the fill can be applied to a position.
func (f Fill) Validate() error {
	if f.Symbol == "" {
		return errors.Wrap(exception.ErrInvalidFill, "empty symbol")
	}
	if !f.Side.IsAvailable() {
		return errors.Wrapf(exception.ErrInvalidFill, "symbol: %s, side: %d", f.Symbol, f.Side)
	}
	if f.Quantity <= 0 {
		return errors.Wrapf(exception.ErrInvalidFill, "symbol: %s, quantity: %d", f.Symbol, f.Quantity)
	}
	if !f.Price.IsPositive() {
		return errors.Wrapf(exception.ErrInvalidFill, "symbol: %s, price: %s", f.Symbol, f.Price)
	}
	return nil
}

// Position is the average-cost position of one symbol.
// Quantity is signed: positive long, negative short, zero flat.
type Position struct {
	Symbol        string          `json:"symbol"`
	Quantity      int64           `json:"quantity"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
}

// IsFlat reports whether the position holds no quantity.
func (p Position) IsFlat() bool {
	return p.Quantity == 0
}

// MarketValue is current price times signed quantity.
func (p Position) MarketValue() decimal.Decimal {
	return p.CurrentPrice.Mul(decimal.NewFromInt(p.Quantity))
}

// PortfolioSnapshot is derived from the tracker state, never stored as truth.
type PortfolioSnapshot struct {
	Timestamp          time.Time           `json:"timestamp"`
	Positions          map[string]Position `json:"positions"`
	Cash               decimal.Decimal     `json:"cash"`
	TotalEquity        decimal.Decimal     `json:"total_equity"`
	TotalUnrealizedPnL decimal.Decimal     `json:"total_unrealized_pnl"`
	TotalRealizedPnL   decimal.Decimal     `json:"total_realized_pnl"`
}

// RiskBreach is an advisory event emitted when an order is rejected.
type RiskBreach struct {
	Rule      string    `json:"rule"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
