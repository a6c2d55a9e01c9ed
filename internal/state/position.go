package state

import (
	"github.com/shopspring/decimal"

	"tradesim/internal/schema"
)

// PricePlaces is the precision average entry prices are rounded to.
const PricePlaces = 4

// applyFill folds f into p using average-cost accounting and returns the cash delta.
func applyFill(p *schema.Position, f schema.Fill) decimal.Decimal {
	qty := f.Quantity
	signed := qty
	if f.Side == schema.SideSell {
		signed = -qty
	}

	q := p.Quantity
	switch {
	case q == 0 || (q > 0) == (signed > 0):
		held := decimal.NewFromInt(abs(q))
		cost := p.AvgEntryPrice.Mul(held).Add(f.Price.Mul(decimal.NewFromInt(qty)))
		p.Quantity = q + signed
		p.AvgEntryPrice = cost.Div(decimal.NewFromInt(abs(p.Quantity))).RoundBank(PricePlaces)
	default:
		closed := decimal.NewFromInt(min(qty, abs(q)))
		var realized decimal.Decimal
		if q > 0 {
			realized = f.Price.Sub(p.AvgEntryPrice).Mul(closed)
		} else {
			realized = p.AvgEntryPrice.Sub(f.Price).Mul(closed)
		}
		p.RealizedPnL = p.RealizedPnL.Add(realized)
		p.Quantity = q + signed

		switch {
		case p.Quantity == 0:
			p.AvgEntryPrice = decimal.Zero
		case (p.Quantity > 0) != (q > 0):
			// overshoot opens the residual at the fill price
			p.AvgEntryPrice = f.Price.RoundBank(PricePlaces)
		}
	}

	if p.CurrentPrice.IsZero() {
		p.CurrentPrice = f.Price
	}
	markToMarket(p)

	notional := f.Price.Mul(decimal.NewFromInt(qty))
	if f.Side == schema.SideBuy {
		return notional.Neg()
	}
	return notional
}

// markToMarket recomputes unrealized P&L from the current price.
func markToMarket(p *schema.Position) {
	if p.Quantity == 0 {
		p.AvgEntryPrice = decimal.Zero
		p.UnrealizedPnL = decimal.Zero
		return
	}
	p.UnrealizedPnL = p.CurrentPrice.Sub(p.AvgEntryPrice).Mul(decimal.NewFromInt(p.Quantity))
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
