package mdg

import (
	"time"

	"tradesim/internal/schema"
	"tradesim/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// PricePlaces is the precision of generated prices.
const PricePlaces = 4

// RawTick is a generated quote before it is converted to exact decimals.
type RawTick struct {
	Symbol  string
	Price   float64
	Bid     float64
	Ask     float64
	Volume  int64
	TsEvent int64
}

// Normalize converts a raw tick into a schema tick rounded to PricePlaces.
func Normalize(raw RawTick) (schema.Tick, error) {
	if raw.TsEvent == 0 {
		raw.TsEvent = time.Now().UTC().UnixNano()
	}
	tick := schema.Tick{
		Symbol:    raw.Symbol,
		Price:     decimal.NewFromFloat(raw.Price).Round(PricePlaces),
		Bid:       decimal.NewFromFloat(raw.Bid).Round(PricePlaces),
		Ask:       decimal.NewFromFloat(raw.Ask).Round(PricePlaces),
		Volume:    raw.Volume,
		Timestamp: time.Unix(0, raw.TsEvent).UTC(),
	}
	if err := tick.Validate(); err != nil {
		return schema.Tick{}, errors.Wrap(err, "normalize")
	}
	if tick.Bid.GreaterThan(tick.Ask) {
		return schema.Tick{}, errors.Wrapf(exception.ErrInvalidTick, "symbol: %s, bid: %s > ask: %s", tick.Symbol, tick.Bid, tick.Ask)
	}
	return tick, nil
}
