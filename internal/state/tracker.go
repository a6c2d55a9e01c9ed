package state

import (
	"context"
	"sort"
	"sync"
	"time"

	"tradesim/internal/bus"
	"tradesim/internal/schema"
	"tradesim/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Tracker owns per-symbol positions and the cash balance. It applies fills
// and marks positions to market from ticks.
type Tracker struct {
	bus         *bus.Bus
	initialCash decimal.Decimal

	mu        sync.RWMutex
	cash      decimal.Decimal
	positions map[string]schema.Position

	subMu   sync.Mutex
	tickSub bus.SubscriptionID
	fillSub bus.SubscriptionID
	started bool
}

// NewTracker creates a tracker holding initialCash and no positions.
func NewTracker(b *bus.Bus, initialCash decimal.Decimal) *Tracker {
	return &Tracker{
		bus:         b,
		initialCash: initialCash,
		cash:        initialCash,
		positions:   make(map[string]schema.Position),
	}
}

// Start subscribes the tracker to fills and ticks.
func (t *Tracker) Start() {
	t.subMu.Lock()
	defer t.subMu.Unlock()

	if t.started {
		return
	}
	t.fillSub = bus.On(t.bus, "position_tracker.fill", t.OnFill)
	t.tickSub = bus.On(t.bus, "position_tracker.tick", t.OnTick)
	t.started = true
	logs.Info("position tracker started")
}

// Stop removes the tracker's subscriptions.
func (t *Tracker) Stop() error {
	t.subMu.Lock()
	defer t.subMu.Unlock()

	if !t.started {
		return nil
	}
	t.started = false
	if err := t.bus.Unsubscribe(schema.EventFill, t.fillSub); err != nil {
		return errors.Wrap(err, "unsubscribe fill")
	}
	if err := t.bus.Unsubscribe(schema.EventTick, t.tickSub); err != nil {
		return errors.Wrap(err, "unsubscribe tick")
	}
	return nil
}

// OnFill applies a fill and publishes the resulting position.
func (t *Tracker) OnFill(ctx context.Context, f schema.Fill) error {
	if err := f.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	pos, ok := t.positions[f.Symbol]
	if !ok {
		pos = schema.Position{Symbol: f.Symbol}
	}
	t.cash = t.cash.Add(applyFill(&pos, f))
	t.positions[f.Symbol] = pos
	t.mu.Unlock()

	logs.Debugf("position updated, symbol: %s, qty: %d, avg: %s, realized: %s",
		pos.Symbol, pos.Quantity, pos.AvgEntryPrice, pos.RealizedPnL)

	t.bus.Emit(ctx, pos)
	return nil
}

// OnTick marks an existing position to the tick price. Ticks for symbols
// without a position are ignored.
func (t *Tracker) OnTick(_ context.Context, tk schema.Tick) error {
	if err := tk.Validate(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	pos, ok := t.positions[tk.Symbol]
	if !ok {
		return nil
	}
	pos.CurrentPrice = tk.Price
	markToMarket(&pos)
	t.positions[tk.Symbol] = pos
	return nil
}

// Position returns a copy of the symbol's position.
func (t *Tracker) Position(symbol string) (schema.Position, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	pos, ok := t.positions[symbol]
	return pos, ok
}

// Positions returns every tracked position sorted by symbol.
func (t *Tracker) Positions() []schema.Position {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]schema.Position, 0, len(t.positions))
	for _, pos := range t.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Cash returns the current cash balance.
func (t *Tracker) Cash() decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cash
}

// InitialCash returns the cash balance the tracker started with.
func (t *Tracker) InitialCash() decimal.Decimal {
	return t.initialCash
}

// Snapshot aggregates cash and the mark-to-market value of all positions.
func (t *Tracker) Snapshot() schema.PortfolioSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := schema.PortfolioSnapshot{
		Timestamp:          time.Now().UTC(),
		Positions:          make(map[string]schema.Position, len(t.positions)),
		Cash:               t.cash,
		TotalUnrealizedPnL: decimal.Zero,
		TotalRealizedPnL:   decimal.Zero,
	}
	value := decimal.Zero
	for symbol, pos := range t.positions {
		snap.Positions[symbol] = pos
		snap.TotalUnrealizedPnL = snap.TotalUnrealizedPnL.Add(pos.UnrealizedPnL)
		snap.TotalRealizedPnL = snap.TotalRealizedPnL.Add(pos.RealizedPnL)
		value = value.Add(pos.MarketValue())
	}
	snap.TotalEquity = t.cash.Add(value)
	return snap
}

// Restore replaces cash and positions with the snapshot's. It publishes
// nothing; callers start dependent components after restoring.
func (t *Tracker) Restore(snap schema.PortfolioSnapshot) error {
	for symbol, pos := range snap.Positions {
		if symbol == "" || symbol != pos.Symbol {
			return errors.Wrapf(exception.ErrInvalidArgument, "snapshot position key: %q, symbol: %q", symbol, pos.Symbol)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.cash = snap.Cash
	clear(t.positions)
	for symbol, pos := range snap.Positions {
		markToMarket(&pos)
		t.positions[symbol] = pos
	}
	logs.Infof("position tracker restored, positions: %d, cash: %s", len(t.positions), t.cash)
	return nil
}
