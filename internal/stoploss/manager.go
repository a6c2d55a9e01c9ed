package stoploss

import (
	"context"
	"sync"
	"time"

	"tradesim/internal/bus"
	"tradesim/internal/obs"
	"tradesim/internal/schema"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// StrategyID tags the closing signals emitted by the manager.
const StrategyID = "stop_loss"

// State is the stop state of one symbol.
type State uint16

const (
	StateNoStop State = iota
	StateArmed
	StateTriggered
)

var stateNames = [...]string{
	StateNoStop:    "no_stop",
	StateArmed:     "armed",
	StateTriggered: "triggered",
}

func (s State) String() string {
	if int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Level is the protective exit of an open position.
type Level struct {
	Symbol      string
	StopPrice   decimal.Decimal
	SideToClose schema.Side
	Quantity    int64
}

// PositionSource lists the positions already open when the manager starts.
type PositionSource interface {
	Positions() []schema.Position
}

type entry struct {
	level     Level
	triggered bool
}

// Manager keeps one stop level per open position and emits a closing
// signal the first time a tick crosses it.
type Manager struct {
	bus       *bus.Bus
	positions PositionSource
	pct       decimal.Decimal
	metrics   *obs.Metrics

	mu    sync.Mutex
	stops map[string]*entry

	subMu   sync.Mutex
	posSub  bus.SubscriptionID
	tickSub bus.SubscriptionID
	started bool
}

// NewManager creates a stop-loss manager placing stops pct away from the entry price.
func NewManager(b *bus.Bus, positions PositionSource, pct decimal.Decimal, metrics *obs.Metrics) *Manager {
	return &Manager{
		bus:       b,
		positions: positions,
		pct:       pct,
		metrics:   metrics,
		stops:     make(map[string]*entry),
	}
}

// Start arms stops for already open positions and subscribes to position
// updates and ticks.
func (m *Manager) Start() {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	if m.started {
		return
	}
	if m.positions != nil {
		for _, pos := range m.positions.Positions() {
			m.apply(pos)
		}
	}
	m.posSub = bus.On(m.bus, "stop_loss.position", m.OnPosition)
	m.tickSub = bus.On(m.bus, "stop_loss.tick", m.OnTick)
	m.started = true
	logs.Infof("stop loss manager started, pct: %s", m.pct)
}

// Stop removes the manager's subscriptions.
func (m *Manager) Stop() error {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	if !m.started {
		return nil
	}
	m.started = false
	if err := m.bus.Unsubscribe(schema.EventPositionUpdate, m.posSub); err != nil {
		return errors.Wrap(err, "unsubscribe position update")
	}
	if err := m.bus.Unsubscribe(schema.EventTick, m.tickSub); err != nil {
		return errors.Wrap(err, "unsubscribe tick")
	}
	return nil
}

// OnPosition re-arms the stop of an open position or removes it when flat.
func (m *Manager) OnPosition(_ context.Context, pos schema.Position) error {
	m.apply(pos)
	return nil
}

func (m *Manager) apply(pos schema.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pos.IsFlat() {
		if _, ok := m.stops[pos.Symbol]; ok {
			delete(m.stops, pos.Symbol)
			logs.Debugf("stop removed, symbol: %s", pos.Symbol)
		}
		return
	}

	level := Level{Symbol: pos.Symbol}
	if pos.Quantity > 0 {
		level.StopPrice = pos.AvgEntryPrice.Mul(decimal.NewFromInt(1).Sub(m.pct))
		level.SideToClose = schema.SideSell
		level.Quantity = pos.Quantity
	} else {
		level.StopPrice = pos.AvgEntryPrice.Mul(decimal.NewFromInt(1).Add(m.pct))
		level.SideToClose = schema.SideBuy
		level.Quantity = -pos.Quantity
	}
	m.stops[pos.Symbol] = &entry{level: level}

	logs.Debugf("stop armed, symbol: %s, stop: %s, close: %s, qty: %d",
		level.Symbol, level.StopPrice, level.SideToClose, level.Quantity)
}

// OnTick emits a closing signal when the tick crosses an armed stop.
func (m *Manager) OnTick(ctx context.Context, tk schema.Tick) error {
	m.mu.Lock()
	e, ok := m.stops[tk.Symbol]
	if !ok || e.triggered || !crossed(e.level, tk.Price) {
		m.mu.Unlock()
		return nil
	}
	e.triggered = true
	level := e.level
	m.mu.Unlock()

	m.metrics.IncStopTrigger()
	logs.Warnf("stop loss triggered, symbol: %s, price: %s, stop: %s", tk.Symbol, tk.Price, level.StopPrice)

	m.bus.Emit(ctx, schema.Signal{
		StrategyID: StrategyID,
		Symbol:     tk.Symbol,
		Side:       level.SideToClose,
		Strength:   1.0,
		Timestamp:  time.Now().UTC(),
	})
	return nil
}

// State returns the stop state of symbol.
func (m *Manager) State(symbol string) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.stops[symbol]
	switch {
	case !ok:
		return StateNoStop
	case e.triggered:
		return StateTriggered
	default:
		return StateArmed
	}
}

// Level returns the stop level of symbol while one exists.
func (m *Manager) Level(symbol string) (Level, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.stops[symbol]
	if !ok {
		return Level{}, false
	}
	return e.level, true
}

func crossed(level Level, price decimal.Decimal) bool {
	if level.SideToClose == schema.SideSell {
		return price.LessThanOrEqual(level.StopPrice)
	}
	return price.GreaterThanOrEqual(level.StopPrice)
}
