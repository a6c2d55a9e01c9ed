package order

import (
	"context"
	"math"
	"sync"
	"time"

	"tradesim/internal/bus"
	"tradesim/internal/obs"
	"tradesim/internal/risk"
	"tradesim/internal/schema"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// FillPlaces is the precision simulated fill prices are rounded to.
const FillPlaces = 4

// Config controls fill simulation.
type Config struct {
	// Slippage is a fraction of price, added for buys and subtracted for sells.
	Slippage  decimal.Decimal
	FillDelay time.Duration
	// DefaultPrice is used when neither a tick nor a limit price is known.
	DefaultPrice decimal.Decimal
}

// RiskGate approves orders and reports rejections.
type RiskGate interface {
	CheckOrder(order schema.OrderRequest) risk.Decision
	Reject(ctx context.Context, order schema.OrderRequest, decision risk.Decision)
}

// Manager turns signals into orders and simulated fills.
type Manager struct {
	bus     *bus.Bus
	risk    RiskGate
	cfg     Config
	metrics *obs.Metrics
	book    *Book

	mu     sync.RWMutex
	prices map[string]decimal.Decimal

	lifeMu  sync.Mutex
	subs    map[schema.EventType]bus.SubscriptionID
	stop    chan struct{}
	started bool
}

// NewManager creates an order manager. A nil gate approves every order.
func NewManager(b *bus.Bus, gate RiskGate, cfg Config, metrics *obs.Metrics) *Manager {
	return &Manager{
		bus:     b,
		risk:    gate,
		cfg:     cfg,
		metrics: metrics,
		book:    NewBook(),
		prices:  make(map[string]decimal.Decimal),
		subs:    make(map[schema.EventType]bus.SubscriptionID),
		stop:    make(chan struct{}),
	}
}

// Start subscribes the manager to signals, ticks and order updates.
func (m *Manager) Start() {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if m.started {
		return
	}
	m.stop = make(chan struct{})
	m.subs[schema.EventSignal] = bus.On(m.bus, "order_manager.signal", m.OnSignal)
	m.subs[schema.EventTick] = bus.On(m.bus, "order_manager.tick", m.OnTick)
	m.subs[schema.EventOrderUpdate] = bus.On(m.bus, "order_manager.book", m.OnOrderUpdate)
	m.started = true
	logs.Info("order manager started")
}

// Stop unsubscribes the manager and abandons fills still waiting on their delay.
func (m *Manager) Stop() error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if !m.started {
		return nil
	}
	m.started = false
	close(m.stop)
	for t, id := range m.subs {
		if err := m.bus.Unsubscribe(t, id); err != nil {
			return errors.Wrapf(err, "unsubscribe %s", t)
		}
		delete(m.subs, t)
	}
	logs.Info("order manager stopped")
	return nil
}

// OnTick caches the latest price of the tick's symbol.
func (m *Manager) OnTick(_ context.Context, tk schema.Tick) error {
	if err := tk.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.prices[tk.Symbol] = tk.Price
	m.mu.Unlock()
	return nil
}

// OnOrderUpdate applies a status transition to the book.
func (m *Manager) OnOrderUpdate(_ context.Context, u schema.OrderUpdate) error {
	return m.book.ApplyUpdate(u)
}

// OnSignal creates a market order for the signal, checks it against risk and,
// when approved, publishes one simulated fill after the fill delay.
func (m *Manager) OnSignal(ctx context.Context, sig schema.Signal) error {
	if err := sig.Validate(); err != nil {
		return err
	}

	order, err := schema.NewOrderRequest(schema.OrderParams{
		Symbol:     sig.Symbol,
		Side:       sig.Side,
		Quantity:   QuantityFor(sig.Strength),
		Type:       schema.OrderTypeMarket,
		StrategyID: sig.StrategyID,
	})
	if err != nil {
		return errors.Wrap(err, "new order request")
	}
	if err := m.book.ApplyRequest(order); err != nil {
		return err
	}

	logs.Infof("order created, id: %s, strategy: %s, symbol: %s, side: %s, qty: %d",
		order.ID, order.StrategyID, order.Symbol, order.Side, order.Quantity)
	m.bus.Emit(ctx, order)

	if m.risk != nil {
		if decision := m.risk.CheckOrder(order); !decision.Approved {
			m.risk.Reject(ctx, order, decision)
			return nil
		}
	}

	m.bus.Emit(ctx, schema.OrderUpdate{
		OrderID:   order.ID,
		Status:    schema.OrderStatusSubmitted,
		Timestamp: time.Now().UTC(),
	})

	m.simulateFill(ctx, order)
	return nil
}

func (m *Manager) simulateFill(ctx context.Context, order schema.OrderRequest) {
	m.lifeMu.Lock()
	stop := m.stop
	m.lifeMu.Unlock()

	if m.cfg.FillDelay > 0 {
		timer := time.NewTimer(m.cfg.FillDelay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-stop:
			logs.Warnf("fill abandoned on stop, order: %s", order.ID)
			return
		case <-ctx.Done():
			logs.Warnf("fill abandoned, order: %s, err: %+v", order.ID, ctx.Err())
			return
		}
	}

	fill := schema.Fill{
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		Side:      order.Side,
		Quantity:  order.Quantity,
		Price:     m.FillPrice(order),
		Timestamp: time.Now().UTC(),
	}

	logs.Infof("order filled, id: %s, symbol: %s, side: %s, qty: %d, price: %s",
		order.ID, fill.Symbol, fill.Side, fill.Quantity, fill.Price)
	m.bus.Emit(ctx, fill)
	m.metrics.IncFill()
	m.metrics.ObserveOrderToFill(fill.Timestamp.Sub(order.Timestamp))

	price := fill.Price
	m.bus.Emit(ctx, schema.OrderUpdate{
		OrderID:        order.ID,
		Status:         schema.OrderStatusFilled,
		FilledQuantity: fill.Quantity,
		FilledPrice:    &price,
		Timestamp:      fill.Timestamp,
	})
}

// FillPrice is the reference price of the order adjusted by slippage.
// The reference is the last tick price, else the limit price, else the default price.
func (m *Manager) FillPrice(order schema.OrderRequest) decimal.Decimal {
	ref, ok := m.LastPrice(order.Symbol)
	if !ok {
		if order.LimitPrice != nil {
			ref = *order.LimitPrice
		} else {
			ref = m.cfg.DefaultPrice
		}
	}

	slip := ref.Mul(m.cfg.Slippage)
	if order.Side == schema.SideBuy {
		ref = ref.Add(slip)
	} else {
		ref = ref.Sub(slip)
	}
	return ref.RoundBank(FillPlaces)
}

// LastPrice returns the cached price of symbol, if any.
func (m *Manager) LastPrice(symbol string) (decimal.Decimal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prices[symbol]
	return p, ok
}

// Order returns the order created with id.
func (m *Manager) Order(id uuid.UUID) (schema.OrderRequest, bool) {
	e, ok := m.book.Entry(id)
	return e.Request, ok
}

// Orders returns every order created by this manager in creation order.
func (m *Manager) Orders() []schema.OrderRequest {
	return m.book.Requests()
}

// Status returns the latest known status of the order.
func (m *Manager) Status(id uuid.UUID) (schema.OrderStatus, bool) {
	e, ok := m.book.Entry(id)
	return e.Status, ok
}

// Entry returns the book entry of the order, including fill details.
func (m *Manager) Entry(id uuid.UUID) (Entry, bool) {
	return m.book.Entry(id)
}

// QuantityFor maps signal strength to an order size of at least one.
func QuantityFor(strength float64) int64 {
	return max(1, int64(math.Floor(strength*100)))
}
