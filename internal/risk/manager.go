package risk

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

// PortfolioView is the read-only portfolio surface the manager checks against.
type PortfolioView interface {
	Position(symbol string) (schema.Position, bool)
	Snapshot() schema.PortfolioSnapshot
	InitialCash() decimal.Decimal
}

// Manager gates orders against the engine limits using live tick prices.
type Manager struct {
	bus       *bus.Bus
	portfolio PortfolioView
	engine    *Engine
	metrics   *obs.Metrics

	mu     sync.RWMutex
	prices map[string]decimal.Decimal

	tickSub bus.SubscriptionID
	started bool
}

// NewManager creates a risk manager.
func NewManager(b *bus.Bus, portfolio PortfolioView, cfg Config, metrics *obs.Metrics) *Manager {
	return &Manager{
		bus:       b,
		portfolio: portfolio,
		engine:    NewEngine(cfg),
		metrics:   metrics,
		prices:    make(map[string]decimal.Decimal),
	}
}

// Start subscribes the price cache to ticks.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}
	m.tickSub = bus.On(m.bus, "risk_manager.tick", m.OnTick)
	m.started = true
	logs.Info("risk manager started")
}

// Stop removes the tick subscription.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	m.started = false
	if err := m.bus.Unsubscribe(schema.EventTick, m.tickSub); err != nil {
		return errors.Wrap(err, "unsubscribe tick")
	}
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

// LastPrice returns the cached price of symbol, if any.
func (m *Manager) LastPrice(symbol string) (decimal.Decimal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prices[symbol]
	return p, ok
}

// CheckOrder evaluates order against the current prices and portfolio.
// It publishes nothing.
func (m *Manager) CheckOrder(order schema.OrderRequest) Decision {
	start := time.Now()
	defer func() { m.metrics.ObserveRiskEval(time.Since(start)) }()

	price, _ := m.LastPrice(order.Symbol)
	view := StateView{
		ReferencePrice: price,
		InitialCash:    m.portfolio.InitialCash(),
		Equity:         m.portfolio.Snapshot().TotalEquity,
	}
	if pos, ok := m.portfolio.Position(order.Symbol); ok {
		view.Position = pos.Quantity
	}

	decision := m.engine.Evaluate(order, view)
	if !decision.Approved {
		m.metrics.IncRiskReason(decision.Reason)
	}
	return decision
}

// Reject publishes a risk breach followed by a rejected order update.
func (m *Manager) Reject(ctx context.Context, order schema.OrderRequest, decision Decision) {
	logs.Warnf("risk breach, order: %s, symbol: %s, reason: %s, msg: %s",
		order.ID, order.Symbol, decision.Reason, decision.Message)

	now := time.Now().UTC()
	m.bus.Emit(ctx, schema.RiskBreach{
		Rule:      decision.Reason.String(),
		Message:   decision.Message,
		Timestamp: now,
	})
	m.bus.Emit(ctx, schema.OrderUpdate{
		OrderID:   order.ID,
		Status:    schema.OrderStatusRejected,
		Reason:    decision.Message,
		Timestamp: now,
	})
}
