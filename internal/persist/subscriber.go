package persist

import (
	"context"
	"sync"

	"tradesim/internal/bus"
	"tradesim/internal/schema"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Subscriber writes order, fill and position events to a Store.
type Subscriber struct {
	bus   *bus.Bus
	store Store

	mu      sync.Mutex
	subs    map[schema.EventType]bus.SubscriptionID
	started bool
}

// NewSubscriber creates a persistence subscriber.
func NewSubscriber(b *bus.Bus, store Store) *Subscriber {
	return &Subscriber{
		bus:   b,
		store: store,
		subs:  make(map[schema.EventType]bus.SubscriptionID),
	}
}

// Start subscribes to the persisted event types.
func (s *Subscriber) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.subs[schema.EventOrderRequest] = bus.On(s.bus, "persist.order_request", s.OnOrderRequest)
	s.subs[schema.EventOrderUpdate] = bus.On(s.bus, "persist.order_update", s.OnOrderUpdate)
	s.subs[schema.EventFill] = bus.On(s.bus, "persist.fill", s.OnFill)
	s.subs[schema.EventPositionUpdate] = bus.On(s.bus, "persist.position", s.OnPosition)
	s.started = true
	logs.Info("persistence subscriber started")
}

// Stop removes every subscription.
func (s *Subscriber) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.started = false
	for t, id := range s.subs {
		if err := s.bus.Unsubscribe(t, id); err != nil {
			return errors.Wrapf(err, "unsubscribe %s", t)
		}
		delete(s.subs, t)
	}
	return nil
}

func (s *Subscriber) OnOrderRequest(ctx context.Context, o schema.OrderRequest) error {
	return s.store.InsertOrder(ctx, o)
}

func (s *Subscriber) OnOrderUpdate(ctx context.Context, u schema.OrderUpdate) error {
	return s.store.UpdateOrderStatus(ctx, u.OrderID, u.Status, u.Reason)
}

func (s *Subscriber) OnFill(ctx context.Context, f schema.Fill) error {
	return s.store.InsertFill(ctx, f)
}

func (s *Subscriber) OnPosition(ctx context.Context, p schema.Position) error {
	return s.store.UpsertPosition(ctx, p)
}

// RecordSnapshot stores a portfolio valuation.
func (s *Subscriber) RecordSnapshot(ctx context.Context, snap schema.PortfolioSnapshot) error {
	return s.store.InsertSnapshot(ctx, snap)
}
