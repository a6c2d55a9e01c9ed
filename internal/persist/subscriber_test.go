package persist

import (
	"context"
	"testing"

	"tradesim/internal/bus"
	"tradesim/internal/obs"
	"tradesim/internal/schema"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) InsertOrder(ctx context.Context, order schema.OrderRequest) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockStore) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status schema.OrderStatus, reason string) error {
	args := m.Called(ctx, id, status, reason)
	return args.Error(0)
}

func (m *MockStore) InsertFill(ctx context.Context, fill schema.Fill) error {
	args := m.Called(ctx, fill)
	return args.Error(0)
}

func (m *MockStore) UpsertPosition(ctx context.Context, pos schema.Position) error {
	args := m.Called(ctx, pos)
	return args.Error(0)
}

func (m *MockStore) InsertSnapshot(ctx context.Context, snap schema.PortfolioSnapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func TestSubscriberPersistsEvents(t *testing.T) {
	store := new(MockStore)
	b := bus.New(bus.Options{})
	s := NewSubscriber(b, store)
	s.Start()
	t.Cleanup(func() { _ = s.Stop() })

	o := newOrder(t, "X")
	fill := schema.Fill{OrderID: o.ID, Symbol: "X", Side: schema.SideBuy, Quantity: 10, Price: dec("10")}
	pos := schema.Position{Symbol: "X", Quantity: 10, AvgEntryPrice: dec("10")}

	store.On("InsertOrder", mock.Anything, o).Return(nil).Once()
	store.On("UpdateOrderStatus", mock.Anything, o.ID, schema.OrderStatusFilled, "").Return(nil).Once()
	store.On("InsertFill", mock.Anything, fill).Return(nil).Once()
	store.On("UpsertPosition", mock.Anything, pos).Return(nil).Once()

	b.Emit(t.Context(), o)
	b.Emit(t.Context(), fill)
	b.Emit(t.Context(), pos)
	b.Emit(t.Context(), schema.OrderUpdate{OrderID: o.ID, Status: schema.OrderStatusFilled})
	b.Emit(t.Context(), schema.Tick{Symbol: "X", Price: dec("11")})

	store.AssertExpectations(t)
}

func TestSubscriberStoreErrorIsIsolated(t *testing.T) {
	store := new(MockStore)
	metrics := obs.NewMetrics()
	b := bus.New(bus.Options{Metrics: metrics})
	s := NewSubscriber(b, store)
	s.Start()

	var seen int
	bus.On(b, "other", func(context.Context, schema.Fill) error {
		seen++
		return nil
	})

	store.On("InsertFill", mock.Anything, mock.Anything).Return(errors.New("db down")).Once()
	b.Emit(t.Context(), schema.Fill{OrderID: uuid.New(), Symbol: "X", Side: schema.SideBuy, Quantity: 1, Price: dec("1")})

	assert.Equal(t, 1, seen)
	assert.Equal(t, uint64(1), metrics.Snapshot().HandlerFaults[schema.EventFill])
	store.AssertExpectations(t)

	require.NoError(t, s.Stop())
	b.Emit(t.Context(), schema.Fill{OrderID: uuid.New(), Symbol: "X", Side: schema.SideBuy, Quantity: 1, Price: dec("1")})
	store.AssertNumberOfCalls(t, "InsertFill", 1)
}

func TestRecordSnapshot(t *testing.T) {
	store := new(MockStore)
	s := NewSubscriber(bus.New(bus.Options{}), store)

	snap := schema.PortfolioSnapshot{Cash: dec("5")}
	store.On("InsertSnapshot", mock.Anything, snap).Return(nil).Once()
	require.NoError(t, s.RecordSnapshot(t.Context(), snap))
	store.AssertExpectations(t)
}
