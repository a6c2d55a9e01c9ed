package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"tradesim/internal/obs"
	"tradesim/internal/schema"
	"tradesim/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

func tick(symbol string, price int64) schema.Tick {
	return schema.Tick{Symbol: symbol, Price: decimal.NewFromInt(price)}
}

func TestPublishDeliversToAllHandlersOfType(t *testing.T) {
	b := New(Options{})

	var ticks, fills atomic.Int64
	b.Subscribe(schema.EventTick, "a", func(context.Context, schema.Event) error { ticks.Add(1); return nil })
	b.Subscribe(schema.EventTick, "b", func(context.Context, schema.Event) error { ticks.Add(1); return nil })
	b.Subscribe(schema.EventFill, "c", func(context.Context, schema.Event) error { fills.Add(1); return nil })

	b.Emit(t.Context(), tick("X", 10))

	assert.Equal(t, int64(2), ticks.Load())
	assert.Equal(t, int64(0), fills.Load())
	assert.Equal(t, 3, b.SubscriberCount())
}

func TestFailingHandlerDoesNotStopSiblings(t *testing.T) {
	metrics := obs.NewMetrics()
	b := New(Options{Metrics: metrics})

	var seen atomic.Int64
	b.Subscribe(schema.EventTick, "broken", func(context.Context, schema.Event) error {
		return errors.New("boom")
	})
	b.Subscribe(schema.EventTick, "panicky", func(context.Context, schema.Event) error {
		panic("boom")
	})
	b.Subscribe(schema.EventTick, "healthy", func(context.Context, schema.Event) error {
		seen.Add(1)
		return nil
	})

	for i := range 10 {
		b.Emit(t.Context(), tick("X", int64(i+1)))
	}

	assert.Equal(t, int64(10), seen.Load())
	assert.Equal(t, uint64(20), metrics.Snapshot().HandlerFaults[schema.EventTick])
	assert.Equal(t, uint64(10), metrics.Snapshot().EventCounts[schema.EventTick])
}

func TestSingleHandlerPanicIsRecovered(t *testing.T) {
	b := New(Options{})
	b.Subscribe(schema.EventTick, "panicky", func(context.Context, schema.Event) error {
		panic("boom")
	})

	assert.NotPanics(t, func() { b.Emit(t.Context(), tick("X", 1)) })
}

func TestInvokeWrapsPanic(t *testing.T) {
	err := invoke(t.Context(), subscriber{name: "p", handle: func(context.Context, schema.Event) error {
		panic("boom")
	}}, schema.NewEvent(tick("X", 1)))
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrHandlerPanic)
}

func TestHistoryIsBounded(t *testing.T) {
	b := New(Options{HistorySize: 1000})

	for i := range 1500 {
		b.Emit(t.Context(), tick("X", int64(i+1)))
	}

	history := b.History()
	require.Len(t, history, 1000)
	assert.True(t, history[0].Payload.(schema.Tick).Price.Equal(decimal.NewFromInt(501)))
	assert.True(t, history[999].Payload.(schema.Tick).Price.Equal(decimal.NewFromInt(1500)))
	for i := 1; i < len(history); i++ {
		assert.Less(t, history[i-1].Seq, history[i].Seq)
	}
}

func TestHistoryFilter(t *testing.T) {
	b := New(Options{})
	b.Emit(t.Context(), tick("X", 1))
	b.Emit(t.Context(), schema.RiskBreach{Rule: "max_drawdown"})
	b.Emit(t.Context(), tick("Y", 2))

	assert.Len(t, b.History(), 3)
	assert.Len(t, b.History(schema.EventTick), 2)
	assert.Len(t, b.History(schema.EventRiskBreach), 1)
	assert.Len(t, b.History(schema.EventTick, schema.EventRiskBreach), 3)
	assert.Empty(t, b.History(schema.EventFill))
}

func TestUnsubscribe(t *testing.T) {
	b := New(Options{})

	var calls atomic.Int64
	id := b.Subscribe(schema.EventTick, "a", func(context.Context, schema.Event) error { calls.Add(1); return nil })

	b.Emit(t.Context(), tick("X", 1))
	require.NoError(t, b.Unsubscribe(schema.EventTick, id))
	b.Emit(t.Context(), tick("X", 2))

	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, 0, b.SubscriberCount())

	err := b.Unsubscribe(schema.EventTick, id)
	assert.ErrorIs(t, err, exception.ErrNotSubscribed)

	other := b.Subscribe(schema.EventFill, "b", func(context.Context, schema.Event) error { return nil })
	err = b.Unsubscribe(schema.EventTick, other)
	assert.ErrorIs(t, err, exception.ErrNotSubscribed)
}

func TestPublishWaitsForHandlers(t *testing.T) {
	b := New(Options{MaxConcurrency: 2})

	var mu sync.Mutex
	done := 0
	for range 5 {
		b.Subscribe(schema.EventTick, "slow", func(context.Context, schema.Event) error {
			mu.Lock()
			done++
			mu.Unlock()
			return nil
		})
	}

	b.Emit(t.Context(), tick("X", 1))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, done)
}

func TestPublishAssignsSequenceAndDropsMalformed(t *testing.T) {
	b := New(Options{})

	b.Publish(t.Context(), schema.Event{Type: schema.EventFill, Payload: tick("X", 1)})
	b.Publish(t.Context(), schema.Event{Type: schema.EventTick})
	assert.Empty(t, b.History())

	b.Emit(t.Context(), tick("X", 1))
	b.Emit(t.Context(), tick("X", 2))
	history := b.History()
	require.Len(t, history, 2)
	assert.Equal(t, uint64(1), history[0].Seq)
	assert.Equal(t, uint64(2), history[1].Seq)
	assert.False(t, history[0].Timestamp.IsZero())
}

func TestClosedBusDropsEvents(t *testing.T) {
	b := New(Options{})
	var calls atomic.Int64
	b.Subscribe(schema.EventTick, "a", func(context.Context, schema.Event) error { calls.Add(1); return nil })

	b.Close()
	b.Close()
	b.Emit(t.Context(), tick("X", 1))

	assert.Equal(t, int64(0), calls.Load())
	assert.Empty(t, b.History())
}

func TestOnDispatchesTypedPayload(t *testing.T) {
	b := New(Options{})

	var got schema.Tick
	On(b, "typed", func(_ context.Context, tk schema.Tick) error {
		got = tk
		return nil
	})

	b.Emit(t.Context(), tick("X", 42))
	assert.Equal(t, "X", got.Symbol)
	assert.Equal(t, schema.EventTick, EventTypeOf[schema.Tick]())
	assert.Equal(t, schema.EventPositionUpdate, EventTypeOf[schema.Position]())
}
