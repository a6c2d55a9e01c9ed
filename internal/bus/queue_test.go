package bus

import (
	"context"
	"testing"

	"tradesim/internal/obs"
	"tradesim/internal/schema"
	"tradesim/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueTryPublishFullAndClosed(t *testing.T) {
	metrics := obs.NewMetrics()
	q := NewQueue(1, metrics)

	require.NoError(t, q.TryPublish(schema.NewEvent(tick("X", 1))))
	err := q.TryPublish(schema.NewEvent(tick("X", 2)))
	assert.ErrorIs(t, err, exception.ErrQueueFull)
	assert.Equal(t, 1, q.Len())

	q.Close()
	err = q.TryPublish(schema.NewEvent(tick("X", 3)))
	assert.ErrorIs(t, err, exception.ErrQueueClosed)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.QueueDrops)
	assert.Equal(t, uint64(1), snap.QueueClosed)
}

func TestQueuePumpDrainsIntoBus(t *testing.T) {
	b := New(Options{})
	q := NewQueue(8, nil)

	for i := range 5 {
		require.NoError(t, q.TryPublish(schema.NewEvent(tick("X", int64(i+1)))))
	}
	q.Close()
	q.Pump(t.Context(), b)

	assert.Len(t, b.History(schema.EventTick), 5)
}

func TestQueueRunStopsOnContext(t *testing.T) {
	q := NewQueue(1, nil)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	called := false
	q.Run(ctx, func(context.Context, schema.Event) { called = true })
	assert.False(t, called)
}
