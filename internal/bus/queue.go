package bus

import (
	"context"
	"sync/atomic"

	"tradesim/internal/obs"
	"tradesim/internal/schema"
	"tradesim/pkg/exception"
)

// Queue is a bounded, non-blocking inbound buffer in front of a Bus.
// External producers push with TryPublish; one consumer drains it with Run.
type Queue struct {
	ch      chan schema.Event
	closed  uint32
	metrics *obs.Metrics
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int, metrics *obs.Metrics) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan schema.Event, capacity), metrics: metrics}
}

// TryPublish enqueues an event without blocking.
func (q *Queue) TryPublish(e schema.Event) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		q.metrics.IncQueueClosed()
		return exception.ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		q.metrics.IncQueueDrop()
		return exception.ErrQueueFull
	}
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue from accepting new events. Buffered events are still drained by Run.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Run consumes events until the context is done or the queue is closed and drained.
func (q *Queue) Run(ctx context.Context, handler func(context.Context, schema.Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(ctx, e)
		}
	}
}

// Pump drains the queue into b until the context is done or the queue is closed.
func (q *Queue) Pump(ctx context.Context, b *Bus) {
	q.Run(ctx, b.Publish)
}
