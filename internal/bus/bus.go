package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tradesim/internal/obs"
	"tradesim/internal/schema"
	"tradesim/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"
)

// DefaultHistorySize is the number of events retained when Options.HistorySize is zero.
const DefaultHistorySize = 1000

// Handler reacts to one published event.
type Handler func(ctx context.Context, ev schema.Event) error

// SubscriptionID identifies a subscription for Unsubscribe.
type SubscriptionID uint64

// Options controls bus behavior.
type Options struct {
	HistorySize int
	// MaxConcurrency caps handlers running at once for a single publish. 0 = no cap.
	MaxConcurrency int
	Metrics        *obs.Metrics
}

type subscriber struct {
	id     SubscriptionID
	name   string
	handle Handler
}

// Bus is a typed publish/subscribe hub. Handlers of one event run
// concurrently and Publish returns once all of them are done.
type Bus struct {
	opt     Options
	seq     *obs.SequenceGenerator
	metrics *obs.Metrics
	closed  atomic.Bool

	mu     sync.RWMutex
	subs   map[schema.EventType][]subscriber
	nextID SubscriptionID

	historyMu sync.Mutex
	history   []schema.Event
	head      int
}

// New creates an empty bus.
func New(opt Options) *Bus {
	if opt.HistorySize <= 0 {
		opt.HistorySize = DefaultHistorySize
	}
	if opt.MaxConcurrency < 0 {
		opt.MaxConcurrency = 0
	}
	return &Bus{
		opt:     opt,
		seq:     obs.NewSequenceGenerator(0),
		metrics: opt.Metrics,
		subs:    make(map[schema.EventType][]subscriber),
		history: make([]schema.Event, 0, opt.HistorySize),
	}
}

// Subscribe registers handler for eventType. The name is used in logs only.
func (b *Bus) Subscribe(eventType schema.EventType, name string, handler Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[eventType] = append(b.subs[eventType], subscriber{id: id, name: name, handle: handler})
	logs.Debugf("bus: subscribed %s to %s", name, eventType)
	return id
}

// Unsubscribe removes a subscription. Removing one that is not
// registered for eventType returns exception.ErrNotSubscribed.
func (b *Bus) Unsubscribe(eventType schema.EventType, id SubscriptionID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[eventType]
	for i, s := range list {
		if s.id != id {
			continue
		}
		next := make([]subscriber, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(b.subs, eventType)
		} else {
			b.subs[eventType] = next
		}
		return nil
	}
	return errors.Wrapf(exception.ErrNotSubscribed, "type: %s, id: %d", eventType, id)
}

// SubscriberCount returns the number of registered handlers across all types.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, list := range b.subs {
		n += len(list)
	}
	return n
}

// Emit wraps p in an event and publishes it.
func (b *Bus) Emit(ctx context.Context, p schema.Payload) {
	b.Publish(ctx, schema.NewEvent(p))
}

// Publish records ev and delivers it to every handler of its type.
// Handler failures are logged and never reach the caller.
func (b *Bus) Publish(ctx context.Context, ev schema.Event) {
	if b.closed.Load() {
		logs.Warnf("bus: publish %s after close, dropped", ev.Type)
		return
	}
	if ev.Payload == nil || !ev.Type.IsAvailable() || ev.Payload.EventType() != ev.Type {
		logs.Errorf("bus: malformed event dropped, type: %s", ev.Type)
		return
	}
	ev.Seq = b.seq.Next()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	b.record(ev)
	b.metrics.ObserveEvent(ev.Type)

	b.mu.RLock()
	handlers := b.subs[ev.Type]
	b.mu.RUnlock()

	switch len(handlers) {
	case 0:
		return
	case 1:
		if err := invoke(ctx, handlers[0], ev); err != nil {
			b.fault(handlers[0], ev, err)
		}
		return
	}

	var g errgroup.Group
	if b.opt.MaxConcurrency > 0 {
		g.SetLimit(b.opt.MaxConcurrency)
	}
	errs := make([]error, len(handlers))
	for i, s := range handlers {
		g.Go(func() error {
			errs[i] = invoke(ctx, s, ev)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			b.fault(handlers[i], ev, err)
		}
	}
}

// History returns retained events in arrival order, optionally filtered by type.
func (b *Bus) History(types ...schema.EventType) []schema.Event {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	out := make([]schema.Event, 0, len(b.history))
	n := len(b.history)
	for i := range n {
		ev := b.history[(b.head+i)%n]
		if len(types) != 0 && !containsType(types, ev.Type) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Close stops delivery; later publishes are dropped.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}
	logs.Info("bus: closed")
}

func (b *Bus) record(ev schema.Event) {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	if len(b.history) < b.opt.HistorySize {
		b.history = append(b.history, ev)
		return
	}
	b.history[b.head] = ev
	b.head = (b.head + 1) % len(b.history)
}

func (b *Bus) fault(s subscriber, ev schema.Event, err error) {
	b.metrics.IncHandlerFault(ev.Type)
	logs.Errorf("bus: handler %s failed on %s #%d, err: %+v", s.name, ev.Type, ev.Seq, err)
}

func invoke(ctx context.Context, s subscriber, ev schema.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(exception.ErrHandlerPanic, "handler: %s, recovered: %v", s.name, r)
		}
	}()
	return s.handle(ctx, ev)
}

func containsType(types []schema.EventType, t schema.EventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
