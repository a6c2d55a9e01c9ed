package obs

import (
	"sync/atomic"
	"time"

	"tradesim/internal/schema"
)

const (
	maxEventType  = int(schema.EventRiskBreach)
	maxRiskReason = int(schema.RiskReasonMaxDrawdown)
)

// Metrics collects lightweight counters and latency stats.
type Metrics struct {
	eventCounts      [maxEventType + 1]uint64
	handlerFaults    [maxEventType + 1]uint64
	riskReasonCounts [maxRiskReason + 1]uint64
	fills            uint64
	stopTriggers     uint64
	queueDrops       uint64
	queueClosed      uint64

	riskEvalLatency    LatencyStats
	orderToFillLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	EventCounts        map[schema.EventType]uint64
	HandlerFaults      map[schema.EventType]uint64
	RiskReasonCounts   map[schema.RiskReason]uint64
	Fills              uint64
	StopTriggers       uint64
	QueueDrops         uint64
	QueueClosed        uint64
	RiskEvalLatency    LatencySnapshot
	OrderToFillLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent counts a published event.
func (m *Metrics) ObserveEvent(t schema.EventType) {
	if m == nil {
		return
	}
	idx := int(t)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
}

// IncHandlerFault counts a handler that returned an error or panicked.
func (m *Metrics) IncHandlerFault(t schema.EventType) {
	if m == nil {
		return
	}
	idx := int(t)
	if idx >= 0 && idx < len(m.handlerFaults) {
		atomic.AddUint64(&m.handlerFaults[idx], 1)
	}
}

// IncRiskReason increments the risk reason counter.
func (m *Metrics) IncRiskReason(reason schema.RiskReason) {
	if m == nil {
		return
	}
	idx := int(reason)
	if idx >= 0 && idx < len(m.riskReasonCounts) {
		atomic.AddUint64(&m.riskReasonCounts[idx], 1)
	}
}

// IncFill records a simulated fill.
func (m *Metrics) IncFill() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.fills, 1)
}

// IncStopTrigger records a fired stop level.
func (m *Metrics) IncStopTrigger() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.stopTriggers, 1)
}

// IncQueueDrop records a queue drop.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncQueueClosed records a closed-queue publish attempt.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// ObserveRiskEval measures risk evaluation latency.
func (m *Metrics) ObserveRiskEval(d time.Duration) {
	if m == nil {
		return
	}
	m.riskEvalLatency.Observe(d)
}

// ObserveOrderToFill measures the delay between order creation and its fill.
func (m *Metrics) ObserveOrderToFill(d time.Duration) {
	if m == nil {
		return
	}
	m.orderToFillLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		EventCounts:        loadEventCounts(m.eventCounts[:]),
		HandlerFaults:      loadEventCounts(m.handlerFaults[:]),
		RiskReasonCounts:   loadReasonCounts(m.riskReasonCounts[:]),
		Fills:              atomic.LoadUint64(&m.fills),
		StopTriggers:       atomic.LoadUint64(&m.stopTriggers),
		QueueDrops:         atomic.LoadUint64(&m.queueDrops),
		QueueClosed:        atomic.LoadUint64(&m.queueClosed),
		RiskEvalLatency:    m.riskEvalLatency.Snapshot(),
		OrderToFillLatency: m.orderToFillLatency.Snapshot(),
	}
}

func loadEventCounts(src []uint64) map[schema.EventType]uint64 {
	out := make(map[schema.EventType]uint64)
	for i := range src {
		if v := atomic.LoadUint64(&src[i]); v > 0 {
			out[schema.EventType(i)] = v
		}
	}
	return out
}

func loadReasonCounts(src []uint64) map[schema.RiskReason]uint64 {
	out := make(map[schema.RiskReason]uint64)
	for i := range src {
		if v := atomic.LoadUint64(&src[i]); v > 0 {
			out[schema.RiskReason(i)] = v
		}
	}
	return out
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
