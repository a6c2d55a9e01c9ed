package obs

import (
	"github.com/prometheus/client_golang/prometheus"

	"tradesim/internal/schema"
)

const namespace = "tradesim"

var (
	eventsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "bus", "events_total"),
		"Events published on the bus.",
		[]string{"type"}, nil,
	)
	handlerFaultsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "bus", "handler_faults_total"),
		"Handlers that returned an error or panicked.",
		[]string{"type"}, nil,
	)
	queueDropsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "bus", "queue_drops_total"),
		"Inbound events dropped because the queue was full.",
		nil, nil,
	)
	riskRejectsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "risk", "rejections_total"),
		"Orders rejected by the risk manager.",
		[]string{"reason"}, nil,
	)
	fillsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "order", "fills_total"),
		"Simulated fills published.",
		nil, nil,
	)
	stopTriggersDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "stoploss", "triggers_total"),
		"Stop levels that fired a closing signal.",
		nil, nil,
	)
	riskEvalDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "risk", "eval_avg_seconds"),
		"Average risk evaluation latency.",
		nil, nil,
	)
	orderToFillDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "order", "to_fill_avg_seconds"),
		"Average latency from order creation to fill.",
		nil, nil,
	)
)

var _ prometheus.Collector = (*Metrics)(nil)

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- eventsDesc
	ch <- handlerFaultsDesc
	ch <- queueDropsDesc
	ch <- riskRejectsDesc
	ch <- fillsDesc
	ch <- stopTriggersDesc
	ch <- riskEvalDesc
	ch <- orderToFillDesc
}

// Collect implements prometheus.Collector from an atomic snapshot.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	snap := m.Snapshot()
	for _, t := range schema.EventTypes() {
		ch <- prometheus.MustNewConstMetric(eventsDesc, prometheus.CounterValue, float64(snap.EventCounts[t]), t.String())
		ch <- prometheus.MustNewConstMetric(handlerFaultsDesc, prometheus.CounterValue, float64(snap.HandlerFaults[t]), t.String())
	}
	for _, r := range schema.RiskReasons() {
		if r == schema.RiskReasonNone {
			continue
		}
		ch <- prometheus.MustNewConstMetric(riskRejectsDesc, prometheus.CounterValue, float64(snap.RiskReasonCounts[r]), r.String())
	}
	ch <- prometheus.MustNewConstMetric(queueDropsDesc, prometheus.CounterValue, float64(snap.QueueDrops))
	ch <- prometheus.MustNewConstMetric(fillsDesc, prometheus.CounterValue, float64(snap.Fills))
	ch <- prometheus.MustNewConstMetric(stopTriggersDesc, prometheus.CounterValue, float64(snap.StopTriggers))
	ch <- prometheus.MustNewConstMetric(riskEvalDesc, prometheus.GaugeValue, snap.RiskEvalLatency.Avg.Seconds())
	ch <- prometheus.MustNewConstMetric(orderToFillDesc, prometheus.GaugeValue, snap.OrderToFillLatency.Avg.Seconds())
}
