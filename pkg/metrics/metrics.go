package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records wallet operation, webhook delivery and reconciliation
// metrics. All methods are nil-safe so instrumentation can be disabled by
// passing a nil registerer.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	webhooks   *prometheus.CounterVec
	reconRuns  prometheus.Histogram
	queueDepth prometheus.Gauge
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_operations_total",
		Help: "Wallet ledger operations by type and outcome.",
	}, []string{"operation", "outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Outbound webhook delivery attempts by outcome.",
	}, []string{"outcome"})
	reconRuns := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconciliation_run_seconds",
		Help:    "Duration of reconciliation runs in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "webhook_queue_depth",
		Help: "Events waiting in the outbound webhook queue.",
	})
	reg.MustRegister(operations, webhooks, reconRuns, queueDepth)
	return &LedgerMetrics{
		operations: operations,
		webhooks:   webhooks,
		reconRuns:  reconRuns,
		queueDepth: queueDepth,
	}
}

// IncOperation increments the counter for the named wallet operation.
func (m *LedgerMetrics) IncOperation(op, outcome string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

// IncWebhook increments the webhook delivery counter.
func (m *LedgerMetrics) IncWebhook(outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(outcome).Inc()
}

// ObserveReconciliation records the duration of a reconciliation run.
func (m *LedgerMetrics) ObserveReconciliation(d time.Duration) {
	if m == nil || m.reconRuns == nil {
		return
	}
	m.reconRuns.Observe(d.Seconds())
}

// SetQueueDepth records the current outbound webhook queue depth.
func (m *LedgerMetrics) SetQueueDepth(n int) {
	if m == nil || m.queueDepth == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
