package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ReconcileRuns           *prometheus.CounterVec
	CompletionsDispatched   *prometheus.CounterVec
	NotificationFailures    prometheus.Counter
	PaymentsRecorded        prometheus.Counter
	DuplicateTransactions   prometheus.Counter
	ReconcileDuration       prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		ReconcileRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ccak_billing_reconcile_runs_total",
			Help: "Total reconciliation runs by resulting invoice status",
		}, []string{"status"}),
		CompletionsDispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ccak_billing_completions_dispatched_total",
			Help: "Total completion actions dispatched by invoice type",
		}, []string{"type"}),
		NotificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ccak_billing_notification_failures_total",
			Help: "Total notification sends that failed after the state write",
		}),
		PaymentsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ccak_billing_payments_recorded_total",
			Help: "Total payments recorded",
		}),
		DuplicateTransactions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ccak_billing_duplicate_transactions_total",
			Help: "Payments skipped during aggregation because their transaction id was already counted",
		}),
		ReconcileDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ccak_billing_reconcile_duration_seconds",
			Help:    "Wall time of a reconciliation run",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveReconcile(status string, seconds float64) {
	if m == nil {
		return
	}
	m.ReconcileRuns.WithLabelValues(status).Inc()
	m.ReconcileDuration.Observe(seconds)
}

func (m *Metrics) IncrementCompletions(invoiceType string) {
	if m == nil {
		return
	}
	m.CompletionsDispatched.WithLabelValues(invoiceType).Inc()
}

func (m *Metrics) IncrementNotificationFailures() {
	if m == nil {
		return
	}
	m.NotificationFailures.Inc()
}

func (m *Metrics) IncrementPaymentsRecorded() {
	if m == nil {
		return
	}
	m.PaymentsRecorded.Inc()
}

func (m *Metrics) IncrementDuplicateTransactions() {
	if m == nil {
		return
	}
	m.DuplicateTransactions.Inc()
}
