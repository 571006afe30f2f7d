// Package metrics exposes Prometheus metrics for subscription reconciliation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reconciliation result label values.
const (
	ResultChanged            = "changed"
	ResultUnchanged          = "unchanged"
	ResultUnauthenticated    = "unauthenticated"
	ResultBillingUnavailable = "billing_unavailable"
	ResultError              = "error"
)

// Metrics holds the collectors for the reconciliation pipeline.
type Metrics struct {
	ReconciliationsTotal   *prometheus.CounterVec
	ReconciliationDuration prometheus.Histogram
	CheckoutSessionsTotal  prometheus.Counter
	PortalSessionsTotal    prometheus.Counter
}

// New registers the reconciliation collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ReconciliationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "plantae_reconciliations_total",
			Help: "Subscription reconciliation attempts by result.",
		}, []string{"result"}),
		ReconciliationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "plantae_reconciliation_duration_seconds",
			Help:    "End-to-end duration of successful reconciliations.",
			Buckets: prometheus.DefBuckets,
		}),
		CheckoutSessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "plantae_checkout_sessions_total",
			Help: "Checkout sessions created.",
		}),
		PortalSessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "plantae_portal_sessions_total",
			Help: "Customer portal sessions created.",
		}),
	}
}

// ObserveReconciliation records one reconciliation attempt outcome.
func (m *Metrics) ObserveReconciliation(result string, seconds float64) {
	m.ReconciliationsTotal.WithLabelValues(result).Inc()
	if result == ResultChanged || result == ResultUnchanged {
		m.ReconciliationDuration.Observe(seconds)
	}
}
