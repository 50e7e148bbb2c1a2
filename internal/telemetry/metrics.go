// Package telemetry registers the prometheus collectors the checkout flow
// reports into.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the flow's collectors so components receive them by
// injection rather than through package globals.
type Metrics struct {
	PaymentAttempts  *prometheus.CounterVec // by gateway, method
	PaymentOutcomes  *prometheus.CounterVec // by status, code
	CallbacksDropped prometheus.Counter
	PaymentDuration  prometheus.Histogram
	SubmissionPhases *prometheus.CounterVec // by phase
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PaymentAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_payment_attempts_total",
			Help: "Payment attempts initiated, by gateway and method.",
		}, []string{"gateway", "method"}),
		PaymentOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_payment_outcomes_total",
			Help: "Resolved payment attempts, by status and error code.",
		}, []string{"status", "code"}),
		CallbacksDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "checkout_callbacks_dropped_total",
			Help: "Callback messages discarded for origin or shape.",
		}),
		PaymentDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "checkout_payment_duration_seconds",
			Help:    "Time from adapter invocation to resolved outcome.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		SubmissionPhases: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_submission_phases_total",
			Help: "Order submission phase entries.",
		}, []string{"phase"}),
	}
}
