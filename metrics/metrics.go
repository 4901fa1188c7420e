// Package metrics holds the Prometheus collectors for payment flows and provider calls.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultRegistry is the registry every paymcp collector is registered with
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		PaymentsCreated, FlowOutcomes, RecoveryTotal,
		ProviderRequestDuration, ProviderErrors,
	)
}

// PaymentsCreated counts payments created with a provider
var PaymentsCreated = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "paymcp_payments_created_total",
		Help: "Payments created with a provider",
	},
	[]string{"provider"},
)

// FlowOutcomes counts terminal outcomes of guarded calls
var FlowOutcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "paymcp_flow_outcomes_total",
		Help: "Guarded tool call outcomes by flow",
	},
	[]string{"mode", "outcome"}, // paid | pending | canceled | timeout | aborted | unsupported | error
)

// RecoveryTotal counts recovery decisions
var RecoveryTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "paymcp_recovery_total",
		Help: "Recovery decisions for existing payment sessions",
	},
	[]string{"action"}, // none | execute | reuse | discard_canceled | discard_error
)

// ProviderRequestDuration observes provider API latency
var ProviderRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "paymcp_provider_request_duration_seconds",
		Help:    "Payment provider request latency in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"provider", "operation"},
)

// ProviderErrors counts failed provider requests
var ProviderErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "paymcp_provider_errors_total",
		Help: "Failed payment provider requests",
	},
	[]string{"provider", "operation"},
)

// Handler serves DefaultRegistry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{})
}
