// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session Metrics
var (
	// AuthEventsTotal tracks session operations by operation and outcome
	AuthEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videotube_auth_events_total",
			Help: "Session operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
)

// Subscription Metrics
var (
	// SubscriptionTogglesTotal tracks toggle outcomes
	SubscriptionTogglesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videotube_subscription_toggles_total",
			Help: "Subscription toggles by resulting action",
		},
		[]string{"action"},
	)

	// SubscriptionToggleRetries counts toggles re-decided after a concurrent subscribe
	SubscriptionToggleRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videotube_subscription_toggle_retries_total",
			Help: "Subscription toggles retried after a uniqueness conflict",
		},
	)
)

// HTTP Metrics
var (
	// HTTPErrorsTotal tracks error responses by error kind
	HTTPErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videotube_http_errors_total",
			Help: "HTTP error responses by error kind",
		},
		[]string{"kind"},
	)

	// RateLimitedTotal counts requests rejected by the per-client limiter
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videotube_rate_limited_total",
			Help: "Requests rejected by the rate limiter by scope",
		},
		[]string{"scope"},
	)
)

// RecordAuth increments the session operation counter.
func RecordAuth(operation, outcome string) {
	AuthEventsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordToggle increments the subscription toggle counter.
func RecordToggle(action string) {
	SubscriptionTogglesTotal.WithLabelValues(action).Inc()
}

// RecordHTTPError increments the HTTP error counter.
func RecordHTTPError(kind string) {
	HTTPErrorsTotal.WithLabelValues(kind).Inc()
}
