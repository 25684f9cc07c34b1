// Package observability provides Prometheus metrics for the responder.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// RequestsTotal counts responder HTTP requests by route and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medibridge_responder_requests_total",
			Help: "Responder requests",
		},
		[]string{"route", "status"},
	)

	// RepliesTotal counts script replies by node. Unmatched messages are
	// recorded under node "fallback".
	RepliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medibridge_responder_replies_total",
			Help: "Script replies",
		},
		[]string{"node"},
	)

	// ExchangeLogFailuresTotal counts exchanges that could not be persisted.
	ExchangeLogFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medibridge_responder_exchange_log_failures_total",
			Help: "Exchange log write failures",
		},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal, RepliesTotal, ExchangeLogFailuresTotal)
}

// StatusClass buckets an HTTP status code into "2xx", "4xx" and so on.
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
