package gameapi

import "github.com/prometheus/client_golang/prometheus"

var (
	// apiReqs counts upstream calls by endpoint and outcome
	// (ok|timeout|unavailable|not_found).
	apiReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gameapi_requests_total",
			Help: "Total number of game API requests.",
		},
		[]string{"endpoint", "outcome"},
	)

	apiLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gameapi_request_duration_seconds",
			Help:    "Duration of game API requests in seconds.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(apiReqs, apiLat)
}
