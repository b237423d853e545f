package telegram

import "github.com/prometheus/client_golang/prometheus"

var apiCalls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "telegram_api_calls_total",
		Help: "Bot API calls by method and outcome.",
	},
	[]string{"method", "outcome"},
)

func init() {
	prometheus.MustRegister(apiCalls)
}
