package bot

import "github.com/prometheus/client_golang/prometheus"

var (
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Bot commands handled, by command and result.",
		},
		[]string{"command", "result"},
	)
	commandLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_command_duration_seconds",
			Help:    "Time spent handling a bot command.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"command"},
	)
	featureOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_feature_outcomes_total",
			Help: "Outcomes of like/spam/visit attempts.",
		},
		[]string{"feature", "outcome"},
	)
	updatesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_dropped_total",
			Help: "Updates dropped before dispatch, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(commandsTotal, commandLatency, featureOutcomes, updatesDropped)
}
