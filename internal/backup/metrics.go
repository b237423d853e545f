package backup

import "github.com/prometheus/client_golang/prometheus"

var (
	backupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backups_total",
			Help: "Store backups attempted, by outcome.",
		},
		[]string{"outcome"},
	)
	backupSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backup_last_size_bytes",
		Help: "Size of the most recent backup file.",
	})
	backupLast = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "backup_last_success_timestamp_seconds",
		Help: "Unix time of the most recent successful backup.",
	})
	housekeepingPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "processed_updates_purged_total",
		Help: "Expired webhook dedupe rows removed by housekeeping.",
	})
)

func init() {
	prometheus.MustRegister(backupsTotal, backupSize, backupLast, housekeepingPurged)
}
