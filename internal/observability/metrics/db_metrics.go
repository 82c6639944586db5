package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "voltage_alerts_active",
			Help: "Active voltage alert rows in the store",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM voltage_alerts WHERE is_active = TRUE")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "voltage_alerts_total_rows",
			Help: "Total voltage alert rows in the store",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM voltage_alerts")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
