package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "solarwatch_"

var (
	registerOnce sync.Once

	samplesTotal   *prometheus.CounterVec
	invalidSamples *prometheus.CounterVec
	sampleVoltage  prometheus.Gauge
	samplePower    prometheus.Gauge

	alertEventsTotal  *prometheus.CounterVec
	activeAlertGauge  prometheus.Gauge
	storeFailureTotal *prometheus.CounterVec

	vendorPollTotal   *prometheus.CounterVec
	vendorPollLatency *prometheus.HistogramVec

	exportTotal *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		samplesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "samples_total",
				Help: "Total processed voltage samples by classification",
			},
			[]string{"level"},
		)
		invalidSamples = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "invalid_samples_total",
				Help: "Total samples rejected at ingress by reason",
			},
			[]string{"reason"},
		)
		sampleVoltage = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "sample_voltage_volts",
				Help: "Most recent sampled voltage",
			},
		)
		samplePower = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "sample_power_watts",
				Help: "Most recent sampled power",
			},
		)

		alertEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_events_total",
				Help: "Total alert lifecycle events by type",
			},
			[]string{"event"},
		)
		activeAlertGauge = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_alert",
				Help: "1 when a low-voltage alert is active, 0 otherwise",
			},
		)
		storeFailureTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_store_failures_total",
				Help: "Total failed alert store writes by operation",
			},
			[]string{"operation"},
		)

		vendorPollTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "vendor_poll_total",
				Help: "Total vendor API polls by result",
			},
			[]string{"result"},
		)
		vendorPollLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "vendor_poll_latency_seconds",
				Help:    "Vendor API poll latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_export_total",
				Help: "Total alert report exports by format and result",
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			samplesTotal,
			invalidSamples,
			sampleVoltage,
			samplePower,
			alertEventsTotal,
			activeAlertGauge,
			storeFailureTotal,
			vendorPollTotal,
			vendorPollLatency,
			exportTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveSample records a processed sample.
func ObserveSample(level string, voltage, watts float64) {
	if level == "" {
		level = "unknown"
	}
	if samplesTotal != nil {
		samplesTotal.WithLabelValues(level).Inc()
	}
	if sampleVoltage != nil {
		sampleVoltage.Set(voltage)
	}
	if samplePower != nil {
		samplePower.Set(watts)
	}
}

// IncInvalidSample increments the ingress rejection counter.
func IncInvalidSample(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if invalidSamples != nil {
		invalidSamples.WithLabelValues(reason).Inc()
	}
}

// IncAlertEvent increments the alert lifecycle counter and keeps the
// active-alert gauge in step.
func IncAlertEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if alertEventsTotal != nil {
		alertEventsTotal.WithLabelValues(event).Inc()
	}
	if activeAlertGauge != nil {
		switch event {
		case "opened":
			activeAlertGauge.Set(1)
		case "closed":
			activeAlertGauge.Set(0)
		}
	}
}

// IncStoreFailure increments the failed store write counter.
func IncStoreFailure(operation string) {
	if operation == "" {
		operation = "unknown"
	}
	if storeFailureTotal != nil {
		storeFailureTotal.WithLabelValues(operation).Inc()
	}
}

// ObserveVendorPoll records a vendor API poll.
func ObserveVendorPoll(result string, duration time.Duration) {
	if result == "" {
		result = "success"
	}
	if vendorPollTotal != nil {
		vendorPollTotal.WithLabelValues(result).Inc()
	}
	if vendorPollLatency != nil {
		vendorPollLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncExport increments the alert export counter.
func IncExport(format, result string) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = "success"
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
}
