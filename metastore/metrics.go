package metastore

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the consumption metrics of all stores of a process.
type Metrics struct {
	RecordsApplied    *prometheus.CounterVec
	TombstonesApplied *prometheus.CounterVec
	ConsumeErrors     *prometheus.CounterVec
	DecodeErrors      *prometheus.CounterVec
	Records           *prometheus.GaugeVec
	WriteErrors       *prometheus.CounterVec
}

// NewMetrics creates the store metrics. Register them with PrometheusCollectors.
func NewMetrics() *Metrics {
	const (
		namespace = "metastage"
		subsystem = "metastore"
	)
	labels := []string{"environment", "store"}

	return &Metrics{
		RecordsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records_applied_total",
			Help:      "Count of records applied to the in-memory view",
		}, labels),

		TombstonesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tombstones_applied_total",
			Help:      "Count of tombstones that removed a key from the in-memory view",
		}, labels),

		ConsumeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "consume_errors_total",
			Help:      "Count of errors reading the backing topic; each one causes a reconnect",
		}, labels),

		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "decode_errors_total",
			Help:      "Count of records skipped because they could not be decoded",
		}, labels),

		Records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "records",
			Help:      "Number of keys in the in-memory view",
		}, labels),

		WriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "write_errors_total",
			Help:      "Count of saves and deletes rejected by the broker",
		}, labels),
	}
}

// PrometheusCollectors satisfies the prom.PrometheusCollector interface.
func (m *Metrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RecordsApplied,
		m.TombstonesApplied,
		m.ConsumeErrors,
		m.DecodeErrors,
		m.Records,
		m.WriteErrors,
	}
}
