package registry

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the registry subsystem.
type Metrics struct {
	IngestedTotal    *prometheus.CounterVec
	TransitionsTotal *prometheus.CounterVec
	QueryDuration    prometheus.Histogram
	RunsTotal        *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	RunAlertsMerged  prometheus.Histogram
}

// NewMetrics registers and returns registry metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skywatch_alerts_ingested_total",
			Help: "Total ingested alert records by result.",
		}, []string{"result"}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skywatch_transitions_total",
			Help: "Total status transition attempts by outcome.",
		}, []string{"outcome"}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "skywatch_query_duration_seconds",
			Help:    "Duration of registry queries in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~4s
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skywatch_ingestion_runs_total",
			Help: "Total ingestion runs by final outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skywatch_ingestion_run_duration_seconds",
			Help:    "Duration of ingestion runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s .. ~51s
		}, []string{"outcome"}),
		RunAlertsMerged: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "skywatch_ingestion_run_alerts_imported",
			Help:    "Alerts imported per ingestion run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 .. ~2048
		}),
	}

	reg.MustRegister(
		m.IngestedTotal,
		m.TransitionsTotal,
		m.QueryDuration,
		m.RunsTotal,
		m.RunDuration,
		m.RunAlertsMerged,
	)

	return m
}
