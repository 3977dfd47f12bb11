package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the finder service.
type Metrics struct {
	Queries      *prometheus.CounterVec // labels: kind={nearest,within}, outcome={ok,out_of_region,missing_coordinates,error}
	Cache        *prometheus.CounterVec // labels: result={hit,miss}
	RankDuration prometheus.Histogram
	DatasetSize  prometheus.Gauge
	BatchJobs    *prometheus.CounterVec // labels: status={running,done,error}, one running plus one final event per job
}

func newMetrics() *Metrics {
	return &Metrics{
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pandal_finder",
			Name:      "queries_total",
			Help:      "Ranking queries by kind and validation outcome.",
		}, []string{"kind", "outcome"}),
		Cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pandal_finder",
			Name:      "cache_total",
			Help:      "Result cache lookups by result.",
		}, []string{"result"}),
		RankDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pandal_finder",
			Name:      "rank_duration_seconds",
			Help:      "Time spent ranking the dataset for one query.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		DatasetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pandal_finder",
			Name:      "dataset_pandals",
			Help:      "Number of pandals in the loaded dataset.",
		}),
		BatchJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pandal_finder",
			Name:      "batch_jobs_total",
			Help:      "Batch job lifecycle events by status.",
		}, []string{"status"}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.Queries, m.Cache, m.RankDuration, m.DatasetSize, m.BatchJobs)
	return m
}

// NewUnregisteredMetrics creates Metrics without registering them. One-shot
// commands and tests use it to avoid duplicate registration.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}
