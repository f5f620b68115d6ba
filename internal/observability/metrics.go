package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "catchment_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the catchment pipeline.
type Metrics struct {
	FilesProcessed    prometheus.Counter
	RecordsNormalized prometheus.Counter
	NormalizeErrors   *prometheus.CounterVec // labels: kind={not_found,schema,parse,other}
	ModelRuns         *prometheus.CounterVec // labels: model
	ModelErrors       *prometheus.CounterVec // labels: model
	ResultsLoaded     prometheus.Counter
	PipelineRunning   prometheus.Gauge

	FileProcessingDuration prometheus.Histogram

	// Catalog cache metrics.
	CatalogLookups *prometheus.CounterVec // labels: result={hit,miss}
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Total catchment files normalized, simulated and loaded.",
		}),
		RecordsNormalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_normalized_total",
			Help:      "Total daily records kept inside the analysis window.",
		}),
		NormalizeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalize_errors_total",
			Help:      "Normalization failures by error kind.",
		}, []string{"kind"}),
		ModelRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_runs_total",
			Help:      "Completed model simulations by model.",
		}, []string{"model"}),
		ModelErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_errors_total",
			Help:      "Failed model runs, including parameter errors, by model.",
		}, []string{"model"}),
		ResultsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_loaded_total",
			Help:      "Total daily results written to the configured sinks.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a batch run is active, 0 otherwise.",
		}),
		FileProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_processing_duration_seconds",
			Help:      "Duration of normalize, simulate and load for one catchment file.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		CatalogLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_lookups_total",
			Help:      "Catalog cache lookups by result.",
		}, []string{"result"}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FilesProcessed,
		m.RecordsNormalized,
		m.NormalizeErrors,
		m.ModelRuns,
		m.ModelErrors,
		m.ResultsLoaded,
		m.PipelineRunning,
		m.FileProcessingDuration,
		m.CatalogLookups,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
