package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "river_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	ReportsProcessed *prometheus.CounterVec // labels: outcome={loaded,skipped,rejected,failed}
	RecordsLoaded    prometheus.Counter
	RecordsPublished prometheus.Counter
	PublishErrors    prometheus.Counter
	Diagnostics      *prometheus.CounterVec // labels: kind
	PipelineRunning  prometheus.Gauge

	ReportRows               prometheus.Histogram
	ReportProcessingDuration prometheus.Histogram
	StoreWriteDuration       prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ReportsProcessed,
		m.RecordsLoaded,
		m.RecordsPublished,
		m.PublishErrors,
		m.Diagnostics,
		m.PipelineRunning,
		m.ReportRows,
		m.ReportProcessingDuration,
		m.StoreWriteDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ReportsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_processed_total",
			Help:      "Reports handled by outcome.",
		}, []string{"outcome"}),
		RecordsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_loaded_total",
			Help:      "Normalized records appended to the table store.",
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Normalized records written to the sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed attempts to publish a report's records.",
		}),
		Diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Non-fatal normalization diagnostics by kind.",
		}, []string{"kind"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		ReportRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_rows",
			Help:      "Data rows per normalized report.",
			Buckets:   []float64{0, 10, 25, 50, 75, 100, 150, 200},
		}),
		ReportProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_processing_duration_seconds",
			Help:      "Duration of a complete read-normalize-load cycle for one report.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		StoreWriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_write_duration_seconds",
			Help:      "Duration of the transactional table store append.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
	}
}
