package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storm_gridder"

// Metrics holds the Prometheus counters, histograms, and gauges for the gridding pipeline.
type Metrics struct {
	MessagesConsumed  prometheus.Counter
	AnalysesProduced  prometheus.Counter
	ParseErrors       prometheus.Counter
	AnalysisErrors    *prometheus.CounterVec // labels: product
	PipelineRunning   prometheus.Gauge
	ObservationsInput prometheus.Histogram

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram
	WindowBuckets           prometheus.Gauge
	LateEvents              prometheus.Counter

	// Interpolation metrics.
	AnalysisDuration  *prometheus.HistogramVec // labels: method
	UndeterminedRatio *prometheus.HistogramVec // labels: method
	MalformedCells    *prometheus.CounterVec   // labels: method
	AnalysisCache     *prometheus.CounterVec   // labels: result={hit,miss}
	ArchiveWrites     *prometheus.CounterVec   // labels: outcome={success,error}
	ArchiveEnabled    prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.MessagesConsumed,
		m.AnalysesProduced,
		m.ParseErrors,
		m.AnalysisErrors,
		m.PipelineRunning,
		m.ObservationsInput,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.WindowBuckets,
		m.LateEvents,
		m.AnalysisDuration,
		m.UndeterminedRatio,
		m.MalformedCells,
		m.AnalysisCache,
		m.ArchiveWrites,
		m.ArchiveEnabled,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      help("Total storm reports read from the source topic."),
		}),
		AnalysesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_produced_total",
			Help:      help("Total gridded analyses written to the sink topic."),
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      help("Total storm reports that could not be decoded."),
		}),
		AnalysisErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_errors_total",
			Help:      help("Analyses that failed, by product."),
		}, []string{"product"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      help("1 when the pipeline is active, 0 when shut down."),
		}),
		ObservationsInput: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_observations",
			Help:      help("Number of observations feeding each analysis."),
			Buckets:   []float64{3, 5, 10, 25, 50, 100, 250, 500},
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      help("Number of messages per batch extracted from Kafka."),
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      help("Duration of a complete batch extract-analyze-load cycle."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		WindowBuckets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_buckets",
			Help:      help("Time buckets currently held in the accumulation window."),
		}),
		LateEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "late_events_total",
			Help:      help("Reports dropped because their time bucket had already expired."),
		}),
		AnalysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      help("Time spent interpolating one analysis, by method."),
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method"}),
		UndeterminedRatio: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_undetermined_ratio",
			Help:      help("Fraction of grid cells left NaN, by method."),
			Buckets:   []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1},
		}, []string{"method"}),
		MalformedCells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_cells_total",
			Help:      help("Grid cells whose natural neighbor boundary was malformed."),
		}, []string{"method"}),
		AnalysisCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_cache_total",
			Help:      help("Analysis cache lookups by result."),
		}, []string{"result"}),
		ArchiveWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_writes_total",
			Help:      help("Analysis archive uploads by outcome."),
		}, []string{"outcome"}),
		ArchiveEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "archive_enabled",
			Help:      help("1 when analyses are archived to object storage, 0 otherwise."),
		}),
	}
}
