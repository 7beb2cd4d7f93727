package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "migration_paths"

// Metrics holds the Prometheus counters, histograms, and gauges for the path service.
type Metrics struct {
	RequestsConsumed prometheus.Counter
	FramesProduced   prometheus.Counter
	TransformErrors  prometheus.Counter
	StaleRequests    prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Path construction metrics.
	PathsBuilt         *prometheus.CounterVec // labels: stratum
	FrameBuildDuration prometheus.Histogram
	AnchorCount        prometheus.Gauge
	ActiveSessions     prometheus.Gauge

	// Remote window source metrics.
	WindowCache         *prometheus.CounterVec   // labels: result={hit,miss}
	DataServiceDuration *prometheus.HistogramVec // labels: outcome={success,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		RequestsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_consumed_total",
			Help:      "Total frame requests read from the source topic.",
		}),
		FramesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_produced_total",
			Help:      "Total frames written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Total frame requests that could not be turned into a frame.",
		}),
		StaleRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_requests_total",
			Help:      "Frame requests discarded because a newer request superseded them.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of requests per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		PathsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paths_built_total",
			Help:      "Paths built by stratum.",
		}, []string{"stratum"}),
		FrameBuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_build_duration_seconds",
			Help:      "Time to gate and build every path of one frame.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		AnchorCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "anchor_count",
			Help:      "Anchors in the most recently generated lattice.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "View sessions currently held by the registry.",
		}),
		WindowCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "window_cache_total",
			Help:      "Remote window cache lookups by result.",
		}, []string{"result"}),
		DataServiceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "data_service_duration_seconds",
			Help:      "Focus-window query duration against the data service.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"outcome"}),
	}
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RequestsConsumed,
		m.FramesProduced,
		m.TransformErrors,
		m.StaleRequests,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.PathsBuilt,
		m.FrameBuildDuration,
		m.AnchorCount,
		m.ActiveSessions,
		m.WindowCache,
		m.DataServiceDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
