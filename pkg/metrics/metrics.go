package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Ingest related metrics
	SlicesIngested  prometheus.Counter
	IngestFailures  prometheus.Counter
	IngestLatency   prometheus.Histogram
	StudiesTracked  prometheus.Gauge
	SlicesBySaveErr *prometheus.CounterVec

	// Render related metrics
	RendersTotal  *prometheus.CounterVec
	RenderLatency *prometheus.HistogramVec
	RenderMisses  prometheus.Counter

	// Interpretation metrics
	InterpretRequests  *prometheus.CounterVec
	InterpretCacheHits prometheus.Counter
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		SlicesIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slices_ingested_total",
			Help:      "Total number of slices added to the hierarchy index",
		}),
		IngestFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_parse_failures_total",
			Help:      "Total number of uploads indexed with a degraded record after a parse failure",
		}),
		IngestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Time spent saving and indexing one uploaded file",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		StudiesTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "studies_tracked",
			Help:      "Current number of studies in the hierarchy index",
		}),
		SlicesBySaveErr: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_store_errors_total",
			Help:      "Total number of durable store write failures by stage",
		}, []string{"stage"}),

		RendersTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Total number of slice render calls",
		}, []string{"format", "status"}),
		RenderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Duration of slice render calls",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"format"}),
		RenderMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_misses_total",
			Help:      "Total number of renders refused for unknown slices or missing backing files",
		}),

		InterpretRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interpret_requests_total",
			Help:      "Total number of series interpretation requests",
		}, []string{"status"}),
		InterpretCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interpret_cache_hits_total",
			Help:      "Total number of interpretation requests served from cache",
		}),
	}
}
