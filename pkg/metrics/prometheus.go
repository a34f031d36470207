package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	refreshTotal *prometheus.CounterVec
	fetchErrors  *prometheus.CounterVec
	fetchLatency *prometheus.HistogramVec
	cacheSize    *prometheus.GaugeVec
	visible      *prometheus.GaugeVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		refreshTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradedash_refresh_total",
				Help: "Refresh requests by outcome",
			},
			[]string{"outcome"},
		),
		fetchErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradedash_fetch_errors_total",
				Help: "Total feed fetch failures",
			},
			[]string{"feed"},
		),
		fetchLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradedash_fetch_duration_seconds",
				Help:    "Duration of feed fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"feed"},
		),
		cacheSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradedash_cache_records",
				Help: "Cached records per feed for the active scope",
			},
			[]string{"feed"},
		),
		visible: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradedash_visible_records",
				Help: "Records surviving the filter pipeline per feed",
			},
			[]string{"feed"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradedash_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradedash_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordRefresh records a refresh request outcome.
func (r *Recorder) RecordRefresh(outcome string) {
	r.refreshTotal.WithLabelValues(outcome).Inc()
}

// RecordFetchError records a feed fetch failure.
func (r *Recorder) RecordFetchError(feed string) {
	r.fetchErrors.WithLabelValues(feed).Inc()
}

// RecordFetchLatency records feed fetch latency in seconds.
func (r *Recorder) RecordFetchLatency(feed string, seconds float64) {
	r.fetchLatency.WithLabelValues(feed).Observe(seconds)
}

// RecordCacheSize records the cached record count for a feed.
func (r *Recorder) RecordCacheSize(feed string, n int) {
	r.cacheSize.WithLabelValues(feed).Set(float64(n))
}

// RecordVisible records the post-filter record count for a feed.
func (r *Recorder) RecordVisible(feed string, n int) {
	r.visible.WithLabelValues(feed).Set(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
