package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	applogger "TradeDash/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestMetricsOnce sync.Once
	requestMetrics     struct {
		total    *prometheus.CounterVec
		duration *prometheus.HistogramVec
		inFlight *prometheus.GaugeVec
		respSize *prometheus.HistogramVec
	}
)

func registerRequestMetrics() {
	requestMetrics.total = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradedash_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	requestMetrics.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradedash_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"route", "method", "status", "class"},
	)
	requestMetrics.inFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradedash_http_in_flight_requests",
			Help: "Current number of in-flight HTTP requests",
		},
		[]string{"route", "method"},
	)
	requestMetrics.respSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradedash_http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: []float64{200, 500, 1_000, 2_000, 5_000, 10_000, 50_000, 100_000, 500_000, 1_000_000},
		},
		[]string{"route", "method", "status", "class"},
	)
	prometheus.MustRegister(
		requestMetrics.total,
		requestMetrics.duration,
		requestMetrics.inFlight,
		requestMetrics.respSize,
	)
}

// Metrics is a net/http middleware recording request metrics with
// low-cardinality labels. The dashboard API has a small fixed route
// set, so raw paths are safe as labels.
func Metrics(l *applogger.Logger, slowThreshold time.Duration) func(http.Handler) http.Handler {
	requestMetricsOnce.Do(registerRequestMetrics)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeLabel(r)
			method := r.Method

			requestMetrics.inFlight.WithLabelValues(route, method).Inc()
			start := time.Now()

			cw := &countingWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(cw, r)

			elapsed := time.Since(start)
			status := strconv.Itoa(cw.status)
			class := statusClass(cw.status)

			requestMetrics.total.WithLabelValues(route, method, status).Inc()
			requestMetrics.duration.WithLabelValues(route, method, status, class).Observe(elapsed.Seconds())
			requestMetrics.respSize.WithLabelValues(route, method, status, class).Observe(float64(cw.written))
			requestMetrics.inFlight.WithLabelValues(route, method).Dec()

			logRequest(l, route, method, status, cw, elapsed, slowThreshold)
		})
	}
}

// logRequest emits an error for 5xx responses and a warning for slow
// ones.
func logRequest(l *applogger.Logger, route, method, status string, cw *countingWriter, elapsed, slowThreshold time.Duration) {
	if l == nil {
		return
	}
	fields := []applogger.Field{
		applogger.String("route", route),
		applogger.String("method", method),
		applogger.String("status", status),
		applogger.Duration("duration_ms", elapsed),
		applogger.Int("bytes", cw.written),
	}
	switch {
	case cw.status >= 500:
		l.Error("http request failed", fields...)
	case slowThreshold > 0 && elapsed >= slowThreshold:
		l.Warn("http request slow", fields...)
	}
}

type countingWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *countingWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *countingWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

// routeLabel prefers a route template set in the request context by
// the mux, falling back to the URL path.
func routeLabel(r *http.Request) string {
	if s, ok := r.Context().Value("route").(string); ok && s != "" {
		return s
	}
	return r.URL.Path
}

func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
