package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics tracks request counts and latency by route pattern and
// status, grounded on pkg/transport/http_metrics_middleware.go's
// metricsMiddleware, minus the OpenTelemetry span it also records
// (tracing is out of scope here — see DESIGN.md).
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics registers request counters/histograms on reg (may be nil).
func NewHTTPMetrics(reg Registry) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rvc_http_requests_total",
			Help: "Total HTTP requests, labeled by route pattern and status text.",
		}, []string{"route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rvc_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds, labeled by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration)
	}
	return m
}

// Observe records one completed request.
func (m *HTTPMetrics) Observe(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, http.StatusText(status)).Inc()
	m.duration.WithLabelValues(route).Observe(d.Seconds())
}
