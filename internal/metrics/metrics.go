// Package metrics exposes the Prometheus counters and gauges the retry
// engine and message bus record, grounded on pkg/observability/metrics.go's
// CounterVec/GaugeVec style. All constructors accept a nil registry, in
// which case the metrics are built but not registered, and every
// recording method is a no-op on a nil receiver, so components can be
// used without wiring observability at all (e.g. in unit tests).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry is the subset of *prometheus.Registry the constructors need,
// letting callers share one process-wide registry across components.
type Registry = prometheus.Registerer

// RetryMetrics tracks the retry engine's exponential-backoff behavior.
type RetryMetrics struct {
	attempts       *prometheus.CounterVec
	successes      *prometheus.CounterVec
	failures       *prometheus.CounterVec
	cumulativeWait prometheus.Counter
}

// NewRetryMetrics registers retry-engine counters on reg. reg may be nil,
// in which case the counters still record but are never registered.
func NewRetryMetrics(reg Registry) *RetryMetrics {
	m := &RetryMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rvc_retry_attempts_total",
			Help: "Total retry-engine task attempts, labeled by task name.",
		}, []string{"task"}),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rvc_retry_successes_total",
			Help: "Total retry-engine tasks that eventually succeeded.",
		}, []string{"task"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rvc_retry_failures_total",
			Help: "Total retry-engine tasks that exhausted their retries.",
		}, []string{"task"}),
		cumulativeWait: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rvc_retry_cumulative_delay_seconds_total",
			Help: "Cumulative time spent sleeping between retry attempts.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.successes, m.failures, m.cumulativeWait)
	}
	return m
}

func (m *RetryMetrics) ObserveAttempt(task string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(task).Inc()
}

func (m *RetryMetrics) ObserveSuccess(task string) {
	if m == nil {
		return
	}
	m.successes.WithLabelValues(task).Inc()
}

func (m *RetryMetrics) ObserveFailure(task string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(task).Inc()
}

func (m *RetryMetrics) ObserveDelaySeconds(seconds float64) {
	if m == nil {
		return
	}
	m.cumulativeWait.Add(seconds)
}

// BusMetrics tracks the message bus's fan-out and generating-message
// state.
type BusMetrics struct {
	subscriberDrops prometheus.Counter
	subscribers     prometheus.Gauge
	generating      prometheus.Gauge
}

// NewBusMetrics registers message-bus gauges/counters on reg (may be nil).
func NewBusMetrics(reg Registry) *BusMetrics {
	m := &BusMetrics{
		subscriberDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rvc_bus_subscriber_drops_total",
			Help: "Patches dropped because a subscriber's queue was full.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rvc_bus_subscribers",
			Help: "Current number of active SSE subscribers.",
		}),
		generating: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rvc_bus_generating_messages",
			Help: "Number of messages currently in the generating state (should never exceed 1).",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.subscriberDrops, m.subscribers, m.generating)
	}
	return m
}

func (m *BusMetrics) ObserveSubscriberDrop() {
	if m == nil {
		return
	}
	m.subscriberDrops.Inc()
}

func (m *BusMetrics) SetSubscriberCount(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

func (m *BusMetrics) SetGeneratingCount(n int) {
	if m == nil {
		return
	}
	m.generating.Set(float64(n))
}
