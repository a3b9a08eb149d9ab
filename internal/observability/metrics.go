package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	connectionsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "opgate",
			Subsystem: "server",
			Name:      "connections_accepted_total",
			Help:      "Total accepted connections.",
		},
	)
	handshakeFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "opgate",
			Subsystem: "server",
			Name:      "handshake_failures_total",
			Help:      "TLS handshakes that failed before a request could be read.",
		},
	)
	responses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opgate",
			Subsystem: "server",
			Name:      "responses_total",
			Help:      "Responses written, by operation and success.",
		},
		[]string{"operation", "success"},
	)
	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "opgate",
			Subsystem: "server",
			Name:      "dispatch_duration_seconds",
			Help:      "Operation dispatch duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opgate",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "opgate",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			connectionsAccepted,
			handshakeFailures,
			responses,
			dispatchDuration,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordConnectionAccepted() {
	RegisterMetrics()
	connectionsAccepted.Inc()
}

func RecordHandshakeFailure() {
	RegisterMetrics()
	handshakeFailures.Inc()
}

func RecordResponse(operation string, success bool) {
	RegisterMetrics()
	responses.WithLabelValues(operation, strconv.FormatBool(success)).Inc()
}

func RecordDispatch(operation string, duration time.Duration) {
	RegisterMetrics()
	dispatchDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
