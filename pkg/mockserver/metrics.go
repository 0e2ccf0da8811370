package mockserver

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "hellotel"

// unmatchedPath is the path label for requests no route answered, keeping
// label cardinality bounded.
const unmatchedPath = "unmatched"

// Metrics holds the mock backend's Prometheus collectors. Each server owns a
// private registry so several servers can run in one process.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	PropagatedTotal  *prometheus.CounterVec
	RecordedRequests prometheus.GaugeFunc
}

func newMetrics(recorded func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "mock",
			Name:      "requests_total",
			Help:      "Total number of requests answered by the mock backend",
		}, []string{"method", "path", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "mock",
			Name:      "request_duration_seconds",
			Help:      "Mock backend request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		PropagatedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "mock",
			Name:      "propagated_requests_total",
			Help:      "Requests that carried a valid trace context",
		}, []string{"sampled"}),
		RecordedRequests: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "mock",
			Name:      "recorded_requests",
			Help:      "Requests currently held in the request log",
		}, recorded),
	}
}

func (m *Metrics) observe(method, path string, status int, seconds float64) {
	m.RequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(seconds)
}

func (m *Metrics) observePropagated(sampled bool) {
	m.PropagatedTotal.WithLabelValues(strconv.FormatBool(sampled)).Inc()
}

// Registry returns the private registry backing the metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
