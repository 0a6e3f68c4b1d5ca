package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the Prometheus collectors of the service. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	requestCount       *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	errorCount         *prometheus.CounterVec
	permissionsStarted *prometheus.CounterVec
	permissionsDenied  *prometheus.CounterVec
	permissionsEnded   *prometheus.CounterVec
	activePermissions  prometheus.Gauge
}

// NewMetrics registers all collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jp_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jp_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jp_http_errors_total",
			Help: "Error responses by route and error code.",
		}, []string{"method", "path", "code"}),
		permissionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jp_permissions_started_total",
			Help: "Granted permissions by kind.",
		}, []string{"kind"}),
		permissionsDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jp_permissions_rejected_total",
			Help: "Rejected permission requests by reason.",
		}, []string{"reason"}),
		permissionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jp_permissions_ended_total",
			Help: "Ended permissions by end reason.",
		}, []string{"reason"}),
		activePermissions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jp_permissions_active",
			Help: "Permissions currently running.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestCount,
		m.requestDuration,
		m.errorCount,
		m.permissionsStarted,
		m.permissionsDenied,
		m.permissionsEnded,
		m.activePermissions,
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest counts a served request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError counts an error response.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(method, path, code).Inc()
}

// PermissionStarted counts a granted permission.
func (m *Metrics) PermissionStarted(kind string) {
	if m == nil {
		return
	}
	m.permissionsStarted.WithLabelValues(kind).Inc()
	m.activePermissions.Inc()
}

// PermissionRejected counts a refused request.
func (m *Metrics) PermissionRejected(reason string) {
	if m == nil {
		return
	}
	m.permissionsDenied.WithLabelValues(reason).Inc()
}

// PermissionEnded counts an ended permission.
func (m *Metrics) PermissionEnded(reason string) {
	if m == nil {
		return
	}
	m.permissionsEnded.WithLabelValues(reason).Inc()
	m.activePermissions.Dec()
}

// SetActive resets the active gauge, used after restoring state on startup.
func (m *Metrics) SetActive(count int) {
	if m == nil {
		return
	}
	m.activePermissions.Set(float64(count))
}
