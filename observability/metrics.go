package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ExecutionBuckets covers sandboxed runs from a few milliseconds up to the
// longest deadline we expect to configure.
var ExecutionBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

// Execution outcomes
const (
	OutcomeCompleted   = "completed"
	OutcomeTimeout     = "timeout"
	OutcomeLaunchError = "launch_error"
	OutcomeWorkspace   = "workspace_error"
	OutcomeUnsupported = "unsupported"
	OutcomeInternal    = "internal_error"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts HTTP requests by method, route and status class.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration *prometheus.HistogramVec

	// ExecutionsTotal counts sandboxed executions by language and outcome.
	ExecutionsTotal *prometheus.CounterVec

	// ExecutionDuration records how long the sandboxed process ran.
	ExecutionDuration *prometheus.HistogramVec

	// ActiveWorkspaces tracks ephemeral workspaces that exist on disk.
	ActiveWorkspaces prometheus.Gauge

	// WorkspaceCleanupFailures counts workspaces that could not be removed.
	WorkspaceCleanupFailures prometheus.Counter
}

// NewMetrics creates the collectors on a dedicated registry, together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coderun_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coderun_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: ExecutionBuckets,
			},
			[]string{"method", "route"},
		),
		ExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coderun_executions_total",
				Help: "Sandboxed executions",
			},
			[]string{"language", "outcome"},
		),
		ExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coderun_execution_duration_seconds",
				Help:    "Sandboxed process wall-clock time",
				Buckets: ExecutionBuckets,
			},
			[]string{"language"},
		),
		ActiveWorkspaces: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "coderun_workspaces_active",
				Help: "Ephemeral workspaces currently on disk",
			},
		),
		WorkspaceCleanupFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "coderun_workspace_cleanup_failures_total",
				Help: "Workspaces that could not be removed",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDuration,
		m.ExecutionsTotal,
		m.ExecutionDuration,
		m.ActiveWorkspaces,
		m.WorkspaceCleanupFailures,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveExecution records one execution. Duration is only observed for
// runs that reached the sandbox.
func (m *Metrics) ObserveExecution(language, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ExecutionsTotal.WithLabelValues(language, outcome).Inc()
	if outcome == OutcomeCompleted || outcome == OutcomeTimeout {
		m.ExecutionDuration.WithLabelValues(language).Observe(duration.Seconds())
	}
}

// WorkspaceCreated increments the active workspace gauge.
func (m *Metrics) WorkspaceCreated() {
	if m == nil {
		return
	}
	m.ActiveWorkspaces.Inc()
}

// WorkspaceDestroyed decrements the active workspace gauge and counts failed removals.
func (m *Metrics) WorkspaceDestroyed(failed bool) {
	if m == nil {
		return
	}
	m.ActiveWorkspaces.Dec()
	if failed {
		m.WorkspaceCleanupFailures.Inc()
	}
}
