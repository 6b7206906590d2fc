package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meftunca/rmqcluster/pkg/cluster"
	"github.com/meftunca/rmqcluster/pkg/executor"
)

// FormationMetrics collects Prometheus metrics about formation runs, the
// commands they issue and the status server. It is a cluster.Listener and an
// executor.CommandObserver.
type FormationMetrics struct {
	// Run metrics
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	lastRunSuccess prometheus.Gauge
	lastRunTime    prometheus.Gauge

	// Phase metrics
	phaseDuration *prometheus.HistogramVec
	nodeResults   *prometheus.CounterVec

	// Command metrics
	commandsTotal   *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec

	// Request metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Storage metrics
	storageOperations *prometheus.CounterVec
	storageLatency    *prometheus.HistogramVec

	// Error metrics
	errorsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

var (
	_ cluster.Listener         = (*FormationMetrics)(nil)
	_ executor.CommandObserver = (*FormationMetrics)(nil)
)

// NewFormationMetrics creates the metrics on a registry of their own
func NewFormationMetrics(namespace string) *FormationMetrics {
	if namespace == "" {
		namespace = "rmqcluster"
	}

	m := &FormationMetrics{
		registry: prometheus.NewRegistry(),
	}

	m.initRunMetrics(namespace)
	m.initCommandMetrics(namespace)
	m.initRequestMetrics(namespace)
	m.initStorageMetrics(namespace)
	m.initErrorMetrics(namespace)

	m.registry.MustRegister(
		m.runsTotal, m.runDuration, m.lastRunSuccess, m.lastRunTime,
		m.phaseDuration, m.nodeResults,
		m.commandsTotal, m.commandDuration,
		m.requestsTotal, m.requestDuration,
		m.storageOperations, m.storageLatency,
		m.errorsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)

	return m
}

func (m *FormationMetrics) initRunMetrics(namespace string) {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "formation_runs_total",
			Help:      "Total number of formation runs by the phase they ended in",
		},
		[]string{"result", "phase"},
	)

	m.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "formation_run_duration_seconds",
			Help:      "Duration of whole formation runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	m.lastRunSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "formation_last_run_success",
			Help:      "1 if the last formation run succeeded, 0 otherwise",
		},
	)

	m.lastRunTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "formation_last_run_timestamp_seconds",
			Help:      "Unix time the last formation run finished",
		},
	)

	m.phaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "formation_phase_duration_seconds",
			Help:      "Duration of formation phases in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"phase"},
	)

	m.nodeResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "formation_node_results_total",
			Help:      "Per node results of formation phases",
		},
		[]string{"phase", "node", "result"},
	)
}

func (m *FormationMetrics) initCommandMetrics(namespace string) {
	m.commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of remote commands",
		},
		[]string{"command", "result"},
	)

	m.commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Remote command duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"command"},
	)
}

func (m *FormationMetrics) initRequestMetrics(namespace string) {
	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of status server requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
}

func (m *FormationMetrics) initStorageMetrics(namespace string) {
	m.storageOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Total number of run history operations",
		},
		[]string{"operation", "status"},
	)

	m.storageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_latency_seconds",
			Help:      "Run history operation latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15),
		},
		[]string{"operation"},
	)
}

func (m *FormationMetrics) initErrorMetrics(namespace string) {
	m.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors",
		},
		[]string{"type", "component"},
	)
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// PhaseStarted implements cluster.Listener
func (m *FormationMetrics) PhaseStarted(cluster.Phase) {}

// PhaseFinished implements cluster.Listener
func (m *FormationMetrics) PhaseFinished(p cluster.Phase, elapsed time.Duration) {
	m.phaseDuration.WithLabelValues(p.String()).Observe(elapsed.Seconds())
}

// NodeResult implements cluster.Listener
func (m *FormationMetrics) NodeResult(p cluster.Phase, n cluster.Node, ok bool) {
	m.nodeResults.WithLabelValues(p.String(), n.Label, result(ok)).Inc()
}

// RunFinished implements cluster.Listener
func (m *FormationMetrics) RunFinished(o cluster.FormationOutcome, elapsed time.Duration) {
	m.runsTotal.WithLabelValues(result(o.Success), o.PhaseReached.String()).Inc()
	m.runDuration.Observe(elapsed.Seconds())
	m.lastRunTime.SetToCurrentTime()
	if o.Success {
		m.lastRunSuccess.Set(1)
	} else {
		m.lastRunSuccess.Set(0)
	}
}

// ObserveCommand implements executor.CommandObserver
func (m *FormationMetrics) ObserveCommand(rec executor.CommandRecord) {
	kind := executor.CommandKind(rec.Command)
	m.commandsTotal.WithLabelValues(kind, result(rec.Succeeded)).Inc()
	m.commandDuration.WithLabelValues(kind).Observe(rec.Duration.Seconds())
}

// RecordRequest records a status server request
func (m *FormationMetrics) RecordRequest(method, endpoint string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordStorageOperation records a run history operation
func (m *FormationMetrics) RecordStorageOperation(operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.storageOperations.WithLabelValues(operation, status).Inc()
	m.storageLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordError records an error
func (m *FormationMetrics) RecordError(errorType, component string) {
	m.errorsTotal.WithLabelValues(errorType, component).Inc()
}

// GetRegistry returns the Prometheus registry
func (m *FormationMetrics) GetRegistry() *prometheus.Registry {
	return m.registry
}

// GetHTTPHandler returns an HTTP handler for metrics endpoint
func (m *FormationMetrics) GetHTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// MetricsMiddleware records request metrics. Requests matched by a mux route
// are labelled with the route template, so /runs/{id} is a single series.
func (m *FormationMetrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		m.RecordRequest(r.Method, endpoint, rw.statusCode, time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
