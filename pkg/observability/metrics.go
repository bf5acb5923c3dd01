package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Run metrics
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	Types           *prometheus.GaugeVec
	MembersRetained prometheus.Gauge
	UnusedRules     *prometheus.GaugeVec
	LoadFiles       *prometheus.GaugeVec

	// Cache metrics
	CacheRequestsTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// PruneStats summarizes one prune for RecordPrune.
type PruneStats struct {
	RetainedTypes   int
	PrunedTypes     int
	RetainedMembers int
	UnusedRoots     int
	UnusedPrunes    int
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "protoprune_runs_total",
				Help: "Total number of prune runs",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "protoprune_run_duration_seconds",
				Help:    "Prune run duration in seconds, including loading",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		Types: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "protoprune_types",
				Help: "Types and services of the last run by state",
			},
			[]string{"state"},
		),
		MembersRetained: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "protoprune_members_retained",
				Help: "Members marked by the last run",
			},
		),
		UnusedRules: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "protoprune_unused_rules",
				Help: "Rules of the last run that matched nothing",
			},
			[]string{"kind"},
		),
		LoadFiles: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "protoprune_load_files",
				Help: "Files loaded by the last run",
			},
			[]string{"kind"},
		),
		CacheRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "protoprune_cache_requests_total",
				Help: "Parse cache lookups by result",
			},
			[]string{"result"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "protoprune_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "protoprune_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.Types,
		m.MembersRetained,
		m.UnusedRules,
		m.LoadFiles,
		m.CacheRequestsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(status string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(duration.Seconds())
}

// RecordPrune sets the gauges describing the last prune.
func (m *Metrics) RecordPrune(stats PruneStats) {
	m.Types.WithLabelValues("retained").Set(float64(stats.RetainedTypes))
	m.Types.WithLabelValues("pruned").Set(float64(stats.PrunedTypes))
	m.MembersRetained.Set(float64(stats.RetainedMembers))
	m.UnusedRules.WithLabelValues("root").Set(float64(stats.UnusedRoots))
	m.UnusedRules.WithLabelValues("prune").Set(float64(stats.UnusedPrunes))
}

// RecordLoad sets the number of source and linked files of the last load.
func (m *Metrics) RecordLoad(source, linked int) {
	m.LoadFiles.WithLabelValues("source").Set(float64(source))
	m.LoadFiles.WithLabelValues("linked").Set(float64(linked))
}

// RecordCacheLookup counts a parse cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if hit {
		m.CacheRequestsTotal.WithLabelValues("hit").Inc()
	} else {
		m.CacheRequestsTotal.WithLabelValues("miss").Inc()
	}
}

// WriteFile writes every metric gathered by g to path in the text exposition format.
func WriteFile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// MetricsHandler serves the metrics gathered by g.
func MetricsHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
