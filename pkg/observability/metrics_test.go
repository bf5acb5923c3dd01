package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Runs(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.ObserveRun(StatusSuccess, 250*time.Millisecond)
	metrics.ObserveRun(StatusSuccess, time.Second)
	metrics.ObserveRun(StatusFailure, time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(StatusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RunsTotal.WithLabelValues(StatusFailure)))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.RunDuration))
}

func TestMetrics_RecordPrune(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordPrune(PruneStats{RetainedTypes: 12, PrunedTypes: 40, RetainedMembers: 90, UnusedRoots: 1})
	metrics.RecordLoad(3, 5)

	assert.Equal(t, float64(12), testutil.ToFloat64(metrics.Types.WithLabelValues("retained")))
	assert.Equal(t, float64(40), testutil.ToFloat64(metrics.Types.WithLabelValues("pruned")))
	assert.Equal(t, float64(90), testutil.ToFloat64(metrics.MembersRetained))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.UnusedRules.WithLabelValues("root")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.UnusedRules.WithLabelValues("prune")))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.LoadFiles.WithLabelValues("source")))
	assert.Equal(t, float64(5), testutil.ToFloat64(metrics.LoadFiles.WithLabelValues("linked")))

	metrics.RecordPrune(PruneStats{RetainedTypes: 2})
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Types.WithLabelValues("retained")), "gauges describe the last run")
}

func TestMetrics_RecordCacheLookup(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordCacheLookup(true)
	metrics.RecordCacheLookup(true)
	metrics.RecordCacheLookup(false)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.CacheRequestsTotal.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheRequestsTotal.WithLabelValues("miss")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	handler := HTTPMetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/types", "/types", "/missing"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/types", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/missing", "404")))
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry).ObserveRun(StatusSuccess, time.Second)

	rec := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `protoprune_runs_total{status="success"} 1`)
}

func TestWriteFile(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry).RecordPrune(PruneStats{RetainedTypes: 7})

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, WriteFile(path, registry))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `protoprune_types{state="retained"} 7`)
}
