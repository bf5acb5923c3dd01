package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
)

// HealthChecker reports the health of a long-running prune: the outcome of the last
// run and, when a shared cache is configured, Redis.
type HealthChecker struct {
	version string
	redis   *redis.Client

	mu          sync.RWMutex
	lastRun     time.Time
	lastErr     error
	lastSuccess time.Time
}

// NewHealthChecker creates a new health checker. redis may be nil.
func NewHealthChecker(version string, redis *redis.Client) *HealthChecker {
	return &HealthChecker{
		version: version,
		redis:   redis,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// RecordRun stores the outcome of a run finished at t.
func (h *HealthChecker) RecordRun(t time.Time, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastRun = t
	h.lastErr = err
	if err == nil {
		h.lastSuccess = t
	}
}

// Liveness returns a simple liveness check (always returns 200 if server is running)
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness responds 503 until a run succeeded, and 200 afterwards.
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// Check performs a comprehensive health check
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus),
	}

	runStatus := h.checkLastRun()
	status.Dependencies["prune"] = runStatus
	status.Status = runStatus.Status

	// Redis only backs the parse cache, so losing it degrades.
	if h.redis != nil {
		redisStatus := h.checkRedis(ctx)
		status.Dependencies["redis"] = redisStatus
		if redisStatus.Status == StatusUnhealthy && status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
	}

	return status
}

func (h *HealthChecker) checkLastRun() DependencyStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := DependencyStatus{
		Status:    StatusHealthy,
		Timestamp: h.lastRun,
	}
	switch {
	case h.lastRun.IsZero():
		status.Status = StatusUnhealthy
		status.Message = "no run finished yet"
	case h.lastErr != nil && h.lastSuccess.IsZero():
		status.Status = StatusUnhealthy
		status.Message = h.lastErr.Error()
	case h.lastErr != nil:
		status.Status = StatusDegraded
		status.Message = "last run failed, serving the run of " + h.lastSuccess.Format(time.RFC3339) + ": " + h.lastErr.Error()
	}
	return status
}

// checkRedis checks Redis health
func (h *HealthChecker) checkRedis(ctx context.Context) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	}

	err := h.redis.Ping(ctx).Err()
	status.Latency = time.Since(start)
	if err != nil {
		status.Status = StatusUnhealthy
		status.Message = err.Error()
	}
	return status
}

// RegisterHealthRoutes registers health check endpoints
func RegisterHealthRoutes(router *mux.Router, checker *HealthChecker) {
	router.HandleFunc("/healthz", checker.Readiness).Methods(http.MethodGet)
	router.HandleFunc("/healthz/live", checker.Liveness).Methods(http.MethodGet)
}
