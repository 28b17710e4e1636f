package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jittakal/audiobuf/pkg/buffer"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// MetricsSource provides the aggregate buffer metrics.
type MetricsSource interface {
	SystemMetrics() buffer.SystemMetrics
}

// Check is a named readiness dependency, such as the event broker.
type Check func(ctx context.Context) error

var _ HealthChecker = (*BufferHealth)(nil)

// BufferHealth reports readiness from the manager's memory pressure and any
// registered dependency checks. It is not ready until MarkReady is called.
type BufferHealth struct {
	source      MetricsSource
	maxPressure float64
	ready       atomic.Bool

	mu     sync.Mutex
	checks map[string]Check
	status map[string]string
	last   bool
}

// NewBufferHealth creates a checker that fails readiness once memory pressure
// exceeds maxPressure. A maxPressure of zero disables the pressure check.
func NewBufferHealth(source MetricsSource, maxPressure float64) *BufferHealth {
	return &BufferHealth{
		source:      source,
		maxPressure: maxPressure,
		checks:      make(map[string]Check),
		status:      make(map[string]string),
	}
}

// AddCheck registers a dependency consulted by Readiness.
func (h *BufferHealth) AddCheck(name string, check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// MarkReady sets whether start-up has completed. It is cleared again on shutdown.
func (h *BufferHealth) MarkReady(ready bool) {
	h.ready.Store(ready)
}

// Liveness reports true while the process is running.
func (h *BufferHealth) Liveness() bool {
	return true
}

// Readiness evaluates every check and records the outcome for GetStatus.
func (h *BufferHealth) Readiness(ctx context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	status := make(map[string]string, len(h.checks)+2)
	ok := true

	if h.ready.Load() {
		status["startup"] = "complete"
	} else {
		status["startup"] = "pending"
		ok = false
	}

	sm := h.source.SystemMetrics()
	if h.maxPressure > 0 && sm.MemoryPressure > h.maxPressure {
		status["memory"] = fmt.Sprintf("pressure %.2f exceeds %.2f", sm.MemoryPressure, h.maxPressure)
		ok = false
	} else {
		status["memory"] = fmt.Sprintf("pressure %.2f", sm.MemoryPressure)
	}

	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status[name] = err.Error()
			ok = false
			continue
		}
		status[name] = "ok"
	}

	h.status = status
	h.last = ok
	return ok
}

// IsHealthy returns the result of the last readiness evaluation.
func (h *BufferHealth) IsHealthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// GetStatus returns the per-check messages of the last readiness evaluation.
func (h *BufferHealth) GetStatus() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return maps.Clone(h.status)
}

// LivenessHandler returns a handler for Kubernetes liveness probes.
// Liveness probes should only fail if the process needs to be restarted.
func LivenessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "alive", http.StatusOK
		if !checker.Liveness() {
			status, code = "not alive", http.StatusServiceUnavailable
		}
		writeJSON(w, code, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}, logger)
	}
}

// ReadinessHandler returns a handler for Kubernetes readiness probes.
// Readiness fails under memory pressure so load balancers shed traffic.
func ReadinessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, code := "ready", http.StatusOK
		if !checker.Readiness(r.Context()) {
			status, code = "not ready", http.StatusServiceUnavailable
		}
		writeJSON(w, code, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checker.GetStatus(),
		}, logger)
	}
}

// BufferMetricsHandler returns the manager's SystemMetrics as JSON.
func BufferMetricsHandler(source MetricsSource, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, source.SystemMetrics(), logger)
	}
}

func writeJSON(w http.ResponseWriter, code int, body any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
