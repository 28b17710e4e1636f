package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jittakal/audiobuf/pkg/buffer"
)

// mockHealthChecker implements HealthChecker for testing
type mockHealthChecker struct {
	liveness  bool
	readiness bool
	healthy   bool
	status    map[string]string
}

func (m *mockHealthChecker) Liveness() bool {
	return m.liveness
}

func (m *mockHealthChecker) Readiness(ctx context.Context) bool {
	return m.readiness
}

func (m *mockHealthChecker) IsHealthy() bool {
	return m.healthy
}

func (m *mockHealthChecker) GetStatus() map[string]string {
	return m.status
}

// staticSource returns fixed system metrics.
type staticSource struct {
	sm buffer.SystemMetrics
}

func (s *staticSource) SystemMetrics() buffer.SystemMetrics {
	return s.sm
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLivenessHandler(t *testing.T) {
	tests := []struct {
		name       string
		liveness   bool
		wantCode   int
		wantStatus string
	}{
		{"alive", true, http.StatusOK, "alive"},
		{"not alive", false, http.StatusServiceUnavailable, "not alive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := LivenessHandler(&mockHealthChecker{liveness: tt.liveness}, testLogger())
			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			var response HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", response.Status, tt.wantStatus)
			}
			if response.Timestamp == "" {
				t.Error("timestamp should be set")
			}
		})
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name      string
		readiness bool
		wantCode  int
	}{
		{"ready", true, http.StatusOK},
		{"not ready", false, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &mockHealthChecker{
				readiness: tt.readiness,
				status:    map[string]string{"memory": "pressure 0.10"},
			}
			handler := ReadinessHandler(checker, testLogger())
			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %s, want application/json", ct)
			}
			var response HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Checks["memory"] != "pressure 0.10" {
				t.Errorf("checks = %v", response.Checks)
			}
		})
	}
}

func TestBufferHealth_Readiness(t *testing.T) {
	source := &staticSource{sm: buffer.SystemMetrics{MemoryPressure: 0.5}}
	health := NewBufferHealth(source, 0.9)

	if !health.Liveness() {
		t.Error("Liveness() should always be true")
	}
	if health.Readiness(context.Background()) {
		t.Error("Readiness() should be false before MarkReady")
	}
	if got := health.GetStatus()["startup"]; got != "pending" {
		t.Errorf("startup = %q, want pending", got)
	}

	health.MarkReady(true)
	if !health.Readiness(context.Background()) {
		t.Errorf("Readiness() = false, status = %v", health.GetStatus())
	}
	if !health.IsHealthy() {
		t.Error("IsHealthy() should reflect the last readiness result")
	}

	source.sm.MemoryPressure = 0.95
	if health.Readiness(context.Background()) {
		t.Error("Readiness() should fail above max memory pressure")
	}
	if health.IsHealthy() {
		t.Error("IsHealthy() should be false after failed readiness")
	}
	if got := health.GetStatus()["memory"]; got != "pressure 0.95 exceeds 0.90" {
		t.Errorf("memory status = %q", got)
	}
}

func TestBufferHealth_PressureCheckDisabled(t *testing.T) {
	health := NewBufferHealth(&staticSource{sm: buffer.SystemMetrics{MemoryPressure: 5}}, 0)
	health.MarkReady(true)

	if !health.Readiness(context.Background()) {
		t.Error("zero max pressure should disable the pressure check")
	}
}

func TestBufferHealth_DependencyChecks(t *testing.T) {
	health := NewBufferHealth(&staticSource{}, 0.9)
	health.MarkReady(true)

	brokerErr := errors.New("no brokers reachable")
	var broken bool
	health.AddCheck("events", func(ctx context.Context) error {
		if broken {
			return brokerErr
		}
		return nil
	})

	if !health.Readiness(context.Background()) {
		t.Fatalf("Readiness() = false, status = %v", health.GetStatus())
	}
	if got := health.GetStatus()["events"]; got != "ok" {
		t.Errorf("events = %q, want ok", got)
	}

	broken = true
	if health.Readiness(context.Background()) {
		t.Error("Readiness() should fail when a dependency check fails")
	}
	if got := health.GetStatus()["events"]; got != brokerErr.Error() {
		t.Errorf("events = %q, want %q", got, brokerErr.Error())
	}
}

func TestBufferHealth_StatusIsCopied(t *testing.T) {
	health := NewBufferHealth(&staticSource{}, 0)
	health.Readiness(context.Background())

	status := health.GetStatus()
	status["startup"] = "tampered"
	if health.GetStatus()["startup"] != "pending" {
		t.Error("GetStatus() should return a copy")
	}
}

func TestBufferMetricsHandler(t *testing.T) {
	source := &staticSource{sm: buffer.SystemMetrics{
		TotalMemoryMB:  12.5,
		BudgetMB:       100,
		MemoryPressure: 0.125,
		ActiveBuffers:  1,
		PoolStats: map[string]buffer.PoolStats{
			"pool/2ch/48000Hz/512": {Hits: 9, Misses: 1, HitRate: 0.9},
		},
		Buffers: []buffer.Metrics{
			{BufferID: "vocals", Type: buffer.TypeMemory, State: buffer.StateActive, ReadCount: 3},
		},
	}}
	handler := BufferMetricsHandler(source, testLogger())

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/buffers/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", w.Code, http.StatusOK)
	}

	var body struct {
		TotalMemoryMB float64 `json:"total_memory_mb"`
		PoolStats     map[string]struct {
			HitRate float64 `json:"hit_rate"`
			Hits    uint64  `json:"pool_hits"`
		} `json:"pool_stats"`
		Buffers []struct {
			BufferID string `json:"buffer_id"`
			Type     string `json:"type"`
			State    string `json:"state"`
		} `json:"buffers"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.TotalMemoryMB != 12.5 {
		t.Errorf("total_memory_mb = %v, want 12.5", body.TotalMemoryMB)
	}
	if ps := body.PoolStats["pool/2ch/48000Hz/512"]; ps.Hits != 9 || ps.HitRate != 0.9 {
		t.Errorf("pool_stats = %+v", ps)
	}
	if len(body.Buffers) != 1 || body.Buffers[0].Type != "memory" || body.Buffers[0].State != "active" {
		t.Errorf("buffers = %+v", body.Buffers)
	}

	w = httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodPost, "/buffers/metrics", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status code = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}
