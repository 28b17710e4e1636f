// Package server implements HTTP servers for health checks, buffer metrics
// and Prometheus scraping.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker interface for checking component health.
type HealthChecker interface {
	Liveness() bool
	Readiness(ctx context.Context) bool
	IsHealthy() bool
	GetStatus() map[string]string
}

// Server represents the HTTP server for health and metrics.
type Server struct {
	healthServer  *http.Server
	metricsServer *http.Server
	logger        *slog.Logger
}

// NewServer creates the health server (probes and the buffer metrics
// snapshot) and the Prometheus metrics server.
func NewServer(
	healthPort int,
	metricsPort int,
	healthChecker HealthChecker,
	source MetricsSource,
	registry *prometheus.Registry,
	logger *slog.Logger,
) *Server {
	healthServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", healthPort),
		Handler:      HealthMux(healthChecker, source, logger),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}))

	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", metricsPort),
		Handler:      metricsMux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return &Server{
		healthServer:  healthServer,
		metricsServer: metricsServer,
		logger:        logger,
	}
}

// HealthMux routes the health server endpoints.
func HealthMux(checker HealthChecker, source MetricsSource, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", LivenessHandler(checker, logger))
	mux.HandleFunc("/health/ready", ReadinessHandler(checker, logger))
	mux.HandleFunc("/buffers/metrics", BufferMetricsHandler(source, logger))
	return mux
}

// Start starts both HTTP servers.
func (s *Server) Start() error {
	go func() {
		s.logger.Info("starting health server", "addr", s.healthServer.Addr)
		if err := s.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("health server failed", "error", err)
		}
	}()

	go func() {
		s.logger.Info("starting metrics server", "addr", s.metricsServer.Addr)
		if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", "error", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down both servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP servers")

	errChan := make(chan error, 2)

	go func() {
		errChan <- s.healthServer.Shutdown(ctx)
	}()

	go func() {
		errChan <- s.metricsServer.Shutdown(ctx)
	}()

	var errs []error
	for i := 0; i < 2; i++ {
		if err := <-errChan; err != nil {
			s.logger.Error("error shutting down server", "error", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
