package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "audiobuf"

// Metrics holds the event-driven Prometheus metrics. Gauges derived from
// buffer state are exported by BufferCollector instead.
type Metrics struct {
	// Lifecycle metrics
	BuffersCreated       *prometheus.CounterVec
	BufferCreateFailures *prometheus.CounterVec
	BuffersRemoved       *prometheus.CounterVec
	BufferFaults         *prometheus.CounterVec

	// Export metrics
	SnapshotsExported      *prometheus.CounterVec
	SnapshotExportDuration *prometheus.HistogramVec
	SnapshotSize           *prometheus.HistogramVec
	StorageErrors          *prometheus.CounterVec

	// Event metrics
	EventsPublished *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		BuffersCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "buffers_created_total",
				Help:      "Total number of buffers created",
			},
			[]string{"type"},
		),
		BufferCreateFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "buffer_create_failures_total",
				Help:      "Total number of failed buffer creations",
			},
			[]string{"type", "reason"},
		),
		BuffersRemoved: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "buffers_removed_total",
				Help:      "Total number of buffers removed",
			},
			[]string{"type"},
		),
		BufferFaults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "buffer_faults_total",
				Help:      "Total number of buffers that moved to the error state",
			},
			[]string{"type"},
		),

		SnapshotsExported: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshots_exported_total",
				Help:      "Total number of buffer snapshots exported",
			},
			[]string{"type", "format", "status"},
		),
		SnapshotExportDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_export_duration_seconds",
				Help:      "Duration of snapshot exports including encoding",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend", "format"},
		),
		SnapshotSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_size_bytes",
				Help:      "Size of exported snapshot files",
				Buckets:   prometheus.ExponentialBuckets(64*1024, 4, 8), // 64KiB to 1GiB
			},
			[]string{"format"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Total number of snapshot storage errors",
			},
			[]string{"backend", "error_type"},
		),

		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Total number of lifecycle events handed to the event sink",
			},
			[]string{"kind", "status"},
		),
	}
}

// IncBuffersCreated increments the buffers created counter.
func (m *Metrics) IncBuffersCreated(bufferType string) {
	m.BuffersCreated.WithLabelValues(bufferType).Inc()
}

// IncBufferCreateFailures increments the failed creations counter.
func (m *Metrics) IncBufferCreateFailures(bufferType, reason string) {
	m.BufferCreateFailures.WithLabelValues(bufferType, reason).Inc()
}

// IncBuffersRemoved increments the buffers removed counter.
func (m *Metrics) IncBuffersRemoved(bufferType string) {
	m.BuffersRemoved.WithLabelValues(bufferType).Inc()
}

// IncBufferFaults increments the buffer faults counter.
func (m *Metrics) IncBufferFaults(bufferType string) {
	m.BufferFaults.WithLabelValues(bufferType).Inc()
}

// IncSnapshotsExported increments the snapshots exported counter.
func (m *Metrics) IncSnapshotsExported(bufferType, format, status string) {
	m.SnapshotsExported.WithLabelValues(bufferType, format, status).Inc()
}

// ObserveSnapshotExportDuration observes the duration of one export.
func (m *Metrics) ObserveSnapshotExportDuration(backend, format string, seconds float64) {
	m.SnapshotExportDuration.WithLabelValues(backend, format).Observe(seconds)
}

// ObserveSnapshotSize observes the size of an exported file.
func (m *Metrics) ObserveSnapshotSize(format string, size float64) {
	m.SnapshotSize.WithLabelValues(format).Observe(size)
}

// IncStorageErrors increments storage errors counter.
func (m *Metrics) IncStorageErrors(backend, operation string) {
	m.StorageErrors.WithLabelValues(backend, operation).Inc()
}

// IncEventsPublished increments the events counter. status is sent, dropped or failed.
func (m *Metrics) IncEventsPublished(kind, status string) {
	m.EventsPublished.WithLabelValues(kind, status).Inc()
}
