package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jittakal/audiobuf/internal/encoder"
	apperrors "github.com/jittakal/audiobuf/internal/errors"
	pkgencoder "github.com/jittakal/audiobuf/pkg/encoder"
	"github.com/jittakal/audiobuf/pkg/event"
	"github.com/jittakal/audiobuf/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*FileWriter)(nil)

// MetricsCollector defines metrics operations for storage.
type MetricsCollector interface {
	IncSnapshotsExported(bufferType, format, status string)
	ObserveSnapshotSize(format string, size float64)
	ObserveSnapshotExportDuration(backend, format string, seconds float64)
	IncStorageErrors(backend, operation string)
}

// exportRecorder reports one backend's outcomes to an optional collector.
type exportRecorder struct {
	backend string
	format  event.FileFormat
	metrics MetricsCollector
}

func (r exportRecorder) failure(snap *event.Snapshot, operation string) {
	if r.metrics == nil {
		return
	}
	r.metrics.IncStorageErrors(r.backend, operation)
	r.metrics.IncSnapshotsExported(snap.BufferType, string(r.format), "failure")
}

func (r exportRecorder) success(snap *event.Snapshot, stats *event.FileStats, duration time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.IncSnapshotsExported(snap.BufferType, string(r.format), "success")
	r.metrics.ObserveSnapshotSize(string(r.format), float64(stats.SizeBytes))
	r.metrics.ObserveSnapshotExportDuration(r.backend, string(r.format), duration.Seconds())
}

// newEncoderFactory builds a factory and checks that it can produce an encoder.
// An empty compression selects the format's default.
func newEncoderFactory(format event.FileFormat, compression string) (*encoder.Factory, error) {
	if compression == "" {
		compression = encoder.DefaultCompression(format)
	} else if !slices.Contains(encoder.SupportedCompressions(format), strings.ToLower(compression)) {
		return nil, fmt.Errorf("unsupported compression %q for format %s", compression, format)
	}
	factory := encoder.NewFactory(format, compression)
	if _, err := factory.CreateEncoder(); err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	return factory, nil
}

// encodeTemp encodes the snapshot into a temporary file for upload.
// The caller removes the returned path.
func encodeTemp(tempDir, prefix string, enc pkgencoder.Encoder, snap *event.Snapshot) (string, *event.FileStats, error) {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	f, err := os.CreateTemp(tempDir, prefix+"-*"+enc.FileExtension())
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tempFile := f.Name()
	f.Close()

	stats, err := enc.Encode(tempFile, snap)
	if err != nil {
		os.Remove(tempFile)
		return "", nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return tempFile, stats, nil
}

// FileConfig contains local filesystem configuration.
type FileConfig struct {
	BasePath string
}

// FileWriter implements storage.Writer for local filesystem storage.
// Snapshots are encoded straight into the routed directory under BasePath.
type FileWriter struct {
	basePath       string
	encoderFactory *encoder.Factory
	recorder       exportRecorder
	logger         *slog.Logger
	mu             sync.Mutex
}

// NewFileWriter creates a new filesystem storage writer.
func NewFileWriter(
	config FileConfig,
	format event.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*FileWriter, error) {
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	encoderFactory, err := newEncoderFactory(format, compression)
	if err != nil {
		return nil, err
	}

	logger.Info("filesystem writer created",
		"base_path", config.BasePath,
		"format", format,
		"compression", compression,
	)

	return &FileWriter{
		basePath:       config.BasePath,
		encoderFactory: encoderFactory,
		recorder:       exportRecorder{backend: "file", format: format, metrics: metrics},
		logger:         logger,
	}, nil
}

// Write encodes the snapshot into a file below the base path.
func (w *FileWriter) Write(ctx context.Context, snap *event.Snapshot, path string) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	startTime := time.Now()

	fileEncoder, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		w.recorder.failure(snap, "encoder_create")
		return 0, fmt.Errorf("failed to create encoder: %w", err)
	}

	cleanPath := strings.TrimPrefix(path, "file://")
	dir := filepath.Join(w.basePath, cleanPath)
	fullPath := filepath.Join(dir, snapshotFileName(snap, fileEncoder.FileExtension()))

	if err := os.MkdirAll(dir, 0755); err != nil {
		w.recorder.failure(snap, "mkdir")
		return 0, &apperrors.StorageError{Operation: "create", Path: dir, Err: err}
	}

	stats, err := fileEncoder.Encode(fullPath, snap)
	if err != nil {
		w.recorder.failure(snap, "encode")
		return 0, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	duration := time.Since(startTime)
	w.recorder.success(snap, stats, duration)

	w.logger.Info("wrote snapshot to file",
		"buffer_id", snap.BufferID,
		"path", fullPath,
		"frames", stats.Frames,
		"file_size", stats.SizeBytes,
		"format", stats.Format,
		"total_duration_ms", duration.Milliseconds(),
	)

	return stats.SizeBytes, nil
}

// Close closes the writer.
func (w *FileWriter) Close() error {
	w.logger.Info("closing filesystem writer")
	return nil
}
