package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/jittakal/audiobuf/internal/encoder"
	apperrors "github.com/jittakal/audiobuf/internal/errors"
	"github.com/jittakal/audiobuf/pkg/event"
	pkgstorage "github.com/jittakal/audiobuf/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ pkgstorage.Writer = (*GCSWriter)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	ProjectID            string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
	TempDir              string
}

// objectOpener opens a writer for one object. Data is committed on Close.
type objectOpener func(ctx context.Context, bucket, object, contentType string) io.WriteCloser

// GCSWriter implements storage.Writer for Google Cloud Storage.
type GCSWriter struct {
	client         *storage.Client
	open           objectOpener
	bucket         string
	tempDir        string
	encoderFactory *encoder.Factory
	recorder       exportRecorder
	logger         *slog.Logger
	mu             sync.Mutex
}

// NewGCSWriter creates a new GCS storage writer.
// Credentials are taken from CredentialsJSON, then CredentialsFile, then the
// environment's default credentials.
func NewGCSWriter(
	cfg GCSConfig,
	format event.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*GCSWriter, error) {
	ctx := context.Background()

	var clientOpts []option.ClientOption
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}

	switch {
	case cfg.UseDefaultCredential:
		logger.Info("using default GCP credentials")
	case cfg.CredentialsJSON != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		logger.Info("using GCP credentials from JSON string")
	case cfg.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
		logger.Info("using GCP credentials from file", "file", cfg.CredentialsFile)
	default:
		logger.Info("no explicit credentials provided, using default GCP credentials")
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	open := func(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		return w
	}

	w, err := newGCSWriter(cfg, open, format, compression, logger, metrics)
	if err != nil {
		client.Close()
		return nil, err
	}
	w.client = client
	return w, nil
}

func newGCSWriter(
	cfg GCSConfig,
	open objectOpener,
	format event.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*GCSWriter, error) {
	encoderFactory, err := newEncoderFactory(format, compression)
	if err != nil {
		return nil, err
	}

	logger.Info("GCS writer created",
		"bucket", cfg.Bucket,
		"project_id", cfg.ProjectID,
		"format", format,
		"compression", compression,
	)

	return &GCSWriter{
		open:           open,
		bucket:         cfg.Bucket,
		tempDir:        cfg.TempDir,
		encoderFactory: encoderFactory,
		recorder:       exportRecorder{backend: "gcs", format: format, metrics: metrics},
		logger:         logger,
	}, nil
}

// Write encodes the snapshot and uploads it as a GCS object.
// Path format: gs://bucket/object/prefix/ or just object/prefix/
func (w *GCSWriter) Write(ctx context.Context, snap *event.Snapshot, path string) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	startTime := time.Now()

	enc, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		w.recorder.failure(snap, "encoder_create")
		return 0, fmt.Errorf("failed to create encoder: %w", err)
	}

	objectPath := objectKey(path, "gs://", snapshotFileName(snap, enc.FileExtension()))

	tempFile, stats, err := encodeTemp(w.tempDir, "gcs-upload", enc, snap)
	if err != nil {
		w.recorder.failure(snap, "encode")
		return 0, err
	}
	defer os.Remove(tempFile)

	file, err := os.Open(tempFile)
	if err != nil {
		w.recorder.failure(snap, "file_open")
		return 0, fmt.Errorf("failed to open encoded file: %w", err)
	}
	defer file.Close()

	gcsWriter := w.open(ctx, w.bucket, objectPath, contentType(stats.Format))

	bytesWritten, err := io.Copy(gcsWriter, file)
	if err != nil {
		w.recorder.failure(snap, "upload")
		gcsWriter.Close()
		return 0, &apperrors.StorageError{Operation: "upload", Path: "gs://" + w.bucket + "/" + objectPath, Err: err}
	}

	if err := gcsWriter.Close(); err != nil {
		w.recorder.failure(snap, "close")
		return 0, &apperrors.StorageError{Operation: "upload", Path: "gs://" + w.bucket + "/" + objectPath, Err: err}
	}

	duration := time.Since(startTime)
	w.recorder.success(snap, stats, duration)

	w.logger.Info("wrote snapshot to GCS",
		"buffer_id", snap.BufferID,
		"bucket", w.bucket,
		"object", objectPath,
		"frames", stats.Frames,
		"file_size", stats.SizeBytes,
		"bytes_written", bytesWritten,
		"format", stats.Format,
		"total_duration_ms", duration.Milliseconds(),
	)

	return stats.SizeBytes, nil
}

// Close closes the GCS writer and its client.
func (w *GCSWriter) Close() error {
	w.logger.Info("closing GCS writer")
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}
