package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/jittakal/audiobuf/internal/encoder"
	apperrors "github.com/jittakal/audiobuf/internal/errors"
	"github.com/jittakal/audiobuf/pkg/event"
	"github.com/jittakal/audiobuf/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*AzureWriter)(nil)

// AzureConfig contains Azure Blob Storage configuration.
// ConnectionString takes precedence over the account fields.
type AzureConfig struct {
	AccountName      string
	AccountKey       string
	ContainerName    string
	Endpoint         string
	ConnectionString string
	TempDir          string
}

// blobUploader is the part of azblob.Client the writer uses.
type blobUploader interface {
	UploadFile(ctx context.Context, containerName, blobName string, file *os.File, o *azblob.UploadFileOptions) (azblob.UploadFileResponse, error)
}

// AzureWriter implements storage.Writer for Azure Blob Storage.
type AzureWriter struct {
	client         blobUploader
	containerName  string
	tempDir        string
	encoderFactory *encoder.Factory
	recorder       exportRecorder
	logger         *slog.Logger
	mu             sync.Mutex
}

// NewAzureWriter creates a new Azure Blob storage writer.
func NewAzureWriter(
	cfg AzureConfig,
	format event.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*AzureWriter, error) {
	client, err := azblob.NewClientFromConnectionString(azureConnectionString(cfg), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}
	return newAzureWriter(cfg, client, format, compression, logger, metrics)
}

func azureConnectionString(cfg AzureConfig) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}
	if cfg.Endpoint != "" {
		return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			cfg.AccountName, cfg.AccountKey, cfg.Endpoint)
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		cfg.AccountName, cfg.AccountKey)
}

func newAzureWriter(
	cfg AzureConfig,
	client blobUploader,
	format event.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*AzureWriter, error) {
	encoderFactory, err := newEncoderFactory(format, compression)
	if err != nil {
		return nil, err
	}

	logger.Info("Azure writer created",
		"container", cfg.ContainerName,
		"account", cfg.AccountName,
		"format", format,
		"compression", compression,
	)

	return &AzureWriter{
		client:         client,
		containerName:  cfg.ContainerName,
		tempDir:        cfg.TempDir,
		encoderFactory: encoderFactory,
		recorder:       exportRecorder{backend: "azure", format: format, metrics: metrics},
		logger:         logger,
	}, nil
}

// Write encodes the snapshot and uploads it as a block blob.
// Path format: wasbs://container/blob/prefix/ or just blob/prefix/
func (w *AzureWriter) Write(ctx context.Context, snap *event.Snapshot, path string) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	startTime := time.Now()

	enc, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		w.recorder.failure(snap, "encoder_create")
		return 0, fmt.Errorf("failed to create encoder: %w", err)
	}

	blobPath := objectKey(path, "wasbs://", snapshotFileName(snap, enc.FileExtension()))

	tempFile, stats, err := encodeTemp(w.tempDir, "azure-upload", enc, snap)
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

	if _, err := w.client.UploadFile(ctx, w.containerName, blobPath, file, nil); err != nil {
		w.recorder.failure(snap, "upload")
		return 0, &apperrors.StorageError{Operation: "upload", Path: w.containerName + "/" + blobPath, Err: err}
	}

	duration := time.Since(startTime)
	w.recorder.success(snap, stats, duration)

	w.logger.Info("wrote snapshot to Azure Blob",
		"buffer_id", snap.BufferID,
		"container", w.containerName,
		"blob", blobPath,
		"frames", stats.Frames,
		"file_size", stats.SizeBytes,
		"format", stats.Format,
		"total_duration_ms", duration.Milliseconds(),
	)

	return stats.SizeBytes, nil
}

// Close closes the Azure writer.
func (w *AzureWriter) Close() error {
	w.logger.Info("Azure writer closed")
	return nil
}
