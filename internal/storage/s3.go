package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jittakal/audiobuf/internal/encoder"
	apperrors "github.com/jittakal/audiobuf/internal/errors"
	"github.com/jittakal/audiobuf/pkg/event"
	"github.com/jittakal/audiobuf/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*S3Writer)(nil)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
	TempDir      string
}

// uploader is the part of manager.Uploader the writer uses.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Writer implements storage.Writer for AWS S3 storage.
// It provides multipart upload support and server-side encryption (SSE).
type S3Writer struct {
	uploader       uploader
	bucket         string
	region         string
	sseEnabled     bool
	sseKMSKeyID    string
	tempDir        string
	encoderFactory *encoder.Factory
	recorder       exportRecorder
	logger         *slog.Logger
	mu             sync.Mutex
}

// NewS3Writer creates a new S3 storage writer.
func NewS3Writer(
	cfg S3Config,
	format event.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*S3Writer, error) {
	ctx := context.Background()
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	// Long recordings go up as multipart uploads.
	up := manager.NewUploader(s3Client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024
		u.Concurrency = 5
	})

	return newS3Writer(cfg, up, format, compression, logger, metrics)
}

func newS3Writer(
	cfg S3Config,
	up uploader,
	format event.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*S3Writer, error) {
	encoderFactory, err := newEncoderFactory(format, compression)
	if err != nil {
		return nil, err
	}

	logger.Info("S3 writer created",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"format", format,
		"compression", compression,
		"sse_enabled", cfg.SSEEnabled,
	)

	return &S3Writer{
		uploader:       up,
		bucket:         cfg.Bucket,
		region:         cfg.Region,
		sseEnabled:     cfg.SSEEnabled,
		sseKMSKeyID:    cfg.SSEKMSKeyID,
		tempDir:        cfg.TempDir,
		encoderFactory: encoderFactory,
		recorder:       exportRecorder{backend: "s3", format: format, metrics: metrics},
		logger:         logger,
	}, nil
}

// Write encodes the snapshot and uploads it to S3.
// Path format: s3://bucket/key/prefix/ or just key/prefix/
func (w *S3Writer) Write(ctx context.Context, snap *event.Snapshot, path string) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	startTime := time.Now()

	fileEncoder, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		w.recorder.failure(snap, "encoder_create")
		return 0, fmt.Errorf("failed to create encoder: %w", err)
	}

	s3Key := objectKey(path, "s3://", snapshotFileName(snap, fileEncoder.FileExtension()))

	tempFile, stats, err := encodeTemp(w.tempDir, "s3-upload", fileEncoder, snap)
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

	uploadInput := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(s3Key),
		Body:        file,
		ContentType: aws.String(contentType(stats.Format)),
	}

	if w.sseEnabled {
		if w.sseKMSKeyID != "" {
			uploadInput.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			uploadInput.SSEKMSKeyId = aws.String(w.sseKMSKeyID)
		} else {
			uploadInput.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}

	result, err := w.uploader.Upload(ctx, uploadInput)
	if err != nil {
		w.recorder.failure(snap, "upload")
		return 0, &apperrors.StorageError{Operation: "upload", Path: "s3://" + w.bucket + "/" + s3Key, Err: err}
	}

	duration := time.Since(startTime)
	w.recorder.success(snap, stats, duration)

	w.logger.Info("wrote snapshot to S3",
		"buffer_id", snap.BufferID,
		"bucket", w.bucket,
		"key", s3Key,
		"frames", stats.Frames,
		"file_size", stats.SizeBytes,
		"format", stats.Format,
		"location", result.Location,
		"total_duration_ms", duration.Milliseconds(),
	)

	return stats.SizeBytes, nil
}

// Close closes the S3 writer.
func (w *S3Writer) Close() error {
	w.logger.Info("closing S3 writer")
	return nil
}

// contentType returns the MIME type stored with uploaded objects.
func contentType(format event.FileFormat) string {
	switch format {
	case event.FormatWAV:
		return "audio/wav"
	case event.FormatAvro:
		return "application/avro"
	default:
		return "application/octet-stream"
	}
}
