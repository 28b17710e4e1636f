package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jittakal/audiobuf/internal/archive"
	internalbuffer "github.com/jittakal/audiobuf/internal/buffer"
	"github.com/jittakal/audiobuf/internal/config"
	"github.com/jittakal/audiobuf/internal/config/dto"
	"github.com/jittakal/audiobuf/internal/events"
	"github.com/jittakal/audiobuf/internal/observability"
	"github.com/jittakal/audiobuf/internal/server"
	"github.com/jittakal/audiobuf/internal/storage"
	"github.com/jittakal/audiobuf/pkg/buffer"
	"github.com/jittakal/audiobuf/pkg/event"
	pkgstorage "github.com/jittakal/audiobuf/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	// Priority: CLI flag > CONFIG_PATH env var > default path
	var cfgPath string
	if *configPath != "" {
		cfgPath = *configPath
	} else if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		cfgPath = envPath
	} else {
		cfgPath = "config/application.yaml"
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:   cfg.Observability.Logging.Level,
		Format:  cfg.Observability.Logging.Format,
		Output:  cfg.Observability.Logging.Output,
		Service: cfg.Application.Name,
		Version: cfg.Application.Version,
	})
	logger.Info("starting audio buffer manager",
		"environment", cfg.Application.Environment,
		"max_memory_mb", cfg.Manager.MaxMemoryMB,
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Cleanups run in reverse registration order.
	var cleanupFuncs []func() error
	addCleanup := func(name string, fn func() error) {
		cleanupFuncs = append(cleanupFuncs, func() error {
			if err := fn(); err != nil {
				logger.Error("cleanup failed", "component", name, "error", err)
				return err
			}
			return nil
		})
		logger.Debug("registered cleanup", "component", name)
	}
	defer func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			_ = cleanupFuncs[i]()
		}
	}()

	publisher, err := newPublisher(cfg, logger, metrics)
	if err != nil {
		return err
	}
	addCleanup("event-publisher", publisher.Close)

	manager, err := internalbuffer.NewManager(internalbuffer.ManagerConfig{
		MaxMemoryMB:  cfg.Manager.MaxMemoryMB,
		PoolCapacity: cfg.Manager.PoolCapacity,
		Tombstones:   cfg.Manager.Tombstones,
	}, logger,
		internalbuffer.WithRecorder(metrics),
		internalbuffer.WithPublisher(publisher),
	)
	if err != nil {
		return fmt.Errorf("failed to create buffer manager: %w", err)
	}
	addCleanup("buffer-manager", func() error { return manager.Shutdown(context.Background()) })
	registry.MustRegister(observability.NewBufferCollector(manager))

	writer, err := newWriter(cfg, logger, metrics)
	if err != nil {
		return err
	}
	addCleanup("storage-writer", writer.Close)

	router := storage.NewRouter(storageProtocol(cfg.Storage.Backend), storageBucket(cfg), storageBasePath(cfg))
	policy := storage.NewPolicy(storage.PolicyConfig{
		MaxFileSizeMB:      cfg.Storage.Segment.MaxFileSizeMB,
		MaxDurationSeconds: cfg.Storage.Segment.MaxDurationSeconds,
		Strategy:           cfg.Storage.Segment.Strategy,
	})
	archiver := archive.New(manager, writer, router, policy, logger)

	if err := preallocate(manager, cfg.Buffers, logger); err != nil {
		return err
	}

	health := server.NewBufferHealth(manager, cfg.Observability.Degradation.MaxMemoryPressure)
	httpServer := server.NewServer(
		cfg.Observability.Health.Port,
		cfg.Observability.Metrics.Port,
		health,
		manager,
		registry,
		logger,
	)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	health.MarkReady(true)

	logger.Info("application started successfully", "buffers", len(cfg.Buffers))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received termination signal", "signal", sig.String())

	health.MarkReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.GracePeriod())
	defer cancel()

	if cfg.Archive.OnShutdown {
		ids := cfg.Archive.BufferIDs
		if len(ids) == 0 {
			for _, info := range manager.Buffers() {
				ids = append(ids, info.ID)
			}
		}
		if _, err := archiver.ExportAll(ctx, ids); err != nil {
			logger.Error("shutdown export incomplete", "error", err)
		}
	}

	if err := manager.Shutdown(ctx); err != nil {
		logger.Error("buffer manager shutdown failed", "error", err)
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}

	logger.Info("application stopped successfully")
	return nil
}

func newPublisher(cfg *dto.ApplicationConfig, logger *slog.Logger, metrics *observability.Metrics) (events.Publisher, error) {
	if !cfg.Events.Enabled {
		logger.Info("lifecycle events are disabled")
		return events.NopPublisher{}, nil
	}
	kafkaCfg := cfg.Events.Kafka
	publisher, err := events.NewKafkaPublisher(events.Config{
		BootstrapServers: kafkaCfg.BootstrapServers,
		SecurityProtocol: kafkaCfg.SecurityProtocol,
		SASLMechanism:    kafkaCfg.SASLMechanism,
		SASLUsername:     kafkaCfg.SASLUsername,
		SASLPassword:     kafkaCfg.SASLPassword,
		AWSRegion:        kafkaCfg.AWSRegion,
		Topic:            kafkaCfg.Topic,
		Source:           cfg.Events.Source,
		QueueSize:        kafkaCfg.QueueSize,
	}, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}
	return publisher, nil
}

func newWriter(cfg *dto.ApplicationConfig, logger *slog.Logger, metrics *observability.Metrics) (pkgstorage.Writer, error) {
	format := event.FileFormat(cfg.Storage.Format)
	compression := cfg.Storage.Compression
	tempDir := cfg.Archive.TempDir

	switch cfg.Storage.Backend {
	case "file":
		w, err := storage.NewFileWriter(storage.FileConfig{
			BasePath: cfg.Storage.File.BasePath,
		}, format, compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create filesystem writer: %w", err)
		}
		return w, nil
	case "s3":
		w, err := storage.NewS3Writer(storage.S3Config{
			Bucket:       cfg.Storage.S3.Bucket,
			Region:       cfg.Storage.S3.Region,
			Endpoint:     cfg.Storage.S3.Endpoint,
			UsePathStyle: cfg.Storage.S3.UsePathStyle,
			SSEEnabled:   cfg.Storage.S3.SSEEnabled,
			SSEKMSKeyID:  cfg.Storage.S3.SSEKMSKeyID,
			TempDir:      tempDir,
		}, format, compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 writer: %w", err)
		}
		return w, nil
	case "azure":
		accountKey := cfg.Storage.Azure.AccountKey
		if accountKey == "" {
			accountKey = os.Getenv("AZURE_STORAGE_ACCOUNT_KEY")
		}
		w, err := storage.NewAzureWriter(storage.AzureConfig{
			AccountName:      cfg.Storage.Azure.AccountName,
			AccountKey:       accountKey,
			ContainerName:    cfg.Storage.Azure.Container,
			Endpoint:         cfg.Storage.Azure.Endpoint,
			ConnectionString: cfg.Storage.Azure.ConnectionString,
			TempDir:          tempDir,
		}, format, compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Blob writer: %w", err)
		}
		return w, nil
	case "gcs":
		credentialsJSON := cfg.Storage.GCS.CredentialsJSON
		if credentialsJSON == "" {
			credentialsJSON = os.Getenv("GCP_CREDENTIALS_JSON")
		}
		w, err := storage.NewGCSWriter(storage.GCSConfig{
			Bucket:               cfg.Storage.GCS.Bucket,
			ProjectID:            cfg.Storage.GCS.ProjectID,
			CredentialsFile:      cfg.Storage.GCS.CredentialsFile,
			CredentialsJSON:      credentialsJSON,
			Endpoint:             cfg.Storage.GCS.Endpoint,
			UseDefaultCredential: cfg.Storage.GCS.UseDefaultCredential,
			TempDir:              tempDir,
		}, format, compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS writer: %w", err)
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s (supported: file, s3, azure, gcs)", cfg.Storage.Backend)
	}
}

// preallocate creates the configured buffers. Any failure aborts start-up.
func preallocate(manager *internalbuffer.Manager, buffers []dto.BufferConfig, logger *slog.Logger) error {
	for _, bc := range buffers {
		typ, err := buffer.ParseType(bc.Type)
		if err != nil {
			return fmt.Errorf("buffer %s: %w", bc.ID, err)
		}

		var opts []internalbuffer.CreateOption
		if bc.Truncate {
			opts = append(opts, internalbuffer.WithTruncate())
		}
		if bc.RemoveOnClose {
			opts = append(opts, internalbuffer.WithRemoveOnClose())
		}

		start := time.Now()
		b, err := manager.CreateBuffer(bc.ID, typ, buffer.Config{
			Type:        typ,
			SampleRate:  bc.SampleRate,
			Channels:    bc.Channels,
			BufferSize:  bc.BufferSize,
			MaxMemoryMB: bc.MaxMemoryMB,
			ChunkSize:   bc.ChunkSize,
			CacheSizeMB: bc.CacheSizeMB,
			FilePath:    bc.FilePath,
			ThreadSafe:  bc.ThreadSafe,
		}, opts...)
		if err != nil {
			return fmt.Errorf("failed to create buffer %s: %w", bc.ID, err)
		}
		logger.Info("preallocated buffer",
			"buffer_id", b.ID(),
			"type", typ,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return nil
}

func storageProtocol(backend string) string {
	switch backend {
	case "s3":
		return "s3"
	case "azure":
		return "wasbs"
	case "gcs":
		return "gs"
	default:
		return "file"
	}
}

func storageBucket(cfg *dto.ApplicationConfig) string {
	switch cfg.Storage.Backend {
	case "s3":
		return cfg.Storage.S3.Bucket
	case "azure":
		return cfg.Storage.Azure.Container
	case "gcs":
		return cfg.Storage.GCS.Bucket
	default:
		return ""
	}
}

func storageBasePath(cfg *dto.ApplicationConfig) string {
	switch cfg.Storage.Backend {
	case "s3":
		return cfg.Storage.S3.BasePath
	case "azure":
		return cfg.Storage.Azure.BasePath
	case "gcs":
		return cfg.Storage.GCS.BasePath
	default:
		// FileWriter joins its own base path.
		return ""
	}
}
