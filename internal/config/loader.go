package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/jittakal/audiobuf/internal/config/dto"
	"github.com/jittakal/audiobuf/pkg/buffer"
)

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("AUDIOBUF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Expand environment variables in config values
	// Only expand if the value contains ${...} pattern
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Application defaults
	l.v.SetDefault("application.name", "audiobuf")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Manager defaults
	l.v.SetDefault("manager.max_memory_mb", 512)
	l.v.SetDefault("manager.pool_capacity", 8)
	l.v.SetDefault("manager.tombstones", 256)

	// Events defaults
	l.v.SetDefault("events.enabled", false)
	l.v.SetDefault("events.source", "audiobuf")
	l.v.SetDefault("events.kafka.security_protocol", "PLAINTEXT")
	l.v.SetDefault("events.kafka.sasl_mechanism", "PLAIN")
	l.v.SetDefault("events.kafka.aws_region", "us-east-1")
	l.v.SetDefault("events.kafka.topic", "audiobuf.lifecycle")
	l.v.SetDefault("events.kafka.queue_size", 1024)

	// Storage defaults
	l.v.SetDefault("storage.backend", "file")
	l.v.SetDefault("storage.format", "wav")
	l.v.SetDefault("storage.compression", "snappy")
	l.v.SetDefault("storage.file.base_path", "./snapshots")
	l.v.SetDefault("storage.s3.use_path_style", false)
	l.v.SetDefault("storage.s3.sse_enabled", true)

	// Segment defaults
	l.v.SetDefault("storage.segment.max_file_size_mb", 128)
	l.v.SetDefault("storage.segment.max_duration_seconds", 600)
	l.v.SetDefault("storage.segment.strategy", "any")

	// Archive defaults
	l.v.SetDefault("archive.on_shutdown", false)

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stdout")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.degradation.max_memory_pressure", 0.9)

	// Shutdown defaults
	l.v.SetDefault("shutdown.grace_period_seconds", 30)
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	if config.Manager.PoolCapacity < 0 {
		return fmt.Errorf("invalid manager.pool_capacity: %d", config.Manager.PoolCapacity)
	}

	// Preallocated buffers
	seen := make(map[string]bool, len(config.Buffers))
	for i := range config.Buffers {
		b := &config.Buffers[i]
		if err := b.Validate(); err != nil {
			return fmt.Errorf("buffers[%d]: %w", i, err)
		}
		if seen[b.ID] {
			return fmt.Errorf("buffers[%d]: duplicate buffer id %s", i, b.ID)
		}
		seen[b.ID] = true
		if _, err := buffer.ParseType(b.Type); err != nil {
			return fmt.Errorf("buffers[%d]: %w", i, err)
		}
	}

	// Events validation
	if config.Events.Enabled {
		if err := config.Events.Kafka.Validate(); err != nil {
			return fmt.Errorf("events.kafka: %w", err)
		}
		switch config.Events.Kafka.SecurityProtocol {
		case "PLAINTEXT", "SSL", "SASL_PLAINTEXT", "SASL_SSL":
		default:
			return fmt.Errorf("unsupported security protocol: %s", config.Events.Kafka.SecurityProtocol)
		}
	}

	// Storage validation
	var err error
	switch config.Storage.Backend {
	case "s3":
		err = config.Storage.S3.Validate()
	case "azure":
		err = config.Storage.Azure.Validate()
	case "gcs":
		err = config.Storage.GCS.Validate()
	case "file":
		err = config.Storage.File.Validate()
	default:
		return fmt.Errorf("unsupported storage backend: %s", config.Storage.Backend)
	}
	if err != nil {
		return fmt.Errorf("storage.%s: %w", config.Storage.Backend, err)
	}

	// Format validation
	switch config.Storage.Format {
	case "wav", "parquet", "avro":
	default:
		return fmt.Errorf("unsupported storage format: %s", config.Storage.Format)
	}

	// Segment validation
	if config.Storage.Segment.Strategy != "any" && config.Storage.Segment.Strategy != "all" {
		return fmt.Errorf("unsupported segment strategy: %s", config.Storage.Segment.Strategy)
	}

	// Archive validation
	for _, id := range config.Archive.BufferIDs {
		if id == "" {
			return errors.New("archive.buffer_ids must not contain empty ids")
		}
	}

	// Port validation
	if config.Observability.Metrics.Port < 1 || config.Observability.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", config.Observability.Metrics.Port)
	}
	if config.Observability.Health.Port < 1 || config.Observability.Health.Port > 65535 {
		return fmt.Errorf("invalid health port: %d", config.Observability.Health.Port)
	}

	if p := config.Observability.Degradation.MaxMemoryPressure; p < 0 || p > 1 {
		return fmt.Errorf("invalid observability.degradation.max_memory_pressure: %v", p)
	}

	return nil
}
