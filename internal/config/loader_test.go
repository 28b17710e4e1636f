package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jittakal/audiobuf/internal/config/dto"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil {
		t.Fatal("expected non-nil loader")
	}
	if loader.v == nil {
		t.Fatal("expected non-nil viper instance")
	}
}

func TestLoader_LoadWithValidConfig(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")

	configContent := `
application:
  name: studio-buffers
  version: 2.0.0

manager:
  max_memory_mb: 256
  pool_capacity: 4

buffers:
  - id: vocals
    type: memory
    sample_rate: 48000
    channels: 2
    buffer_size: 4096
    max_memory_mb: 16
  - id: playback
    type: ring
    sample_rate: 48000
    channels: 2
    buffer_size: 512
    max_memory_mb: 1
    thread_safe: true

storage:
  backend: file
  format: wav
  file:
    base_path: /tmp/snapshots

archive:
  on_shutdown: true
  buffer_ids:
    - vocals
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to create test config file: %v", err)
	}

	config, err := NewLoader().Load(configFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Application.Name != "studio-buffers" {
		t.Errorf("Application.Name = %s, want studio-buffers", config.Application.Name)
	}
	if config.Manager.MaxMemoryMB != 256 {
		t.Errorf("Manager.MaxMemoryMB = %v, want 256", config.Manager.MaxMemoryMB)
	}
	if config.Manager.Tombstones != 256 {
		t.Errorf("Manager.Tombstones = %d, want default 256", config.Manager.Tombstones)
	}
	if len(config.Buffers) != 2 {
		t.Fatalf("len(Buffers) = %d, want 2", len(config.Buffers))
	}
	if b := config.Buffers[1]; b.ID != "playback" || b.Type != "ring" || !b.ThreadSafe || b.BufferSize != 512 {
		t.Errorf("Buffers[1] = %+v", b)
	}
	if !config.Archive.OnShutdown || len(config.Archive.BufferIDs) != 1 {
		t.Errorf("Archive = %+v", config.Archive)
	}
	if config.Storage.Segment.Strategy != "any" {
		t.Errorf("Storage.Segment.Strategy = %s, want any", config.Storage.Segment.Strategy)
	}
}

func TestLoader_LoadWithMissingFile(t *testing.T) {
	// Defaults alone form a valid configuration.
	config, err := NewLoader().Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Storage.Backend != "file" {
		t.Errorf("Storage.Backend = %s, want file", config.Storage.Backend)
	}
	if config.Events.Enabled {
		t.Error("events should be disabled by default")
	}
}

func TestLoader_EnvironmentOverride(t *testing.T) {
	t.Setenv("AUDIOBUF_MANAGER_MAX_MEMORY_MB", "64")
	t.Setenv("AUDIOBUF_STORAGE_FORMAT", "avro")

	config, err := NewLoader().Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Manager.MaxMemoryMB != 64 {
		t.Errorf("Manager.MaxMemoryMB = %v, want 64", config.Manager.MaxMemoryMB)
	}
	if config.Storage.Format != "avro" {
		t.Errorf("Storage.Format = %s, want avro", config.Storage.Format)
	}
}

func TestLoader_ExpandsEnvironmentReferences(t *testing.T) {
	t.Setenv("SNAPSHOT_BUCKET", "studio-archive")
	configFile := filepath.Join(t.TempDir(), "config.yaml")

	configContent := `
storage:
  backend: s3
  s3:
    bucket: ${SNAPSHOT_BUCKET}
    region: eu-west-1
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to create test config file: %v", err)
	}

	config, err := NewLoader().Load(configFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Storage.S3.Bucket != "studio-archive" {
		t.Errorf("Storage.S3.Bucket = %s, want studio-archive", config.Storage.S3.Bucket)
	}
}

func TestLoader_LoadRejectsInvalidFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
buffers:
  - id: vocals
    type: tape
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to create test config file: %v", err)
	}

	_, err := NewLoader().Load(configFile)
	if err == nil {
		t.Fatal("Load() should fail for an unknown buffer type")
	}
	if !strings.Contains(err.Error(), "config validation failed") {
		t.Errorf("error = %v, want validation failure", err)
	}
}

func validConfig() *dto.ApplicationConfig {
	return &dto.ApplicationConfig{
		Application: dto.ApplicationInfo{Name: "audiobuf"},
		Manager:     dto.ManagerConfig{MaxMemoryMB: 128, PoolCapacity: 4},
		Storage: dto.StorageConfig{
			Backend: "file",
			Format:  "wav",
			File:    dto.FileConfig{BasePath: "/tmp/test"},
			Segment: dto.SegmentConfig{Strategy: "any"},
		},
		Observability: dto.ObservabilityConfig{
			Metrics:     dto.MetricsConfig{Port: 9090},
			Health:      dto.HealthConfig{Port: 8080},
			Degradation: dto.DegradationConfig{MaxMemoryPressure: 0.9},
		},
	}
}

func TestLoader_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *dto.ApplicationConfig)
		wantErr bool
	}{
		{
			name:    "valid file backend config",
			mutate:  func(c *dto.ApplicationConfig) {},
			wantErr: false,
		},
		{
			name:    "missing application name",
			mutate:  func(c *dto.ApplicationConfig) { c.Application.Name = "" },
			wantErr: true,
		},
		{
			name:    "zero manager budget",
			mutate:  func(c *dto.ApplicationConfig) { c.Manager.MaxMemoryMB = 0 },
			wantErr: true,
		},
		{
			name:    "negative pool capacity",
			mutate:  func(c *dto.ApplicationConfig) { c.Manager.PoolCapacity = -1 },
			wantErr: true,
		},
		{
			name: "valid preallocated buffers",
			mutate: func(c *dto.ApplicationConfig) {
				c.Buffers = []dto.BufferConfig{{ID: "a", Type: "memory"}, {ID: "b", Type: "pooled"}}
			},
			wantErr: false,
		},
		{
			name: "duplicate buffer id",
			mutate: func(c *dto.ApplicationConfig) {
				c.Buffers = []dto.BufferConfig{{ID: "a", Type: "memory"}, {ID: "a", Type: "ring"}}
			},
			wantErr: true,
		},
		{
			name: "buffer without id",
			mutate: func(c *dto.ApplicationConfig) {
				c.Buffers = []dto.BufferConfig{{Type: "memory"}}
			},
			wantErr: true,
		},
		{
			name: "unknown buffer type",
			mutate: func(c *dto.ApplicationConfig) {
				c.Buffers = []dto.BufferConfig{{ID: "a", Type: "tape"}}
			},
			wantErr: true,
		},
		{
			name: "events enabled without brokers",
			mutate: func(c *dto.ApplicationConfig) {
				c.Events = dto.EventsConfig{Enabled: true, Kafka: dto.KafkaConfig{Topic: "t", SecurityProtocol: "PLAINTEXT"}}
			},
			wantErr: true,
		},
		{
			name: "events with unsupported security protocol",
			mutate: func(c *dto.ApplicationConfig) {
				c.Events = dto.EventsConfig{Enabled: true, Kafka: dto.KafkaConfig{
					BootstrapServers: []string{"localhost:9092"},
					Topic:            "t",
					SecurityProtocol: "KERBEROS",
				}}
			},
			wantErr: true,
		},
		{
			name: "valid events config",
			mutate: func(c *dto.ApplicationConfig) {
				c.Events = dto.EventsConfig{Enabled: true, Kafka: dto.KafkaConfig{
					BootstrapServers: []string{"localhost:9092"},
					Topic:            "audiobuf.lifecycle",
					SecurityProtocol: "SASL_SSL",
				}}
			},
			wantErr: false,
		},
		{
			name: "s3 backend missing bucket",
			mutate: func(c *dto.ApplicationConfig) {
				c.Storage.Backend = "s3"
				c.Storage.S3 = dto.S3Config{Region: "us-east-1"}
			},
			wantErr: true,
		},
		{
			name: "azure backend missing account name",
			mutate: func(c *dto.ApplicationConfig) {
				c.Storage.Backend = "azure"
				c.Storage.Azure = dto.AzureConfig{Container: "snapshots"}
			},
			wantErr: true,
		},
		{
			name: "gcs backend missing bucket",
			mutate: func(c *dto.ApplicationConfig) {
				c.Storage.Backend = "gcs"
			},
			wantErr: true,
		},
		{
			name:    "unsupported storage backend",
			mutate:  func(c *dto.ApplicationConfig) { c.Storage.Backend = "tape" },
			wantErr: true,
		},
		{
			name:    "unsupported storage format",
			mutate:  func(c *dto.ApplicationConfig) { c.Storage.Format = "mp3" },
			wantErr: true,
		},
		{
			name:    "unsupported segment strategy",
			mutate:  func(c *dto.ApplicationConfig) { c.Storage.Segment.Strategy = "never" },
			wantErr: true,
		},
		{
			name:    "empty archive id",
			mutate:  func(c *dto.ApplicationConfig) { c.Archive.BufferIDs = []string{""} },
			wantErr: true,
		},
		{
			name:    "invalid metrics port",
			mutate:  func(c *dto.ApplicationConfig) { c.Observability.Metrics.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "invalid health port",
			mutate:  func(c *dto.ApplicationConfig) { c.Observability.Health.Port = 0 },
			wantErr: true,
		},
		{
			name:    "pressure above one",
			mutate:  func(c *dto.ApplicationConfig) { c.Observability.Degradation.MaxMemoryPressure = 1.5 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(config)

			err := NewLoader().Validate(config)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoader_setDefaults(t *testing.T) {
	loader := NewLoader()
	loader.setDefaults()

	if loader.v.GetString("application.name") != "audiobuf" {
		t.Error("default application.name not set correctly")
	}
	if loader.v.GetString("storage.backend") != "file" {
		t.Error("default storage.backend not set correctly")
	}
	if loader.v.GetString("storage.format") != "wav" {
		t.Error("default storage.format not set correctly")
	}
	if loader.v.GetFloat64("observability.degradation.max_memory_pressure") != 0.9 {
		t.Error("default max_memory_pressure not set correctly")
	}
}
