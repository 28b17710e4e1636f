package dto

import (
	"fmt"
	"time"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Manager       ManagerConfig       `mapstructure:"manager"`
	Buffers       []BufferConfig      `mapstructure:"buffers"`
	Events        EventsConfig        `mapstructure:"events"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Archive       ArchiveConfig       `mapstructure:"archive"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ManagerConfig contains the buffer manager limits
type ManagerConfig struct {
	MaxMemoryMB  float64 `mapstructure:"max_memory_mb"`
	PoolCapacity int     `mapstructure:"pool_capacity"`
	Tombstones   int     `mapstructure:"tombstones"`
}

// BufferConfig describes a buffer created at start-up
type BufferConfig struct {
	ID            string  `mapstructure:"id"`
	Type          string  `mapstructure:"type"`
	SampleRate    float64 `mapstructure:"sample_rate"`
	Channels      int     `mapstructure:"channels"`
	BufferSize    int     `mapstructure:"buffer_size"`
	MaxMemoryMB   float64 `mapstructure:"max_memory_mb"`
	ChunkSize     int     `mapstructure:"chunk_size"`
	CacheSizeMB   float64 `mapstructure:"cache_size_mb"`
	FilePath      string  `mapstructure:"file_path"`
	ThreadSafe    bool    `mapstructure:"thread_safe"`
	Truncate      bool    `mapstructure:"truncate"`
	RemoveOnClose bool    `mapstructure:"remove_on_close"`
}

// EventsConfig contains lifecycle event publishing settings
type EventsConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Source  string      `mapstructure:"source"`
	Kafka   KafkaConfig `mapstructure:"kafka"`
}

// KafkaConfig contains Kafka-related configuration
type KafkaConfig struct {
	BootstrapServers []string `mapstructure:"bootstrap_servers"`
	SecurityProtocol string   `mapstructure:"security_protocol"`
	SASLMechanism    string   `mapstructure:"sasl_mechanism"`
	SASLUsername     string   `mapstructure:"sasl_username"`
	SASLPassword     string   `mapstructure:"sasl_password"`
	AWSRegion        string   `mapstructure:"aws_region"`
	Topic            string   `mapstructure:"topic"`
	QueueSize        int      `mapstructure:"queue_size"`
}

// StorageConfig contains snapshot storage backend configuration
type StorageConfig struct {
	Backend     string        `mapstructure:"backend"`
	Format      string        `mapstructure:"format"`
	Compression string        `mapstructure:"compression"`
	Segment     SegmentConfig `mapstructure:"segment"`
	S3          S3Config      `mapstructure:"s3"`
	Azure       AzureConfig   `mapstructure:"azure"`
	GCS         GCSConfig     `mapstructure:"gcs"`
	File        FileConfig    `mapstructure:"file"`
}

// SegmentConfig bounds the size of one exported file
type SegmentConfig struct {
	MaxFileSizeMB      int64  `mapstructure:"max_file_size_mb"`
	MaxDurationSeconds int    `mapstructure:"max_duration_seconds"`
	Strategy           string `mapstructure:"strategy"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	BasePath     string `mapstructure:"base_path"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Container        string `mapstructure:"container"`
	BasePath         string `mapstructure:"base_path"`
	Endpoint         string `mapstructure:"endpoint"`
	ConnectionString string `mapstructure:"connection_string"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	BasePath             string `mapstructure:"base_path"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	Endpoint             string `mapstructure:"endpoint"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// FileConfig contains local filesystem configuration
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// ArchiveConfig selects buffers exported as snapshots
type ArchiveConfig struct {
	OnShutdown bool     `mapstructure:"on_shutdown"`
	BufferIDs  []string `mapstructure:"buffer_ids"`
	TempDir    string   `mapstructure:"temp_dir"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Health      HealthConfig      `mapstructure:"health"`
	Degradation DegradationConfig `mapstructure:"degradation"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// DegradationConfig contains the thresholds consumers use to shed load
type DegradationConfig struct {
	MaxMemoryPressure float64 `mapstructure:"max_memory_pressure"`
}

// ShutdownConfig contains shutdown settings
type ShutdownConfig struct {
	GracePeriodSeconds int `mapstructure:"grace_period_seconds"`
}

// GracePeriod returns the shutdown grace period as a duration.
func (c ShutdownConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("application name is required")
	}
	if c.Manager.MaxMemoryMB <= 0 {
		return fmt.Errorf("manager max memory must be > 0")
	}
	if c.Storage.Backend == "" {
		return fmt.Errorf("storage backend is required")
	}
	return nil
}

// Validate validates a preallocated buffer entry. Field ranges are checked
// again by buffer.NewConfig when the buffer is created.
func (c *BufferConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("buffer id is required")
	}
	if c.Type == "" {
		return fmt.Errorf("buffer %s: type is required", c.ID)
	}
	return nil
}

// Validate validates Kafka configuration.
func (c *KafkaConfig) Validate() error {
	if len(c.BootstrapServers) == 0 {
		return fmt.Errorf("kafka bootstrap servers are required")
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka topic is required")
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("kafka queue size must be >= 0")
	}
	return nil
}

// Validate validates S3 configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// Validate validates Azure configuration.
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" && c.ConnectionString == "" {
		return fmt.Errorf("azure account name is required")
	}
	if c.Container == "" {
		return fmt.Errorf("azure container is required")
	}
	return nil
}

// Validate validates GCS configuration.
func (c *GCSConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs bucket is required")
	}
	return nil
}

// Validate validates file configuration.
func (c *FileConfig) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("file base path is required")
	}
	return nil
}
