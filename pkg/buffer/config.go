package buffer

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	apperrors "github.com/jittakal/audiobuf/internal/errors"
)

// Defaults applied by NewConfig when the caller leaves a field zero.
const (
	DefaultChunkFrames = 4096
	DefaultCacheSizeMB = 8.0
)

const bytesPerMB = 1024 * 1024

// Config is the immutable description of one buffer.
type Config struct {
	Type        Type    `json:"type"`
	SampleRate  float64 `json:"sample_rate"`
	Channels    int     `json:"channels"`
	BufferSize  int     `json:"buffer_size"` // capacity in frames
	MaxMemoryMB float64 `json:"max_memory_mb"`
	ChunkSize   int     `json:"chunk_size,omitempty"`    // frames per chunk, disk and streaming only
	CacheSizeMB float64 `json:"cache_size_mb,omitempty"` // streaming only
	FilePath    string  `json:"file_path,omitempty"`
	ThreadSafe  bool    `json:"thread_safe"`
}

// NewConfig fills defaults into c and validates the result.
func NewConfig(c Config) (Config, error) {
	if c.Type.IsFileBacked() && c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkFrames
	}
	if c.Type == TypeStreaming && c.CacheSizeMB == 0 {
		c.CacheSizeMB = math.Min(DefaultCacheSizeMB, c.MaxMemoryMB)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks every field. It does not apply defaults.
func (c Config) Validate() error {
	switch c.Type {
	case TypeMemory, TypeDisk, TypeStreaming, TypeRing, TypePool:
	default:
		return invalid("buffer_type", fmt.Sprintf("unknown type %d", int(c.Type)))
	}
	if !positiveFinite(c.SampleRate) {
		return invalid("sample_rate", "must be a finite number > 0")
	}
	if c.Channels <= 0 {
		return invalid("channels", "must be > 0")
	}
	if c.BufferSize <= 0 {
		return invalid("buffer_size", "must be > 0")
	}
	if !positiveFinite(c.MaxMemoryMB) {
		return invalid("max_memory_mb", "must be a finite number > 0")
	}

	if c.ChunkSize < 0 {
		return invalid("chunk_size", "must be >= 0")
	}
	if c.ChunkSize > 0 && !c.Type.IsFileBacked() {
		return invalid("chunk_size", "only valid for disk and streaming buffers")
	}
	if c.Type.IsFileBacked() && c.ChunkSize == 0 {
		return invalid("chunk_size", "must be > 0")
	}

	if math.IsNaN(c.CacheSizeMB) || math.IsInf(c.CacheSizeMB, 0) || c.CacheSizeMB < 0 {
		return invalid("cache_size_mb", "must be a finite number >= 0")
	}
	if c.CacheSizeMB > 0 && c.Type != TypeStreaming {
		return invalid("cache_size_mb", "only valid for streaming buffers")
	}
	if c.Type == TypeStreaming {
		if c.CacheSizeMB == 0 {
			return invalid("cache_size_mb", "must be > 0")
		}
		// The cache holds the I/O chunk plus at least one resident chunk.
		if mulBytes(c.ChunkBytes(), 2) > c.CacheBytes() {
			return invalid("chunk_size", fmt.Sprintf("two chunks of %d bytes do not fit cache of %d bytes",
				c.ChunkBytes(), c.CacheBytes()))
		}
	}

	if c.Type.IsFileBacked() {
		if c.FilePath == "" {
			return invalid("file_path", "required for disk and streaming buffers")
		}
		if err := checkWritable(c.FilePath); err != nil {
			return invalid("file_path", err.Error())
		}
	} else if c.FilePath != "" {
		return invalid("file_path", "only valid for disk and streaming buffers")
	}

	return nil
}

// FrameBytes returns the size of one frame.
// Byte sizes saturate at math.MaxInt64, so an oversized config fails the
// budget checks instead of wrapping negative.
func (c Config) FrameBytes() int64 {
	return mulBytes(int64(c.Channels), BytesPerSample)
}

// CapacityBytes returns the size of BufferSize frames.
func (c Config) CapacityBytes() int64 {
	return mulBytes(int64(c.BufferSize), c.FrameBytes())
}

// ChunkBytes returns the size of one disk or streaming chunk.
func (c Config) ChunkBytes() int64 {
	return mulBytes(int64(c.ChunkSize), c.FrameBytes())
}

// MaxMemoryBytes returns the per-buffer memory ceiling.
func (c Config) MaxMemoryBytes() int64 {
	return MBToBytes(c.MaxMemoryMB)
}

// CacheBytes returns the streaming cache ceiling.
func (c Config) CacheBytes() int64 {
	return MBToBytes(c.CacheSizeMB)
}

// InitialBytes returns the memory a buffer of this config holds right after creation.
func (c Config) InitialBytes() int64 {
	switch c.Type {
	case TypeStreaming:
		return c.CacheBytes()
	case TypeDisk:
		return c.ChunkBytes()
	default:
		return c.CapacityBytes()
	}
}

// ReservedBytes returns the most memory a buffer of this config can ever hold.
// Memory buffers grow up to MaxMemoryMB; the other types never exceed their
// initial allocation.
func (c Config) ReservedBytes() int64 {
	if c.Type == TypeMemory {
		return c.MaxMemoryBytes()
	}
	return c.InitialBytes()
}

// MBToBytes converts mebibytes to bytes, saturating at math.MaxInt64.
func MBToBytes(mb float64) int64 {
	b := mb * bytesPerMB
	if b >= math.MaxInt64 {
		return math.MaxInt64
	}
	if b <= 0 || math.IsNaN(b) {
		return 0
	}
	return int64(b)
}

// mulBytes multiplies two non-negative sizes, saturating at math.MaxInt64.
func mulBytes(a, b int64) int64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

// BytesToMB converts bytes to mebibytes.
func BytesToMB(b int64) float64 {
	return float64(b) / bytesPerMB
}

func positiveFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func invalid(field, reason string) error {
	return &apperrors.ConfigurationError{Field: field, Reason: reason}
}

// checkWritable verifies that path is not a directory and that its parent
// directory accepts new files.
func checkWritable(path string) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("parent directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("parent %s is not a directory", dir)
	}

	probe, err := os.CreateTemp(dir, ".audiobuf-probe-*")
	if err != nil {
		return fmt.Errorf("parent directory not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return nil
}
