package event

import (
	"fmt"
	"time"
)

// Kind is the CloudEvents type of a lifecycle notification.
type Kind string

const (
	KindCreated Kind = "audiobuf.buffer.created"
	KindRemoved Kind = "audiobuf.buffer.removed"
	KindFailed  Kind = "audiobuf.buffer.failed"
	KindFaulted Kind = "audiobuf.buffer.faulted"
)

// Lifecycle describes a buffer state change.
type Lifecycle struct {
	Kind          Kind      `json:"-"`
	BufferID      string    `json:"buffer_id"`
	BufferType    string    `json:"buffer_type"`
	State         string    `json:"state"`
	SampleRate    float64   `json:"sample_rate,omitempty"`
	Channels      int       `json:"channels,omitempty"`
	BufferSize    int       `json:"buffer_size,omitempty"`
	MemoryUsageMB float64   `json:"memory_usage_mb,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Time          time.Time `json:"time"`
}

// Subject returns the CloudEvents subject for the notification.
func (l Lifecycle) Subject() string {
	return fmt.Sprintf("buffers/%s", l.BufferID)
}

// FileFormat represents the snapshot file format.
type FileFormat string

const (
	FormatWAV     FileFormat = "wav"
	FormatParquet FileFormat = "parquet"
	FormatAvro    FileFormat = "avro"
)

// Snapshot is a copy of a buffer's frames taken without moving its cursor.
type Snapshot struct {
	BufferID   string
	BufferType string
	SampleRate float64
	Channels   int
	// StartFrame is the buffer position of the first frame in Samples.
	StartFrame int64
	// Samples holds interleaved frames.
	Samples    []float32
	CapturedAt time.Time
}

// Frames returns the number of whole frames in the snapshot.
func (s *Snapshot) Frames() int64 {
	if s.Channels <= 0 {
		return 0
	}
	return int64(len(s.Samples) / s.Channels)
}

// Duration returns the playback length of the snapshot.
func (s *Snapshot) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(s.Frames()) / s.SampleRate * float64(time.Second))
}

// FileStats describes an encoded snapshot file.
type FileStats struct {
	Frames    int64
	SizeBytes int64
	Format    FileFormat
}
