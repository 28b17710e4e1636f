package encoder

import (
	"errors"
	"fmt"
	"os"

	"github.com/jittakal/audiobuf/pkg/encoder"
	"github.com/jittakal/audiobuf/pkg/event"
)

// ErrEmptySnapshot is returned when a snapshot holds no whole frame.
var ErrEmptySnapshot = errors.New("no frames to encode")

// Factory creates encoders based on format and configuration.
type Factory struct {
	format      event.FileFormat
	compression string
}

// NewFactory creates a new encoder factory.
func NewFactory(format event.FileFormat, compression string) *Factory {
	return &Factory{
		format:      format,
		compression: compression,
	}
}

// CreateEncoder creates an encoder based on the configured format.
func (f *Factory) CreateEncoder() (encoder.Encoder, error) {
	switch f.format {
	case event.FormatWAV:
		return NewWAVEncoder(f.compression), nil
	case event.FormatParquet:
		return NewParquetEncoder(f.compression), nil
	case event.FormatAvro:
		return NewAvroEncoder(f.compression)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", f.format)
	}
}

// SupportedFormats returns a list of supported file formats.
func SupportedFormats() []event.FileFormat {
	return []event.FileFormat{
		event.FormatWAV,
		event.FormatParquet,
		event.FormatAvro,
	}
}

// SupportedCompressions returns supported compression codecs for a given format.
// For WAV the "compression" selects the PCM sample depth.
func SupportedCompressions(format event.FileFormat) []string {
	switch format {
	case event.FormatWAV:
		return []string{"pcm16", "pcm24"}
	case event.FormatParquet:
		return []string{"uncompressed", "snappy", "gzip", "lz4", "zstd"}
	case event.FormatAvro:
		return []string{"uncompressed", "gzip", "deflate", "snappy"}
	default:
		return []string{}
	}
}

// DefaultCompression returns the default compression for a format.
func DefaultCompression(format event.FileFormat) string {
	switch format {
	case event.FormatWAV:
		return "pcm16"
	case event.FormatParquet:
		return "snappy"
	case event.FormatAvro:
		return "gzip"
	default:
		return "uncompressed"
	}
}

func checkSnapshot(snap *event.Snapshot) error {
	if snap == nil {
		return errors.New("nil snapshot")
	}
	if snap.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", snap.Channels)
	}
	if snap.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %v", snap.SampleRate)
	}
	if snap.Frames() == 0 {
		return ErrEmptySnapshot
	}
	return nil
}

func fileStats(filePath string, snap *event.Snapshot, format event.FileFormat) (*event.FileStats, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	return &event.FileStats{
		Frames:    snap.Frames(),
		SizeBytes: fileInfo.Size(),
		Format:    format,
	}, nil
}
