package encoder

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/jittakal/audiobuf/pkg/encoder"
	"github.com/jittakal/audiobuf/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*ParquetEncoder)(nil)

// SampleParquet is one sample of a snapshot. Frame is the absolute buffer
// position, so rows from several snapshot files of one buffer line up.
type SampleParquet struct {
	BufferID   string    `parquet:"buffer_id,dict"`
	BufferType string    `parquet:"buffer_type,dict"`
	Frame      int64     `parquet:"frame"`
	Channel    int32     `parquet:"channel"`
	Sample     float32   `parquet:"sample"`
	CapturedAt time.Time `parquet:"captured_at,timestamp(microsecond)"`
}

// ParquetEncoder implements encoder.Encoder for Apache Parquet columnar format.
// It writes one row per sample so per-channel statistics can be queried directly.
// Supports multiple compression codecs: SNAPPY (default), GZIP, LZ4, ZSTD.
type ParquetEncoder struct {
	compressionName string
}

// NewParquetEncoder creates a new Parquet encoder with specified compression.
func NewParquetEncoder(compression string) *ParquetEncoder {
	return &ParquetEncoder{
		compressionName: compression,
	}
}

// compressionCodec converts string compression name to parquet WriterOption.
func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	case "uncompressed", "UNCOMPRESSED", "none", "NONE":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// Encode writes the snapshot to a Parquet file. Sample rate and channel count
// are stored in the file's key/value metadata.
func (e *ParquetEncoder) Encode(filePath string, snap *event.Snapshot) (*event.FileStats, error) {
	if err := checkSnapshot(snap); err != nil {
		return nil, err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	writer := parquet.NewGenericWriter[SampleParquet](
		file,
		compressionCodec(e.compressionName),
		parquet.CreatedBy("audiobuf", "1.0", "0"),
		parquet.KeyValueMetadata("sample_rate", strconv.FormatFloat(snap.SampleRate, 'f', -1, 64)),
		parquet.KeyValueMetadata("channels", strconv.Itoa(snap.Channels)),
		parquet.KeyValueMetadata("start_frame", strconv.FormatInt(snap.StartFrame, 10)),
	)

	if _, err := writer.Write(sampleRows(snap)); err != nil {
		writer.Close()
		file.Close()
		return nil, fmt.Errorf("failed to write samples: %w", err)
	}

	if err := writer.Close(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	// Close file before getting stats to ensure all data is flushed
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	return fileStats(filePath, snap, event.FormatParquet)
}

func sampleRows(snap *event.Snapshot) []SampleParquet {
	frames := int(snap.Frames())
	rows := make([]SampleParquet, 0, frames*snap.Channels)
	for f := 0; f < frames; f++ {
		for c := 0; c < snap.Channels; c++ {
			rows = append(rows, SampleParquet{
				BufferID:   snap.BufferID,
				BufferType: snap.BufferType,
				Frame:      snap.StartFrame + int64(f),
				Channel:    int32(c),
				Sample:     snap.Samples[f*snap.Channels+c],
				CapturedAt: snap.CapturedAt,
			})
		}
	}
	return rows
}

// Format returns the file format.
func (e *ParquetEncoder) Format() event.FileFormat {
	return event.FormatParquet
}

// FileExtension returns the file extension.
func (e *ParquetEncoder) FileExtension() string {
	return ".parquet"
}
