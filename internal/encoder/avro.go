package encoder

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/linkedin/goavro/v2"

	"github.com/jittakal/audiobuf/pkg/encoder"
	"github.com/jittakal/audiobuf/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*AvroEncoder)(nil)

// AvroEncoder implements encoder.Encoder for Apache Avro binary format.
// It writes one record per frame into an OCF (Object Container File).
// "gzip" wraps the whole container; "deflate" and "snappy" use the OCF
// block codecs so the file stays splittable.
type AvroEncoder struct {
	codec       *goavro.Codec
	compression string
}

// NewAvroEncoder creates a new Avro encoder with specified compression.
func NewAvroEncoder(compression string) (*AvroEncoder, error) {
	codec, err := goavro.NewCodec(avroSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	return &AvroEncoder{
		codec:       codec,
		compression: compression,
	}, nil
}

// avroSchema returns the Avro schema for snapshot frames.
func avroSchema() string {
	return `{
		"type": "record",
		"name": "AudioFrame",
		"namespace": "io.audiobuf.snapshot",
		"fields": [
			{"name": "buffer_id", "type": "string"},
			{"name": "buffer_type", "type": "string"},
			{"name": "frame", "type": "long"},
			{"name": "samples", "type": {"type": "array", "items": "float"}},
			{"name": "captured_at", "type": "string"}
		]
	}`
}

// Encode writes the snapshot to an Avro file.
func (e *AvroEncoder) Encode(filePath string, snap *event.Snapshot) (*event.FileStats, error) {
	if err := checkSnapshot(snap); err != nil {
		return nil, err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if err := e.encode(file, snap); err != nil {
		file.Close()
		return nil, err
	}

	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	return fileStats(filePath, snap, event.FormatAvro)
}

// EncodeToBytes encodes the snapshot in memory.
func (e *AvroEncoder) EncodeToBytes(snap *event.Snapshot) ([]byte, error) {
	if err := checkSnapshot(snap); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := e.encode(&buf, snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *AvroEncoder) encode(w io.Writer, snap *event.Snapshot) error {
	var gzipWriter *gzip.Writer
	if e.gzip() {
		gzipWriter = gzip.NewWriter(w)
		w = gzipWriter
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           e.codec,
		CompressionName: e.blockCodec(),
		MetaData: map[string][]byte{
			"audiobuf.sample_rate": []byte(strconv.FormatFloat(snap.SampleRate, 'f', -1, 64)),
			"audiobuf.channels":    []byte(strconv.Itoa(snap.Channels)),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create OCF writer: %w", err)
	}

	captured := snap.CapturedAt.UTC().Format(time.RFC3339Nano)
	frames := int(snap.Frames())
	records := make([]interface{}, 0, frames)
	for f := 0; f < frames; f++ {
		frame := snap.Samples[f*snap.Channels : (f+1)*snap.Channels]
		samples := make([]interface{}, len(frame))
		for c, s := range frame {
			samples[c] = s
		}
		records = append(records, map[string]interface{}{
			"buffer_id":   snap.BufferID,
			"buffer_type": snap.BufferType,
			"frame":       snap.StartFrame + int64(f),
			"samples":     samples,
			"captured_at": captured,
		})
	}

	if err := ocfWriter.Append(records); err != nil {
		return fmt.Errorf("failed to write frames: %w", err)
	}

	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			return fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}
	return nil
}

func (e *AvroEncoder) gzip() bool {
	return e.compression == "gzip" || e.compression == "GZIP"
}

func (e *AvroEncoder) blockCodec() string {
	switch e.compression {
	case "deflate", "DEFLATE":
		return goavro.CompressionDeflateLabel
	case "snappy", "SNAPPY":
		return goavro.CompressionSnappyLabel
	default:
		return goavro.CompressionNullLabel
	}
}

// Format returns the file format.
func (e *AvroEncoder) Format() event.FileFormat {
	return event.FormatAvro
}

// FileExtension returns the file extension.
func (e *AvroEncoder) FileExtension() string {
	if e.gzip() {
		return ".avro.gz"
	}
	return ".avro"
}
