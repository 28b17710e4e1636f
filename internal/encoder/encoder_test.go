package encoder

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/jittakal/audiobuf/pkg/event"
)

// testSnapshot returns a stereo sine snapshot whose right channel is inverted.
func testSnapshot(frames int) *event.Snapshot {
	samples := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/48000))
		samples[2*i] = v
		samples[2*i+1] = -v
	}
	return &event.Snapshot{
		BufferID:   "vocals",
		BufferType: "memory",
		SampleRate: 48000,
		Channels:   2,
		StartFrame: 100,
		Samples:    samples,
		CapturedAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewFactory(t *testing.T) {
	tests := []struct {
		name        string
		format      event.FileFormat
		compression string
	}{
		{"wav with pcm16", event.FormatWAV, "pcm16"},
		{"parquet with snappy", event.FormatParquet, "snappy"},
		{"avro with gzip", event.FormatAvro, "gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewFactory(tt.format, tt.compression)
			if factory.format != tt.format {
				t.Errorf("format = %v, want %v", factory.format, tt.format)
			}
			if factory.compression != tt.compression {
				t.Errorf("compression = %v, want %v", factory.compression, tt.compression)
			}
		})
	}
}

func TestFactory_CreateEncoder(t *testing.T) {
	tests := []struct {
		name    string
		format  event.FileFormat
		wantExt string
		wantErr bool
	}{
		{"wav format", event.FormatWAV, ".wav", false},
		{"parquet format", event.FormatParquet, ".parquet", false},
		{"avro format", event.FormatAvro, ".avro.gz", false},
		{"unsupported format", event.FileFormat("mp3"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewFactory(tt.format, DefaultCompression(tt.format)).CreateEncoder()
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateEncoder() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if enc.Format() != tt.format {
				t.Errorf("Format() = %v, want %v", enc.Format(), tt.format)
			}
			if enc.FileExtension() != tt.wantExt {
				t.Errorf("FileExtension() = %v, want %v", enc.FileExtension(), tt.wantExt)
			}
		})
	}
}

func TestSupportedFormats(t *testing.T) {
	formats := SupportedFormats()
	if len(formats) != 3 {
		t.Fatalf("len(SupportedFormats()) = %d, want 3", len(formats))
	}
	for _, f := range formats {
		if len(SupportedCompressions(f)) == 0 {
			t.Errorf("no compressions for %s", f)
		}
	}
	if got := SupportedCompressions(event.FileFormat("mp3")); len(got) != 0 {
		t.Errorf("SupportedCompressions(mp3) = %v, want empty", got)
	}
}

func TestDefaultCompression(t *testing.T) {
	tests := []struct {
		format event.FileFormat
		want   string
	}{
		{event.FormatWAV, "pcm16"},
		{event.FormatParquet, "snappy"},
		{event.FormatAvro, "gzip"},
		{event.FileFormat("mp3"), "uncompressed"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			if got := DefaultCompression(tt.format); got != tt.want {
				t.Errorf("DefaultCompression() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncoders_RejectInvalidSnapshots(t *testing.T) {
	tests := []struct {
		name string
		snap *event.Snapshot
	}{
		{"nil", nil},
		{"empty", &event.Snapshot{SampleRate: 48000, Channels: 2}},
		{"partial frame", &event.Snapshot{SampleRate: 48000, Channels: 2, Samples: []float32{0.1}}},
		{"no channels", &event.Snapshot{SampleRate: 48000, Samples: []float32{0.1}}},
		{"no sample rate", &event.Snapshot{Channels: 1, Samples: []float32{0.1}}},
	}

	for _, format := range SupportedFormats() {
		enc, err := NewFactory(format, DefaultCompression(format)).CreateEncoder()
		if err != nil {
			t.Fatalf("CreateEncoder(%s) error = %v", format, err)
		}
		for _, tt := range tests {
			t.Run(string(format)+"/"+tt.name, func(t *testing.T) {
				path := filepath.Join(t.TempDir(), "snap"+enc.FileExtension())
				if _, err := enc.Encode(path, tt.snap); err == nil {
					t.Error("Encode() should fail")
				}
			})
		}
	}
}

func TestEncoders_EmptySnapshotError(t *testing.T) {
	snap := &event.Snapshot{SampleRate: 48000, Channels: 2}
	_, err := NewWAVEncoder("").Encode(filepath.Join(t.TempDir(), "x.wav"), snap)
	if !errors.Is(err, ErrEmptySnapshot) {
		t.Errorf("error = %v, want ErrEmptySnapshot", err)
	}
}

func BenchmarkParquetEncoder_Encode(b *testing.B) {
	snap := testSnapshot(48000)
	path := filepath.Join(b.TempDir(), "bench.parquet")
	enc := NewParquetEncoder("snappy")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := enc.Encode(path, snap); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkWAVEncoder_Encode(b *testing.B) {
	snap := testSnapshot(48000)
	path := filepath.Join(b.TempDir(), "bench.wav")
	enc := NewWAVEncoder("pcm16")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := enc.Encode(path, snap); err != nil {
			b.Fatal(err)
		}
	}
}
