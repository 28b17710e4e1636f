package encoder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
)

func TestParquetEncoder_WriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.parquet")
	snap := testSnapshot(10)

	stats, err := NewParquetEncoder("snappy").Encode(path, snap)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if stats.Frames != 10 || stats.SizeBytes <= 0 {
		t.Errorf("stats = %+v", stats)
	}

	rows, err := parquet.ReadFile[SampleParquet](path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(rows) != 20 {
		t.Fatalf("len(rows) = %d, want 20", len(rows))
	}

	for i, row := range rows {
		if row.Frame != snap.StartFrame+int64(i/2) {
			t.Errorf("rows[%d].Frame = %d, want %d", i, row.Frame, snap.StartFrame+int64(i/2))
		}
		if row.Channel != int32(i%2) {
			t.Errorf("rows[%d].Channel = %d, want %d", i, row.Channel, i%2)
		}
		if row.Sample != snap.Samples[i] {
			t.Errorf("rows[%d].Sample = %v, want %v", i, row.Sample, snap.Samples[i])
		}
		if row.BufferID != "vocals" {
			t.Errorf("rows[%d].BufferID = %q", i, row.BufferID)
		}
		if !row.CapturedAt.Equal(snap.CapturedAt) {
			t.Errorf("rows[%d].CapturedAt = %v, want %v", i, row.CapturedAt, snap.CapturedAt)
		}
	}
}

func TestParquetEncoder_Metadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.parquet")
	if _, err := NewParquetEncoder("zstd").Encode(path, testSnapshot(8)); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	want := map[string]string{"sample_rate": "48000", "channels": "2", "start_frame": "100"}
	for key, value := range want {
		got, ok := pf.Lookup(key)
		if !ok || got != value {
			t.Errorf("Lookup(%q) = %q, %v, want %q", key, got, ok, value)
		}
	}
	if pf.NumRows() != 16 {
		t.Errorf("NumRows() = %d, want 16", pf.NumRows())
	}
}

func TestParquetEncoder_CompressionCodecs(t *testing.T) {
	for _, compression := range SupportedCompressions("parquet") {
		t.Run(compression, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "snap.parquet")
			if _, err := NewParquetEncoder(compression).Encode(path, testSnapshot(64)); err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			rows, err := parquet.ReadFile[SampleParquet](path)
			if err != nil {
				t.Fatalf("ReadFile() error = %v", err)
			}
			if len(rows) != 128 {
				t.Errorf("len(rows) = %d, want 128", len(rows))
			}
		})
	}
}

func TestParquetEncoder_FileExtension(t *testing.T) {
	if ext := NewParquetEncoder("snappy").FileExtension(); ext != ".parquet" {
		t.Errorf("FileExtension() = %v, want .parquet", ext)
	}
}
