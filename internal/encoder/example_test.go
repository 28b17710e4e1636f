package encoder_test

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jittakal/audiobuf/internal/encoder"
	"github.com/jittakal/audiobuf/pkg/event"
)

func Example_encoderFactory() {
	for _, format := range encoder.SupportedFormats() {
		enc, err := encoder.NewFactory(format, encoder.DefaultCompression(format)).CreateEncoder()
		if err != nil {
			fmt.Println("Error:", err)
			return
		}
		fmt.Printf("%s -> %s\n", enc.Format(), enc.FileExtension())
	}

	// Output:
	// wav -> .wav
	// parquet -> .parquet
	// avro -> .avro.gz
}

func Example_wavEncoder() {
	dir, err := os.MkdirTemp("", "audiobuf-example")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	defer os.RemoveAll(dir)

	snap := &event.Snapshot{
		BufferID:   "click",
		SampleRate: 8000,
		Channels:   1,
		Samples:    []float32{0, 0.5, 1, 0.5, 0, -0.5, -1, -0.5},
	}

	enc := encoder.NewWAVEncoder("pcm16")
	stats, err := enc.Encode(filepath.Join(dir, "click"+enc.FileExtension()), snap)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	// 44 byte header plus 8 samples of 2 bytes.
	fmt.Printf("Encoded %d frames, %d bytes\n", stats.Frames, stats.SizeBytes)

	// Output:
	// Encoded 8 frames, 60 bytes
}
