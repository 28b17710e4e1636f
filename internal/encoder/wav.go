package encoder

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/jittakal/audiobuf/pkg/encoder"
	"github.com/jittakal/audiobuf/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*WAVEncoder)(nil)

// wavFormatPCM is the RIFF audio format tag for integer PCM.
const wavFormatPCM = 1

// WAVEncoder implements encoder.Encoder for RIFF/WAVE integer PCM files.
// Float samples are clipped to [-1, 1] and quantized to the configured depth.
type WAVEncoder struct {
	bitDepth int
}

// NewWAVEncoder creates a WAV encoder. The compression name selects the
// sample depth: "pcm24" for 24 bit, anything else for 16 bit.
func NewWAVEncoder(compression string) *WAVEncoder {
	return &WAVEncoder{bitDepth: wavBitDepth(compression)}
}

func wavBitDepth(compression string) int {
	switch compression {
	case "pcm24", "PCM24":
		return 24
	default:
		return 16
	}
}

// Encode writes the snapshot as a WAV file.
func (e *WAVEncoder) Encode(filePath string, snap *event.Snapshot) (*event.FileStats, error) {
	if err := checkSnapshot(snap); err != nil {
		return nil, err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	sampleRate := int(math.Round(snap.SampleRate))
	enc := wav.NewEncoder(file, sampleRate, e.bitDepth, snap.Channels, wavFormatPCM)

	buf := &audio.IntBuffer{
		Data:           quantize(snap.Samples, e.bitDepth),
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: snap.Channels},
		SourceBitDepth: e.bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write samples: %w", err)
	}

	// Close rewrites the RIFF header with the final sizes.
	if err := enc.Close(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to close wav encoder: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	return fileStats(filePath, snap, event.FormatWAV)
}

// quantize converts float samples to signed integers of the given depth.
func quantize(samples []float32, bitDepth int) []int {
	scale := float64(int64(1)<<(bitDepth-1) - 1)
	out := make([]int, len(samples))
	for i, s := range samples {
		v := float64(s)
		switch {
		case math.IsNaN(v):
			v = 0
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		}
		out[i] = int(math.Round(v * scale))
	}
	return out
}

// Format returns the file format.
func (e *WAVEncoder) Format() event.FileFormat {
	return event.FormatWAV
}

// FileExtension returns the file extension.
func (e *WAVEncoder) FileExtension() string {
	return ".wav"
}
