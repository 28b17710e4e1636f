package buffer

import (
	"io"
	"log/slog"
	"math"
	"os"
	"testing"

	"github.com/jittakal/audiobuf/pkg/buffer"
)

// tone synthesizes a sine at freq Hz, identical on every channel except for a
// per-channel phase offset so channel swaps are detectable.
func tone(channels, frames int, freq, sampleRate float64) buffer.Frames {
	f := buffer.NewFrames(channels, frames)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			phase := 2*math.Pi*freq*float64(i)/sampleRate + float64(c)*math.Pi/4
			f.Samples[i*channels+c] = float32(0.5 * math.Sin(phase))
		}
	}
	return f
}

// ramp returns frames whose samples count up from start.
func ramp(channels, frames int, start float32) buffer.Frames {
	f := buffer.NewFrames(channels, frames)
	for i := range f.Samples {
		f.Samples[i] = start + float32(i)
	}
	return f
}

func mustConfig(t *testing.T, cfg buffer.Config) buffer.Config {
	t.Helper()
	valid, err := buffer.NewConfig(cfg)
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	return valid
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeRawFrames writes samples to path in the on-disk sample format.
func writeRawFrames(t *testing.T, path string, samples []float32) {
	t.Helper()
	raw := make([]byte, len(samples)*buffer.BytesPerSample)
	encodeSamples(raw, samples)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func equalSamples(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
