package buffer

// BytesPerSample is the in-memory and on-disk size of one sample.
const BytesPerSample = 4

// Frames is a block of interleaved float32 samples.
// Samples holds Len()*Channels values: frame i, channel c is Samples[i*Channels+c].
type Frames struct {
	Channels int
	Samples  []float32
}

// NewFrames allocates a zeroed block of n frames.
func NewFrames(channels, n int) Frames {
	return Frames{
		Channels: channels,
		Samples:  make([]float32, channels*n),
	}
}

// Len returns the number of whole frames.
func (f Frames) Len() int {
	if f.Channels <= 0 {
		return 0
	}
	return len(f.Samples) / f.Channels
}

// Frame returns the samples of frame i.
func (f Frames) Frame(i int) []float32 {
	return f.Samples[i*f.Channels : (i+1)*f.Channels]
}

// Valid reports whether the samples form whole frames of the given channel count.
func (f Frames) Valid(channels int) bool {
	return f.Channels == channels && channels > 0 && len(f.Samples)%channels == 0
}
