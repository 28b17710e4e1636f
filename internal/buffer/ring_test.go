package buffer

import (
	"errors"
	"sync"
	"testing"

	apperrors "github.com/jittakal/audiobuf/internal/errors"
	"github.com/jittakal/audiobuf/internal/pool"
	"github.com/jittakal/audiobuf/pkg/buffer"
)

func ringConfig(t *testing.T, channels, size int, threadSafe bool) buffer.Config {
	return mustConfig(t, buffer.Config{
		Type:        buffer.TypeRing,
		SampleRate:  48000,
		Channels:    channels,
		BufferSize:  size,
		MaxMemoryMB: 1,
		ThreadSafe:  threadSafe,
	})
}

func TestRingBuffer_Wraparound(t *testing.T) {
	const capacity, extra = 8, 3
	r := NewRingBuffer("ring", ringConfig(t, 1, capacity, false), pool.New(2))

	if _, err := r.Write(ramp(1, capacity, 0)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := r.Write(ramp(1, extra, capacity)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	out, err := r.Read(capacity)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	want := ramp(1, capacity, extra).Samples
	if !equalSamples(out.Samples, want) {
		t.Errorf("Read() = %v, want %v", out.Samples, want)
	}

	m := r.Metrics()
	if m.Overruns != 1 {
		t.Errorf("Overruns = %d, want 1", m.Overruns)
	}
	if m.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", m.ErrorCount)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRingBuffer_StereoWraparound(t *testing.T) {
	r := NewRingBuffer("stereo", ringConfig(t, 2, 4, false), nil)

	_, _ = r.Write(ramp(2, 3, 0))
	first, _ := r.Read(2)
	if !equalSamples(first.Samples, []float32{0, 1, 2, 3}) {
		t.Fatalf("Read() = %v", first.Samples)
	}

	// The write crosses the end of storage.
	_, _ = r.Write(ramp(2, 3, 100))
	out, _ := r.Read(4)
	want := []float32{4, 5, 100, 101, 102, 103, 104, 105}
	if !equalSamples(out.Samples, want) {
		t.Errorf("Read() = %v, want %v", out.Samples, want)
	}
	if r.Metrics().Overruns != 0 {
		t.Errorf("Overruns = %d, want 0", r.Metrics().Overruns)
	}
}

func TestRingBuffer_OversizedWriteKeepsNewestFrames(t *testing.T) {
	r := NewRingBuffer("big", ringConfig(t, 1, 4, false), nil)

	n, err := r.Write(ramp(1, 10, 0))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != 10 {
		t.Errorf("Write() = %d, want 10", n)
	}

	out, _ := r.Read(4)
	if !equalSamples(out.Samples, []float32{6, 7, 8, 9}) {
		t.Errorf("Read() = %v, want [6 7 8 9]", out.Samples)
	}
	if pos, _ := r.Tell(); pos != 10 {
		t.Errorf("Tell() = %d, want 10", pos)
	}
}

func TestRingBuffer_Underrun(t *testing.T) {
	r := NewRingBuffer("under", ringConfig(t, 1, 8, false), nil)
	_, _ = r.Write(ramp(1, 3, 0))

	dst := make([]float32, 5)
	n, err := r.ReadInto(dst)
	if err != nil {
		t.Fatalf("ReadInto() error = %v", err)
	}
	if n != 3 {
		t.Errorf("ReadInto() = %d, want 3", n)
	}
	if r.Metrics().Underruns != 1 {
		t.Errorf("Underruns = %d, want 1", r.Metrics().Underruns)
	}

	out, _ := r.Read(1)
	if out.Len() != 0 {
		t.Errorf("Read() on empty ring returned %d frames", out.Len())
	}
	if r.Metrics().Underruns != 2 {
		t.Errorf("Underruns = %d, want 2", r.Metrics().Underruns)
	}
}

func TestRingBuffer_SeekWithinWindow(t *testing.T) {
	r := NewRingBuffer("window", ringConfig(t, 1, 8, false), nil)
	_, _ = r.Write(ramp(1, 12, 0))

	start, end := r.Window()
	if start != 4 || end != 12 {
		t.Fatalf("Window() = (%d, %d), want (4, 12)", start, end)
	}

	if err := r.Seek(3); !errors.Is(err, apperrors.ErrInvalidPosition) {
		t.Errorf("Seek(3) error = %v, want ErrInvalidPosition", err)
	}
	if err := r.Seek(13); !errors.Is(err, apperrors.ErrInvalidPosition) {
		t.Errorf("Seek(13) error = %v, want ErrInvalidPosition", err)
	}
	if err := r.Seek(10); err != nil {
		t.Fatalf("Seek(10) error = %v", err)
	}
	out, _ := r.Read(8)
	if !equalSamples(out.Samples, []float32{10, 11}) {
		t.Errorf("Read() = %v, want [10 11]", out.Samples)
	}

	// Rewinding re-reads retained frames.
	_ = r.Seek(4)
	if r.Len() != 8 {
		t.Errorf("Len() = %d, want 8", r.Len())
	}
}

func TestRingBuffer_ReadAtKeepsCursor(t *testing.T) {
	r := NewRingBuffer("peek", ringConfig(t, 1, 8, false), nil)
	_, _ = r.Write(ramp(1, 6, 0))
	_, _ = r.Read(2)

	dst := make([]float32, 4)
	n, err := r.ReadAt(dst, 1)
	if err != nil {
		t.Fatalf("ReadAt() error = %v", err)
	}
	if n != 4 || !equalSamples(dst, []float32{1, 2, 3, 4}) {
		t.Errorf("ReadAt() = %d %v, want 4 [1 2 3 4]", n, dst)
	}
	if pos, _ := r.Tell(); pos != 2 {
		t.Errorf("Tell() = %d, want 2", pos)
	}
	if r.Metrics().Underruns != 0 {
		t.Error("ReadAt should not record underruns")
	}
}

func TestRingBuffer_NoAllocations(t *testing.T) {
	for _, threadSafe := range []bool{false, true} {
		r := NewRingBuffer("rt", ringConfig(t, 2, 256, threadSafe), nil)
		in := tone(2, 64, 440, 48000)
		dst := make([]float32, 64*2)

		allocs := testing.AllocsPerRun(200, func() {
			_, _ = r.Write(in)
			_, _ = r.ReadInto(dst)
		})
		if allocs != 0 {
			t.Errorf("threadSafe=%v: %v allocations per write/read cycle, want 0", threadSafe, allocs)
		}
	}
}

func TestRingBuffer_ConcurrentProducerConsumer(t *testing.T) {
	const block, blocks = 16, 2000
	r := NewRingBuffer("rt", ringConfig(t, 1, 64, true), nil)

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < blocks; i++ {
			if _, err := r.Write(ramp(1, block, float32(i*block))); err != nil {
				t.Errorf("Write() error = %v", err)
				return
			}
		}
	}()

	var got []float32
	dst := make([]float32, block)
	consume := func() bool {
		n, err := r.ReadInto(dst)
		if err != nil {
			t.Errorf("ReadInto() error = %v", err)
			return false
		}
		got = append(got, dst[:n]...)
		return n > 0
	}

loop:
	for {
		select {
		case <-done:
			break loop
		default:
			consume()
		}
	}
	for consume() {
	}
	wg.Wait()

	// Overruns may drop frames but never reorder or duplicate them.
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("frame %d = %v after %v", i, got[i], got[i-1])
		}
	}
	if len(got) == 0 {
		t.Fatal("consumer read no frames")
	}
	if last := got[len(got)-1]; last != float32(block*blocks-1) {
		t.Errorf("last frame = %v, want %d", last, block*blocks-1)
	}

	m := r.Metrics()
	if m.FramesWritten != block*blocks {
		t.Errorf("FramesWritten = %d, want %d", m.FramesWritten, block*blocks)
	}
	if m.FramesRead != uint64(len(got)) {
		t.Errorf("FramesRead = %d, want %d", m.FramesRead, len(got))
	}
}

func TestRingBuffer_CloseReturnsStorage(t *testing.T) {
	p := pool.New(2)
	cfg := ringConfig(t, 2, 32, false)
	r := NewRingBuffer("ring", cfg, p)

	if err := r.close(); err != nil {
		t.Fatalf("close() error = %v", err)
	}
	if _, err := r.Write(ramp(2, 1, 0)); !errors.Is(err, apperrors.ErrBufferClosed) {
		t.Errorf("Write() after close error = %v, want ErrBufferClosed", err)
	}
	if free := p.Stats()[pool.SignatureOf(cfg).String()].Free; free != 1 {
		t.Errorf("pool Free = %d, want 1", free)
	}
}
