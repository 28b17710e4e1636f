package buffer

import (
	"sync"

	apperrors "github.com/jittakal/audiobuf/internal/errors"
	"github.com/jittakal/audiobuf/internal/pool"
	"github.com/jittakal/audiobuf/pkg/buffer"
)

// Ensure implementations satisfy the interface at compile time.
var (
	_ buffer.Buffer = (*MemoryBuffer)(nil)
	_ buffer.Buffer = (*PooledBuffer)(nil)
)

// flat is the contiguous frame store behind MemoryBuffer and PooledBuffer.
// len(data) is the stored length in samples; the cursor may sit past it.
type flat struct {
	base
	mu        sync.Locker
	pool      *pool.Pool
	sig       pool.Signature
	store     []float32 // pool-owned backing slice, nil once growth replaced it
	data      []float32
	pos       int64
	maxFrames int64
	limit     int64 // bytes, reported in MemoryExhaustedError
}

func (f *flat) init(id string, cfg buffer.Config, p *pool.Pool, maxFrames, limit int64) {
	f.id = id
	f.cfg = cfg
	f.mu = newLocker(cfg.ThreadSafe)
	f.pool = p
	f.sig = pool.SignatureOf(cfg)
	f.store = acquire(p, f.sig)
	f.data = f.store[:0]
	f.maxFrames = maxFrames
	f.limit = limit
	f.stats.memoryBytes.Store(int64(cap(f.store)) * buffer.BytesPerSample)
}

func acquire(p *pool.Pool, sig pool.Signature) []float32 {
	if p == nil {
		return make([]float32, sig.Samples())
	}
	return p.Acquire(sig)
}

func release(p *pool.Pool, sig pool.Signature, store []float32) {
	if p != nil && store != nil {
		p.Release(sig, store)
	}
}

func (f *flat) length() int64 {
	return int64(len(f.data) / f.cfg.Channels)
}

// Read returns up to n frames from the cursor.
func (f *flat) Read(n int) (buffer.Frames, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.usable(); err != nil {
		return buffer.Frames{}, err
	}
	n = clampFrames(n, f.length()-f.pos)
	out := buffer.NewFrames(f.cfg.Channels, n)
	k := f.copyOut(out.Samples, f.pos, n)
	f.pos += int64(k)
	f.countRead(k)
	return out, nil
}

// ReadInto copies frames from the cursor into dst.
func (f *flat) ReadInto(dst []float32) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.usable(); err != nil {
		return 0, err
	}
	want, err := f.framesIn(dst)
	if err != nil {
		return 0, err
	}
	k := f.copyOut(dst, f.pos, want)
	f.pos += int64(k)
	f.countRead(k)
	return k, nil
}

// ReadAt copies frames starting at pos into dst without moving the cursor.
func (f *flat) ReadAt(dst []float32, pos int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.usable(); err != nil {
		return 0, err
	}
	if pos < 0 {
		return 0, f.invalidPosition(pos)
	}
	want, err := f.framesIn(dst)
	if err != nil {
		return 0, err
	}
	k := f.copyOut(dst, pos, want)
	f.countRead(k)
	return k, nil
}

func (f *flat) copyOut(dst []float32, pos int64, want int) int {
	k := clampFrames(want, f.length()-pos)
	if k == 0 {
		return 0
	}
	ch := f.cfg.Channels
	copy(dst[:k*ch], f.data[int(pos)*ch:])
	return k
}

// Write stores frames at the cursor. Writing past maxFrames faults the buffer.
func (f *flat) Write(frames buffer.Frames) (int, error) {
	defer f.report()
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.usable(); err != nil {
		return 0, err
	}
	if err := f.checkFrames(frames); err != nil {
		return 0, err
	}

	n := frames.Len()
	end := f.pos + int64(n)
	if end > f.maxFrames {
		return 0, f.fail(&apperrors.MemoryExhaustedError{
			BufferID:       f.id,
			Scope:          apperrors.ScopeBuffer,
			RequestedBytes: end * f.cfg.FrameBytes(),
			LimitBytes:     f.limit,
		})
	}

	ch := f.cfg.Channels
	need := int(end) * ch
	if need > cap(f.data) {
		f.grow(need)
	}
	if stored := len(f.data); need > stored {
		f.data = f.data[:need]
		// Frames between the old end and the cursor read back as silence.
		if gap := int(f.pos) * ch; gap > stored {
			clear(f.data[stored:gap])
		}
	}
	copy(f.data[int(f.pos)*ch:], frames.Samples)
	f.pos = end
	f.countWrite(n)
	return n, nil
}

// grow reallocates data to hold at least need samples, doubling up to maxFrames.
// The pool store is handed back as soon as it is no longer backing data.
func (f *flat) grow(need int) {
	newCap := max(2*cap(f.data), need)
	newCap = min(newCap, int(f.maxFrames)*f.cfg.Channels)

	data := make([]float32, len(f.data), newCap)
	copy(data, f.data)
	release(f.pool, f.sig, f.store)
	f.store = nil
	f.data = data
	f.stats.memoryBytes.Store(int64(newCap) * buffer.BytesPerSample)
}

// Seek moves the cursor. Positions past the stored length are allowed and
// leave a gap of silence once written after.
func (f *flat) Seek(pos int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.usable(); err != nil {
		return err
	}
	if pos < 0 || pos > f.maxFrames {
		return f.invalidPosition(pos)
	}
	f.pos = pos
	f.activate()
	return nil
}

// Tell returns the cursor position.
func (f *flat) Tell() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.usable(); err != nil {
		return 0, err
	}
	return f.pos, nil
}

// Len returns the number of stored frames.
func (f *flat) Len() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.length()
}

func (f *flat) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.markClosed() {
		return nil
	}
	release(f.pool, f.sig, f.store)
	f.store = nil
	f.data = nil
	f.stats.memoryBytes.Store(0)
	return nil
}

// MemoryBuffer is a flat in-process frame store that grows on demand up to
// MaxMemoryMB. Its initial BufferSize frames come from the pool and go back
// to it on close unless the buffer outgrew them.
type MemoryBuffer struct {
	flat
}

// NewMemoryBuffer creates a memory buffer. cfg must already be validated.
func NewMemoryBuffer(id string, cfg buffer.Config, p *pool.Pool) *MemoryBuffer {
	b := &MemoryBuffer{}
	b.init(id, cfg, p, cfg.MaxMemoryBytes()/cfg.FrameBytes(), cfg.MaxMemoryBytes())
	return b
}
