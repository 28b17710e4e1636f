package buffer

import (
	"sync"

	"github.com/jittakal/audiobuf/internal/pool"
	"github.com/jittakal/audiobuf/pkg/buffer"
)

var (
	_ buffer.Buffer   = (*RingBuffer)(nil)
	_ buffer.Windowed = (*RingBuffer)(nil)
)

// RingBuffer is a fixed-capacity circular frame store for real-time hand-off.
//
// Positions are absolute frame counts since creation: written counts every
// frame ever written and read is the consumer cursor, with
// written-capacity <= read <= written. When the producer laps the consumer
// the oldest unread frames are overwritten and an overrun is recorded; the
// producer never blocks. Reads past the written region return short and
// record an underrun.
//
// Write, ReadInto and ReadAt do not allocate. With ThreadSafe set the lock is
// held only for the duration of one bounded copy.
type RingBuffer struct {
	base
	mu       sync.Locker
	pool     *pool.Pool
	sig      pool.Signature
	store    []float32
	capacity int64
	read     int64
	written  int64
}

// NewRingBuffer creates a ring of cfg.BufferSize frames. cfg must already be validated.
func NewRingBuffer(id string, cfg buffer.Config, p *pool.Pool) *RingBuffer {
	r := &RingBuffer{
		base:     base{id: id, cfg: cfg},
		mu:       newLocker(cfg.ThreadSafe),
		pool:     p,
		sig:      pool.SignatureOf(cfg),
		capacity: int64(cfg.BufferSize),
	}
	r.store = acquire(p, r.sig)
	r.stats.memoryBytes.Store(int64(len(r.store)) * buffer.BytesPerSample)
	return r
}

// Write appends frames, overwriting the oldest unread frames on overrun.
// All frames are always accepted.
func (r *RingBuffer) Write(frames buffer.Frames) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.usable(); err != nil {
		return 0, err
	}
	if err := r.checkFrames(frames); err != nil {
		return 0, err
	}

	n := frames.Len()
	src := frames.Samples
	ch := r.cfg.Channels

	// Only the last capacity frames of an oversized write can survive.
	if skip := int64(n) - r.capacity; skip > 0 {
		src = src[int(skip)*ch:]
		r.written += skip
	}
	r.copyIn(src)
	r.written += int64(len(src) / ch)

	if lost := r.written - r.capacity - r.read; lost > 0 {
		r.read += lost
		r.stats.overruns.Add(1)
		r.stats.errors.Add(1)
	}
	r.countWrite(n)
	return n, nil
}

// copyIn writes src at the write cursor, wrapping once if needed.
func (r *RingBuffer) copyIn(src []float32) {
	ch := r.cfg.Channels
	at := int(r.written%r.capacity) * ch
	c := copy(r.store[at:], src)
	copy(r.store, src[c:])
}

// copyOut fills dst from absolute frame position pos, wrapping once if needed.
func (r *RingBuffer) copyOut(dst []float32, pos int64) {
	ch := r.cfg.Channels
	at := int(pos%r.capacity) * ch
	c := copy(dst, r.store[at:])
	copy(dst[c:], r.store)
}

// Read drains up to n frames.
func (r *RingBuffer) Read(n int) (buffer.Frames, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.usable(); err != nil {
		return buffer.Frames{}, err
	}
	avail := r.written - r.read
	if int64(n) > avail {
		r.stats.underruns.Add(1)
	}
	k := clampFrames(n, avail)
	out := buffer.NewFrames(r.cfg.Channels, k)
	r.copyOut(out.Samples, r.read)
	r.read += int64(k)
	r.countRead(k)
	return out, nil
}

// ReadInto drains frames into dst.
func (r *RingBuffer) ReadInto(dst []float32) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.usable(); err != nil {
		return 0, err
	}
	want, err := r.framesIn(dst)
	if err != nil {
		return 0, err
	}
	avail := r.written - r.read
	if int64(want) > avail {
		r.stats.underruns.Add(1)
	}
	k := clampFrames(want, avail)
	r.copyOut(dst[:k*r.cfg.Channels], r.read)
	r.read += int64(k)
	r.countRead(k)
	return k, nil
}

// ReadAt copies retained frames starting at absolute position pos without
// moving the read cursor. Positions already overwritten are invalid.
func (r *RingBuffer) ReadAt(dst []float32, pos int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.usable(); err != nil {
		return 0, err
	}
	if pos < r.oldest() || pos > r.written {
		return 0, r.invalidPosition(pos)
	}
	want, err := r.framesIn(dst)
	if err != nil {
		return 0, err
	}
	k := clampFrames(want, r.written-pos)
	r.copyOut(dst[:k*r.cfg.Channels], pos)
	r.countRead(k)
	return k, nil
}

// oldest returns the first absolute position still held in storage.
func (r *RingBuffer) oldest() int64 {
	return max(0, r.written-r.capacity)
}

// Seek moves the read cursor within the retained window.
func (r *RingBuffer) Seek(pos int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.usable(); err != nil {
		return err
	}
	if pos < r.oldest() || pos > r.written {
		return r.invalidPosition(pos)
	}
	r.read = pos
	r.activate()
	return nil
}

// Tell returns the absolute read position.
func (r *RingBuffer) Tell() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.usable(); err != nil {
		return 0, err
	}
	return r.read, nil
}

// Len returns the number of unread frames.
func (r *RingBuffer) Len() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written - r.read
}

// Window returns the unread region as absolute positions.
func (r *RingBuffer) Window() (start, end int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read, r.written
}

// Capacity returns the fixed capacity in frames.
func (r *RingBuffer) Capacity() int64 {
	return r.capacity
}

func (r *RingBuffer) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.markClosed() {
		return nil
	}
	release(r.pool, r.sig, r.store)
	r.store = nil
	r.stats.memoryBytes.Store(0)
	return nil
}
