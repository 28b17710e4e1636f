package buffer

import (
	"fmt"
	"sync"
	"sync/atomic"

	apperrors "github.com/jittakal/audiobuf/internal/errors"
	"github.com/jittakal/audiobuf/pkg/buffer"
)

// handle is what the manager keeps for every registered buffer.
type handle interface {
	buffer.Buffer
	watch(fn faultFunc)
	close() error
}

// faultFunc is invoked once when a buffer moves to the error state.
type faultFunc func(id string, typ buffer.Type, cause error)

// noLock is the locker of buffers created without ThreadSafe.
type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

func newLocker(threadSafe bool) sync.Locker {
	if threadSafe {
		return &sync.Mutex{}
	}
	return noLock{}
}

// counters are updated with atomics so Metrics never takes the data lock.
type counters struct {
	reads         atomic.Uint64
	writes        atomic.Uint64
	errors        atomic.Uint64
	framesRead    atomic.Uint64
	framesWritten atomic.Uint64
	overruns      atomic.Uint64
	underruns     atomic.Uint64
	cacheHits     atomic.Uint64
	cacheMisses   atomic.Uint64
	memoryBytes   atomic.Int64
}

// base carries identity, lifecycle state and counters shared by every variant.
type base struct {
	id      string
	cfg     buffer.Config
	state   atomic.Int32
	cause   atomic.Value // error recorded on the transition to StateError
	stats   counters
	onFault faultFunc
	pending atomic.Bool // fault recorded but not yet reported
}

// ID returns the buffer identifier.
func (b *base) ID() string { return b.id }

// Type returns the buffer type.
func (b *base) Type() buffer.Type { return b.cfg.Type }

// Config returns the buffer configuration.
func (b *base) Config() buffer.Config { return b.cfg }

// State returns the lifecycle state.
func (b *base) State() buffer.State { return buffer.State(b.state.Load()) }

// usable returns the error every operation reports once the buffer is terminal.
func (b *base) usable() error {
	switch buffer.State(b.state.Load()) {
	case buffer.StateClosed:
		return apperrors.ErrBufferClosed
	case buffer.StateError:
		if cause, ok := b.cause.Load().(error); ok {
			return fmt.Errorf("%w: %v", apperrors.ErrBufferFaulted, cause)
		}
		return apperrors.ErrBufferFaulted
	default:
		return nil
	}
}

func (b *base) activate() {
	b.state.CompareAndSwap(int32(buffer.StateCreated), int32(buffer.StateActive))
}

// reject counts an error that leaves the buffer usable.
func (b *base) reject(err error) error {
	b.stats.errors.Add(1)
	return err
}

// fail counts err and moves the buffer to StateError. Only the first fault is
// recorded. The fault callback runs from report, after the data lock is released.
func (b *base) fail(err error) error {
	b.stats.errors.Add(1)
	for {
		cur := b.state.Load()
		if buffer.State(cur).Terminal() {
			return err
		}
		if b.state.CompareAndSwap(cur, int32(buffer.StateError)) {
			b.cause.Store(err)
			b.pending.Store(true)
			return err
		}
	}
}

// report delivers a pending fault to the callback. Operations that can fail
// defer it ahead of taking the data lock.
func (b *base) report() {
	if !b.pending.CompareAndSwap(true, false) || b.onFault == nil {
		return
	}
	cause, _ := b.cause.Load().(error)
	b.onFault(b.id, b.cfg.Type, cause)
}

// markClosed reports whether this call performed the transition to StateClosed.
func (b *base) markClosed() bool {
	return buffer.State(b.state.Swap(int32(buffer.StateClosed))) != buffer.StateClosed
}

func (b *base) checkFrames(f buffer.Frames) error {
	if !f.Valid(b.cfg.Channels) {
		return b.reject(&apperrors.ChannelMismatchError{
			BufferID: b.id,
			Expected: b.cfg.Channels,
			Got:      f.Channels,
		})
	}
	return nil
}

// framesIn returns how many whole frames fit in dst.
func (b *base) framesIn(dst []float32) (int, error) {
	if len(dst)%b.cfg.Channels != 0 {
		return 0, b.reject(fmt.Errorf("%w: destination of %d samples is not a whole number of %d-channel frames",
			apperrors.ErrChannelMismatch, len(dst), b.cfg.Channels))
	}
	return len(dst) / b.cfg.Channels, nil
}

func (b *base) invalidPosition(pos int64) error {
	return b.reject(fmt.Errorf("%w: %d", apperrors.ErrInvalidPosition, pos))
}

func (b *base) countRead(frames int) {
	b.stats.reads.Add(1)
	b.stats.framesRead.Add(uint64(frames))
	b.activate()
}

func (b *base) countWrite(frames int) {
	b.stats.writes.Add(1)
	b.stats.framesWritten.Add(uint64(frames))
	b.activate()
}

// Metrics returns a snapshot of the counters.
func (b *base) Metrics() buffer.Metrics {
	m := buffer.Metrics{
		BufferID:      b.id,
		Type:          b.cfg.Type,
		State:         b.State(),
		ReadCount:     b.stats.reads.Load(),
		WriteCount:    b.stats.writes.Load(),
		ErrorCount:    b.stats.errors.Load(),
		FramesRead:    b.stats.framesRead.Load(),
		FramesWritten: b.stats.framesWritten.Load(),
		Overruns:      b.stats.overruns.Load(),
		Underruns:     b.stats.underruns.Load(),
		CacheHits:     b.stats.cacheHits.Load(),
		CacheMisses:   b.stats.cacheMisses.Load(),
		MemoryUsageMB: buffer.BytesToMB(b.stats.memoryBytes.Load()),
	}
	if b.cfg.Type == buffer.TypeStreaming {
		m.CacheHitRate = buffer.HitRate(m.CacheHits, m.CacheMisses)
	}
	return m
}

// clampFrames bounds a requested frame count to [0, avail].
func clampFrames(n int, avail int64) int {
	if n <= 0 || avail <= 0 {
		return 0
	}
	return int(min(int64(n), avail))
}

// watch installs the fault callback. It must be called before the buffer is shared.
func (b *base) watch(fn faultFunc) {
	b.onFault = fn
}
