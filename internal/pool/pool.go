// Package pool provides per-signature free lists of sample storage.
//
// Memory, Ring and Pooled buffers draw their backing slices from a Pool so that
// repeated create/remove cycles of buffers with the same shape do not allocate.
// Acquire and Release never perform I/O and hold the pool lock only long
// enough to push or pop one slice.
package pool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jittakal/audiobuf/pkg/buffer"
)

// DefaultCapacity is the free-list length used when New is given a negative capacity.
const DefaultCapacity = 8

// Signature identifies interchangeable backing stores.
type Signature struct {
	Type       buffer.Type
	Channels   int
	SampleRate float64
	BufferSize int
}

// SignatureOf derives the pool signature of a buffer config.
func SignatureOf(cfg buffer.Config) Signature {
	return Signature{
		Type:       cfg.Type,
		Channels:   cfg.Channels,
		SampleRate: cfg.SampleRate,
		BufferSize: cfg.BufferSize,
	}
}

// Samples returns the slice length of stores with this signature.
func (s Signature) Samples() int {
	return s.Channels * s.BufferSize
}

func (s Signature) String() string {
	return fmt.Sprintf("%s/%dch/%gHz/%d", s.Type, s.Channels, s.SampleRate, s.BufferSize)
}

type entry struct {
	free      [][]float32
	hits      uint64
	misses    uint64
	discarded uint64
}

// Pool holds free lists keyed by Signature.
// Entries are created lazily and live as long as the pool.
type Pool struct {
	mu       sync.Mutex
	capacity int
	entries  map[Signature]*entry
}

// New creates a pool keeping at most capacity free stores per signature.
// A capacity of zero disables reuse while still counting misses.
func New(capacity int) *Pool {
	if capacity < 0 {
		capacity = DefaultCapacity
	}
	return &Pool{
		capacity: capacity,
		entries:  make(map[Signature]*entry),
	}
}

// Capacity returns the per-signature free-list limit.
func (p *Pool) Capacity() int {
	return p.capacity
}

// Acquire returns a store of sig.Samples() float32 values.
// Reused stores are not zeroed; callers track their own valid length.
func (p *Pool) Acquire(sig Signature) []float32 {
	p.mu.Lock()
	e := p.entryLocked(sig)
	if n := len(e.free); n > 0 {
		buf := e.free[n-1]
		e.free[n-1] = nil
		e.free = e.free[:n-1]
		e.hits++
		p.mu.Unlock()
		return buf
	}
	e.misses++
	p.mu.Unlock()

	return make([]float32, sig.Samples())
}

// Release returns buf to the free list of sig. It reports false when the store
// was discarded because the free list is full or buf does not match sig.
func (p *Pool) Release(sig Signature, buf []float32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.entryLocked(sig)
	if len(buf) != sig.Samples() || len(e.free) >= p.capacity {
		e.discarded++
		return false
	}
	e.free = append(e.free, buf)
	return true
}

// Stats returns counters for every signature seen so far, keyed by Signature.String.
func (p *Pool) Stats() map[string]buffer.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := make(map[string]buffer.PoolStats, len(p.entries))
	for sig, e := range p.entries {
		stats[sig.String()] = buffer.PoolStats{
			Hits:      e.hits,
			Misses:    e.misses,
			Discarded: e.discarded,
			Free:      len(e.free),
			HitRate:   buffer.HitRate(e.hits, e.misses),
		}
	}
	return stats
}

// Signatures returns the known signatures in a stable order.
func (p *Pool) Signatures() []Signature {
	p.mu.Lock()
	sigs := make([]Signature, 0, len(p.entries))
	for sig := range p.entries {
		sigs = append(sigs, sig)
	}
	p.mu.Unlock()

	sort.Slice(sigs, func(i, j int) bool { return sigs[i].String() < sigs[j].String() })
	return sigs
}

// Drain drops every free store so it can be garbage collected. Counters survive.
func (p *Pool) Drain() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.entries {
		clear(e.free)
		e.free = e.free[:0]
	}
}

func (p *Pool) entryLocked(sig Signature) *entry {
	e, ok := p.entries[sig]
	if !ok {
		e = &entry{free: make([][]float32, 0, p.capacity)}
		p.entries[sig] = e
	}
	return e
}
