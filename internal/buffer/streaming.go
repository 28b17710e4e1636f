package buffer

import (
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/jittakal/audiobuf/pkg/buffer"
)

var _ buffer.Buffer = (*StreamingBuffer)(nil)

// StreamingBuffer serves a file larger than memory through an LRU cache of
// fixed-size chunks.
//
// Each chunk touched by a read is one cache access: resident chunks count as
// hits, the rest are fetched with a single chunk read and count as misses.
// Writes update resident chunks and then go straight to the file, so cached
// chunks are never dirty and eviction performs no I/O.
//
// The cache budget covers the resident chunks and the file store's I/O chunk.
// A miss on a full cache evicts first and refills the evicted slice, so the
// buffer never holds more than CacheSizeMB.
type StreamingBuffer struct {
	base
	mu          sync.Locker
	store       *fileStore
	cache       *simplelru.LRU[int64, []float32]
	resident    int // cache capacity in chunks
	chunkFrames int64
	chunkBytes  int64
	pos         int64
	length      int64
}

// NewStreamingBuffer opens or creates cfg.FilePath with a cache of
// cfg.CacheSizeMB. cfg must already be validated.
func NewStreamingBuffer(id string, cfg buffer.Config, opts FileOptions) (*StreamingBuffer, error) {
	store, length, err := openFileStore(id, cfg, opts)
	if err != nil {
		return nil, err
	}

	s := &StreamingBuffer{
		base:        base{id: id, cfg: cfg},
		mu:          newLocker(cfg.ThreadSafe),
		store:       store,
		chunkFrames: int64(cfg.ChunkSize),
		chunkBytes:  cfg.ChunkBytes(),
		length:      length,
	}

	s.resident = max(int(cfg.CacheBytes()/s.chunkBytes)-1, 1)
	cache, err := simplelru.NewLRU[int64, []float32](s.resident, nil)
	if err != nil {
		_ = store.close()
		return nil, fmt.Errorf("create chunk cache: %w", err)
	}
	s.cache = cache
	s.account()
	return s, nil
}

// Read returns up to n frames from the cursor.
func (s *StreamingBuffer) Read(n int) (buffer.Frames, error) {
	defer s.report()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return buffer.Frames{}, err
	}
	n = clampFrames(n, s.length-s.pos)
	out := buffer.NewFrames(s.cfg.Channels, n)
	k, err := s.readAt(out.Samples, s.pos, n)
	out.Samples = out.Samples[:k*s.cfg.Channels]
	s.pos += int64(k)
	return out, err
}

// ReadInto copies frames from the cursor into dst.
func (s *StreamingBuffer) ReadInto(dst []float32) (int, error) {
	defer s.report()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return 0, err
	}
	want, err := s.framesIn(dst)
	if err != nil {
		return 0, err
	}
	k, err := s.readAt(dst, s.pos, want)
	s.pos += int64(k)
	return k, err
}

// ReadAt copies frames starting at pos into dst without moving the cursor.
func (s *StreamingBuffer) ReadAt(dst []float32, pos int64) (int, error) {
	defer s.report()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return 0, err
	}
	if pos < 0 {
		return 0, s.invalidPosition(pos)
	}
	want, err := s.framesIn(dst)
	if err != nil {
		return 0, err
	}
	return s.readAt(dst, pos, want)
}

func (s *StreamingBuffer) readAt(dst []float32, pos int64, want int) (int, error) {
	k := clampFrames(want, s.length-pos)
	ch := s.cfg.Channels

	done := 0
	for done < k {
		p := pos + int64(done)
		off := int(p % s.chunkFrames)
		c, err := s.chunk(p / s.chunkFrames)
		if err != nil {
			return done, s.fail(err)
		}
		m := min(int(s.chunkFrames)-off, k-done)
		copy(dst[done*ch:(done+m)*ch], c[off*ch:(off+m)*ch])
		done += m
	}
	s.countRead(done)
	return done, nil
}

// chunk returns the samples of chunk idx, fetching it on a miss.
// Samples past the end of file are zero.
func (s *StreamingBuffer) chunk(idx int64) ([]float32, error) {
	if c, ok := s.cache.Get(idx); ok {
		s.stats.cacheHits.Add(1)
		return c, nil
	}
	s.stats.cacheMisses.Add(1)

	var c []float32
	if s.cache.Len() >= s.resident {
		_, c, _ = s.cache.RemoveOldest()
	} else {
		c = make([]float32, s.chunkFrames*int64(s.cfg.Channels))
	}
	n, err := s.store.read(c, idx*s.chunkFrames)
	if err != nil {
		s.account()
		return nil, err
	}
	clear(c[n*s.cfg.Channels:])

	s.cache.Add(idx, c)
	s.account()
	return c, nil
}

// account publishes the bytes held by resident chunks and the I/O chunk.
func (s *StreamingBuffer) account() {
	s.stats.memoryBytes.Store(int64(s.cache.Len())*s.chunkBytes + int64(len(s.store.scratch)))
}

// Write updates resident chunks overlapping the cursor and then persists the
// frames, so a later read of the same region observes them.
func (s *StreamingBuffer) Write(frames buffer.Frames) (int, error) {
	defer s.report()
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return 0, err
	}
	if err := s.checkFrames(frames); err != nil {
		return 0, err
	}

	s.updateResident(frames.Samples, s.pos)

	n, err := s.store.write(frames.Samples, s.pos)
	s.pos += int64(n)
	s.length = max(s.length, s.pos)
	if err != nil {
		return n, s.fail(err)
	}
	s.countWrite(n)
	return n, nil
}

func (s *StreamingBuffer) updateResident(src []float32, pos int64) {
	ch := s.cfg.Channels
	total := len(src) / ch
	done := 0
	for done < total {
		p := pos + int64(done)
		off := int(p % s.chunkFrames)
		m := min(int(s.chunkFrames)-off, total-done)
		if c, ok := s.cache.Peek(p / s.chunkFrames); ok {
			copy(c[off*ch:(off+m)*ch], src[done*ch:(done+m)*ch])
		}
		done += m
	}
}

// Seek moves the cursor. Positions past the end are allowed.
func (s *StreamingBuffer) Seek(pos int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return err
	}
	if pos < 0 {
		return s.invalidPosition(pos)
	}
	s.pos = pos
	s.activate()
	return nil
}

// Tell returns the cursor position.
func (s *StreamingBuffer) Tell() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.usable(); err != nil {
		return 0, err
	}
	return s.pos, nil
}

// Len returns the number of frames in the file.
func (s *StreamingBuffer) Len() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.length
}

// ResidentChunks returns the number of cached chunks.
func (s *StreamingBuffer) ResidentChunks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}

func (s *StreamingBuffer) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.markClosed() {
		return nil
	}
	s.cache.Purge()
	s.stats.memoryBytes.Store(0)
	return s.store.close()
}
