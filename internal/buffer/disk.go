package buffer

import (
	"sync"

	"github.com/jittakal/audiobuf/pkg/buffer"
)

var _ buffer.Buffer = (*DiskBuffer)(nil)

// DiskBuffer stores frames in a file with the same contract as MemoryBuffer.
// Every operation is positioned file I/O; only one chunk of scratch space
// is held in memory. An I/O failure moves the buffer to the error state.
type DiskBuffer struct {
	base
	mu     sync.Locker
	store  *fileStore
	pos    int64
	length int64
}

// NewDiskBuffer opens or creates cfg.FilePath. cfg must already be validated.
func NewDiskBuffer(id string, cfg buffer.Config, opts FileOptions) (*DiskBuffer, error) {
	store, length, err := openFileStore(id, cfg, opts)
	if err != nil {
		return nil, err
	}
	d := &DiskBuffer{
		base:   base{id: id, cfg: cfg},
		mu:     newLocker(cfg.ThreadSafe),
		store:  store,
		length: length,
	}
	d.stats.memoryBytes.Store(int64(len(store.scratch)))
	return d, nil
}

// Read returns up to n frames from the cursor.
func (d *DiskBuffer) Read(n int) (buffer.Frames, error) {
	defer d.report()
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return buffer.Frames{}, err
	}
	n = clampFrames(n, d.length-d.pos)
	out := buffer.NewFrames(d.cfg.Channels, n)
	k, err := d.readAt(out.Samples, d.pos, n)
	out.Samples = out.Samples[:k*d.cfg.Channels]
	d.pos += int64(k)
	return out, err
}

// ReadInto copies frames from the cursor into dst.
func (d *DiskBuffer) ReadInto(dst []float32) (int, error) {
	defer d.report()
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return 0, err
	}
	want, err := d.framesIn(dst)
	if err != nil {
		return 0, err
	}
	k, err := d.readAt(dst, d.pos, want)
	d.pos += int64(k)
	return k, err
}

// ReadAt copies frames starting at pos into dst without moving the cursor.
func (d *DiskBuffer) ReadAt(dst []float32, pos int64) (int, error) {
	defer d.report()
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return 0, err
	}
	if pos < 0 {
		return 0, d.invalidPosition(pos)
	}
	want, err := d.framesIn(dst)
	if err != nil {
		return 0, err
	}
	return d.readAt(dst, pos, want)
}

func (d *DiskBuffer) readAt(dst []float32, pos int64, want int) (int, error) {
	k := clampFrames(want, d.length-pos)
	got, err := d.store.read(dst[:k*d.cfg.Channels], pos)
	if err != nil {
		return got, d.fail(err)
	}
	d.countRead(got)
	return got, nil
}

// Write persists frames at the cursor.
func (d *DiskBuffer) Write(frames buffer.Frames) (int, error) {
	defer d.report()
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return 0, err
	}
	if err := d.checkFrames(frames); err != nil {
		return 0, err
	}

	n, err := d.store.write(frames.Samples, d.pos)
	d.pos += int64(n)
	d.length = max(d.length, d.pos)
	if err != nil {
		return n, d.fail(err)
	}
	d.countWrite(n)
	return n, nil
}

// Seek moves the cursor. Positions past the end are allowed.
func (d *DiskBuffer) Seek(pos int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return err
	}
	if pos < 0 {
		return d.invalidPosition(pos)
	}
	d.pos = pos
	d.activate()
	return nil
}

// Tell returns the cursor position.
func (d *DiskBuffer) Tell() (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.usable(); err != nil {
		return 0, err
	}
	return d.pos, nil
}

// Len returns the number of frames in the file.
func (d *DiskBuffer) Len() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.length
}

// Path returns the backing file path.
func (d *DiskBuffer) Path() string {
	return d.store.path
}

func (d *DiskBuffer) close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.markClosed() {
		return nil
	}
	d.stats.memoryBytes.Store(0)
	return d.store.close()
}
