package buffer

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"

	apperrors "github.com/jittakal/audiobuf/internal/errors"
	"github.com/jittakal/audiobuf/pkg/buffer"
)

// FileOptions control how disk and streaming buffers open their backing file.
type FileOptions struct {
	// Truncate discards existing file contents on open.
	Truncate bool
	// RemoveOnClose deletes the file when the buffer is closed.
	RemoveOnClose bool
}

// fileStore performs positioned I/O of little-endian float32 frames.
// Every call is one ReadAt or WriteAt per chunk through a reused scratch slice.
type fileStore struct {
	id            string
	path          string
	file          *os.File
	channels      int
	frameBytes    int64
	chunkFrames   int
	scratch       []byte
	removeOnClose bool
}

// openFileStore opens or creates cfg.FilePath and returns the number of whole
// frames it already holds.
func openFileStore(id string, cfg buffer.Config, opts FileOptions) (*fileStore, int64, error) {
	flag := os.O_RDWR | os.O_CREATE
	if opts.Truncate {
		flag |= os.O_TRUNC
	}
	f, err := os.OpenFile(cfg.FilePath, flag, 0o644)
	if err != nil {
		return nil, 0, &apperrors.IOError{BufferID: id, Operation: "open", Path: cfg.FilePath, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, &apperrors.IOError{BufferID: id, Operation: "stat", Path: cfg.FilePath, Err: err}
	}

	fs := &fileStore{
		id:            id,
		path:          cfg.FilePath,
		file:          f,
		channels:      cfg.Channels,
		frameBytes:    cfg.FrameBytes(),
		chunkFrames:   cfg.ChunkSize,
		scratch:       make([]byte, cfg.ChunkBytes()),
		removeOnClose: opts.RemoveOnClose,
	}
	return fs, info.Size() / fs.frameBytes, nil
}

func (fs *fileStore) ioError(op string, err error) error {
	return &apperrors.IOError{BufferID: fs.id, Operation: op, Path: fs.path, Err: err}
}

// write stores src at frame position pos and returns the frames persisted.
// Positions past the end of file leave a hole that reads back as zeros.
func (fs *fileStore) write(src []float32, pos int64) (int, error) {
	total := len(src) / fs.channels
	done := 0
	for done < total {
		m := min(fs.chunkFrames, total-done)
		buf := fs.scratch[:int64(m)*fs.frameBytes]
		encodeSamples(buf, src[done*fs.channels:(done+m)*fs.channels])
		if _, err := fs.file.WriteAt(buf, (pos+int64(done))*fs.frameBytes); err != nil {
			return done, fs.ioError("write", err)
		}
		done += m
	}
	return done, nil
}

// read fills dst from frame position pos. It returns fewer frames than
// requested when the file ends first.
func (fs *fileStore) read(dst []float32, pos int64) (int, error) {
	total := len(dst) / fs.channels
	done := 0
	for done < total {
		m := min(fs.chunkFrames, total-done)
		buf := fs.scratch[:int64(m)*fs.frameBytes]
		n, err := fs.file.ReadAt(buf, (pos+int64(done))*fs.frameBytes)
		got := int(int64(n) / fs.frameBytes)
		decodeSamples(dst[done*fs.channels:(done+got)*fs.channels], buf[:int64(got)*fs.frameBytes])
		done += got
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return done, fs.ioError("read", err)
		}
	}
	return done, nil
}

func (fs *fileStore) close() error {
	var errs []error
	if err := fs.file.Close(); err != nil {
		errs = append(errs, fs.ioError("close", err))
	}
	if fs.removeOnClose {
		if err := os.Remove(fs.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fs.ioError("remove", err))
		}
	}
	return errors.Join(errs...)
}

func encodeSamples(dst []byte, src []float32) {
	for i, s := range src {
		binary.LittleEndian.PutUint32(dst[i*buffer.BytesPerSample:], math.Float32bits(s))
	}
}

func decodeSamples(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*buffer.BytesPerSample:]))
	}
}
