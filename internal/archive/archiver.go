// Package archive exports buffer contents as snapshot files.
//
// An export reads the buffer with ReadAt, so the read cursor and the unread
// region of a ring are left as they were. Long buffers are split into
// segments by the configured SegmentPolicy and each segment is written
// through a storage.Writer under the path chosen by the Router.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jittakal/audiobuf/pkg/buffer"
	"github.com/jittakal/audiobuf/pkg/event"
	"github.com/jittakal/audiobuf/pkg/storage"
)

// BufferSource looks up live buffers by id.
type BufferSource interface {
	GetBuffer(id string) (buffer.Buffer, error)
}

// Result summarizes one buffer's export.
type Result struct {
	BufferID string
	Segments int
	Frames   int64
	Bytes    int64
	Path     string
}

// Archiver writes buffer snapshots to storage.
type Archiver struct {
	source BufferSource
	writer storage.Writer
	router storage.Router
	policy storage.SegmentPolicy
	logger *slog.Logger
	now    func() time.Time
}

// New creates an archiver. A nil policy writes each buffer as one file.
func New(source BufferSource, writer storage.Writer, router storage.Router, policy storage.SegmentPolicy, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		source: source,
		writer: writer,
		router: router,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// Export snapshots one buffer. Ring buffers export their unread window, the
// other types everything they hold. An empty buffer exports nothing.
func (a *Archiver) Export(ctx context.Context, id string) (Result, error) {
	res := Result{BufferID: id}

	b, err := a.source.GetBuffer(id)
	if err != nil {
		return res, err
	}
	cfg := b.Config()

	start, end := int64(0), b.Len()
	if w, ok := b.(buffer.Windowed); ok {
		start, end = w.Window()
	}
	total := end - start
	if total <= 0 {
		a.logger.Info("skipping empty buffer", "buffer_id", id)
		return res, nil
	}

	segment := total
	if a.policy != nil {
		if n := a.policy.MaxFrames(cfg.SampleRate, cfg.Channels); n > 0 && n < total {
			segment = n
		}
	}

	capturedAt := a.now().UTC()
	path := a.router.Route(b.Type().String(), id, capturedAt)

	for pos := start; pos < end; {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		n := min(segment, end-pos)
		dst := make([]float32, int(n)*cfg.Channels)
		k, err := b.ReadAt(dst, pos)
		if err != nil {
			return res, fmt.Errorf("read %s at %d: %w", id, pos, err)
		}
		if k == 0 {
			break
		}

		snap := &event.Snapshot{
			BufferID:   id,
			BufferType: b.Type().String(),
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
			StartFrame: pos,
			Samples:    dst[:k*cfg.Channels],
			CapturedAt: capturedAt,
		}
		size, err := a.writer.Write(ctx, snap, path)
		if err != nil {
			return res, fmt.Errorf("write %s segment at %d: %w", id, pos, err)
		}

		res.Segments++
		res.Frames += int64(k)
		res.Bytes += size
		pos += int64(k)
	}
	res.Path = path

	a.logger.Info("exported buffer",
		"buffer_id", id,
		"segments", res.Segments,
		"frames", res.Frames,
		"bytes", res.Bytes,
		"path", path,
	)
	return res, nil
}

// ExportAll exports every listed buffer. A failure does not stop the others;
// the returned error joins all failures.
func (a *Archiver) ExportAll(ctx context.Context, ids []string) ([]Result, error) {
	results := make([]Result, 0, len(ids))
	var errs []error
	for _, id := range ids {
		res, err := a.Export(ctx, id)
		if err != nil {
			a.logger.Error("failed to export buffer", "buffer_id", id, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}
