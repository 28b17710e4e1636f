// Package storage defines interfaces for snapshot storage operations.
//
// This package provides abstractions for writing buffer snapshots to various
// storage backends (S3, Azure Blob, Google Cloud Storage, local filesystem).
package storage

import (
	"context"
	"time"

	"github.com/jittakal/audiobuf/pkg/event"
)

// Writer writes encoded snapshots to storage.
type Writer interface {
	// Write encodes the snapshot and stores it under the specified path.
	// Returns the number of bytes written.
	Write(ctx context.Context, snap *event.Snapshot, path string) (int64, error)

	// Close closes the writer and releases resources.
	Close() error
}

// Router determines storage paths for snapshots based on partitioning strategy.
type Router interface {
	// Route returns the directory for a buffer's snapshot captured at the given time.
	Route(bufferType, bufferID string, capturedAt time.Time) string
}

// SegmentPolicy splits long snapshots into several files.
type SegmentPolicy interface {
	// MaxFrames returns the largest frame count one file may hold, or zero
	// when snapshots are never split.
	MaxFrames(sampleRate float64, channels int) int64
}
