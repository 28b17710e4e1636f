// Package encoder defines interfaces for encoding buffer snapshots to file formats.
package encoder

import "github.com/jittakal/audiobuf/pkg/event"

// Encoder encodes snapshots to a specific file format.
type Encoder interface {
	// Encode writes the snapshot to a file and returns file statistics.
	Encode(filePath string, snap *event.Snapshot) (*event.FileStats, error)

	// Format returns the file format this encoder produces.
	Format() event.FileFormat

	// FileExtension returns the file extension (e.g., ".wav", ".parquet").
	FileExtension() string
}
