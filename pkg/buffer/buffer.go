// Package buffer defines the public contract for audio sample buffers.
//
// Buffers carry interleaved float32 sample frames between the file system, the
// plugin processing graph and real-time I/O. Five storage strategies implement
// the same Buffer interface; callers obtain them from a manager and never
// construct them directly.
package buffer

import (
	"fmt"
	"strings"
)

// Type selects the storage strategy of a buffer.
type Type int

const (
	TypeUnspecified Type = iota
	TypeMemory
	TypeDisk
	TypeStreaming
	TypeRing
	TypePool
)

// Types lists every concrete buffer type.
func Types() []Type {
	return []Type{TypeMemory, TypeDisk, TypeStreaming, TypeRing, TypePool}
}

func (t Type) String() string {
	switch t {
	case TypeMemory:
		return "memory"
	case TypeDisk:
		return "disk"
	case TypeStreaming:
		return "streaming"
	case TypeRing:
		return "ring"
	case TypePool:
		return "pool"
	default:
		return "unspecified"
	}
}

// IsFileBacked reports whether the type stores frames in a file.
func (t Type) IsFileBacked() bool {
	return t == TypeDisk || t == TypeStreaming
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseType converts a type name into a Type.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "memory":
		return TypeMemory, nil
	case "disk":
		return TypeDisk, nil
	case "streaming", "stream":
		return TypeStreaming, nil
	case "ring":
		return TypeRing, nil
	case "pool", "pooled":
		return TypePool, nil
	default:
		return TypeUnspecified, fmt.Errorf("unknown buffer type: %q", name)
	}
}

// State is the lifecycle state of a buffer.
// Created -> Active -> Closed, or Active -> Error on an unrecoverable fault.
type State int32

const (
	StateCreated State = iota
	StateActive
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further operation can succeed in this state.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateError
}

// Buffer is a positioned store of audio frames.
// Implementations are safe for concurrent use only when Config().ThreadSafe is set.
type Buffer interface {
	// ID returns the identifier the buffer was registered under.
	ID() string

	// Type returns the storage strategy.
	Type() Type

	// Config returns the immutable configuration.
	Config() Config

	// State returns the current lifecycle state.
	State() State

	// Read returns up to n frames from the cursor and advances it.
	// A short read at end of data is not an error.
	Read(n int) (Frames, error)

	// ReadInto fills dst with interleaved samples from the cursor and returns
	// the number of frames read. len(dst) must be a multiple of the channel count.
	ReadInto(dst []float32) (int, error)

	// ReadAt fills dst with frames starting at pos without moving the cursor.
	ReadAt(dst []float32, pos int64) (int, error)

	// Write stores frames at the cursor and advances it.
	// Returns the number of frames accepted.
	Write(frames Frames) (int, error)

	// Seek moves the cursor to an absolute frame position.
	Seek(pos int64) error

	// Tell returns the cursor position in frames.
	Tell() (int64, error)

	// Len returns the number of frames currently stored.
	Len() int64

	// Metrics returns a snapshot of the buffer's counters.
	Metrics() Metrics
}

// Info identifies a registered buffer.
type Info struct {
	ID    string `json:"id"`
	Type  Type   `json:"type"`
	State State  `json:"state"`
}

// Windowed is implemented by buffers whose readable positions do not start at
// zero. Window returns the half-open range [start, end) of positions ReadAt accepts.
type Windowed interface {
	Window() (start, end int64)
}
