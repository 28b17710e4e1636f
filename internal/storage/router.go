// Package storage implements snapshot storage writers, path routing and segmenting.
package storage

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jittakal/audiobuf/pkg/event"
	"github.com/jittakal/audiobuf/pkg/storage"
)

// Ensure implementations satisfy interfaces.
var (
	_ storage.Router        = (*DefaultRouter)(nil)
	_ storage.SegmentPolicy = (*CompositePolicy)(nil)
)

// bytesPerSample is the raw size of one float32 sample.
const bytesPerSample = 4

// DefaultRouter implements Hive-style partitioning for storage paths.
type DefaultRouter struct {
	protocol string
	bucket   string
	basePath string
}

// NewRouter creates a new storage router.
func NewRouter(protocol, bucket, basePath string) *DefaultRouter {
	return &DefaultRouter{
		protocol: protocol,
		bucket:   bucket,
		basePath: strings.Trim(basePath, "/"),
	}
}

// Route returns the storage directory for a buffer's snapshot.
// Format: protocol://bucket/basePath/type=T/dt=YYYY-MM-DD/id=ID/
// The date is taken from the capture time in UTC.
func (r *DefaultRouter) Route(bufferType, bufferID string, capturedAt time.Time) string {
	prefix := fmt.Sprintf("%s://%s", r.protocol, r.bucket)
	if r.basePath != "" {
		prefix += "/" + r.basePath
	}
	return fmt.Sprintf("%s/type=%s/dt=%s/id=%s/",
		prefix,
		bufferType,
		capturedAt.UTC().Format("2006-01-02"),
		sanitizeSegment(bufferID),
	)
}

// sanitizeSegment keeps a buffer id from escaping its path segment.
func sanitizeSegment(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_").Replace(s)
	if s == "." || s == ".." {
		return "_"
	}
	return s
}

// snapshotFileName returns <id>_<YYYYMMDD_HHMMSS>_<start frame><ext>.
// The start frame keeps the segments of one export apart.
func snapshotFileName(snap *event.Snapshot, ext string) string {
	return fmt.Sprintf("%s_%s_%012d%s",
		sanitizeSegment(snap.BufferID),
		snap.CapturedAt.UTC().Format("20060102_150405"),
		snap.StartFrame,
		ext,
	)
}

// objectKey strips protocol and bucket from a routed path and appends the file name.
func objectKey(path, scheme, name string) string {
	key := path
	if strings.HasPrefix(path, scheme) {
		parts := strings.SplitN(strings.TrimPrefix(path, scheme), "/", 2)
		if len(parts) == 2 {
			key = parts[1]
		} else {
			key = ""
		}
	}
	if key != "" && !strings.HasSuffix(key, "/") {
		key += "/"
	}
	return strings.TrimPrefix(key+name, "/")
}

// NewPolicy creates a new segment policy (alias for NewCompositePolicy).
func NewPolicy(config PolicyConfig) *CompositePolicy {
	return NewCompositePolicy(config)
}

// SegmentStrategy determines how the size and duration bounds combine.
type SegmentStrategy string

const (
	// StrategyAny starts a new file when either bound is reached.
	StrategyAny SegmentStrategy = "any"
	// StrategyAll starts a new file only when both bounds are reached.
	StrategyAll SegmentStrategy = "all"
)

// PolicyConfig configures segmenting behavior.
type PolicyConfig struct {
	MaxFileSizeMB      int64
	MaxDurationSeconds int
	Strategy           string
}

// CompositePolicy bounds one file by raw sample bytes and by playback duration.
// A zero bound is disabled.
type CompositePolicy struct {
	maxSizeBytes int64
	maxDuration  time.Duration
	strategy     SegmentStrategy
}

// NewCompositePolicy creates a new composite segment policy.
func NewCompositePolicy(config PolicyConfig) *CompositePolicy {
	strategy := SegmentStrategy(config.Strategy)
	if strategy != StrategyAll {
		strategy = StrategyAny
	}
	return &CompositePolicy{
		maxSizeBytes: config.MaxFileSizeMB * 1024 * 1024,
		maxDuration:  time.Duration(config.MaxDurationSeconds) * time.Second,
		strategy:     strategy,
	}
}

// MaxFrames converts the bounds into a frame count for the given shape.
func (p *CompositePolicy) MaxFrames(sampleRate float64, channels int) int64 {
	var bySize, byDuration int64
	if p.maxSizeBytes > 0 && channels > 0 {
		bySize = max(p.maxSizeBytes/int64(channels*bytesPerSample), 1)
	}
	if p.maxDuration > 0 && sampleRate > 0 {
		byDuration = max(int64(math.Floor(p.maxDuration.Seconds()*sampleRate)), 1)
	}

	switch {
	case bySize == 0:
		return byDuration
	case byDuration == 0:
		return bySize
	case p.strategy == StrategyAll:
		return max(bySize, byDuration)
	default:
		return min(bySize, byDuration)
	}
}
