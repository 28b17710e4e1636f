package buffer

import (
	"github.com/jittakal/audiobuf/internal/pool"
	"github.com/jittakal/audiobuf/pkg/buffer"
)

// PooledBuffer has the Memory contract over fixed storage of BufferSize
// frames drawn from the pool. The storage always returns to the pool on close.
// Writing past BufferSize is a budget fault.
type PooledBuffer struct {
	flat
}

// NewPooledBuffer creates a pooled buffer. cfg must already be validated.
func NewPooledBuffer(id string, cfg buffer.Config, p *pool.Pool) *PooledBuffer {
	b := &PooledBuffer{}
	b.init(id, cfg, p, int64(cfg.BufferSize), cfg.CapacityBytes())
	return b
}
