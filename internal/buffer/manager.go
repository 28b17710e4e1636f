package buffer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	apperrors "github.com/jittakal/audiobuf/internal/errors"
	"github.com/jittakal/audiobuf/internal/pool"
	"github.com/jittakal/audiobuf/pkg/buffer"
	"github.com/jittakal/audiobuf/pkg/event"
)

// DefaultTombstones is the number of failed creations remembered for GetBufferState.
const DefaultTombstones = 256

// ManagerConfig holds the manager-wide limits.
type ManagerConfig struct {
	// MaxMemoryMB is the global budget shared by all buffers.
	MaxMemoryMB float64
	// PoolCapacity is the free-list length per pool signature.
	PoolCapacity int
	// Tombstones bounds how many failed creations stay observable.
	Tombstones int
}

// Recorder receives manager lifecycle counts.
type Recorder interface {
	IncBuffersCreated(bufferType string)
	IncBufferCreateFailures(bufferType, reason string)
	IncBuffersRemoved(bufferType string)
	IncBufferFaults(bufferType string)
}

// Publisher receives lifecycle notifications. Publish must not block.
type Publisher interface {
	Publish(ev event.Lifecycle)
}

// Option configures a Manager.
type Option func(*Manager)

// WithPool shares an existing pool instead of creating one from PoolCapacity.
func WithPool(p *pool.Pool) Option {
	return func(m *Manager) { m.pool = p }
}

// WithRecorder reports lifecycle counts to r.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithPublisher sends lifecycle notifications to p.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// CreateOption carries backend-specific arguments of CreateBuffer.
type CreateOption func(*FileOptions)

// WithTruncate discards the existing contents of a disk or streaming buffer's file.
func WithTruncate() CreateOption {
	return func(o *FileOptions) { o.Truncate = true }
}

// WithRemoveOnClose deletes a disk or streaming buffer's file when it is removed.
func WithRemoveOnClose() CreateOption {
	return func(o *FileOptions) { o.RemoveOnClose = true }
}

// entry is a registry slot. A nil buf marks a creation in progress.
type entry struct {
	buf      handle
	typ      buffer.Type
	reserved int64
}

// Manager creates, tracks and removes buffers and owns the global memory budget.
//
// Every buffer holds a reservation of Config.ReservedBytes, charged when it is
// created and released when it is removed. The registry lock guards the
// registry and the reservation total only; buffer I/O never takes it.
type Manager struct {
	budget     int64
	reserved   int64
	entries    map[string]*entry
	tombstones *simplelru.LRU[string, error]
	closed     bool
	mu         sync.RWMutex

	pool      *pool.Pool
	logger    *slog.Logger
	recorder  Recorder
	publisher Publisher
}

// NewManager creates a buffer manager.
func NewManager(cfg ManagerConfig, logger *slog.Logger, opts ...Option) (*Manager, error) {
	budget := buffer.MBToBytes(cfg.MaxMemoryMB)
	if budget <= 0 {
		return nil, &apperrors.ConfigurationError{Field: "max_memory_mb", Reason: "manager budget must be > 0"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	tombstones := cfg.Tombstones
	if tombstones <= 0 {
		tombstones = DefaultTombstones
	}
	lru, err := simplelru.NewLRU[string, error](tombstones, nil)
	if err != nil {
		return nil, fmt.Errorf("create tombstone cache: %w", err)
	}

	m := &Manager{
		budget:     budget,
		entries:    make(map[string]*entry),
		tombstones: lru,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.pool == nil {
		m.pool = pool.New(cfg.PoolCapacity)
	}
	return m, nil
}

// Pool returns the manager's buffer pool.
func (m *Manager) Pool() *pool.Pool {
	return m.pool
}

// CreateBuffer creates and registers a buffer of type typ under id.
// An empty id is replaced by a generated UUID. When cfg.Type is unset it
// takes typ; a conflicting cfg.Type is a configuration error.
//
// Configuration errors are returned without side effects. Budget and I/O
// failures leave id observable in StateError through GetBufferState until it
// is removed or recreated.
func (m *Manager) CreateBuffer(id string, typ buffer.Type, cfg buffer.Config, opts ...CreateOption) (buffer.Buffer, error) {
	if id == "" {
		id = uuid.New().String()
	}
	if cfg.Type == buffer.TypeUnspecified {
		cfg.Type = typ
	}
	if typ != buffer.TypeUnspecified && cfg.Type != typ {
		return nil, &apperrors.ConfigurationError{
			Field:  "buffer_type",
			Reason: fmt.Sprintf("config type %s does not match requested %s", cfg.Type, typ),
		}
	}

	valid, err := buffer.NewConfig(cfg)
	if err != nil {
		m.recordFailure(id, cfg.Type, "configuration", err, false)
		return nil, err
	}
	cfg = valid

	var fopts FileOptions
	for _, opt := range opts {
		opt(&fopts)
	}

	slot, err := m.reserve(id, cfg)
	if err != nil {
		if errors.Is(err, apperrors.ErrMemoryExhausted) {
			m.recordFailure(id, cfg.Type, "memory_exhausted", err, true)
		}
		return nil, err
	}

	h, err := m.construct(id, cfg, fopts)
	if err != nil {
		m.mu.Lock()
		delete(m.entries, id)
		m.reserved -= slot.reserved
		m.tombstones.Add(id, err)
		m.mu.Unlock()
		m.recordFailure(id, cfg.Type, "io", err, true)
		return nil, err
	}
	h.watch(m.onFault)

	m.mu.Lock()
	if m.closed || m.entries[id] != slot {
		m.reserved -= slot.reserved
		m.mu.Unlock()
		_ = h.close()
		return nil, apperrors.ErrManagerClosed
	}
	slot.buf = h
	m.mu.Unlock()

	m.logger.Info("buffer created",
		"buffer_id", id,
		"type", cfg.Type.String(),
		"reserved_mb", buffer.BytesToMB(slot.reserved),
	)
	if m.recorder != nil {
		m.recorder.IncBuffersCreated(cfg.Type.String())
	}
	m.publish(event.KindCreated, h, "")
	return h, nil
}

// reserve checks both budgets, charges the global one and registers a
// pending slot for id. Budget failures leave a tombstone.
func (m *Manager) reserve(id string, cfg buffer.Config) (*entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, apperrors.ErrManagerClosed
	}
	if _, exists := m.entries[id]; exists {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrAlreadyExists, id)
	}

	if initial := cfg.InitialBytes(); initial > cfg.MaxMemoryBytes() {
		err := &apperrors.MemoryExhaustedError{
			BufferID:       id,
			Scope:          apperrors.ScopeBuffer,
			RequestedBytes: initial,
			LimitBytes:     cfg.MaxMemoryBytes(),
		}
		m.tombstones.Add(id, err)
		return nil, err
	}

	need := cfg.ReservedBytes()
	if need > m.budget-m.reserved {
		err := &apperrors.MemoryExhaustedError{
			BufferID:       id,
			Scope:          apperrors.ScopeGlobal,
			RequestedBytes: need,
			LimitBytes:     m.budget - m.reserved,
		}
		m.tombstones.Add(id, err)
		return nil, err
	}

	slot := &entry{typ: cfg.Type, reserved: need}
	m.entries[id] = slot
	m.reserved += need
	m.tombstones.Remove(id)
	return slot, nil
}

func (m *Manager) construct(id string, cfg buffer.Config, fopts FileOptions) (handle, error) {
	switch cfg.Type {
	case buffer.TypeMemory:
		return NewMemoryBuffer(id, cfg, m.pool), nil
	case buffer.TypePool:
		return NewPooledBuffer(id, cfg, m.pool), nil
	case buffer.TypeRing:
		return NewRingBuffer(id, cfg, m.pool), nil
	case buffer.TypeDisk:
		return NewDiskBuffer(id, cfg, fopts)
	case buffer.TypeStreaming:
		return NewStreamingBuffer(id, cfg, fopts)
	default:
		return nil, &apperrors.ConfigurationError{Field: "buffer_type", Reason: "unknown type"}
	}
}

// GetBuffer returns the live buffer registered under id.
func (m *Manager) GetBuffer(id string) (buffer.Buffer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if e, ok := m.entries[id]; ok && e.buf != nil {
		return e.buf, nil
	}
	if cause, ok := m.tombstones.Peek(id); ok {
		return nil, fmt.Errorf("%w: %s: creation failed: %v", apperrors.ErrNotFound, id, cause)
	}
	return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, id)
}

// GetBufferState returns the state of id. Failed creations report StateError.
func (m *Manager) GetBufferState(id string) (buffer.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if e, ok := m.entries[id]; ok {
		if e.buf == nil {
			return buffer.StateCreated, nil
		}
		return e.buf.State(), nil
	}
	if _, ok := m.tombstones.Peek(id); ok {
		return buffer.StateError, nil
	}
	return buffer.StateClosed, fmt.Errorf("%w: %s", apperrors.ErrNotFound, id)
}

// RemoveBuffer closes and unregisters id, returning pooled storage to the
// pool. It reports whether anything was removed and is safe to repeat.
// Operations still holding the buffer fail with ErrBufferClosed.
func (m *Manager) RemoveBuffer(id string) (bool, error) {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok || e.buf == nil {
		_, tomb := m.tombstones.Peek(id)
		if tomb {
			m.tombstones.Remove(id)
		}
		m.mu.Unlock()
		return tomb, nil
	}
	delete(m.entries, id)
	m.mu.Unlock()

	// Storage is released before the reservation so the budget never
	// undercounts memory still held.
	metrics := e.buf.Metrics()
	err := e.buf.close()

	m.mu.Lock()
	m.reserved -= e.reserved
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("buffer close failed", "buffer_id", id, "type", e.typ.String(), "error", err)
	} else {
		m.logger.Info("buffer removed", "buffer_id", id, "type", e.typ.String())
	}
	if m.recorder != nil {
		m.recorder.IncBuffersRemoved(e.typ.String())
	}
	m.publishMetrics(event.KindRemoved, e.buf, metrics, "")
	return true, err
}

// Buffers lists registered buffers ordered by id.
func (m *Manager) Buffers() []buffer.Info {
	m.mu.RLock()
	infos := make([]buffer.Info, 0, len(m.entries))
	for id, e := range m.entries {
		if e.buf == nil {
			continue
		}
		infos = append(infos, buffer.Info{ID: id, Type: e.typ, State: e.buf.State()})
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// SystemMetrics aggregates the metrics of all live buffers and the pool.
// Counters are read atomically, so calling it never blocks buffer I/O.
func (m *Manager) SystemMetrics() buffer.SystemMetrics {
	m.mu.RLock()
	handles := make([]handle, 0, len(m.entries))
	for _, e := range m.entries {
		if e.buf != nil {
			handles = append(handles, e.buf)
		}
	}
	reserved := m.reserved
	m.mu.RUnlock()

	sm := buffer.SystemMetrics{
		ReservedMB:     buffer.BytesToMB(reserved),
		BudgetMB:       buffer.BytesToMB(m.budget),
		BuffersByType:  make(map[string]int),
		BuffersByState: make(map[string]int),
		PoolStats:      m.pool.Stats(),
		Buffers:        make([]buffer.Metrics, 0, len(handles)),
	}
	for _, h := range handles {
		bm := h.Metrics()
		sm.Buffers = append(sm.Buffers, bm)
		sm.TotalMemoryMB += bm.MemoryUsageMB
		sm.TotalReads += bm.ReadCount
		sm.TotalWrites += bm.WriteCount
		sm.TotalErrors += bm.ErrorCount
		sm.BuffersByType[bm.Type.String()]++
		sm.BuffersByState[bm.State.String()]++
		if !bm.State.Terminal() {
			sm.ActiveBuffers++
		}
	}
	sort.Slice(sm.Buffers, func(i, j int) bool { return sm.Buffers[i].BufferID < sm.Buffers[j].BufferID })
	if sm.BudgetMB > 0 {
		sm.MemoryPressure = sm.TotalMemoryMB / sm.BudgetMB
	}
	return sm
}

// Shutdown closes every buffer and rejects further creations. A cancelled
// ctx is reported, but every buffer is still closed and its reservation
// released, since nothing can reach them afterwards.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	entries := m.entries
	m.entries = make(map[string]*entry)
	m.mu.Unlock()

	m.logger.Info("shutting down buffer manager", "buffers", len(entries))

	var errs []error
	interrupted := false
	for id, e := range entries {
		if err := ctx.Err(); err != nil && !interrupted {
			interrupted = true
			errs = append(errs, fmt.Errorf("shutdown interrupted: %w", err))
			m.logger.Warn("shutdown deadline passed, closing remaining buffers", "error", err)
		}
		if e.buf == nil {
			continue
		}
		if err := e.buf.close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", id, err))
		}
		m.mu.Lock()
		m.reserved -= e.reserved
		m.mu.Unlock()
	}
	m.pool.Drain()
	return errors.Join(errs...)
}

// onFault runs on the goroutine whose operation faulted the buffer, after
// the buffer has released its data lock.
func (m *Manager) onFault(id string, typ buffer.Type, cause error) {
	m.logger.Warn("buffer faulted", "buffer_id", id, "type", typ.String(), "error", cause)
	if m.recorder != nil {
		m.recorder.IncBufferFaults(typ.String())
	}
	if m.publisher != nil {
		m.publisher.Publish(event.Lifecycle{
			Kind:       event.KindFaulted,
			BufferID:   id,
			BufferType: typ.String(),
			State:      buffer.StateError.String(),
			Reason:     cause.Error(),
			Time:       time.Now().UTC(),
		})
	}
}

func (m *Manager) recordFailure(id string, typ buffer.Type, reason string, err error, publish bool) {
	m.logger.Warn("buffer creation failed",
		"buffer_id", id,
		"type", typ.String(),
		"reason", reason,
		"error", err,
	)
	if m.recorder != nil {
		m.recorder.IncBufferCreateFailures(typ.String(), reason)
	}
	if publish && m.publisher != nil {
		m.publisher.Publish(event.Lifecycle{
			Kind:       event.KindFailed,
			BufferID:   id,
			BufferType: typ.String(),
			State:      buffer.StateError.String(),
			Reason:     err.Error(),
			Time:       time.Now().UTC(),
		})
	}
}

func (m *Manager) publish(kind event.Kind, b buffer.Buffer, reason string) {
	if m.publisher == nil {
		return
	}
	m.publishMetrics(kind, b, b.Metrics(), reason)
}

func (m *Manager) publishMetrics(kind event.Kind, b buffer.Buffer, bm buffer.Metrics, reason string) {
	if m.publisher == nil {
		return
	}
	cfg := b.Config()
	m.publisher.Publish(event.Lifecycle{
		Kind:          kind,
		BufferID:      b.ID(),
		BufferType:    cfg.Type.String(),
		State:         b.State().String(),
		SampleRate:    cfg.SampleRate,
		Channels:      cfg.Channels,
		BufferSize:    cfg.BufferSize,
		MemoryUsageMB: bm.MemoryUsageMB,
		Reason:        reason,
		Time:          time.Now().UTC(),
	})
}
