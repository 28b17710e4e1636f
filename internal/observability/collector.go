package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jittakal/audiobuf/pkg/buffer"
)

// SystemMetricsSource provides the aggregate buffer metrics.
type SystemMetricsSource interface {
	SystemMetrics() buffer.SystemMetrics
}

// BufferCollector exports a SystemMetrics snapshot on every scrape.
// It reads only atomic counters and never blocks buffer I/O.
type BufferCollector struct {
	source SystemMetricsSource

	memory         *prometheus.Desc
	reserved       *prometheus.Desc
	budget         *prometheus.Desc
	pressure       *prometheus.Desc
	active         *prometheus.Desc
	buffersByType  *prometheus.Desc
	buffersByState *prometheus.Desc

	poolHits      *prometheus.Desc
	poolMisses    *prometheus.Desc
	poolDiscarded *prometheus.Desc
	poolFree      *prometheus.Desc
	poolHitRatio  *prometheus.Desc

	reads         *prometheus.Desc
	writes        *prometheus.Desc
	errors        *prometheus.Desc
	framesRead    *prometheus.Desc
	framesWritten *prometheus.Desc
	overruns      *prometheus.Desc
	underruns     *prometheus.Desc
	bufferMemory  *prometheus.Desc
	cacheHitRatio *prometheus.Desc
}

// NewBufferCollector creates a collector over source.
func NewBufferCollector(source SystemMetricsSource) *BufferCollector {
	name := func(n string) string { return prometheus.BuildFQName(namespace, "", n) }
	perBuffer := []string{"buffer_id", "type"}
	perPool := []string{"signature"}

	return &BufferCollector{
		source: source,

		memory:         prometheus.NewDesc(name("memory_bytes"), "Memory held by live buffers", nil, nil),
		reserved:       prometheus.NewDesc(name("memory_reserved_bytes"), "Memory reserved against the global budget", nil, nil),
		budget:         prometheus.NewDesc(name("memory_budget_bytes"), "Global memory budget", nil, nil),
		pressure:       prometheus.NewDesc(name("memory_pressure_ratio"), "Memory held divided by the global budget", nil, nil),
		active:         prometheus.NewDesc(name("active_buffers"), "Buffers not closed or faulted", nil, nil),
		buffersByType:  prometheus.NewDesc(name("buffers"), "Live buffers by type", []string{"type"}, nil),
		buffersByState: prometheus.NewDesc(name("buffers_by_state"), "Live buffers by state", []string{"state"}, nil),

		poolHits:      prometheus.NewDesc(name("pool_hits_total"), "Pool acquisitions served from the free list", perPool, nil),
		poolMisses:    prometheus.NewDesc(name("pool_misses_total"), "Pool acquisitions that allocated", perPool, nil),
		poolDiscarded: prometheus.NewDesc(name("pool_discarded_total"), "Releases dropped because the free list was full", perPool, nil),
		poolFree:      prometheus.NewDesc(name("pool_free"), "Allocations waiting on the free list", perPool, nil),
		poolHitRatio:  prometheus.NewDesc(name("pool_hit_ratio"), "Pool hits divided by acquisitions", perPool, nil),

		reads:         prometheus.NewDesc(name("buffer_reads_total"), "Read operations per buffer", perBuffer, nil),
		writes:        prometheus.NewDesc(name("buffer_writes_total"), "Write operations per buffer", perBuffer, nil),
		errors:        prometheus.NewDesc(name("buffer_errors_total"), "Failed operations per buffer", perBuffer, nil),
		framesRead:    prometheus.NewDesc(name("buffer_frames_read_total"), "Frames read per buffer", perBuffer, nil),
		framesWritten: prometheus.NewDesc(name("buffer_frames_written_total"), "Frames written per buffer", perBuffer, nil),
		overruns:      prometheus.NewDesc(name("buffer_overruns_total"), "Ring writes that overwrote unread frames", perBuffer, nil),
		underruns:     prometheus.NewDesc(name("buffer_underruns_total"), "Ring reads that found fewer frames than requested", perBuffer, nil),
		bufferMemory:  prometheus.NewDesc(name("buffer_memory_bytes"), "Memory held per buffer", perBuffer, nil),
		cacheHitRatio: prometheus.NewDesc(name("buffer_cache_hit_ratio"), "Chunk cache hit ratio of streaming buffers", perBuffer, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *BufferCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.memory, c.reserved, c.budget, c.pressure, c.active, c.buffersByType, c.buffersByState,
		c.poolHits, c.poolMisses, c.poolDiscarded, c.poolFree, c.poolHitRatio,
		c.reads, c.writes, c.errors, c.framesRead, c.framesWritten,
		c.overruns, c.underruns, c.bufferMemory, c.cacheHitRatio,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *BufferCollector) Collect(ch chan<- prometheus.Metric) {
	sm := c.source.SystemMetrics()

	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	bytes := func(mb float64) float64 { return float64(buffer.MBToBytes(mb)) }

	gauge(c.memory, bytes(sm.TotalMemoryMB))
	gauge(c.reserved, bytes(sm.ReservedMB))
	gauge(c.budget, bytes(sm.BudgetMB))
	gauge(c.pressure, sm.MemoryPressure)
	gauge(c.active, float64(sm.ActiveBuffers))
	for typ, n := range sm.BuffersByType {
		gauge(c.buffersByType, float64(n), typ)
	}
	for state, n := range sm.BuffersByState {
		gauge(c.buffersByState, float64(n), state)
	}

	for sig, ps := range sm.PoolStats {
		counter(c.poolHits, ps.Hits, sig)
		counter(c.poolMisses, ps.Misses, sig)
		counter(c.poolDiscarded, ps.Discarded, sig)
		gauge(c.poolFree, float64(ps.Free), sig)
		gauge(c.poolHitRatio, ps.HitRate, sig)
	}

	for _, bm := range sm.Buffers {
		id, typ := bm.BufferID, bm.Type.String()
		counter(c.reads, bm.ReadCount, id, typ)
		counter(c.writes, bm.WriteCount, id, typ)
		counter(c.errors, bm.ErrorCount, id, typ)
		counter(c.framesRead, bm.FramesRead, id, typ)
		counter(c.framesWritten, bm.FramesWritten, id, typ)
		gauge(c.bufferMemory, bytes(bm.MemoryUsageMB), id, typ)
		if bm.Type == buffer.TypeRing {
			counter(c.overruns, bm.Overruns, id, typ)
			counter(c.underruns, bm.Underruns, id, typ)
		}
		if bm.Type == buffer.TypeStreaming {
			gauge(c.cacheHitRatio, bm.CacheHitRate, id, typ)
		}
	}
}
