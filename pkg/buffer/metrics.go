package buffer

// Metrics is a point-in-time view of one buffer's counters.
type Metrics struct {
	BufferID      string  `json:"buffer_id"`
	Type          Type    `json:"type"`
	State         State   `json:"state"`
	ReadCount     uint64  `json:"read_count"`
	WriteCount    uint64  `json:"write_count"`
	ErrorCount    uint64  `json:"error_count"`
	FramesRead    uint64  `json:"frames_read"`
	FramesWritten uint64  `json:"frames_written"`
	Overruns      uint64  `json:"overruns"`
	Underruns     uint64  `json:"underruns"`
	CacheHits     uint64  `json:"cache_hits"`
	CacheMisses   uint64  `json:"cache_misses"`
	MemoryUsageMB float64 `json:"memory_usage_mb"`
	// CacheHitRate is hits/(hits+misses) for streaming buffers and zero otherwise.
	CacheHitRate float64 `json:"cache_hit_rate"`
}

// PoolStats describes one pool signature's free list.
type PoolStats struct {
	Hits      uint64  `json:"pool_hits"`
	Misses    uint64  `json:"pool_misses"`
	Discarded uint64  `json:"discarded"`
	Free      int     `json:"free"`
	HitRate   float64 `json:"hit_rate"`
}

// SystemMetrics aggregates all live buffers of a manager.
type SystemMetrics struct {
	TotalMemoryMB  float64              `json:"total_memory_mb"`
	ReservedMB     float64              `json:"reserved_mb"`
	BudgetMB       float64              `json:"budget_mb"`
	MemoryPressure float64              `json:"memory_pressure"`
	ActiveBuffers  int                  `json:"active_buffers"`
	BuffersByType  map[string]int       `json:"buffers_by_type"`
	BuffersByState map[string]int       `json:"buffers_by_state"`
	TotalReads     uint64               `json:"total_reads"`
	TotalWrites    uint64               `json:"total_writes"`
	TotalErrors    uint64               `json:"total_errors"`
	PoolStats      map[string]PoolStats `json:"pool_stats"`
	Buffers        []Metrics            `json:"buffers"`
}

// HitRate returns hits/(hits+misses), or zero when nothing was counted.
func HitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
