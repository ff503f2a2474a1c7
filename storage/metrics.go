package storage

import (
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Histogram keeps the most recent latency samples (microseconds) in a ring
type Histogram struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
}

// NewHistogram creates a histogram retaining up to maxSize samples
func NewHistogram(maxSize int) *Histogram {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &Histogram{
		samples: make([]float64, maxSize),
	}
}

// Record adds a sample, overwriting the oldest one when full
func (h *Histogram) Record(latencyUs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples[h.next] = latencyUs
	h.next++
	if h.next == len(h.samples) {
		h.next = 0
		h.full = true
	}
}

// Count returns the number of retained samples
func (h *Histogram) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.countLocked()
}

func (h *Histogram) countLocked() int {
	if h.full {
		return len(h.samples)
	}
	return h.next
}

// Reset clears all samples
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next = 0
	h.full = false
}

// HistogramSnapshot holds summary statistics of a Histogram
type HistogramSnapshot struct {
	Count int
	Min   float64
	Max   float64
	Mean  float64
	P50   float64
	P95   float64
	P99   float64
}

// Snapshot computes statistics over a sorted copy of the retained samples
func (h *Histogram) Snapshot() HistogramSnapshot {
	h.mu.Lock()
	sorted := slices.Clone(h.samples[:h.countLocked()])
	h.mu.Unlock()

	if len(sorted) == 0 {
		return HistogramSnapshot{}
	}
	slices.Sort(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	return HistogramSnapshot{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  sum / float64(len(sorted)),
		P50:   percentile(sorted, 50),
		P95:   percentile(sorted, 95),
		P99:   percentile(sorted, 99),
	}
}

// percentile interpolates linearly between the closest ranks of sorted
func percentile(sorted []float64, p float64) float64 {
	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Metrics tracks buffer pool and replacer counters
type Metrics struct {
	cacheHits          atomic.Uint64
	cacheMisses        atomic.Uint64
	pageEvictions      atomic.Uint64
	dirtyPageFlushes   atomic.Uint64
	pagesDeleted       atomic.Uint64
	replacerRejections atomic.Uint64
	noVictimFailures   atomic.Uint64

	pageFetchLatency *Histogram

	// disabled turns every Record call into a no-op
	disabled bool

	startTime time.Time
	mu        sync.RWMutex
}

// NewMetrics creates a new metrics tracker
func NewMetrics() *Metrics {
	return &Metrics{
		startTime:        time.Now(),
		pageFetchLatency: NewHistogram(10000),
	}
}

// NewDisabledMetrics creates a tracker that records nothing. Getters report zero.
func NewDisabledMetrics() *Metrics {
	m := NewMetrics()
	m.disabled = true
	return m
}

// Enabled reports whether Record calls are counted
func (m *Metrics) Enabled() bool {
	return !m.disabled
}

func (m *Metrics) RecordCacheHit() {
	if m.disabled {
		return
	}
	m.cacheHits.Add(1)
}

func (m *Metrics) RecordCacheMiss() {
	if m.disabled {
		return
	}
	m.cacheMisses.Add(1)
}

func (m *Metrics) RecordPageEviction() {
	if m.disabled {
		return
	}
	m.pageEvictions.Add(1)
}

func (m *Metrics) RecordDirtyPageFlush() {
	if m.disabled {
		return
	}
	m.dirtyPageFlushes.Add(1)
}

func (m *Metrics) RecordPageDelete() {
	if m.disabled {
		return
	}
	m.pagesDeleted.Add(1)
}

// RecordReplacerRejection counts replacer calls refused with an error
func (m *Metrics) RecordReplacerRejection() {
	if m.disabled {
		return
	}
	m.replacerRejections.Add(1)
}

// RecordNoVictim counts frame requests that found every frame pinned
func (m *Metrics) RecordNoVictim() {
	if m.disabled {
		return
	}
	m.noVictimFailures.Add(1)
}

// RecordPageFetchLatency records the latency of a page fetch
func (m *Metrics) RecordPageFetchLatency(duration time.Duration) {
	if m.disabled {
		return
	}
	m.pageFetchLatency.Record(float64(duration.Microseconds()))
}

func (m *Metrics) GetCacheHits() uint64 {
	return m.cacheHits.Load()
}

func (m *Metrics) GetCacheMisses() uint64 {
	return m.cacheMisses.Load()
}

func (m *Metrics) GetCacheHitRate() float64 {
	hits := m.cacheHits.Load()
	total := hits + m.cacheMisses.Load()
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total)
}

func (m *Metrics) GetPageEvictions() uint64 {
	return m.pageEvictions.Load()
}

func (m *Metrics) GetDirtyPageFlushes() uint64 {
	return m.dirtyPageFlushes.Load()
}

func (m *Metrics) GetPagesDeleted() uint64 {
	return m.pagesDeleted.Load()
}

func (m *Metrics) GetReplacerRejections() uint64 {
	return m.replacerRejections.Load()
}

func (m *Metrics) GetNoVictimFailures() uint64 {
	return m.noVictimFailures.Load()
}

func (m *Metrics) GetUptime() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Since(m.startTime)
}

// GetPageFetchLatency returns a snapshot of the page fetch latency distribution
func (m *Metrics) GetPageFetchLatency() HistogramSnapshot {
	return m.pageFetchLatency.Snapshot()
}

// LogMetrics logs all metrics using structured logging
func (m *Metrics) LogMetrics(logger *slog.Logger) {
	pageFetch := m.GetPageFetchLatency()

	logger.Info("Buffer Pool Metrics",
		slog.Group("buffer_pool",
			slog.Uint64("cache_hits", m.GetCacheHits()),
			slog.Uint64("cache_misses", m.GetCacheMisses()),
			slog.Float64("cache_hit_rate", m.GetCacheHitRate()),
			slog.Uint64("page_evictions", m.GetPageEvictions()),
			slog.Uint64("dirty_page_flushes", m.GetDirtyPageFlushes()),
			slog.Uint64("pages_deleted", m.GetPagesDeleted()),
		),
		slog.Group("replacer",
			slog.Uint64("rejections", m.GetReplacerRejections()),
			slog.Uint64("no_victim", m.GetNoVictimFailures()),
		),
		slog.Group("latency_us",
			slog.Group("page_fetch",
				slog.Int("count", pageFetch.Count),
				slog.Float64("mean", pageFetch.Mean),
				slog.Float64("p50", pageFetch.P50),
				slog.Float64("p95", pageFetch.P95),
				slog.Float64("p99", pageFetch.P99),
			),
		),
		slog.Duration("uptime", m.GetUptime()),
	)
}

// Reset resets all metrics (useful for testing)
func (m *Metrics) Reset() {
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.pageEvictions.Store(0)
	m.dirtyPageFlushes.Store(0)
	m.pagesDeleted.Store(0)
	m.replacerRejections.Store(0)
	m.noVictimFailures.Store(0)
	m.pageFetchLatency.Reset()

	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}
