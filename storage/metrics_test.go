package storage

import (
	"bytes"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"
)

func TestMetricsCreation(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("Metrics should not be nil")
	}

	if m.GetCacheHits() != 0 {
		t.Errorf("Expected cache hits 0, got %d", m.GetCacheHits())
	}
	if m.GetCacheMisses() != 0 {
		t.Errorf("Expected cache misses 0, got %d", m.GetCacheMisses())
	}
}

func TestCacheMetrics(t *testing.T) {
	m := NewMetrics()

	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()

	if m.GetCacheHits() != 2 {
		t.Errorf("Expected 2 cache hits, got %d", m.GetCacheHits())
	}
	if m.GetCacheMisses() != 1 {
		t.Errorf("Expected 1 cache miss, got %d", m.GetCacheMisses())
	}

	hitRate := m.GetCacheHitRate()
	expected := 2.0 / 3.0
	if math.Abs(hitRate-expected) > 0.01 {
		t.Errorf("Expected hit rate %.2f, got %.2f", expected, hitRate)
	}
}

func TestEvictionMetrics(t *testing.T) {
	m := NewMetrics()

	m.RecordPageEviction()
	m.RecordPageEviction()
	m.RecordDirtyPageFlush()
	m.RecordPageDelete()
	m.RecordReplacerRejection()
	m.RecordNoVictim()
	m.RecordNoVictim()

	if m.GetPageEvictions() != 2 {
		t.Errorf("Expected 2 page evictions, got %d", m.GetPageEvictions())
	}
	if m.GetDirtyPageFlushes() != 1 {
		t.Errorf("Expected 1 dirty page flush, got %d", m.GetDirtyPageFlushes())
	}
	if m.GetPagesDeleted() != 1 {
		t.Errorf("Expected 1 page delete, got %d", m.GetPagesDeleted())
	}
	if m.GetReplacerRejections() != 1 {
		t.Errorf("Expected 1 replacer rejection, got %d", m.GetReplacerRejections())
	}
	if m.GetNoVictimFailures() != 2 {
		t.Errorf("Expected 2 no-victim failures, got %d", m.GetNoVictimFailures())
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()

	time.Sleep(10 * time.Millisecond)

	if uptime := m.GetUptime(); uptime < 10*time.Millisecond {
		t.Errorf("Expected uptime >= 10ms, got %v", uptime)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordPageEviction()
	m.RecordPageFetchLatency(5 * time.Microsecond)

	m.Reset()

	if m.GetCacheHits() != 0 || m.GetCacheMisses() != 0 || m.GetPageEvictions() != 0 {
		t.Error("Expected counters to be 0 after reset")
	}
	if m.GetPageFetchLatency().Count != 0 {
		t.Errorf("Expected no latency samples after reset, got %d", m.GetPageFetchLatency().Count)
	}
}

func TestMetricsLogging(t *testing.T) {
	m := NewMetrics()

	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordPageEviction()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	m.LogMetrics(logger)

	out := buf.String()
	for _, field := range []string{"buffer_pool.cache_hits=1", "buffer_pool.page_evictions=1", "replacer.rejections=0"} {
		if !strings.Contains(out, field) {
			t.Errorf("Expected log output to contain %q, got %s", field, out)
		}
	}
}

func TestHistogramSnapshot(t *testing.T) {
	h := NewHistogram(1000)

	for i := 1; i <= 100; i++ {
		h.Record(float64(i))
	}

	snapshot := h.Snapshot()
	if snapshot.Count != 100 {
		t.Errorf("Expected count 100, got %d", snapshot.Count)
	}
	if snapshot.Min != 1 || snapshot.Max != 100 {
		t.Errorf("Expected min 1 and max 100, got %.2f and %.2f", snapshot.Min, snapshot.Max)
	}
	if math.Abs(snapshot.Mean-50.5) > 0.01 {
		t.Errorf("Expected mean 50.5, got %.2f", snapshot.Mean)
	}

	tests := []struct {
		name     string
		got      float64
		expected float64
	}{
		{"p50", snapshot.P50, 50.5},
		{"p95", snapshot.P95, 95.05},
		{"p99", snapshot.P99, 99.01},
	}
	for _, tt := range tests {
		if math.Abs(tt.got-tt.expected) > 0.01 {
			t.Errorf("%s: expected %.2f, got %.2f", tt.name, tt.expected, tt.got)
		}
	}
}

func TestHistogramCapacity(t *testing.T) {
	h := NewHistogram(5)

	for i := 1; i <= 10; i++ {
		h.Record(float64(i))
	}

	if h.Count() != 5 {
		t.Errorf("Expected count 5 (at capacity), got %d", h.Count())
	}

	snapshot := h.Snapshot()
	if snapshot.Min != 6 {
		t.Errorf("Expected min 6 (oldest overwritten), got %.2f", snapshot.Min)
	}
	if snapshot.Max != 10 {
		t.Errorf("Expected max 10, got %.2f", snapshot.Max)
	}
}

func TestHistogramEmpty(t *testing.T) {
	h := NewHistogram(0)

	if h.Count() != 0 {
		t.Errorf("Expected count 0, got %d", h.Count())
	}
	if snapshot := h.Snapshot(); snapshot != (HistogramSnapshot{}) {
		t.Errorf("Expected zero snapshot for empty histogram, got %+v", snapshot)
	}
}

func TestDisabledMetricsRecordNothing(t *testing.T) {
	m := NewDisabledMetrics()
	if m.Enabled() {
		t.Fatal("Expected disabled metrics")
	}

	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordPageEviction()
	m.RecordDirtyPageFlush()
	m.RecordPageDelete()
	m.RecordReplacerRejection()
	m.RecordNoVictim()
	m.RecordPageFetchLatency(time.Millisecond)

	if m.GetCacheHits() != 0 || m.GetCacheMisses() != 0 || m.GetPageEvictions() != 0 ||
		m.GetDirtyPageFlushes() != 0 || m.GetPagesDeleted() != 0 ||
		m.GetReplacerRejections() != 0 || m.GetNoVictimFailures() != 0 {
		t.Error("Disabled metrics should not count anything")
	}
	if m.GetPageFetchLatency().Count != 0 {
		t.Errorf("Expected no latency samples, got %d", m.GetPageFetchLatency().Count)
	}
	if !NewMetrics().Enabled() {
		t.Error("Expected NewMetrics to be enabled")
	}
}
