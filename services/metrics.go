package services

import (
	"math"
	"sync"
	"time"
)

// MetricsSnapshot is the public view of the query counters.
type MetricsSnapshot struct {
	TotalQueries int     `json:"total_queries"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// Metrics counts answered queries and their latency for /metrics.
type Metrics struct {
	mu             sync.Mutex
	totalQueries   int
	totalLatencyMs float64
}

func NewMetrics() *Metrics { return &Metrics{} }

func (m *Metrics) RecordQuery(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalQueries++
	m.totalLatencyMs += float64(latency) / float64(time.Millisecond)
}

// Snapshot returns the counters with the average rounded to two decimals.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.totalQueries == 0 {
		return MetricsSnapshot{}
	}
	avg := m.totalLatencyMs / float64(m.totalQueries)
	return MetricsSnapshot{
		TotalQueries: m.totalQueries,
		AvgLatencyMs: math.Round(avg*100) / 100,
	}
}
