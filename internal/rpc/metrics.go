package rpc

import (
	"sort"
	"sync"
	"time"
)

// Metrics collects per-operation request counts and latencies
type Metrics struct {
	mu        sync.Mutex
	startTime time.Time
	ops       map[string]*opStats
}

type opStats struct {
	count   int64
	errors  int64
	total   time.Duration
	maxTime time.Duration
}

// OperationMetrics summarizes one operation
type OperationMetrics struct {
	Operation    string  `json:"operation"`
	Count        int64   `json:"count"`
	Errors       int64   `json:"errors"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	MaxLatencyMs float64 `json:"max_latency_ms"`
}

// MetricsSnapshot is a point-in-time copy of the server metrics
type MetricsSnapshot struct {
	UptimeSeconds float64            `json:"uptime_seconds"`
	TotalRequests int64              `json:"total_requests"`
	TotalErrors   int64              `json:"total_errors"`
	ActiveConns   int                `json:"active_connections"`
	Operations    []OperationMetrics `json:"operations"`
}

// NewMetrics creates an empty collector
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now(), ops: make(map[string]*opStats)}
}

func (m *Metrics) stats(op string) *opStats {
	st, ok := m.ops[op]
	if !ok {
		st = &opStats{}
		m.ops[op] = st
	}
	return st
}

// RecordRequest records one request and its latency
func (m *Metrics) RecordRequest(op string, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stats(op)
	st.count++
	st.total += latency
	if latency > st.maxTime {
		st.maxTime = latency
	}
}

// RecordError records a failed request
func (m *Metrics) RecordError(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats(op).errors++
}

// Snapshot returns the current metrics, operations sorted by name
func (m *Metrics) Snapshot(activeConns int) MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		UptimeSeconds: time.Since(m.startTime).Seconds(),
		ActiveConns:   activeConns,
		Operations:    make([]OperationMetrics, 0, len(m.ops)),
	}
	for op, st := range m.ops {
		om := OperationMetrics{
			Operation:    op,
			Count:        st.count,
			Errors:       st.errors,
			MaxLatencyMs: float64(st.maxTime) / float64(time.Millisecond),
		}
		if st.count > 0 {
			om.AvgLatencyMs = float64(st.total) / float64(st.count) / float64(time.Millisecond)
		}
		snap.TotalRequests += st.count
		snap.TotalErrors += st.errors
		snap.Operations = append(snap.Operations, om)
	}
	sort.Slice(snap.Operations, func(i, j int) bool {
		return snap.Operations[i].Operation < snap.Operations[j].Operation
	})
	return snap
}
