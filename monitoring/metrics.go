package monitoring

import (
	"runtime"
	"sync"
	"time"
)

// Outcome classifies one assessment for counting.
type Outcome string

const (
	OutcomeOK           Outcome = "ok"
	OutcomeInvalidInput Outcome = "invalid_input"
	OutcomeError        Outcome = "error"
)

// PredictionMetrics counts assessments served by the process.
type PredictionMetrics struct {
	mu sync.RWMutex

	startTime    time.Time
	total        int64
	outcomes     map[Outcome]int64
	labels       map[string]int64
	cacheHits    int64
	cacheMisses  int64
	latencyTotal time.Duration
	latencyMax   time.Duration
	lastAt       time.Time
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	StartTime     time.Time          `json:"start_time"`
	Uptime        string             `json:"uptime"`
	Total         int64              `json:"total"`
	Outcomes      map[Outcome]int64  `json:"outcomes"`
	Labels        map[string]int64   `json:"labels"`
	CacheHits     int64              `json:"cache_hits"`
	CacheMisses   int64              `json:"cache_misses"`
	CacheHitRatio float64            `json:"cache_hit_ratio"`
	AvgLatencyMs  float64            `json:"avg_latency_ms"`
	MaxLatencyMs  float64            `json:"max_latency_ms"`
	LastAt        *time.Time         `json:"last_prediction_at,omitempty"`
	Runtime       map[string]float64 `json:"runtime"`
}

func NewPredictionMetrics() *PredictionMetrics {
	return &PredictionMetrics{
		startTime: time.Now(),
		outcomes:  make(map[Outcome]int64),
		labels:    make(map[string]int64),
	}
}

// RecordPrediction counts a successful assessment with its label.
func (m *PredictionMetrics) RecordPrediction(label string, cached bool, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(OutcomeOK, latency)
	m.labels[label]++
	if cached {
		m.cacheHits++
	} else {
		m.cacheMisses++
	}
}

// RecordFailure counts an assessment that returned an error.
func (m *PredictionMetrics) RecordFailure(outcome Outcome, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.record(outcome, latency)
}

func (m *PredictionMetrics) record(outcome Outcome, latency time.Duration) {
	m.total++
	m.outcomes[outcome]++
	m.latencyTotal += latency
	if latency > m.latencyMax {
		m.latencyMax = latency
	}
	m.lastAt = time.Now()
}

// Snapshot copies the counters together with a few runtime gauges.
func (m *PredictionMetrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{
		StartTime:   m.startTime,
		Uptime:      time.Since(m.startTime).Round(time.Second).String(),
		Total:       m.total,
		Outcomes:    make(map[Outcome]int64, len(m.outcomes)),
		Labels:      make(map[string]int64, len(m.labels)),
		CacheHits:   m.cacheHits,
		CacheMisses: m.cacheMisses,
	}
	for k, v := range m.outcomes {
		s.Outcomes[k] = v
	}
	for k, v := range m.labels {
		s.Labels[k] = v
	}
	if lookups := m.cacheHits + m.cacheMisses; lookups > 0 {
		s.CacheHitRatio = float64(m.cacheHits) / float64(lookups)
	}
	if m.total > 0 {
		s.AvgLatencyMs = float64(m.latencyTotal) / float64(m.total) / float64(time.Millisecond)
		last := m.lastAt
		s.LastAt = &last
	}
	s.MaxLatencyMs = float64(m.latencyMax) / float64(time.Millisecond)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	s.Runtime = map[string]float64{
		"goroutines":    float64(runtime.NumGoroutine()),
		"heap_alloc_mb": float64(mem.HeapAlloc) / 1024 / 1024,
		"num_gc":        float64(mem.NumGC),
	}
	return s
}
