package completion

import (
	"context"
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
	usage      TokenUsage
	failed     bool
}

// StatsSnapshot is a point-in-time aggregate of completion calls.
type StatsSnapshot struct {
	Provider string     `json:"provider,omitempty"`
	Model    string     `json:"model,omitempty"`
	Count    int        `json:"count"`
	Failures int        `json:"failures"`
	MinMs    int64      `json:"min_ms"`
	MaxMs    int64      `json:"max_ms"`
	AvgMs    float64    `json:"avg_ms"`
	P50Ms    float64    `json:"p50_ms"`
	P95Ms    float64    `json:"p95_ms"`
	P99Ms    float64    `json:"p99_ms"`
	Usage    TokenUsage `json:"usage"`
}

// LLMStats tracks recent completion latencies and token spend within a
// rolling window.
type LLMStats struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
}

func NewLLMStats(maxAge time.Duration) *LLMStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &LLMStats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

// Record adds a successful call.
func (s *LLMStats) Record(durationMs int64, usage TokenUsage) {
	s.add(sample{durationMs: durationMs, usage: usage})
}

// RecordFailure adds a failed call. Failures count toward latency but carry
// no usage.
func (s *LLMStats) RecordFailure(durationMs int64) {
	s.add(sample{durationMs: durationMs, failed: true})
}

func (s *LLMStats) add(sm sample) {
	if sm.durationMs < 0 {
		sm.durationMs = 0
	}
	now := time.Now()
	sm.timestamp = now

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sm)
}

func (s *LLMStats) Snapshot() StatsSnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	if len(s.samples) == 0 {
		return StatsSnapshot{}
	}

	values := make([]int64, 0, len(s.samples))
	var sum int64
	var snap StatsSnapshot
	for _, sm := range s.samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
		snap.Usage = snap.Usage.Add(sm.usage)
		if sm.failed {
			snap.Failures++
		}
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	snap.Count = len(values)
	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (s *LLMStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	writeIdx := 0
	for _, sm := range s.samples {
		if !sm.timestamp.Before(cutoff) {
			s.samples[writeIdx] = sm
			writeIdx++
		}
	}
	s.samples = s.samples[:writeIdx]
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}

// StatsClient records every call made through it.
type StatsClient struct {
	next  Client
	stats *LLMStats
}

// WithStats wraps next so each call lands in stats.
func WithStats(next Client, stats *LLMStats) *StatsClient {
	return &StatsClient{next: next, stats: stats}
}

func (c *StatsClient) Complete(ctx context.Context, prompt string) (Response, error) {
	start := time.Now()
	resp, err := c.next.Complete(ctx, prompt)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		c.stats.RecordFailure(elapsed)
		return resp, err
	}
	c.stats.Record(elapsed, resp.Usage)
	return resp, nil
}

// Stats returns the underlying collector.
func (c *StatsClient) Stats() *LLMStats { return c.stats }

// Snapshot returns the current aggregate labelled with provider and model.
func (c *StatsClient) Snapshot() StatsSnapshot {
	snap := c.stats.Snapshot()
	snap.Provider, snap.Model = Describe(c.next)
	return snap
}

func (c *StatsClient) Provider() string { p, _ := Describe(c.next); return p }
func (c *StatsClient) Model() string    { _, m := Describe(c.next); return m }
