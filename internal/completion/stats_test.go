package completion

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLLMStatsSnapshotPercentiles(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	for _, ms := range []int64{100, 200, 300, 400, 500} {
		stats.Record(ms, NewUsage(10, 5, 0))
	}

	snap := stats.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
	if snap.Usage.TotalTokens != 75 {
		t.Fatalf("expected 75 total tokens, got %d", snap.Usage.TotalTokens)
	}
}

func TestLLMStatsPrunesExpiredSamples(t *testing.T) {
	stats := NewLLMStats(10 * time.Millisecond)
	stats.Record(100, TokenUsage{})
	time.Sleep(25 * time.Millisecond)

	if snap := stats.Snapshot(); snap.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Count)
	}

	stats.Record(200, TokenUsage{})
	snap := stats.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("expected count=1 for fresh sample, got %d", snap.Count)
	}
	if snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected min=max=200, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
}

func TestLLMStatsRecordClampsNegativeDuration(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	stats.RecordFailure(-10)
	snap := stats.Snapshot()
	if snap.Count != 1 || snap.Failures != 1 {
		t.Fatalf("expected one failure, got count=%d failures=%d", snap.Count, snap.Failures)
	}
	if snap.MinMs != 0 || snap.MaxMs != 0 {
		t.Fatalf("expected clamped duration=0, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
}

func TestWithStats_RecordsCalls(t *testing.T) {
	inner := &scriptedClient{errs: []error{errors.New("boom")}}
	c := WithStats(WithRetry(NewEchoClient("m"), fastPolicy(), quietLogger()), NewLLMStats(time.Hour))
	if _, err := c.Complete(context.Background(), "one two three"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := c.Snapshot()
	if snap.Count != 1 || snap.Provider != ProviderEcho || snap.Model != "m" {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	failing := WithStats(inner, NewLLMStats(time.Hour))
	if _, err := failing.Complete(context.Background(), "p"); err == nil {
		t.Fatal("expected error")
	}
	if snap := failing.Snapshot(); snap.Failures != 1 || snap.Provider != "" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}
