package completion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type scriptedClient struct {
	errs  []error
	calls int
}

func (s *scriptedClient) Complete(ctx context.Context, prompt string) (Response, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return Response{}, s.errs[i]
	}
	return Response{Text: "ok", Usage: NewUsage(1, 1, 0)}, nil
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWithRetry_RecoversFromTransientErrors(t *testing.T) {
	transient := &RetryableError{StatusCode: 503, Message: "unavailable"}
	inner := &scriptedClient{errs: []error{transient, transient}}
	resp, err := WithRetry(inner, fastPolicy(), quietLogger()).Complete(context.Background(), "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "ok" {
		t.Errorf("expected ok, got %q", resp.Text)
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls, got %d", inner.calls)
	}
}

func TestWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	transient := &RetryableError{StatusCode: 429, Message: "slow down"}
	inner := &scriptedClient{errs: []error{transient, transient, transient, transient, transient}}
	_, err := WithRetry(inner, fastPolicy(), quietLogger()).Complete(context.Background(), "p")
	if !IsRetryable(err) {
		t.Fatalf("expected last retryable error, got %v", err)
	}
	if inner.calls != 4 {
		t.Errorf("expected 4 calls, got %d", inner.calls)
	}
}

func TestWithRetry_PermanentErrorNotRetried(t *testing.T) {
	permanent := errors.New("bad request")
	inner := &scriptedClient{errs: []error{permanent}}
	_, err := WithRetry(inner, fastPolicy(), quietLogger()).Complete(context.Background(), "p")
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call, got %d", inner.calls)
	}
}

func TestWithRetry_CancellationNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inner := &scriptedClient{errs: []error{&RetryableError{StatusCode: 500}}}
	_, err := WithRetry(inner, fastPolicy(), quietLogger()).Complete(ctx, "p")
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 call, got %d", inner.calls)
	}
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: 30 * time.Second}
	for attempt := 0; attempt < 8; attempt++ {
		d := p.Backoff(attempt)
		base := time.Second << uint(attempt)
		if base > p.MaxDelay {
			base = p.MaxDelay
		}
		if d < base || d >= base+base/2 {
			t.Errorf("attempt %d: backoff %v outside [%v, %v)", attempt, d, base, base+base/2)
		}
	}
}
