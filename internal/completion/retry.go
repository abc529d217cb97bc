package completion

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net"
	"time"
)

// RetryPolicy bounds retries of transient completion failures.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy retries three times starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	base := p.BaseDelay << uint(attempt)
	if base > p.MaxDelay || base <= 0 {
		base = p.MaxDelay
	}
	if base < 2 {
		return base
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// RetryClient retries transient failures of the wrapped client.
type RetryClient struct {
	next   Client
	policy RetryPolicy
	log    *slog.Logger
}

// WithRetry wraps next with policy. Cancellation of ctx is never retried.
func WithRetry(next Client, policy RetryPolicy, log *slog.Logger) *RetryClient {
	if log == nil {
		log = slog.Default()
	}
	return &RetryClient{next: next, policy: policy, log: log}
}

func (c *RetryClient) Complete(ctx context.Context, prompt string) (Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.next.Complete(ctx, prompt)
		if err == nil {
			return resp, nil
		}
		if attempt >= c.policy.MaxRetries || !shouldRetry(ctx, err) {
			return resp, err
		}

		delay := c.policy.Backoff(attempt)
		c.log.Warn("completion failed, retrying",
			"attempt", attempt+1,
			"max_retries", c.policy.MaxRetries,
			"backoff", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Response{}, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *RetryClient) Provider() string { p, _ := Describe(c.next); return p }
func (c *RetryClient) Model() string    { _, m := Describe(c.next); return m }

func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	if IsRetryable(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
