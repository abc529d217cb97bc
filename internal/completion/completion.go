// Package completion defines the contract for remote text generation and the
// provider clients that satisfy it.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TokenUsage counts tokens spent on one or more completion calls.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Add returns the component-wise sum of u and o.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// IsZero reports whether no tokens were recorded.
func (u TokenUsage) IsZero() bool {
	return u == TokenUsage{}
}

// NewUsage builds a TokenUsage, deriving the total when the provider omits it.
func NewUsage(prompt, completion, total int64) TokenUsage {
	if total == 0 {
		total = prompt + completion
	}
	return TokenUsage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: total}
}

// Response is the generated text for one prompt.
type Response struct {
	Text  string
	Usage TokenUsage
}

// Client turns a prompt into generated text. Calls are synchronous and must
// honor ctx cancellation.
type Client interface {
	Complete(ctx context.Context, prompt string) (Response, error)
}

// Named is implemented by clients that can report their provider and model.
type Named interface {
	Provider() string
	Model() string
}

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("completion: empty response")

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RetryableError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("retryable error: %s", truncate(e.Message, 200))
	}
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// retryableStatus reports whether an HTTP status is transient.
func retryableStatus(code int) bool {
	return code == 429 || code == 408 || code >= 500
}

// classify wraps a provider error as retryable when its status is transient.
func classify(provider string, status int, err error) error {
	if retryableStatus(status) {
		return &RetryableError{StatusCode: status, Message: err.Error(), Err: err}
	}
	return fmt.Errorf("%s: %w", provider, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// cleanText trims the response and rejects empty output.
func cleanText(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyResponse
	}
	return s, nil
}
