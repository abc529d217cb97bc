package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Supported providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderEcho      = "echo"
)

// ErrUnknownProvider is returned by New for an unsupported provider name.
var ErrUnknownProvider = errors.New("completion: unknown provider")

// ProviderConfig selects and configures a provider client.
type ProviderConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// New builds the client named by cfg.Provider. Remote providers require an
// API key.
func New(ctx context.Context, cfg ProviderConfig) (Client, error) {
	if cfg.Provider != ProviderEcho && cfg.APIKey == "" {
		return nil, fmt.Errorf("completion: %s requires an API key", cfg.Provider)
	}

	var client Client
	switch cfg.Provider {
	case ProviderAnthropic:
		client = NewAnthropicClient(cfg.APIKey, cfg.Model, cfg.MaxTokens, cfg.Temperature)
	case ProviderOpenAI:
		client = NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.MaxTokens, cfg.Temperature)
	case ProviderGemini:
		gc, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.MaxTokens, cfg.Temperature)
		if err != nil {
			return nil, err
		}
		client = gc
	case ProviderEcho:
		client = NewEchoClient(cfg.Model)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}

	if cfg.Timeout > 0 {
		client = WithTimeout(client, cfg.Timeout)
	}
	return client, nil
}

// TimeoutClient bounds each call of the wrapped client.
type TimeoutClient struct {
	next    Client
	timeout time.Duration
}

// WithTimeout wraps next so each call runs under its own deadline.
func WithTimeout(next Client, timeout time.Duration) *TimeoutClient {
	return &TimeoutClient{next: next, timeout: timeout}
}

func (c *TimeoutClient) Complete(ctx context.Context, prompt string) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.next.Complete(ctx, prompt)
}

func (c *TimeoutClient) Provider() string { p, _ := Describe(c.next); return p }
func (c *TimeoutClient) Model() string    { _, m := Describe(c.next); return m }

// Describe reports the provider and model of c when it exposes them.
func Describe(c Client) (provider, model string) {
	if n, ok := c.(Named); ok {
		return n.Provider(), n.Model()
	}
	return "", ""
}

// Stack builds the standard client chain used by the binaries: provider,
// per-call timeout, retries, then stats.
func Stack(ctx context.Context, cfg ProviderConfig, policy RetryPolicy, stats *LLMStats, log *slog.Logger) (*StatsClient, error) {
	client, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return WithStats(WithRetry(client, policy, log), stats), nil
}
