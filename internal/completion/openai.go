package completion

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient calls an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIClient creates a client. An empty baseURL uses the public API.
func NewOpenAIClient(apiKey, baseURL, model string, maxTokens int, temperature float64) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
	}
}

func (c *OpenAIClient) Provider() string { return ProviderOpenAI }
func (c *OpenAIClient) Model() string    { return c.model }

// Complete sends the prompt as a single user message.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (Response, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return Response{}, classify(ProviderOpenAI, apiErr.HTTPStatusCode, err)
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return Response{}, classify(ProviderOpenAI, reqErr.HTTPStatusCode, err)
		}
		return Response{}, fmt.Errorf("openai: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("openai: %w", ErrEmptyResponse)
	}
	text, err := cleanText(resp.Choices[0].Message.Content)
	if err != nil {
		return Response{}, fmt.Errorf("openai: %w", err)
	}

	return Response{
		Text: text,
		Usage: NewUsage(
			int64(resp.Usage.PromptTokens),
			int64(resp.Usage.CompletionTokens),
			int64(resp.Usage.TotalTokens),
		),
	}, nil
}
