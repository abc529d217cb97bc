package completion

import (
	"context"
	"strings"
)

// Excerpt markers delimit the source text inside a prompt. The prompt package
// writes them and EchoClient reads them.
const (
	ExcerptBegin = "--- BEGIN EXCERPT ---"
	ExcerptEnd   = "--- END EXCERPT ---"
)

const echoWords = 24

// EchoClient is an offline provider. It answers with the leading words of the
// prompt's excerpt, so identical prompts always yield identical responses.
type EchoClient struct {
	model string
}

// NewEchoClient creates an offline client.
func NewEchoClient(model string) *EchoClient {
	if model == "" {
		model = "echo"
	}
	return &EchoClient{model: model}
}

func (c *EchoClient) Provider() string { return ProviderEcho }
func (c *EchoClient) Model() string    { return c.model }

func (c *EchoClient) Complete(ctx context.Context, prompt string) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	words := strings.Fields(excerpt(prompt))
	if len(words) > echoWords {
		words = append(words[:echoWords], "...")
	}
	text, err := cleanText(strings.Join(words, " "))
	if err != nil {
		return Response{}, err
	}
	return Response{
		Text:  text,
		Usage: NewUsage(int64(len(strings.Fields(prompt))), int64(len(words)), 0),
	}, nil
}

func excerpt(prompt string) string {
	start := strings.Index(prompt, ExcerptBegin)
	if start < 0 {
		return prompt
	}
	body := prompt[start+len(ExcerptBegin):]
	if end := strings.LastIndex(body, ExcerptEnd); end >= 0 {
		body = body[:end]
	}
	return body
}
