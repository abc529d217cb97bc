package chunker

import "strings"

// EstimateTokens gives a rough token count from the word count.
// Exact tokenization is provider specific; this is only used for progress
// reporting and metadata.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	// Roughly 1.33 tokens per English word.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// EstimateTotalTokens sums EstimateTokens over all chunks.
func EstimateTotalTokens(chunks []Chunk) int {
	total := 0
	for _, c := range chunks {
		total += EstimateTokens(c.Text)
	}
	return total
}
