// Package prompt builds the completion prompts for chunk summaries and the
// optional final reduction.
package prompt

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docsum/internal/completion"
)

const ChunkInstructions = `Summarize the following excerpt of a longer document.

Rules:
- Keep every concrete fact, name, number and date that matters
- Drop repetition, boilerplate and filler
- Write plain prose, no headings or bullet lists unless the excerpt is a list
- Do not refer to "the excerpt" or "this part"; state the content directly
- The excerpt may start or end mid-sentence; summarize what is there

Respond with ONLY the summary.`

const ReduceInstructions = `The following are summaries of consecutive parts of one document, in order.
Merge them into a single coherent summary of the whole document.

Rules:
- Preserve the order of topics as they appear
- Remove overlap between neighbouring parts
- Keep every concrete fact, name, number and date that matters

Respond with ONLY the merged summary.`

// ChunkInput describes one chunk to summarize.
type ChunkInput struct {
	Filename   string
	Index      int
	Total      int
	Text       string
	Directives string
}

// BuildChunkPrompt creates the prompt for summarizing one chunk, including the
// document name and its position in the document.
func BuildChunkPrompt(in ChunkInput) string {
	var sb strings.Builder
	sb.WriteString(ChunkInstructions)
	writeDirectives(&sb, in.Directives)
	sb.WriteString("\n\n---\n")
	if in.Filename != "" {
		sb.WriteString(fmt.Sprintf("Document: %q\n", in.Filename))
	}
	sb.WriteString(fmt.Sprintf("Part %d of %d\n", in.Index+1, in.Total))
	sb.WriteString("---\n")
	writeExcerpt(&sb, in.Text)
	return sb.String()
}

// BuildReducePrompt creates the prompt that merges chunk summaries.
func BuildReducePrompt(filename string, partials []string, directives string) string {
	var sb strings.Builder
	sb.WriteString(ReduceInstructions)
	writeDirectives(&sb, directives)
	sb.WriteString("\n\n---\n")
	if filename != "" {
		sb.WriteString(fmt.Sprintf("Document: %q\n", filename))
	}
	sb.WriteString(fmt.Sprintf("Parts: %d\n", len(partials)))
	sb.WriteString("---\n")
	writeExcerpt(&sb, strings.Join(partials, "\n\n"))
	return sb.String()
}

func writeDirectives(sb *strings.Builder, directives string) {
	directives = strings.TrimSpace(directives)
	if directives == "" {
		return
	}
	sb.WriteString("\n\nAdditional instructions:\n")
	sb.WriteString(directives)
}

func writeExcerpt(sb *strings.Builder, text string) {
	sb.WriteString(completion.ExcerptBegin)
	sb.WriteString("\n")
	sb.WriteString(text)
	sb.WriteString("\n")
	sb.WriteString(completion.ExcerptEnd)
	sb.WriteString("\n")
}
