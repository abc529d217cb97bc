package pipeline

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/dgallion1/docsum/internal/completion"
)

// Failure kinds. A *RunError matches exactly one of them with errors.Is.
var (
	ErrChunking    = errors.New("chunking failed")
	ErrCompletion  = errors.New("completion failed")
	ErrPersistence = errors.New("checkpoint persistence failed")
	ErrAggregation = errors.New("aggregation failed")
	ErrCancelled   = errors.New("cancelled")
)

// ErrCheckpointMismatch means a stored record does not fit the current
// chunking. It is logged and the task starts over; callers never see it.
var ErrCheckpointMismatch = errors.New("checkpoint does not match current chunking")

// RunError describes why Summarize stopped. Completed chunks remain in the
// checkpoint, so rerunning resumes at ChunkIndex.
type RunError struct {
	Kind   error
	TaskID string
	// ChunkIndex is the 0-based chunk being processed, or -1 when the
	// failure is not tied to a chunk.
	ChunkIndex  int
	TotalChunks int
	// Usage is the cumulative spend for the task, including resumed work.
	Usage completion.TokenUsage
	Err   error
}

func (e *RunError) Error() string {
	where := ""
	if e.ChunkIndex >= 0 {
		where = fmt.Sprintf(" at chunk %d/%d", e.ChunkIndex+1, e.TotalChunks)
	}
	return fmt.Sprintf("summarize %s: %v%s (%s tokens spent): %v",
		shortID(e.TaskID), e.Kind, where, humanize.Comma(e.Usage.TotalTokens), e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *RunError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	if id == "" {
		return "-"
	}
	return id
}
