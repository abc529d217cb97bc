package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/dgallion1/docsum/internal/checkpoint"
	"github.com/dgallion1/docsum/internal/completion"
)

// ResumeStatus describes what a Summarize call on some content would pick up.
type ResumeStatus struct {
	TaskID    string                `json:"task_id"`
	Found     bool                  `json:"found"`
	Corrupt   bool                  `json:"corrupt,omitempty"`
	Filename  string                `json:"filename,omitempty"`
	Completed int                   `json:"completed"`
	Total     int                   `json:"total"`
	Usage     completion.TokenUsage `json:"usage"`
}

// Inspect looks up the checkpoint for content without modifying it.
func Inspect(ctx context.Context, store checkpoint.Store, content string) (ResumeStatus, error) {
	id, found, err := store.FindByContent(ctx, content)
	if err != nil {
		return ResumeStatus{}, err
	}
	st := ResumeStatus{TaskID: id}
	if !found {
		return st, nil
	}

	rec, err := store.Load(ctx, id)
	switch {
	case errors.Is(err, checkpoint.ErrCorrupt):
		st.Corrupt = true
		return st, nil
	case err != nil:
		return ResumeStatus{}, err
	case rec == nil:
		return st, nil
	}
	return StatusOf(rec), nil
}

// StatusOf summarizes a stored record.
func StatusOf(rec *checkpoint.Record) ResumeStatus {
	return ResumeStatus{
		TaskID:    rec.TaskID,
		Found:     true,
		Filename:  rec.Metadata.Filename,
		Completed: rec.Completed(),
		Total:     rec.TotalChunks,
		Usage:     rec.Usage,
	}
}

func (s ResumeStatus) String() string {
	switch {
	case s.Corrupt:
		return "checkpoint unreadable, next run starts fresh"
	case !s.Found:
		return "no checkpoint, next run starts fresh"
	case s.Completed >= s.Total:
		return fmt.Sprintf("all %d chunks summarized, %s tokens spent so far",
			s.Total, humanize.Comma(s.Usage.TotalTokens))
	default:
		return fmt.Sprintf("resuming from chunk %d/%d, %s tokens spent so far",
			s.Completed+1, s.Total, humanize.Comma(s.Usage.TotalTokens))
	}
}
