// Package pipeline runs resumable document summarization: chunk, summarize
// each chunk in order with a checkpoint after every chunk, then aggregate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgallion1/docsum/internal/checkpoint"
	"github.com/dgallion1/docsum/internal/chunker"
	"github.com/dgallion1/docsum/internal/completion"
	"github.com/dgallion1/docsum/internal/doctree"
	"github.com/dgallion1/docsum/internal/prompt"
)

// Separator joins chunk summaries into the final summary.
const Separator = "\n\n"

// Options tune a single Summarize call.
type Options struct {
	// Chunking defaults to chunker.DefaultConfig when ChunkSize is zero.
	Chunking   chunker.Config
	Directives string
	// Reduce merges the chunk summaries with one extra completion when the
	// document has more than one chunk.
	Reduce bool
	// Progress is called after each chunk is checkpointed.
	Progress func(Progress)
}

// Progress reports how far a task has come.
type Progress struct {
	TaskID      string                `json:"task_id"`
	Completed   int                   `json:"completed"`
	Total       int                   `json:"total"`
	ResumedFrom int                   `json:"resumed_from"`
	Usage       completion.TokenUsage `json:"usage"`
}

// Result is the outcome of a finished task.
type Result struct {
	TaskID      string                `json:"task_id,omitempty"`
	Summary     string                `json:"summary"`
	TotalChunks int                   `json:"total_chunks"`
	Usage       completion.TokenUsage `json:"usage"`
	// ResumedFrom is the number of chunks recovered from a checkpoint.
	ResumedFrom    int `json:"resumed_from"`
	OriginalLength int `json:"original_length"`
	SummaryLength  int `json:"summary_length"`
}

// Summarizer drives one document at a time through chunking, per-chunk
// completion and aggregation. It is safe for concurrent use on different
// documents.
type Summarizer struct {
	client completion.Client
	store  checkpoint.Store
	log    *slog.Logger
}

func NewSummarizer(client completion.Client, store checkpoint.Store, log *slog.Logger) *Summarizer {
	if log == nil {
		log = slog.Default()
	}
	return &Summarizer{client: client, store: store, log: log}
}

// Store returns the checkpoint store.
func (s *Summarizer) Store() checkpoint.Store { return s.store }

// Summarize produces a summary of doc, resuming from a checkpoint when one
// matches its content. On failure the checkpoint keeps every chunk completed
// so far and the returned *RunError says where processing stopped.
func (s *Summarizer) Summarize(ctx context.Context, doc doctree.Document, opts Options) (*Result, error) {
	cfg := opts.Chunking
	if cfg.ChunkSize == 0 {
		cfg = chunker.DefaultConfig()
	}

	chunks, err := chunker.Split(doc.Content, cfg)
	if err != nil {
		return nil, &RunError{Kind: ErrChunking, ChunkIndex: -1, Err: err}
	}
	if len(chunks) == 0 {
		return &Result{Summary: doc.Content}, nil
	}
	total := len(chunks)

	taskID := checkpoint.TaskID(doc.Content)
	log := s.log.With("task_id", taskID, "filename", doc.Filename)

	rec, err := s.begin(ctx, doc, taskID, total, cfg, log)
	if err != nil {
		kind := ErrPersistence
		if ctx.Err() != nil {
			kind = ErrCancelled
		}
		return nil, &RunError{Kind: kind, TaskID: taskID, ChunkIndex: -1, TotalChunks: total, Err: err}
	}
	resumedFrom := rec.Completed()

	fail := func(kind error, index int, err error) error {
		if kind != ErrCancelled && ctx.Err() != nil {
			kind = ErrCancelled
		}
		log.Warn("summarization stopped",
			"kind", kind.Error(),
			"chunk", index,
			"total_chunks", total,
			"tokens", rec.Usage.TotalTokens,
			"error", err)
		return &RunError{
			Kind:        kind,
			TaskID:      taskID,
			ChunkIndex:  index,
			TotalChunks: total,
			Usage:       rec.Usage,
			Err:         err,
		}
	}

	// Saves run detached from ctx so a chunk that was already paid for is
	// persisted even when cancellation arrives mid-call.
	saveCtx := context.WithoutCancel(ctx)

	for i := resumedFrom; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fail(ErrCancelled, i, err)
		}

		p := prompt.BuildChunkPrompt(prompt.ChunkInput{
			Filename:   doc.Filename,
			Index:      i,
			Total:      total,
			Text:       chunks[i].Text,
			Directives: opts.Directives,
		})
		resp, err := s.client.Complete(ctx, p)
		if err != nil {
			return nil, fail(ErrCompletion, i, err)
		}

		rec.Append(resp.Text, resp.Usage)
		if err := s.store.Save(saveCtx, rec); err != nil {
			return nil, fail(ErrPersistence, i, err)
		}

		log.Info("chunk summarized",
			"chunk", i+1,
			"total_chunks", total,
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
			"total_tokens", rec.Usage.TotalTokens)

		if opts.Progress != nil {
			opts.Progress(Progress{
				TaskID:      taskID,
				Completed:   rec.Completed(),
				Total:       total,
				ResumedFrom: resumedFrom,
				Usage:       rec.Usage,
			})
		}
	}

	summary, usage, err := s.aggregate(ctx, doc, rec, opts)
	if err != nil {
		return nil, fail(ErrAggregation, -1, err)
	}

	if err := s.store.Delete(saveCtx, taskID); err != nil {
		log.Warn("checkpoint cleanup failed", "error", err)
	}

	log.Info("summarization complete",
		"chunks", total,
		"resumed_from", resumedFrom,
		"total_tokens", usage.TotalTokens)

	return &Result{
		TaskID:         taskID,
		Summary:        summary,
		TotalChunks:    total,
		Usage:          usage,
		ResumedFrom:    resumedFrom,
		OriginalLength: doc.Len(),
		SummaryLength:  len([]rune(summary)),
	}, nil
}

// begin returns the record to continue from: the stored one when it fits
// the current chunking, otherwise a fresh one.
func (s *Summarizer) begin(ctx context.Context, doc doctree.Document, taskID string, total int, cfg chunker.Config, log *slog.Logger) (*checkpoint.Record, error) {
	fresh := checkpoint.NewRecord(taskID, total, checkpoint.Metadata{
		Filename:       doc.Filename,
		OriginalLength: doc.Len(),
		ChunkSize:      cfg.ChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
	})

	_, found, err := s.store.FindByContent(ctx, doc.Content)
	if err != nil {
		return nil, err
	}
	if !found {
		log.Info("no checkpoint, starting fresh", "total_chunks", total)
		return fresh, nil
	}

	rec, err := s.store.Load(ctx, taskID)
	switch {
	case errors.Is(err, checkpoint.ErrCorrupt):
		log.Warn("checkpoint unreadable, starting fresh", "error", err)
		s.discard(ctx, taskID, log)
		return fresh, nil
	case err != nil:
		return nil, err
	case rec == nil:
		return fresh, nil
	}

	if err := compatible(rec, total, cfg); err != nil {
		log.Warn("discarding stale checkpoint", "error", err)
		s.discard(ctx, taskID, log)
		return fresh, nil
	}

	log.Info("resuming from checkpoint",
		"completed", rec.Completed(),
		"total_chunks", total,
		"tokens_spent", rec.Usage.TotalTokens)
	if rec.Metadata.Filename == "" {
		rec.Metadata.Filename = doc.Filename
	}
	return rec, nil
}

func compatible(rec *checkpoint.Record, total int, cfg chunker.Config) error {
	if rec.TotalChunks != total {
		return fmt.Errorf("%w: stored %d chunks, current %d", ErrCheckpointMismatch, rec.TotalChunks, total)
	}
	m := rec.Metadata
	if m.ChunkSize != 0 && (m.ChunkSize != cfg.ChunkSize || m.ChunkOverlap != cfg.ChunkOverlap) {
		return fmt.Errorf("%w: stored chunking %d/%d, current %d/%d",
			ErrCheckpointMismatch, m.ChunkSize, m.ChunkOverlap, cfg.ChunkSize, cfg.ChunkOverlap)
	}
	return nil
}

func (s *Summarizer) discard(ctx context.Context, taskID string, log *slog.Logger) {
	if err := s.store.Delete(ctx, taskID); err != nil {
		log.Warn("could not remove stale checkpoint", "error", err)
	}
}

// aggregate joins the chunk summaries in order and optionally reduces them
// with one more completion.
func (s *Summarizer) aggregate(ctx context.Context, doc doctree.Document, rec *checkpoint.Record, opts Options) (string, completion.TokenUsage, error) {
	parts := make([]string, len(rec.Summaries))
	for i, cs := range rec.Summaries {
		parts[i] = cs.Text
	}
	joined := strings.Join(parts, Separator)
	if !opts.Reduce || len(parts) < 2 {
		return joined, rec.Usage, nil
	}

	if err := ctx.Err(); err != nil {
		return "", rec.Usage, err
	}
	resp, err := s.client.Complete(ctx, prompt.BuildReducePrompt(doc.Filename, parts, opts.Directives))
	if err != nil {
		return "", rec.Usage, err
	}
	return resp.Text, rec.Usage.Add(resp.Usage), nil
}
