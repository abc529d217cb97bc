// Package checkpoint persists per-document summarization progress so an
// interrupted run can resume from the first unfinished chunk.
package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/docsum/internal/completion"
)

// RecordVersion is written into every saved record.
const RecordVersion = 1

var (
	// ErrCorrupt marks a stored record that cannot be decoded or fails
	// validation. Callers treat it as "no checkpoint".
	ErrCorrupt = errors.New("checkpoint corrupt")

	// ErrInvalidTaskID is returned for keys that are not a content hash.
	ErrInvalidTaskID = errors.New("invalid task id")
)

// TaskID derives the identifier for content: lowercase hex SHA-256 of its
// UTF-8 bytes. The filename does not participate.
func TaskID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ValidTaskID reports whether id has the shape produced by TaskID.
func ValidTaskID(id string) bool {
	if len(id) != sha256.Size*2 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func checkTaskID(id string) error {
	if !ValidTaskID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidTaskID, id)
	}
	return nil
}

// ChunkSummary is the summary of one chunk plus the tokens it cost.
type ChunkSummary struct {
	Index int                   `json:"index"`
	Text  string                `json:"text"`
	Usage completion.TokenUsage `json:"usage"`
}

// Metadata describes the document and the chunking that produced the record.
type Metadata struct {
	Filename       string `json:"filename"`
	OriginalLength int    `json:"original_length"`
	SummaryLength  int    `json:"summary_length"`
	ChunkSize      int    `json:"chunk_size"`
	ChunkOverlap   int    `json:"chunk_overlap"`
}

// Record is the persisted progress of one task. Summaries always hold a
// strict prefix: Summaries[i] is the summary of chunk i.
type Record struct {
	Version     int                   `json:"version"`
	TaskID      string                `json:"task_id"`
	Summaries   []ChunkSummary        `json:"summaries"`
	Usage       completion.TokenUsage `json:"usage"`
	TotalChunks int                   `json:"total_chunks"`
	Metadata    Metadata              `json:"metadata"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// NewRecord starts an empty record for a task.
func NewRecord(taskID string, totalChunks int, meta Metadata) *Record {
	now := time.Now().UTC()
	return &Record{
		Version:     RecordVersion,
		TaskID:      taskID,
		Summaries:   []ChunkSummary{},
		TotalChunks: totalChunks,
		Metadata:    meta,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Completed is the number of finished chunks.
func (r *Record) Completed() int { return len(r.Summaries) }

// Done reports whether every chunk has a summary.
func (r *Record) Done() bool { return len(r.Summaries) >= r.TotalChunks }

// Append records the summary for the next chunk and accumulates its usage.
func (r *Record) Append(text string, usage completion.TokenUsage) {
	r.Summaries = append(r.Summaries, ChunkSummary{
		Index: len(r.Summaries),
		Text:  text,
		Usage: usage,
	})
	r.Usage = r.Usage.Add(usage)
	r.Metadata.SummaryLength += len([]rune(text))
	r.UpdatedAt = time.Now().UTC()
}

// Validate checks the structural rules every stored record must satisfy.
func (r *Record) Validate() error {
	if err := checkTaskID(r.TaskID); err != nil {
		return err
	}
	if r.TotalChunks <= 0 {
		return fmt.Errorf("total_chunks must be positive, got %d", r.TotalChunks)
	}
	if len(r.Summaries) > r.TotalChunks {
		return fmt.Errorf("%d summaries exceed %d chunks", len(r.Summaries), r.TotalChunks)
	}
	for i, s := range r.Summaries {
		if s.Index != i {
			return fmt.Errorf("summary %d has index %d", i, s.Index)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	c.Summaries = append([]ChunkSummary(nil), r.Summaries...)
	return &c
}

func encode(r *Record) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("checkpoint: refusing to save invalid record: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("checkpoint: marshal: %w", err)
	}
	return data, nil
}

// decode parses and validates a stored record. Any failure is reported as
// ErrCorrupt.
func decode(taskID string, data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w: %w", taskID, ErrCorrupt, err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w: %w", taskID, ErrCorrupt, err)
	}
	if r.TaskID != taskID {
		return nil, fmt.Errorf("checkpoint %s: %w: stored task id %s", taskID, ErrCorrupt, r.TaskID)
	}
	if r.Summaries == nil {
		r.Summaries = []ChunkSummary{}
	}
	return &r, nil
}
