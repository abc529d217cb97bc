package pipeline

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docsum/internal/completion"
	"github.com/dgallion1/docsum/internal/doctree"
)

// JobStatus represents the state of a summarization job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the job will not change again.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// JobError is the JSON form of a failed run.
type JobError struct {
	Kind       string                `json:"kind"`
	Message    string                `json:"message"`
	ChunkIndex int                   `json:"chunk_index"`
	Usage      completion.TokenUsage `json:"usage"`
}

// Job tracks one asynchronous Summarize call.
type Job struct {
	mu sync.Mutex

	ID       string
	TaskID   string
	Filename string

	status    JobStatus
	progress  Progress
	result    *Result
	err       *JobError
	createdAt time.Time
	updatedAt time.Time

	// Released once the job finishes.
	doc  doctree.Document
	opts Options
}

// NewJob creates a queued job for doc.
func NewJob(doc doctree.Document, taskID string, opts Options) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Filename:  doc.Filename,
		status:    StatusQueued,
		progress:  Progress{TaskID: taskID},
		createdAt: now,
		updatedAt: now,
		doc:       doc,
		opts:      opts,
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
	j.updatedAt = time.Now()
}

// Status returns the current status.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// SetProgress records the latest progress report.
func (j *Job) SetProgress(p Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.progress = p
	j.updatedAt = time.Now()
}

// Complete stores the result and marks the job completed.
func (j *Job) Complete(r *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = r
	j.status = StatusCompleted
	j.progress.Completed = r.TotalChunks
	j.progress.Total = r.TotalChunks
	j.progress.ResumedFrom = r.ResumedFrom
	j.progress.Usage = r.Usage
	j.release()
}

// Fail records err and marks the job failed or cancelled.
func (j *Job) Fail(err error) {
	je := &JobError{Message: err.Error(), ChunkIndex: -1}
	status := StatusFailed
	var runErr *RunError
	if errors.As(err, &runErr) {
		je.Kind = runErr.Kind.Error()
		je.ChunkIndex = runErr.ChunkIndex
		je.Usage = runErr.Usage
	}
	if errors.Is(err, ErrCancelled) {
		status = StatusCancelled
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.err = je
	j.status = status
	j.release()
}

func (j *Job) release() {
	j.doc = doctree.Document{}
	j.opts.Progress = nil
	j.updatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	TaskID    string    `json:"task_id"`
	Filename  string    `json:"filename"`
	Status    JobStatus `json:"status"`
	Progress  Progress  `json:"progress"`
	Result    *Result   `json:"result,omitempty"`
	Error     *JobError `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	snap := JobSnapshot{
		ID:        j.ID,
		TaskID:    j.TaskID,
		Filename:  j.Filename,
		Status:    j.status,
		Progress:  j.progress,
		CreatedAt: j.createdAt,
		UpdatedAt: j.updatedAt,
	}
	if j.result != nil {
		r := *j.result
		snap.Result = &r
	}
	if j.err != nil {
		e := *j.err
		snap.Error = &e
	}
	return snap
}

func (j *Job) lastUpdate() (JobStatus, time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status, j.updatedAt
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu     sync.Mutex
	jobs   map[string]*Job
	active map[string]*Job
	ttl    time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs:   make(map[string]*Job),
		active: make(map[string]*Job),
		ttl:    ttl,
	}
}

// PutIfIdle registers job unless another job for the same task has not
// finished yet, in which case that job is returned instead.
func (s *JobStore) PutIfIdle(job *Job) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.active[job.TaskID]; ok && !existing.Status().Terminal() {
		return existing, false
	}
	s.jobs[job.ID] = job
	s.active[job.TaskID] = job
	return job, true
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Active returns the unfinished job for taskID, or nil.
func (s *JobStore) Active(taskID string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.active[taskID]
	if !ok || job.Status().Terminal() {
		return nil
	}
	return job
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes finished jobs not updated within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		status, updated := job.lastUpdate()
		if status.Terminal() && now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
			if s.active[job.TaskID] == job {
				delete(s.active, job.TaskID)
			}
		}
	}
}
