package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docsum/internal/checkpoint"
	"github.com/dgallion1/docsum/internal/doctree"
)

// ErrQueueFull is returned by Submit when no queue slot is free.
var ErrQueueFull = errors.New("job queue is full")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("runner stopped")

// RunnerConfig sizes the worker pool.
type RunnerConfig struct {
	Workers   int
	QueueSize int
	JobTTL    time.Duration
}

// Runner executes summarization jobs on a fixed pool of workers. At most one
// job per TaskID is queued or running at a time.
type Runner struct {
	summarizer *Summarizer
	jobs       *JobStore
	queue      chan *Job
	log        *slog.Logger
	cfg        RunnerConfig

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewRunner(s *Summarizer, cfg RunnerConfig, log *slog.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		summarizer: s,
		jobs:       NewJobStore(cfg.JobTTL),
		queue:      make(chan *Job, cfg.QueueSize),
		log:        log,
		cfg:        cfg,
	}
}

// Start launches worker goroutines.
func (r *Runner) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for range r.cfg.Workers {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-r.queue:
					if !ok {
						return
					}
					r.process(workerCtx, job)
				}
			}
		}()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				r.jobs.Cleanup()
			}
		}
	}()
}

// Stop cancels in-flight jobs and waits for workers to exit. Interrupted
// tasks keep their checkpoints. Jobs still queued are marked cancelled.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	if r.cancel != nil {
		r.cancel()
	}
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	for job := range r.queue {
		job.Fail(&RunError{Kind: ErrCancelled, TaskID: job.TaskID, ChunkIndex: -1, Err: ErrStopped})
	}
}

// Submit queues doc for summarization. When a job for the same content is
// already queued or running, that job is returned with created=false.
func (r *Runner) Submit(doc doctree.Document, opts Options) (job *Job, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil, false, ErrStopped
	}

	job, created = r.jobs.PutIfIdle(NewJob(doc, checkpoint.TaskID(doc.Content), opts))
	if !created {
		return job, false, nil
	}

	select {
	case r.queue <- job:
		r.log.Info("job queued", "job_id", job.ID, "task_id", job.TaskID, "filename", job.Filename)
		return job, true, nil
	default:
		err := fmt.Errorf("%w (%d)", ErrQueueFull, r.cfg.QueueSize)
		job.Fail(err)
		return nil, false, err
	}
}

// GetJob returns a job by ID.
func (r *Runner) GetJob(id string) *Job {
	return r.jobs.Get(id)
}

// ActiveJob returns the queued or running job for taskID, or nil.
func (r *Runner) ActiveJob(taskID string) *Job {
	return r.jobs.Active(taskID)
}

// QueueDepth returns current queue depth.
func (r *Runner) QueueDepth() int {
	return len(r.queue)
}

// Summarizer returns the underlying summarizer.
func (r *Runner) Summarizer() *Summarizer {
	return r.summarizer
}

func (r *Runner) process(ctx context.Context, job *Job) {
	log := r.log.With("job_id", job.ID, "task_id", job.TaskID)
	job.SetStatus(StatusRunning)

	job.mu.Lock()
	doc, opts := job.doc, job.opts
	job.mu.Unlock()
	opts.Progress = job.SetProgress

	start := time.Now()
	result, err := r.summarizer.Summarize(ctx, doc, opts)
	if err != nil {
		job.Fail(err)
		log.Error("job failed", "status", job.Status(), "error", err, "elapsed", time.Since(start))
		return
	}
	job.Complete(result)
	log.Info("job completed",
		"chunks", result.TotalChunks,
		"resumed_from", result.ResumedFrom,
		"total_tokens", result.Usage.TotalTokens,
		"elapsed", time.Since(start))
}
