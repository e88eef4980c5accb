package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "github.com/lecturehub/backend/internal/errors"
	"github.com/lecturehub/backend/internal/logger"
)

const (
	// Default configuration values
	DefaultWorkerCount = 3
	DefaultJobTimeout  = 5 * time.Minute
)

// Handler executes one run of a job. A nil return means success. Errors are
// classified by the pool: retryable ones consume retry budget, everything
// else fails the job immediately. Handlers must reload current lecture state
// rather than caching it, so a re-run converges from any partial state.
type Handler func(ctx context.Context, job *Job) error

type registration struct {
	handler Handler
	policy  RetryPolicy
}

// WorkerPool manages a pool of workers that process pipeline jobs.
type WorkerPool struct {
	queue       Queue
	workerCount int
	jobTimeout  time.Duration
	handlers    map[Type]registration
	log         *logger.Logger

	wg       sync.WaitGroup
	stopChan chan struct{}
	mu       sync.RWMutex
	running  bool
}

// WorkerPoolConfig holds configuration for the worker pool
type WorkerPoolConfig struct {
	WorkerCount int
	JobTimeout  time.Duration
}

// NewWorkerPool creates a new worker pool pulling from queue.
func NewWorkerPool(queue Queue, config *WorkerPoolConfig) *WorkerPool {
	if config == nil {
		config = &WorkerPoolConfig{}
	}

	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}

	jobTimeout := config.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}

	return &WorkerPool{
		queue:       queue,
		workerCount: workerCount,
		jobTimeout:  jobTimeout,
		handlers:    make(map[Type]registration),
		log:         logger.Default().WithComponent("worker"),
		stopChan:    make(chan struct{}),
	}
}

// Register binds a handler and retry policy to a job type. All registrations
// must happen before Start.
func (wp *WorkerPool) Register(jobType Type, handler Handler, policy RetryPolicy) {
	wp.handlers[jobType] = registration{handler: handler, policy: policy}
}

// Start launches the worker pool
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.running {
		return
	}

	wp.running = true
	wp.stopChan = make(chan struct{})

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	wp.log.Info(context.Background(), "worker pool started", map[string]interface{}{
		"workers": wp.workerCount,
	})
}

// Stop gracefully stops the worker pool, waiting for current jobs to complete
func (wp *WorkerPool) Stop(ctx context.Context) error {
	wp.mu.Lock()
	if !wp.running {
		wp.mu.Unlock()
		return nil
	}
	wp.running = false
	close(wp.stopChan)
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.log.Info(ctx, "worker pool stopped")
		return nil
	case <-ctx.Done():
		wp.log.Warn(ctx, "worker pool shutdown timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the worker pool is currently running
func (wp *WorkerPool) IsRunning() bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.running
}

// worker is the main loop for a single worker
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.stopChan:
			return
		default:
			wp.processNextJob(id)
		}
	}
}

// processNextJob dequeues and processes the next available job
func (wp *WorkerPool) processNextJob(workerID int) {
	ctx := context.Background()

	job, err := wp.queue.Dequeue(ctx, defaultBlockTimeout)
	if err != nil {
		if errors.Is(err, ErrQueueEmpty) {
			return
		}
		wp.log.Error(ctx, "failed to dequeue job", err, map[string]interface{}{"worker": workerID})
		return
	}

	wp.processJob(ctx, workerID, job)
}

// processJob handles the full lifecycle of a single job: run the handler
// once, then let the per-type retry policy decide what a failure means.
func (wp *WorkerPool) processJob(ctx context.Context, workerID int, job *Job) {
	fields := map[string]interface{}{
		"worker":  workerID,
		"job_id":  job.ID,
		"type":    string(job.Type),
		"lecture": job.LectureID.String(),
		"attempt": job.RetryCount,
	}

	reg, ok := wp.handlers[job.Type]
	if !ok {
		wp.log.Error(ctx, "no handler registered for job type", nil, fields)
		if err := wp.queue.UpdateStatus(ctx, job.ID, StatusFailed, "unknown job type"); err != nil {
			wp.log.Error(ctx, "failed to fail unknown job", err, fields)
		}
		return
	}

	if err := wp.queue.UpdateStatus(ctx, job.ID, StatusRunning, ""); err != nil {
		wp.log.Error(ctx, "failed to mark job running", err, fields)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, wp.jobTimeout)
	err := reg.handler(jobCtx, job)
	cancel()

	if err == nil {
		if err := wp.queue.UpdateStatus(ctx, job.ID, StatusComplete, ""); err != nil {
			wp.log.Error(ctx, "failed to mark job complete", err, fields)
		}
		wp.log.Info(ctx, "job completed", fields)
		return
	}

	wp.handleJobFailure(ctx, job, reg.policy, err, fields)
}

// handleJobFailure applies the retry policy: transient failures consume
// retry budget and requeue after the backoff; everything else is terminal.
func (wp *WorkerPool) handleJobFailure(ctx context.Context, job *Job, policy RetryPolicy, jobErr error, fields map[string]interface{}) {
	retryable := apperrors.IsRetryable(jobErr)

	if retryable && job.CanRetry(policy.MaxRetries) {
		backoff := policy.BackoffFor(job.RetryCount)
		wp.log.Warn(ctx, "job failed, scheduling retry", mergeFields(fields, map[string]interface{}{
			"error":       jobErr.Error(),
			"backoff":     backoff.String(),
			"max_retries": policy.MaxRetries,
		}))

		select {
		case <-time.After(backoff):
		case <-wp.stopChan:
			// Shutting down: requeue without waiting out the backoff so the
			// retry is not lost.
		}

		if err := wp.queue.IncrementRetry(ctx, job.ID); err != nil {
			wp.log.Error(ctx, "failed to requeue job for retry", err, fields)
		}
		return
	}

	if err := wp.queue.UpdateStatus(ctx, job.ID, StatusFailed, jobErr.Error()); err != nil {
		wp.log.Error(ctx, "failed to mark job failed", err, fields)
	}

	if retryable {
		wp.log.Error(ctx, "job exceeded max retries", jobErr, fields)
	} else {
		wp.log.Error(ctx, "job failed permanently", jobErr, fields)
	}
}

func mergeFields(a, b map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}
