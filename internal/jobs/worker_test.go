package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lecturehub/backend/internal/errors"
)

// memQueue is an in-memory Queue used to drive the worker pool in tests.
type memQueue struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	pending chan string
}

func newMemQueue() *memQueue {
	return &memQueue{
		jobs:    make(map[string]*Job),
		pending: make(chan string, 64),
	}
}

func (q *memQueue) Enqueue(ctx context.Context, jobType Type, lectureID uuid.UUID) (*Job, error) {
	now := time.Now()
	job := &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		LectureID: lectureID,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	q.mu.Lock()
	q.jobs[job.ID] = job
	q.mu.Unlock()

	q.pending <- job.ID
	return job, nil
}

func (q *memQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	select {
	case id := <-q.pending:
		return q.GetJob(ctx, id)
	case <-time.After(timeout):
		return nil, ErrQueueEmpty
	}
}

func (q *memQueue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (q *memQueue) UpdateStatus(ctx context.Context, jobID, status, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = status
	job.Error = errMsg
	job.UpdatedAt = time.Now()
	return nil
}

func (q *memQueue) IncrementRetry(ctx context.Context, jobID string) error {
	q.mu.Lock()
	job, ok := q.jobs[jobID]
	if !ok {
		q.mu.Unlock()
		return ErrJobNotFound
	}
	job.RetryCount++
	job.Status = StatusQueued
	job.Error = ""
	q.mu.Unlock()

	q.pending <- jobID
	return nil
}

func (q *memQueue) QueueLength(ctx context.Context) (int64, error) {
	return int64(len(q.pending)), nil
}

// waitForTerminal polls until the job reaches a terminal state.
func waitForTerminal(t *testing.T, q *memQueue, jobID string) *Job {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := q.GetJob(context.Background(), jobID)
		if err != nil {
			t.Fatalf("GetJob failed: %v", err)
		}
		if job.IsTerminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return nil
}

func startPool(t *testing.T, q Queue, jobType Type, handler Handler, policy RetryPolicy) *WorkerPool {
	t.Helper()

	pool := NewWorkerPool(q, &WorkerPoolConfig{WorkerCount: 1, JobTimeout: time.Second})
	pool.Register(jobType, handler, policy)
	pool.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		pool.Stop(ctx)
	})
	return pool
}

func TestWorkerPool_Success(t *testing.T) {
	q := newMemQueue()

	var attempts int
	var mu sync.Mutex
	startPool(t, q, TypeTranscribe, func(ctx context.Context, job *Job) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return nil
	}, RetryPolicy{MaxRetries: 3, Delay: time.Millisecond})

	job, _ := q.Enqueue(context.Background(), TypeTranscribe, uuid.New())
	final := waitForTerminal(t, q, job.ID)

	if final.Status != StatusComplete {
		t.Errorf("got status %s, want complete", final.Status)
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts != 1 {
		t.Errorf("got %d attempts, want 1", attempts)
	}
}

func TestWorkerPool_TransientFailuresThenSuccess(t *testing.T) {
	q := newMemQueue()

	var attempts int
	var mu sync.Mutex
	startPool(t, q, TypeTranscribe, func(ctx context.Context, job *Job) error {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n <= 3 {
			return apperrors.UpstreamTransient("groq", "connection reset")
		}
		return nil
	}, RetryPolicy{MaxRetries: 3, Delay: time.Millisecond})

	job, _ := q.Enqueue(context.Background(), TypeTranscribe, uuid.New())
	final := waitForTerminal(t, q, job.ID)

	if final.Status != StatusComplete {
		t.Errorf("got status %s, want complete after retries", final.Status)
	}
	if final.RetryCount != 3 {
		t.Errorf("got retry count %d, want 3", final.RetryCount)
	}
}

func TestWorkerPool_ExhaustedRetriesFail(t *testing.T) {
	q := newMemQueue()

	var attempts int
	var mu sync.Mutex
	startPool(t, q, TypeSummarize, func(ctx context.Context, job *Job) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return apperrors.UpstreamTransient("groq", "timeout")
	}, RetryPolicy{MaxRetries: 2, Delay: time.Millisecond})

	job, _ := q.Enqueue(context.Background(), TypeSummarize, uuid.New())
	final := waitForTerminal(t, q, job.ID)

	if final.Status != StatusFailed {
		t.Errorf("got status %s, want failed", final.Status)
	}

	// Initial attempt plus two retries, no more.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Errorf("got %d attempts, want 3", attempts)
	}
}

func TestWorkerPool_PermanentFailureDoesNotRetry(t *testing.T) {
	q := newMemQueue()

	var attempts int
	var mu sync.Mutex
	startPool(t, q, TypeGenerateFlashcards, func(ctx context.Context, job *Job) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return apperrors.UpstreamPermanent("groq", "invalid payload")
	}, RetryPolicy{MaxRetries: 3, Delay: time.Millisecond})

	job, _ := q.Enqueue(context.Background(), TypeGenerateFlashcards, uuid.New())
	final := waitForTerminal(t, q, job.ID)

	if final.Status != StatusFailed {
		t.Errorf("got status %s, want failed", final.Status)
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if attempts != 1 {
		t.Errorf("got %d attempts, want 1 (permanent failures consume no retries)", attempts)
	}
}

func TestWorkerPool_UnknownTypeFails(t *testing.T) {
	q := newMemQueue()
	startPool(t, q, TypeTranscribe, func(ctx context.Context, job *Job) error {
		return nil
	}, RetryPolicy{})

	job, _ := q.Enqueue(context.Background(), Type("bogus"), uuid.New())
	final := waitForTerminal(t, q, job.ID)

	if final.Status != StatusFailed {
		t.Errorf("got status %s, want failed", final.Status)
	}
}

func TestRetryPolicy_BackoffFor(t *testing.T) {
	fixed := RetryPolicy{MaxRetries: 3, Delay: 10 * time.Second}
	for attempt := 0; attempt < 3; attempt++ {
		if got := fixed.BackoffFor(attempt); got != 10*time.Second {
			t.Errorf("fixed backoff attempt %d: got %v", attempt, got)
		}
	}

	exp := RetryPolicy{MaxRetries: 5, Delay: time.Second, Exponential: true, MaxDelay: 5 * time.Second}
	wants := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for attempt, want := range wants {
		if got := exp.BackoffFor(attempt); got != want {
			t.Errorf("exponential backoff attempt %d: got %v, want %v", attempt, got, want)
		}
	}
}
