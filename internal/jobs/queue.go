package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefixes
	keyJobQueue  = "pipeline:queue"
	keyJobRecord = "pipeline:job:"

	// Default timeout for blocking operations
	defaultBlockTimeout = 5 * time.Second
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrQueueEmpty  = errors.New("queue is empty")
)

// Queue is the durable job queue the worker pool pulls from. Enqueue returns
// immediately; execution happens on a worker, never on the request path.
type Queue interface {
	Enqueue(ctx context.Context, jobType Type, lectureID uuid.UUID) (*Job, error)
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)
	GetJob(ctx context.Context, jobID string) (*Job, error)
	UpdateStatus(ctx context.Context, jobID, status, errMsg string) error
	IncrementRetry(ctx context.Context, jobID string) error
	QueueLength(ctx context.Context) (int64, error)
}

// RedisQueue manages pipeline jobs using Redis: a list carries the queue
// order, and each job record lives in its own key as a JSON blob.
type RedisQueue struct {
	client *redis.Client
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue creates a job queue backed by the Redis at redisURL.
func NewRedisQueue(redisURL string) (*RedisQueue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisQueue{client: client}, nil
}

// Client returns the underlying Redis client (health checks).
func (q *RedisQueue) Client() *redis.Client {
	return q.client
}

// Close closes the Redis connection
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Enqueue adds a new job to the queue
func (q *RedisQueue) Enqueue(ctx context.Context, jobType Type, lectureID uuid.UUID) (*Job, error) {
	now := time.Now()
	job := &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		LectureID: lectureID,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := q.saveJob(ctx, job); err != nil {
		return nil, err
	}

	if err := q.client.LPush(ctx, keyJobQueue, job.ID).Err(); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	return job, nil
}

// Dequeue retrieves and removes a job from the queue (blocking)
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	if timeout == 0 {
		timeout = defaultBlockTimeout
	}

	result, err := q.client.BRPop(ctx, timeout, keyJobQueue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrQueueEmpty
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}

	if len(result) < 2 {
		return nil, ErrQueueEmpty
	}

	jobID := result[1]
	return q.GetJob(ctx, jobID)
}

// GetJob retrieves a job by ID
func (q *RedisQueue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	data, err := q.client.Get(ctx, keyJobRecord+jobID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

// UpdateStatus updates the job's lifecycle state.
func (q *RedisQueue) UpdateStatus(ctx context.Context, jobID, status, errMsg string) error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.Status = status
	job.Error = errMsg
	job.UpdatedAt = time.Now()

	if status == StatusRunning && job.StartedAt == nil {
		now := time.Now()
		job.StartedAt = &now
	}

	if status == StatusComplete || status == StatusFailed {
		now := time.Now()
		job.CompletedAt = &now
	}

	return q.saveJob(ctx, job)
}

// IncrementRetry increments the retry count and requeues the job
func (q *RedisQueue) IncrementRetry(ctx context.Context, jobID string) error {
	job, err := q.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	job.RetryCount++
	job.Status = StatusQueued
	job.Error = ""
	job.UpdatedAt = time.Now()

	if err := q.saveJob(ctx, job); err != nil {
		return err
	}

	return q.client.LPush(ctx, keyJobQueue, jobID).Err()
}

// QueueLength returns the number of jobs waiting in the queue
func (q *RedisQueue) QueueLength(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, keyJobQueue).Result()
}

// saveJob saves a job record to Redis
func (q *RedisQueue) saveJob(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return q.client.Set(ctx, keyJobRecord+job.ID, data, 0).Err()
}
