package jobs

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies one pipeline stage.
type Type string

const (
	TypeTranscribe         Type = "transcribe"
	TypeSummarize          Type = "summarize"
	TypeExportPDF          Type = "export_pdf"
	TypeGenerateFlashcards Type = "generate_flashcards"
)

// Valid reports whether t is a known job type.
func (t Type) Valid() bool {
	switch t {
	case TypeTranscribe, TypeSummarize, TypeExportPDF, TypeGenerateFlashcards:
		return true
	}
	return false
}

// Job status constants representing the job lifecycle
const (
	StatusQueued   = "queued"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Job represents one unit of asynchronous pipeline work tied to a lecture.
type Job struct {
	ID          string     `json:"id"`
	Type        Type       `json:"type"`
	LectureID   uuid.UUID  `json:"lecture_id"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.Status == StatusComplete || j.Status == StatusFailed
}

// CanRetry returns true if the job has retry budget left
func (j *Job) CanRetry(maxRetries int) bool {
	return j.RetryCount < maxRetries
}

// RetryPolicy is the per-job-type retry contract: how many re-runs a job
// gets and how long to wait before each one.
type RetryPolicy struct {
	MaxRetries  int
	Delay       time.Duration
	Exponential bool
	MaxDelay    time.Duration
}

// BackoffFor returns the wait before the retry numbered attempt (0-based).
func (p RetryPolicy) BackoffFor(attempt int) time.Duration {
	if !p.Exponential {
		return p.Delay
	}

	backoff := p.Delay
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if p.MaxDelay > 0 && backoff >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return backoff
}

// Per-stage policies. Transcription and summarization retry on transient
// upstream failures with a fixed delay; PDF export backs off exponentially;
// flashcard generation never retries.
var DefaultPolicies = map[Type]RetryPolicy{
	TypeTranscribe:         {MaxRetries: 3, Delay: 10 * time.Second},
	TypeSummarize:          {MaxRetries: 3, Delay: 30 * time.Second},
	TypeExportPDF:          {MaxRetries: 3, Delay: time.Second, Exponential: true, MaxDelay: 5 * time.Minute},
	TypeGenerateFlashcards: {MaxRetries: 0},
}
