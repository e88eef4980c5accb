package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/lecturehub/backend/internal/db"
	apperrors "github.com/lecturehub/backend/internal/errors"
	"github.com/lecturehub/backend/internal/jobs"
	"github.com/lecturehub/backend/internal/lecture"
	"github.com/lecturehub/backend/internal/logger"
	"github.com/lecturehub/backend/internal/pubsub"
	"github.com/lecturehub/backend/internal/storage"
)

// LectureStore is the slice of the lecture repository the pipeline writes
// through. Every job loads fresh state and persists only its own fields.
type LectureStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*lecture.Lecture, error)
	SetStatus(ctx context.Context, id uuid.UUID, status lecture.Status) error
	SetTranscript(ctx context.Context, id uuid.UUID, transcript string, status lecture.Status) error
	SetSummary(ctx context.Context, id uuid.UUID, summary string, status lecture.Status) error
	SetFlashcards(ctx context.Context, id uuid.UUID, flashcards string, status lecture.Status) error
	SetPDF(ctx context.Context, id uuid.UUID, pdfKey, pdfURL string, status lecture.Status) error
}

// BlobStore reads lecture audio and writes exported PDFs.
type BlobStore interface {
	GetObject(ctx context.Context, key string) (io.ReadCloser, *storage.ObjectInfo, error)
	PutObject(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Completer answers a chat prompt.
type Completer interface {
	ChatCompletion(ctx context.Context, prompt string) (string, error)
}

// Renderer produces a PDF document from a title and body text.
type Renderer interface {
	Render(title, body string) ([]byte, error)
}

// How long exported PDF links stay valid.
const pdfURLExpiry = 7 * 24 * time.Hour

// Pipeline implements the four asynchronous processing stages. Each stage is
// a job handler: it loads the lecture, announces progress over the broker,
// calls the external service, persists its result, and announces the outcome.
type Pipeline struct {
	store       LectureStore
	blobs       BlobStore
	transcriber Transcriber
	completer   Completer
	renderer    Renderer
	publisher   *pubsub.StatusPublisher
	policies    map[jobs.Type]jobs.RetryPolicy
	log         *logger.Logger
}

// New wires a pipeline over its collaborators using the default per-stage
// retry policies.
func New(store LectureStore, blobs BlobStore, transcriber Transcriber, completer Completer, renderer Renderer, publisher *pubsub.StatusPublisher) *Pipeline {
	return &Pipeline{
		store:       store,
		blobs:       blobs,
		transcriber: transcriber,
		completer:   completer,
		renderer:    renderer,
		publisher:   publisher,
		policies:    jobs.DefaultPolicies,
		log:         logger.Default().WithComponent("pipeline"),
	}
}

// Register binds every stage to the worker pool with its retry policy.
func (p *Pipeline) Register(pool *jobs.WorkerPool) {
	pool.Register(jobs.TypeTranscribe, p.Transcribe, p.policies[jobs.TypeTranscribe])
	pool.Register(jobs.TypeSummarize, p.Summarize, p.policies[jobs.TypeSummarize])
	pool.Register(jobs.TypeExportPDF, p.ExportPDF, p.policies[jobs.TypeExportPDF])
	pool.Register(jobs.TypeGenerateFlashcards, p.GenerateFlashcards, p.policies[jobs.TypeGenerateFlashcards])
}

// load fetches the lecture a job refers to. A missing lecture is a permanent
// failure: retrying cannot bring the record back.
func (p *Pipeline) load(ctx context.Context, job *jobs.Job) (*lecture.Lecture, error) {
	l, err := p.store.GetByID(ctx, job.LectureID)
	if err != nil {
		if errors.Is(err, db.ErrLectureNotFound) {
			return nil, apperrors.LectureNotFound()
		}
		return nil, apperrors.DatabaseError("failed to load lecture").WithCause(err)
	}
	return l, nil
}

// terminal reports whether this failure ends the job: either the error is
// not worth retrying, or the retry budget is spent.
func (p *Pipeline) terminal(job *jobs.Job, err error) bool {
	if !apperrors.IsRetryable(err) {
		return true
	}
	policy := p.policies[job.Type]
	return !job.CanRetry(policy.MaxRetries)
}

// announce persists a status and publishes it in one step. Publish failures
// cannot happen (the broker drops on slow consumers), so only the persist can
// error.
func (p *Pipeline) announce(ctx context.Context, id uuid.UUID, status lecture.Status) error {
	if err := p.store.SetStatus(ctx, id, status); err != nil {
		return apperrors.DatabaseError("failed to update lecture status").WithCause(err)
	}
	p.publisher.PublishStatus(id, status, nil)
	return nil
}

// fail records a terminal failure when the retry budget allows no re-run,
// then returns the original error for the worker to log. The lecture status
// moves to failedStatus and watching clients hear about it.
func (p *Pipeline) fail(ctx context.Context, job *jobs.Job, failedStatus lecture.Status, err error) error {
	if !p.terminal(job, err) {
		return err
	}

	if dbErr := p.store.SetStatus(ctx, job.LectureID, failedStatus); dbErr != nil {
		p.log.Error(ctx, "failed to persist failure status", dbErr, map[string]interface{}{
			"lecture": job.LectureID.String(),
			"status":  string(failedStatus),
		})
	}
	p.publisher.PublishStatus(job.LectureID, failedStatus, nil)
	return err
}
