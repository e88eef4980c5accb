package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lecturehub/backend/internal/auth"
	"github.com/lecturehub/backend/internal/db"
	apperrors "github.com/lecturehub/backend/internal/errors"
	"github.com/lecturehub/backend/internal/jobs"
	"github.com/lecturehub/backend/internal/lecture"
	"github.com/lecturehub/backend/internal/storage"
)

// Uploaded recordings are buffered past this size to disk while parsing.
const maxUploadMemory = 32 << 20 // 32 MB

// LectureStore is the slice of the lecture repository the HTTP layer needs.
type LectureStore interface {
	Create(ctx context.Context, l *lecture.Lecture) error
	GetByID(ctx context.Context, id uuid.UUID) (*lecture.Lecture, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*lecture.Lecture, error)
}

// LectureHandlers serves lecture CRUD and the processing-job endpoints.
// Enqueue endpoints only validate and enqueue; all real work happens on the
// worker pool and is reported over the websocket topic.
type LectureHandlers struct {
	lectures LectureStore
	uploader storage.Uploader
	queue    jobs.Queue
}

func NewLectureHandlers(lectures LectureStore, uploader storage.Uploader, queue jobs.Queue) *LectureHandlers {
	return &LectureHandlers{
		lectures: lectures,
		uploader: uploader,
		queue:    queue,
	}
}

// EnqueueResponse acknowledges an accepted processing job.
type EnqueueResponse struct {
	JobID     string `json:"job_id"`
	LectureID string `json:"lecture_id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
}

// CreateLecture handles POST /api/v1/lectures: a multipart upload with a
// "title" field and an "audio" file. The audio is stored with content-level
// deduplication and the lecture record starts out Pending.
func (h *LectureHandlers) CreateLecture(w http.ResponseWriter, r *http.Request) error {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		return apperrors.Unauthorized("user not authenticated")
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return apperrors.BadRequest("invalid multipart form")
	}

	title := r.FormValue("title")
	if title == "" {
		return apperrors.ValidationError("title is required")
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return apperrors.ValidationError("audio file is required")
	}
	defer file.Close()

	result, err := h.uploader.Upload(r.Context(), file, header.Size, storage.LectureMetadata{
		Title:    title,
		UserID:   userCtx.UserID.String(),
		Filename: header.Filename,
	})
	if err != nil {
		return apperrors.StorageError("failed to store audio").WithCause(err)
	}

	now := time.Now()
	l := &lecture.Lecture{
		ID:        uuid.New(),
		UserID:    userCtx.UserID,
		Title:     title,
		AudioKey:  result.StorageKey,
		Status:    lecture.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.lectures.Create(r.Context(), l); err != nil {
		return apperrors.DatabaseError("failed to create lecture").WithCause(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusCreated, l)
	return nil
}

// GetLecture handles GET /api/v1/lectures/{lecture_id}.
func (h *LectureHandlers) GetLecture(w http.ResponseWriter, r *http.Request) error {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		return apperrors.Unauthorized("user not authenticated")
	}

	l, err := h.ownedLecture(r, userCtx)
	if err != nil {
		return err
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, l)
	return nil
}

// ListLectures handles GET /api/v1/lectures.
func (h *LectureHandlers) ListLectures(w http.ResponseWriter, r *http.Request) error {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		return apperrors.Unauthorized("user not authenticated")
	}

	lectures, err := h.lectures.ListByUser(r.Context(), userCtx.UserID)
	if err != nil {
		return apperrors.DatabaseError("failed to list lectures").WithCause(err)
	}
	if lectures == nil {
		lectures = []*lecture.Lecture{}
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, map[string]interface{}{
		"lectures": lectures,
	})
	return nil
}

// EnqueueTranscribe handles POST /api/v1/lectures/{lecture_id}/transcribe.
// A lecture already being transcribed is not enqueued again; the caller gets
// a conflict instead of a duplicate job.
func (h *LectureHandlers) EnqueueTranscribe(w http.ResponseWriter, r *http.Request) error {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		return apperrors.Unauthorized("user not authenticated")
	}

	l, err := h.ownedLecture(r, userCtx)
	if err != nil {
		return err
	}

	if l.Status == lecture.StatusInProgress {
		return apperrors.Conflict("transcription already in progress")
	}

	return h.enqueue(r.Context(), w, r, jobs.TypeTranscribe, l.ID)
}

// EnqueueSummarize handles POST /api/v1/lectures/{lecture_id}/summarize.
func (h *LectureHandlers) EnqueueSummarize(w http.ResponseWriter, r *http.Request) error {
	return h.enqueueForOwner(w, r, jobs.TypeSummarize)
}

// EnqueueExportPDF handles POST /api/v1/lectures/{lecture_id}/export-pdf.
func (h *LectureHandlers) EnqueueExportPDF(w http.ResponseWriter, r *http.Request) error {
	return h.enqueueForOwner(w, r, jobs.TypeExportPDF)
}

// EnqueueFlashcards handles POST /api/v1/lectures/{lecture_id}/flashcards.
func (h *LectureHandlers) EnqueueFlashcards(w http.ResponseWriter, r *http.Request) error {
	return h.enqueueForOwner(w, r, jobs.TypeGenerateFlashcards)
}

// GetJob handles GET /api/v1/jobs/{job_id}.
func (h *LectureHandlers) GetJob(w http.ResponseWriter, r *http.Request) error {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		return apperrors.Unauthorized("user not authenticated")
	}

	jobID := r.PathValue("job_id")
	if jobID == "" {
		return apperrors.BadRequest("job_id is required")
	}

	job, err := h.queue.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			return apperrors.JobNotFound()
		}
		return apperrors.InternalError("failed to load job").WithCause(err)
	}

	// Jobs are only visible to the lecture's owner.
	l, err := h.lectures.GetByID(r.Context(), job.LectureID)
	if err != nil || l.UserID != userCtx.UserID {
		return apperrors.JobNotFound()
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusOK, job)
	return nil
}

func (h *LectureHandlers) enqueueForOwner(w http.ResponseWriter, r *http.Request, jobType jobs.Type) error {
	userCtx := auth.GetUserFromContext(r.Context())
	if userCtx == nil {
		return apperrors.Unauthorized("user not authenticated")
	}

	l, err := h.ownedLecture(r, userCtx)
	if err != nil {
		return err
	}

	return h.enqueue(r.Context(), w, r, jobType, l.ID)
}

func (h *LectureHandlers) enqueue(ctx context.Context, w http.ResponseWriter, r *http.Request, jobType jobs.Type, lectureID uuid.UUID) error {
	job, err := h.queue.Enqueue(ctx, jobType, lectureID)
	if err != nil {
		return apperrors.InternalError("failed to enqueue job").WithCause(err)
	}

	apperrors.WriteJSON(w, apperrors.GetRequestID(r.Context()), http.StatusAccepted, EnqueueResponse{
		JobID:     job.ID,
		LectureID: lectureID.String(),
		Type:      string(jobType),
		Status:    job.Status,
	})
	return nil
}

// ownedLecture loads the lecture named in the path and checks ownership.
// Someone else's lecture reads as not found rather than forbidden.
func (h *LectureHandlers) ownedLecture(r *http.Request, userCtx *auth.UserContext) (*lecture.Lecture, error) {
	rawID := r.PathValue("lecture_id")
	if rawID == "" {
		return nil, apperrors.BadRequest("lecture_id is required")
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, apperrors.BadRequest("invalid lecture_id")
	}

	l, err := h.lectures.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrLectureNotFound) {
			return nil, apperrors.LectureNotFound()
		}
		return nil, apperrors.DatabaseError("failed to load lecture").WithCause(err)
	}

	if l.UserID != userCtx.UserID {
		return nil, apperrors.LectureNotFound()
	}

	return l, nil
}
