package pipeline

import (
	"bytes"
	"context"
	"strings"

	apperrors "github.com/lecturehub/backend/internal/errors"
	"github.com/lecturehub/backend/internal/jobs"
	"github.com/lecturehub/backend/internal/lecture"
	"github.com/lecturehub/backend/internal/storage"
)

// ExportPDF renders the stored summary into a PDF, uploads it, and records
// the storage key plus a time-limited download URL. Rendering and upload
// failures are retried with backoff; a lecture without a summary fails
// immediately with an error event, since re-running cannot produce one.
func (p *Pipeline) ExportPDF(ctx context.Context, job *jobs.Job) error {
	l, err := p.load(ctx, job)
	if err != nil {
		return err
	}

	if l.Summary == nil || strings.TrimSpace(*l.Summary) == "" {
		p.publisher.PublishError(l.ID, "There is no summary to export for this lecture.")
		return apperrors.ValidationError("lecture has no summary to export")
	}

	if err := p.announce(ctx, l.ID, lecture.StatusExportingPDF); err != nil {
		return p.failWithError(ctx, job, err)
	}

	doc, err := p.renderer.Render(l.Title, *l.Summary)
	if err != nil {
		return p.failWithError(ctx, job,
			apperrors.InternalError("failed to render PDF").WithCause(err))
	}

	// Fast inner retries for storage blips; the job-level policy handles
	// anything that outlives them.
	key := storage.PDFKey(l.ID.String())
	err = apperrors.Retry(ctx, apperrors.StorageRetryConfig(), func(ctx context.Context) error {
		return p.blobs.PutObject(ctx, key, bytes.NewReader(doc), int64(len(doc)), "application/pdf")
	})
	if err != nil {
		return p.failWithError(ctx, job,
			apperrors.StorageError("failed to upload PDF").WithCause(err))
	}

	url, err := p.blobs.PresignedGetURL(ctx, key, pdfURLExpiry)
	if err != nil {
		return p.failWithError(ctx, job,
			apperrors.StorageError("failed to presign PDF URL").WithCause(err))
	}

	if err := p.store.SetPDF(ctx, l.ID, key, url, lecture.StatusPDFReady); err != nil {
		return p.failWithError(ctx, job,
			apperrors.DatabaseError("failed to store PDF reference").WithCause(err))
	}

	p.publisher.PublishStatus(l.ID, lecture.StatusPDFReady, map[string]interface{}{
		"pdf_url": url,
	})
	return nil
}

// failWithError is the export variant of fail: terminal failures move the
// lecture to "Error" and publish the same transition with the failure
// message, so watching clients see the record's final state.
func (p *Pipeline) failWithError(ctx context.Context, job *jobs.Job, err error) error {
	if !p.terminal(job, err) {
		return err
	}

	if dbErr := p.store.SetStatus(ctx, job.LectureID, lecture.StatusError); dbErr != nil {
		p.log.Error(ctx, "failed to persist failure status", dbErr, map[string]interface{}{
			"lecture": job.LectureID.String(),
		})
	}
	p.publisher.PublishStatus(job.LectureID, lecture.StatusError, map[string]interface{}{
		"message": failureMessage(err),
	})
	return err
}

// failureMessage extracts the client-facing message from an error.
func failureMessage(err error) string {
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr.Message
	}
	return "Sorry, data not available"
}
