package pipeline

import (
	"context"
	"path"

	apperrors "github.com/lecturehub/backend/internal/errors"
	"github.com/lecturehub/backend/internal/jobs"
	"github.com/lecturehub/backend/internal/lecture"
)

// Transcribe pulls the lecture audio from storage, sends it to the speech
// API, and stores the resulting transcript. Watching clients see
// "In progress" while it runs and "Successful" (with the transcript) or
// "Failed" when it ends.
func (p *Pipeline) Transcribe(ctx context.Context, job *jobs.Job) error {
	l, err := p.load(ctx, job)
	if err != nil {
		return err
	}

	if err := p.announce(ctx, l.ID, lecture.StatusInProgress); err != nil {
		return p.fail(ctx, job, lecture.StatusFailed, err)
	}

	audio, _, err := p.blobs.GetObject(ctx, l.AudioKey)
	if err != nil {
		return p.fail(ctx, job, lecture.StatusFailed,
			apperrors.StorageError("failed to fetch lecture audio").WithCause(err))
	}
	defer audio.Close()

	transcript, err := p.transcriber.Transcribe(ctx, audio, path.Base(l.AudioKey))
	if err != nil {
		return p.fail(ctx, job, lecture.StatusFailed, err)
	}

	if err := p.store.SetTranscript(ctx, l.ID, transcript, lecture.StatusSuccessful); err != nil {
		return p.fail(ctx, job, lecture.StatusFailed,
			apperrors.DatabaseError("failed to store transcript").WithCause(err))
	}

	p.publisher.PublishStatus(l.ID, lecture.StatusSuccessful, map[string]interface{}{
		"transcript": transcript,
	})
	return nil
}
