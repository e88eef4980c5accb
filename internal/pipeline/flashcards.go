package pipeline

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/lecturehub/backend/internal/errors"
	"github.com/lecturehub/backend/internal/groq"
	"github.com/lecturehub/backend/internal/jobs"
	"github.com/lecturehub/backend/internal/lecture"
)

const flashcardPromptFormat = `Create study flashcards from the following lecture transcript. Respond with a JSON array where each element is an object with a "question" field and an "answer" field. Cover every key concept once. Respond with the JSON array only, no surrounding text.

Transcript:
%s`

// GenerateFlashcards asks the chat API for question/answer flashcards built
// from the transcript. This stage never retries: any failure is surfaced to
// watching clients as an error event right away.
func (p *Pipeline) GenerateFlashcards(ctx context.Context, job *jobs.Job) error {
	l, err := p.load(ctx, job)
	if err != nil {
		return err
	}

	if l.Transcript == nil || strings.TrimSpace(*l.Transcript) == "" {
		p.publisher.PublishError(l.ID, "There is no transcript to generate flashcards from.")
		return apperrors.ValidationError("lecture has no transcript for flashcards")
	}

	if err := p.announce(ctx, l.ID, lecture.StatusGeneratingFlashcards); err != nil {
		return p.failFlashcards(ctx, l, err)
	}

	cards, err := p.completer.ChatCompletion(ctx, fmt.Sprintf(flashcardPromptFormat, *l.Transcript))
	if err != nil {
		return p.failFlashcards(ctx, l, err)
	}

	if err := p.store.SetFlashcards(ctx, l.ID, cards, lecture.StatusFlashcardsReady); err != nil {
		return p.failFlashcards(ctx, l,
			apperrors.DatabaseError("failed to store flashcards").WithCause(err))
	}

	p.publisher.PublishStatus(l.ID, lecture.StatusFlashcardsReady, map[string]interface{}{
		"flashcards": cards,
	})
	return nil
}

// failFlashcards moves the lecture to "Error" and publishes that transition
// with the failure message. The stage has no retry budget, so every failure
// is terminal.
func (p *Pipeline) failFlashcards(ctx context.Context, l *lecture.Lecture, err error) error {
	if dbErr := p.store.SetStatus(ctx, l.ID, lecture.StatusError); dbErr != nil {
		p.log.Error(ctx, "failed to persist failure status", dbErr, map[string]interface{}{
			"lecture": l.ID.String(),
		})
	}

	msg := groq.UpstreamMessage(err)
	if msg == "" {
		msg = failureMessage(err)
	}
	p.publisher.PublishStatus(l.ID, lecture.StatusError, map[string]interface{}{
		"message": msg,
	})
	return err
}
