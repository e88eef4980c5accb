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

// NoTranscriptSummary is stored as the summary when summarization is
// requested for a lecture without a transcript.
const NoTranscriptSummary = "Sorry, there is no transcript for this lecture."

const summaryPromptFormat = `Summarize the following lecture transcript into clear, well-structured study notes. Use short paragraphs and keep every key concept, definition, and example.

Transcript:
%s`

// Summarize turns the stored transcript into study notes via the chat API.
// A lecture without a transcript gets a fixed placeholder summary instead of
// an upstream call. When the API answers with an explicit error message, that
// message is stored as the summary so the client sees what the model said.
func (p *Pipeline) Summarize(ctx context.Context, job *jobs.Job) error {
	l, err := p.load(ctx, job)
	if err != nil {
		return err
	}

	if l.Transcript == nil || strings.TrimSpace(*l.Transcript) == "" {
		if err := p.store.SetSummary(ctx, l.ID, NoTranscriptSummary, lecture.StatusSummaryReady); err != nil {
			return p.fail(ctx, job, lecture.StatusFailed,
				apperrors.DatabaseError("failed to store summary").WithCause(err))
		}
		p.publisher.PublishStatus(l.ID, lecture.StatusSummaryReady, map[string]interface{}{
			"summary": NoTranscriptSummary,
		})
		return nil
	}

	if err := p.announce(ctx, l.ID, lecture.StatusSummarizing); err != nil {
		return p.fail(ctx, job, lecture.StatusFailed, err)
	}

	summary, err := p.completer.ChatCompletion(ctx, fmt.Sprintf(summaryPromptFormat, *l.Transcript))
	if err != nil {
		if apperrors.IsExternalError(err) && p.terminal(job, err) {
			msg := groq.UpstreamMessage(err)
			if dbErr := p.store.SetSummary(ctx, l.ID, msg, lecture.StatusFailed); dbErr != nil {
				p.log.Error(ctx, "failed to store upstream failure message", dbErr, map[string]interface{}{
					"lecture": l.ID.String(),
				})
			}
			p.publisher.PublishStatus(l.ID, lecture.StatusFailed, map[string]interface{}{
				"summary": msg,
			})
			return err
		}
		return p.fail(ctx, job, lecture.StatusFailed, err)
	}

	if err := p.store.SetSummary(ctx, l.ID, summary, lecture.StatusSummaryReady); err != nil {
		return p.fail(ctx, job, lecture.StatusFailed,
			apperrors.DatabaseError("failed to store summary").WithCause(err))
	}

	p.publisher.PublishStatus(l.ID, lecture.StatusSummaryReady, map[string]interface{}{
		"summary": summary,
	})
	return nil
}
