package lecture

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle label of a lecture. The wire values are what the
// pipeline publishes to websocket clients, so they are human-readable rather
// than snake_case.
type Status string

const (
	StatusPending              Status = "Pending"
	StatusInProgress           Status = "In progress"
	StatusSuccessful           Status = "Successful"
	StatusFailed               Status = "Failed"
	StatusSummarizing          Status = "Summarizing"
	StatusSummaryReady         Status = "Summary ready"
	StatusExportingPDF         Status = "Exporting PDF"
	StatusPDFReady             Status = "PDF ready"
	StatusGeneratingFlashcards Status = "Generating flashcards"
	StatusFlashcardsReady      Status = "Flashcards ready"
	StatusError                Status = "Error"
)

// Valid reports whether s is a member of the closed status set.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusSuccessful, StatusFailed,
		StatusSummarizing, StatusSummaryReady, StatusExportingPDF,
		StatusPDFReady, StatusGeneratingFlashcards, StatusFlashcardsReady,
		StatusError:
		return true
	}
	return false
}

// Lecture is the shared resource record the pipeline jobs operate on.
// Transcript, Summary, Flashcards and the PDF fields stay nil until the
// producing job completes; each job type writes only its own fields.
type Lecture struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Title      string     `json:"title"`
	AudioKey   string     `json:"audio_key"`
	Transcript *string    `json:"transcript,omitempty"`
	Summary    *string    `json:"summary,omitempty"`
	Flashcards *string    `json:"flashcards,omitempty"`
	Status     Status     `json:"status"`
	PDFKey     *string    `json:"pdf_key,omitempty"`
	PDFURL     *string    `json:"pdf_url,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TopicName returns the broker topic that carries status events for a lecture.
func TopicName(id uuid.UUID) string {
	return "lecture:" + id.String()
}
