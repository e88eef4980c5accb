package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/lecturehub/backend/internal/lecture"
)

var ErrLectureNotFound = errors.New("lecture not found")

// LectureRepository persists lectures. Each pipeline job writes through its
// own Set* method so concurrent jobs touching the same lecture never
// overwrite each other's columns.
type LectureRepository struct {
	db *DB
}

func NewLectureRepository(db *DB) *LectureRepository {
	return &LectureRepository{db: db}
}

func (r *LectureRepository) Create(ctx context.Context, l *lecture.Lecture) error {
	query := `
		INSERT INTO lectures (id, user_id, title, audio_key, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.UserID, l.Title, l.AudioKey, l.Status, l.CreatedAt, l.UpdatedAt,
	)
	return err
}

func (r *LectureRepository) GetByID(ctx context.Context, id uuid.UUID) (*lecture.Lecture, error) {
	query := `
		SELECT id, user_id, title, audio_key, transcript, summary, flashcards,
		       status, pdf_key, pdf_url, created_at, updated_at
		FROM lectures
		WHERE id = $1
	`

	return r.scanLecture(r.db.QueryRowContext(ctx, query, id))
}

func (r *LectureRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*lecture.Lecture, error) {
	query := `
		SELECT id, user_id, title, audio_key, transcript, summary, flashcards,
		       status, pdf_key, pdf_url, created_at, updated_at
		FROM lectures
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lectures []*lecture.Lecture
	for rows.Next() {
		l, err := r.scanLecture(rows)
		if err != nil {
			return nil, err
		}
		lectures = append(lectures, l)
	}

	return lectures, rows.Err()
}

// SetStatus updates only the status column.
func (r *LectureRepository) SetStatus(ctx context.Context, id uuid.UUID, status lecture.Status) error {
	query := `UPDATE lectures SET status = $2, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, status)
}

// SetTranscript stores the transcript and the matching status in one write.
func (r *LectureRepository) SetTranscript(ctx context.Context, id uuid.UUID, transcript string, status lecture.Status) error {
	query := `UPDATE lectures SET transcript = $2, status = $3, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, transcript, status)
}

// SetSummary stores the summary and the matching status in one write.
func (r *LectureRepository) SetSummary(ctx context.Context, id uuid.UUID, summary string, status lecture.Status) error {
	query := `UPDATE lectures SET summary = $2, status = $3, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, summary, status)
}

// SetFlashcards stores the generated flashcards and the matching status.
func (r *LectureRepository) SetFlashcards(ctx context.Context, id uuid.UUID, flashcards string, status lecture.Status) error {
	query := `UPDATE lectures SET flashcards = $2, status = $3, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, flashcards, status)
}

// SetPDF stores the rendered PDF's storage key and public URL.
func (r *LectureRepository) SetPDF(ctx context.Context, id uuid.UUID, pdfKey, pdfURL string, status lecture.Status) error {
	query := `UPDATE lectures SET pdf_key = $2, pdf_url = $3, status = $4, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, query, id, pdfKey, pdfURL, status)
}

func (r *LectureRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrLectureNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *LectureRepository) scanLecture(row rowScanner) (*lecture.Lecture, error) {
	l := &lecture.Lecture{}
	var transcript, summary, flashcards, pdfKey, pdfURL sql.NullString

	err := row.Scan(
		&l.ID, &l.UserID, &l.Title, &l.AudioKey,
		&transcript, &summary, &flashcards,
		&l.Status, &pdfKey, &pdfURL,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLectureNotFound
		}
		return nil, err
	}

	if transcript.Valid {
		l.Transcript = &transcript.String
	}
	if summary.Valid {
		l.Summary = &summary.String
	}
	if flashcards.Valid {
		l.Flashcards = &flashcards.String
	}
	if pdfKey.Valid {
		l.PDFKey = &pdfKey.String
	}
	if pdfURL.Valid {
		l.PDFURL = &pdfURL.String
	}

	return l, nil
}
