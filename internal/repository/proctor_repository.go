package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/mocktest-backend/internal/model"
)

// ProctorRepository handles proctoring capture metadata.
type ProctorRepository struct {
	pool *pgxpool.Pool
}

// NewProctorRepository creates a new ProctorRepository.
func NewProctorRepository(pool *pgxpool.Pool) *ProctorRepository {
	return &ProctorRepository{pool: pool}
}

// Insert records one capture.
func (r *ProctorRepository) Insert(ctx context.Context, p *model.ProctorPhoto) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO proctor_photos (session_id, exam_id, student_id, url, captured_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		p.SessionID, p.ExamID, p.StudentID, p.URL, p.CapturedAt,
	).Scan(&p.ID)
}

// ListBySession returns the captures of one session in capture order.
func (r *ProctorRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.ProctorPhoto, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, exam_id, student_id, url, captured_at
		 FROM proctor_photos WHERE session_id = $1 ORDER BY captured_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []model.ProctorPhoto
	for rows.Next() {
		var p model.ProctorPhoto
		if err := rows.Scan(&p.ID, &p.SessionID, &p.ExamID, &p.StudentID, &p.URL, &p.CapturedAt); err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}
