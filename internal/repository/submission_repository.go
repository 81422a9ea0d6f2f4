package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/mocktest-backend/internal/model"
)

// SubmissionRepository handles submission data access.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

var submissionCopyColumns = []string{
	"id", "session_id", "exam_id", "student_id", "answers", "score", "total_marks", "percentage",
	"time_taken", "flagged_questions", "tab_switches", "suspicious_activity", "result", "trigger",
	"started_at", "submitted_at",
}

func submissionRow(s *model.Submission) []any {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return []any{
		s.ID, s.SessionID, s.ExamID, s.StudentID, s.Answers, s.Score, s.TotalMarks, s.Percentage,
		s.TimeTaken, s.FlaggedQuestions, s.TabSwitches, s.SuspiciousActivity, s.Result, s.Trigger,
		s.StartedAt, s.SubmittedAt,
	}
}

// Insert stores one submission. A second insert for the same session is ignored.
func (r *SubmissionRepository) Insert(ctx context.Context, s *model.Submission) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO submissions (id, session_id, exam_id, student_id, answers, score, total_marks, percentage,
		                          time_taken, flagged_questions, tab_switches, suspicious_activity, result,
		                          trigger, started_at, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (session_id) DO NOTHING`,
		submissionRow(s)...,
	)
	return err
}

// BulkInsert stores a batch with the COPY protocol. Any conflict fails the
// whole batch; callers fall back to Insert.
func (r *SubmissionRepository) BulkInsert(ctx context.Context, subs []model.Submission) error {
	rows := make([][]any, 0, len(subs))
	for i := range subs {
		rows = append(rows, submissionRow(&subs[i]))
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"submissions"},
		submissionCopyColumns,
		pgx.CopyFromRows(rows),
	)
	return err
}

const submissionColumns = `id, session_id, exam_id, student_id, answers, score, total_marks, percentage,
	time_taken, flagged_questions, tab_switches, suspicious_activity, result, trigger, started_at, submitted_at`

func scanSubmission(row pgx.Row, s *model.Submission) error {
	return row.Scan(&s.ID, &s.SessionID, &s.ExamID, &s.StudentID, &s.Answers, &s.Score, &s.TotalMarks,
		&s.Percentage, &s.TimeTaken, &s.FlaggedQuestions, &s.TabSwitches, &s.SuspiciousActivity,
		&s.Result, &s.Trigger, &s.StartedAt, &s.SubmittedAt)
}

// GetByExamAndStudent returns the latest submission of a student for an exam.
func (r *SubmissionRepository) GetByExamAndStudent(ctx context.Context, examID, studentID uuid.UUID) (*model.Submission, error) {
	s := &model.Submission{}
	err := scanSubmission(r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE exam_id = $1 AND student_id = $2
		 ORDER BY submitted_at DESC LIMIT 1`, examID, studentID), s)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListByStudent returns a student's submissions, newest first.
func (r *SubmissionRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE student_id = $1 ORDER BY submitted_at DESC`,
		studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		var s model.Submission
		if err := scanSubmission(rows, &s); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
