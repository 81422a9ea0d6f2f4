package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/mocktest-backend/internal/model"
)

// ReportRepository answers the admin report queries.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository creates a new ReportRepository.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// Summary retrieves the high-level counts for the dashboard.
func (r *ReportRepository) Summary(ctx context.Context) (students, exams, submissions int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM users WHERE role = 'student'),
			(SELECT COUNT(*) FROM exams),
			(SELECT COUNT(*) FROM submissions)`,
	).Scan(&students, &exams, &submissions)
	return
}

// ExamStats aggregates submission percentages and pass counts per exam.
func (r *ReportRepository) ExamStats(ctx context.Context) ([]model.ExamStat, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.title, e.active, COUNT(s.id),
		        COALESCE(AVG(s.percentage), 0)::float8,
		        COALESCE(MAX(s.percentage), 0)::float8,
		        COALESCE(MIN(s.percentage), 0)::float8,
		        COUNT(s.id) FILTER (WHERE (s.result->>'passed')::boolean)
		 FROM exams e
		 LEFT JOIN submissions s ON s.exam_id = e.id
		 GROUP BY e.id, e.title, e.active, e.created_at
		 ORDER BY e.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []model.ExamStat
	for rows.Next() {
		var st model.ExamStat
		if err := rows.Scan(&st.ID, &st.Title, &st.Active, &st.TotalSubmissions,
			&st.AverageScore, &st.HighestScore, &st.LowestScore, &st.PassedCount); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// SubmissionsByExam lists an exam's submissions joined with student details, best first.
func (r *ReportRepository) SubmissionsByExam(ctx context.Context, examID uuid.UUID) ([]model.SubmissionSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.session_id, s.exam_id, e.title, s.student_id, u.name, u.email, s.score, s.total_marks,
		        s.percentage::float8, s.time_taken, s.submitted_at,
		        jsonb_array_length(s.flagged_questions), s.tab_switches,
		        jsonb_array_length(s.suspicious_activity)
		 FROM submissions s
		 JOIN exams e ON e.id = s.exam_id
		 JOIN users u ON u.id = s.student_id
		 WHERE s.exam_id = $1
		 ORDER BY s.percentage DESC, s.submitted_at`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SubmissionSummary
	for rows.Next() {
		var s model.SubmissionSummary
		if err := rows.Scan(&s.ID, &s.SessionID, &s.ExamID, &s.ExamTitle, &s.StudentID, &s.StudentName, &s.StudentEmail,
			&s.Score, &s.TotalMarks, &s.Percentage, &s.TimeTaken, &s.SubmittedAt,
			&s.FlaggedQuestions, &s.TabSwitches, &s.SuspiciousActivities); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// StudentActivity counts each student's submissions and picks the latest score.
// Students without submissions are absent from the map.
func (r *ReportRepository) StudentActivity(ctx context.Context, studentIDs []uuid.UUID) (map[uuid.UUID]model.StudentActivity, error) {
	out := make(map[uuid.UUID]model.StudentActivity, len(studentIDs))
	if len(studentIDs) == 0 {
		return out, nil
	}
	ids := make([]string, len(studentIDs))
	for i, id := range studentIDs {
		ids[i] = id.String()
	}

	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT ON (student_id)
		        student_id,
		        COUNT(*) OVER (PARTITION BY student_id),
		        score, total_marks, percentage::float8, submitted_at
		 FROM submissions
		 WHERE student_id = ANY($1::uuid[])
		 ORDER BY student_id, submitted_at DESC`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id uuid.UUID
			a  model.StudentActivity
		)
		if err := rows.Scan(&id, &a.Submissions, &a.LatestScore, &a.LatestTotalMarks,
			&a.LatestPercentage, &a.LastSubmittedAt); err != nil {
			return nil, err
		}
		out[id] = a
	}
	return out, rows.Err()
}
