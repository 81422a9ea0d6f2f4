package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/stemsi/mocktest-backend/internal/model"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrDuplicate      = errors.New("record already exists")
)

// ExamStore persists exams.
type ExamStore interface {
	Create(ctx context.Context, e *model.Exam) error
	Update(ctx context.Context, e *model.Exam) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListPaginated(ctx context.Context, limit, offset int) ([]model.Exam, int, error)
	ListActive(ctx context.Context) ([]model.Exam, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	SetTotalMarks(ctx context.Context, id uuid.UUID, total int) error
}

// QuestionStore persists the questions of an exam.
type QuestionStore interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
	Create(ctx context.Context, q *model.Question) error
	ReplaceForExam(ctx context.Context, examID uuid.UUID, qs []model.Question) error
	Delete(ctx context.Context, examID, id uuid.UUID) error
}

// UserStore persists admin and student accounts.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	CountByRole(ctx context.Context, role model.Role) (int, error)
	ListByRole(ctx context.Context, role model.Role, limit, offset int) ([]model.User, int, error)
}

// SubmissionStore persists scored submissions. Inserts are idempotent per session id.
type SubmissionStore interface {
	Insert(ctx context.Context, s *model.Submission) error
	BulkInsert(ctx context.Context, subs []model.Submission) error
	GetByExamAndStudent(ctx context.Context, examID, studentID uuid.UUID) (*model.Submission, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID) ([]model.Submission, error)
}

// ReportStore answers the aggregate queries of the admin reports.
type ReportStore interface {
	Summary(ctx context.Context) (students, exams, submissions int, err error)
	ExamStats(ctx context.Context) ([]model.ExamStat, error)
	SubmissionsByExam(ctx context.Context, examID uuid.UUID) ([]model.SubmissionSummary, error)
	StudentActivity(ctx context.Context, studentIDs []uuid.UUID) (map[uuid.UUID]model.StudentActivity, error)
}

// ProctorStore persists proctoring capture metadata.
type ProctorStore interface {
	Insert(ctx context.Context, p *model.ProctorPhoto) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.ProctorPhoto, error)
}
