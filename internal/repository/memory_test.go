package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/mocktest-backend/internal/model"
)

func TestMemoryUsers_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	users := NewMemory().Users()

	require.NoError(t, users.Create(ctx, &model.User{Email: "Ada@Example.com", Role: model.RoleStudent}))
	err := users.Create(ctx, &model.User{Email: "ada@example.com", Role: model.RoleStudent})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	u, err := users.GetByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
}

func TestMemoryExams_ListActiveAndDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	exams := m.Exams()

	a := &model.Exam{Title: "Mock A", DurationMinutes: 60}
	b := &model.Exam{Title: "Mock B", DurationMinutes: 60}
	require.NoError(t, exams.Create(ctx, a))
	require.NoError(t, exams.Create(ctx, b))
	require.NoError(t, exams.SetActive(ctx, b.ID, true))
	require.NoError(t, m.Questions().Create(ctx, &model.Question{ExamID: a.ID, Subject: model.SubjectPhysics}))

	active, err := exams.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)

	require.NoError(t, exams.Delete(ctx, a.ID))
	qs, err := m.Questions().ListByExam(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, qs)
	assert.ErrorIs(t, exams.Delete(ctx, a.ID), ErrNotFound)
}

func TestMemoryQuestions_OrderedBySubject(t *testing.T) {
	ctx := context.Background()
	qs := NewMemory().Questions()
	examID := uuid.New()

	require.NoError(t, qs.ReplaceForExam(ctx, examID, []model.Question{
		{Subject: model.SubjectChemistry, OrderNum: 1},
		{Subject: model.SubjectMathematics, OrderNum: 2},
		{Subject: model.SubjectMathematics, OrderNum: 1},
		{Subject: model.SubjectPhysics, OrderNum: 1},
	}))

	list, err := qs.ListByExam(ctx, examID)
	require.NoError(t, err)
	got := make([]model.Subject, len(list))
	for i, q := range list {
		got[i] = q.Subject
	}
	assert.Equal(t, []model.Subject{
		model.SubjectMathematics, model.SubjectMathematics, model.SubjectPhysics, model.SubjectChemistry,
	}, got)
	assert.Equal(t, 1, list[0].OrderNum)
}

func TestMemorySubmissions_IdempotentPerSession(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	subs := m.Submissions()
	examID, studentID, sessionID := uuid.New(), uuid.New(), uuid.New()

	sub := model.Submission{SessionID: sessionID, ExamID: examID, StudentID: studentID, Percentage: 50, SubmittedAt: time.Now()}
	require.NoError(t, subs.Insert(ctx, &sub))
	require.NoError(t, subs.BulkInsert(ctx, []model.Submission{sub}))

	list, err := subs.ListByStudent(ctx, studentID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = subs.GetByExamAndStudent(ctx, examID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryReports_ExamStats(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	exam := &model.Exam{Title: "Mock"}
	require.NoError(t, m.Exams().Create(ctx, exam))

	for _, pct := range []float64{40, 80, 60} {
		require.NoError(t, m.Submissions().Insert(ctx, &model.Submission{
			SessionID: uuid.New(), ExamID: exam.ID, StudentID: uuid.New(), Percentage: pct,
			Result: model.Result{Passed: pct >= 60},
		}))
	}

	stats, err := m.Reports().ExamStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 3, stats[0].TotalSubmissions)
	assert.InDelta(t, 60.0, stats[0].AverageScore, 0.001)
	assert.Equal(t, 80.0, stats[0].HighestScore)
	assert.Equal(t, 40.0, stats[0].LowestScore)
	assert.Equal(t, 2, stats[0].PassedCount)

	summaries, err := m.Reports().SubmissionsByExam(ctx, exam.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, 80.0, summaries[0].Percentage)
}

func TestMemoryUsers_ListByRole(t *testing.T) {
	ctx := context.Background()
	users := NewMemory().Users()
	for _, u := range []model.User{
		{Email: "zed@example.com", Name: "Zed", Role: model.RoleStudent},
		{Email: "amy@example.com", Name: "Amy", Role: model.RoleStudent},
		{Email: "root@example.com", Name: "Root", Role: model.RoleAdmin},
		{Email: "max@example.com", Name: "Max", Role: model.RoleStudent},
	} {
		require.NoError(t, users.Create(ctx, &u))
	}

	page, total, err := users.ListByRole(ctx, model.RoleStudent, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "Amy", page[0].Name)
	assert.Equal(t, "Max", page[1].Name)

	page, _, err = users.ListByRole(ctx, model.RoleStudent, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Zed", page[0].Name)

	page, total, err = users.ListByRole(ctx, model.RoleStudent, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Equal(t, 3, total)
}

func TestMemoryReports_StudentActivity(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	active, idle, other := uuid.New(), uuid.New(), uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, score := range []int{12, 4, 8} {
		require.NoError(t, m.Submissions().Insert(ctx, &model.Submission{
			SessionID: uuid.New(), ExamID: uuid.New(), StudentID: active,
			Score: score, TotalMarks: 16, Percentage: float64(score) / 16 * 100,
			// The 8 is the most recent.
			SubmittedAt: base.Add(time.Duration([]int{1, 0, 2}[i]) * time.Hour),
		}))
	}
	require.NoError(t, m.Submissions().Insert(ctx, &model.Submission{
		SessionID: uuid.New(), ExamID: uuid.New(), StudentID: other, Score: 1, SubmittedAt: base,
	}))

	got, err := m.Reports().StudentActivity(ctx, []uuid.UUID{active, idle})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[active].Submissions)
	assert.Equal(t, 8, got[active].LatestScore)
	assert.Equal(t, 16, got[active].LatestTotalMarks)
	assert.True(t, got[active].LastSubmittedAt.Equal(base.Add(2*time.Hour)))
	_, ok := got[idle]
	assert.False(t, ok)
}
