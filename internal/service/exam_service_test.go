package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/model"
)

func TestExamService_TotalMarksFollowQuestions(t *testing.T) {
	env := newTestEnv(t)
	exam, qs := env.seedExam(t)

	assert.Equal(t, 11, exam.TotalMarks)

	require.NoError(t, env.exams.DeleteQuestion(context.Background(), exam.ID, qs[2].ID))
	exam, err := env.exams.GetByID(context.Background(), exam.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, exam.TotalMarks)
}

func TestExamService_AddQuestionRejectsUnknownCorrectAnswer(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.seedExam(t)

	_, err := env.exams.AddQuestion(context.Background(), exam.ID, &model.AddQuestionRequest{
		Subject: "chemistry", QuestionText: "pH", Options: optionsABCD(), CorrectAnswer: "z",
	})
	assert.ErrorIs(t, err, ErrInvalidCorrectAnswer)
}

func TestExamService_SetActiveRequiresQuestions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	exam, err := env.exams.Create(ctx, uuid.New(), &model.CreateExamRequest{Title: "Empty", DurationMinutes: 30})
	require.NoError(t, err)

	assert.ErrorIs(t, env.exams.SetActive(ctx, exam.ID, true), ErrNoQuestions)
	assert.NoError(t, env.exams.SetActive(ctx, exam.ID, false))
}

func TestExamService_QuestionsServedFromCache(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.seedExam(t)
	ctx := context.Background()

	_, err := env.kv.Get(ctx, config.CacheKey.ExamQuestionsKey(exam.ID.String()))
	require.NoError(t, err, "activation warms the cache")

	qs, err := env.exams.Questions(ctx, exam.ID)
	require.NoError(t, err)
	require.Len(t, qs, 3)
	assert.Equal(t, model.SubjectMathematics, qs[0].Subject)
	assert.Equal(t, model.SubjectPhysics, qs[2].Subject)

	_, err = env.exams.AddQuestion(ctx, exam.ID, &model.AddQuestionRequest{
		Subject: "chemistry", QuestionText: "pH", Options: optionsABCD(), CorrectAnswer: "d",
	})
	require.NoError(t, err)

	qs, err = env.exams.Questions(ctx, exam.ID)
	require.NoError(t, err)
	assert.Len(t, qs, 4, "changing questions invalidates the cache")
}

func TestExamService_ListAvailableHonoursWindow(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.seedExam(t)
	ctx := context.Background()

	later := time.Now().Add(2 * time.Hour)
	_, err := env.exams.Update(ctx, exam.ID, &model.UpdateExamRequest{StartTime: &later})
	require.NoError(t, err)

	list, err := env.exams.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, _, err = env.exams.OpenExam(ctx, exam.ID)
	assert.ErrorIs(t, err, ErrExamNotAvailable)
}

func TestExamService_UpdateRejectsInvertedSchedule(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.seedExam(t)

	start := time.Now()
	end := start.Add(-time.Minute)
	_, err := env.exams.Update(context.Background(), exam.ID, &model.UpdateExamRequest{StartTime: &start, EndTime: &end})
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestExamService_ListPaginates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := env.exams.Create(ctx, uuid.New(), &model.CreateExamRequest{Title: "Mock exam", DurationMinutes: 30})
		require.NoError(t, err)
	}

	exams, page, err := env.exams.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, exams, 1)
	assert.Equal(t, 3, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
}

func TestPaper_HidesAnswerKey(t *testing.T) {
	env := newTestEnv(t)
	exam, qs := env.seedExam(t)

	paper := Paper(exam, qs)
	require.Len(t, paper.Questions, 3)
	assert.Equal(t, qs[0].ID, paper.Questions[0].ID)
	assert.Equal(t, 4, paper.Questions[0].Marks)
}
