package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/session"
)

func TestSubmissionService_ScoresAndQueues(t *testing.T) {
	env := newTestEnv(t)
	exam, qs := env.seedExam(t)
	svc := NewSubmissionService(env.exams, env.repo.Submissions(), env.queue, 40, env.log)

	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	payload := model.SubmissionPayload{
		SessionID: uuid.New(),
		ExamID:    exam.ID,
		StudentID: uuid.New(),
		Answers: model.AnswerSet{
			model.SubjectMathematics: {{QuestionID: qs[0].ID.String(), SelectedAnswer: "a"}},
			model.SubjectPhysics:     {{QuestionID: qs[2].ID.String(), SelectedAnswer: "a"}},
		},
		StartedAt:  started,
		FinishedAt: started.Add(20 * time.Minute),
		TimeTaken:  1200,
		Trigger:    model.TriggerUser,
	}

	out := svc.Submit(context.Background(), payload)
	require.True(t, out.IsOk(), out.Message())

	result, _ := out.Result()
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 11, result.TotalMarks)
	assert.Equal(t, 1200, result.TimeTaken)
	assert.Equal(t, "F", result.Grade)
	assert.False(t, result.Passed)

	require.Equal(t, 1, env.queue.Len(config.WorkerKey.PersistSubmissionsQueue))
	raw, err := env.queue.Pop(context.Background(), config.WorkerKey.PersistSubmissionsQueue, time.Second)
	require.NoError(t, err)

	var sub model.Submission
	require.NoError(t, json.Unmarshal(raw, &sub))
	assert.Equal(t, payload.SessionID, sub.SessionID)
	assert.Equal(t, 4, sub.Score)
	assert.Equal(t, []string{}, sub.FlaggedQuestions)
	assert.Equal(t, payload.FinishedAt, sub.SubmittedAt)
}

type brokenQueue struct{}

func (brokenQueue) Push(context.Context, string, ...[]byte) error { return assert.AnError }
func (brokenQueue) Pop(context.Context, string, time.Duration) ([]byte, error) {
	return nil, assert.AnError
}

func TestSubmissionService_WritesDirectlyWhenQueueFails(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.seedExam(t)
	svc := NewSubmissionService(env.exams, env.repo.Submissions(), brokenQueue{}, 40, env.log)

	student := uuid.New()
	out := svc.Submit(context.Background(), model.SubmissionPayload{
		SessionID: uuid.New(), ExamID: exam.ID, StudentID: student, Answers: model.AnswerSet{},
	})
	require.True(t, out.IsOk())

	history, err := svc.History(context.Background(), student)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 0, history[0].Score)
}

func TestSubmissionService_UnknownExamIsAnError(t *testing.T) {
	env := newTestEnv(t)
	svc := NewSubmissionService(env.exams, env.repo.Submissions(), env.queue, 40, env.log)

	out := svc.Submit(context.Background(), model.SubmissionPayload{ExamID: uuid.New()})
	assert.False(t, out.IsOk())
	assert.Equal(t, "Could not load exam questions", out.Message())
}

func TestSubmissionService_PassingMarksOverridePercent(t *testing.T) {
	env := newTestEnv(t)
	exam, qs := env.seedExam(t)
	passing := 4
	_, err := env.exams.Update(context.Background(), exam.ID, &model.UpdateExamRequest{PassingMarks: &passing})
	require.NoError(t, err)
	svc := NewSubmissionService(env.exams, env.repo.Submissions(), env.queue, 40, env.log)

	out := svc.Submit(context.Background(), model.SubmissionPayload{
		SessionID: uuid.New(), ExamID: exam.ID, StudentID: uuid.New(),
		Answers: model.AnswerSet{model.SubjectMathematics: {{QuestionID: qs[0].ID.String(), SelectedAnswer: "a"}}},
	})
	require.True(t, out.IsOk(), out.Message())

	result, _ := out.Result()
	assert.Equal(t, 4, result.Total)
	assert.Less(t, result.Percentage, 40.0)
	assert.True(t, result.Passed, "4 of 11 meets a passing mark of 4")
	assert.Equal(t, "F", result.Grade)
}

type stubSink struct {
	out  session.Outcome
	seen []model.SubmissionPayload
}

func (s *stubSink) Submit(_ context.Context, p model.SubmissionPayload) session.Outcome {
	s.seen = append(s.seen, p)
	return s.out
}

func TestSubmissionService_RecordingRemoteResults(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.seedExam(t)
	svc := NewSubmissionService(env.exams, env.repo.Submissions(), env.queue, 40, env.log)
	remote := &stubSink{out: session.Ok(model.Result{Total: 8, TotalMarks: 11, Percentage: 72.73})}
	sink := svc.Recording(remote)

	payload := model.SubmissionPayload{
		SessionID:          uuid.New(),
		ExamID:             exam.ID,
		StudentID:          uuid.New(),
		Answers:            model.AnswerSet{},
		TabSwitchCount:     2,
		SuspiciousActivity: []string{"Tab switched", "Tab switched"},
		TimeTaken:          600,
		Trigger:            model.TriggerTimer,
	}

	out := sink.Submit(context.Background(), payload)
	require.True(t, out.IsOk())
	require.Len(t, remote.seen, 1)

	result, _ := out.Result()
	assert.Equal(t, 8, result.Total)
	assert.Equal(t, "B", result.Grade)
	assert.True(t, result.Passed)
	assert.Equal(t, 600, result.TimeTaken)

	raw, err := env.queue.Pop(context.Background(), config.WorkerKey.PersistSubmissionsQueue, time.Second)
	require.NoError(t, err)
	var sub model.Submission
	require.NoError(t, json.Unmarshal(raw, &sub))
	assert.Equal(t, payload.SessionID, sub.SessionID)
	assert.Equal(t, 8, sub.Score)
	assert.Equal(t, 2, sub.TabSwitches)
	assert.Equal(t, payload.SuspiciousActivity, sub.SuspiciousActivity)
	assert.Equal(t, model.TriggerTimer, sub.Trigger)
}

func TestSubmissionService_RecordingSkipsRemoteFailures(t *testing.T) {
	env := newTestEnv(t)
	exam, _ := env.seedExam(t)
	svc := NewSubmissionService(env.exams, env.repo.Submissions(), env.queue, 40, env.log)
	sink := svc.Recording(&stubSink{out: session.Err("Exam closed")})

	out := sink.Submit(context.Background(), model.SubmissionPayload{SessionID: uuid.New(), ExamID: exam.ID, StudentID: uuid.New()})
	assert.False(t, out.IsOk())
	assert.Equal(t, "Exam closed", out.Message())
	assert.Equal(t, 0, env.queue.Len(config.WorkerKey.PersistSubmissionsQueue))
}
