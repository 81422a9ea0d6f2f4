package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/repository"
	"github.com/stemsi/mocktest-backend/internal/scoring"
	"github.com/stemsi/mocktest-backend/internal/session"
	"github.com/stemsi/mocktest-backend/internal/store"
)

// SubmissionService is the in-process grader. It scores a payload against
// the exam's answer key and queues the record for the persistence worker.
type SubmissionService struct {
	exams          *ExamService
	submissions    repository.SubmissionStore
	queue          store.Queue
	passingPercent float64
	log            zerolog.Logger
	now            func() time.Time
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	exams *ExamService,
	submissions repository.SubmissionStore,
	queue store.Queue,
	passingPercent float64,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		exams:          exams,
		submissions:    submissions,
		queue:          queue,
		passingPercent: passingPercent,
		log:            log.With().Str("component", "submission_service").Logger(),
		now:            time.Now,
	}
}

// Submit implements session.Sink.
func (s *SubmissionService) Submit(ctx context.Context, p model.SubmissionPayload) session.Outcome {
	exam, err := s.exams.GetByID(ctx, p.ExamID)
	if err != nil {
		s.log.Error().Err(err).Str("exam_id", p.ExamID.String()).Msg("Failed to load exam for scoring")
		return session.Err("Could not load exam questions")
	}
	qs, err := s.exams.Questions(ctx, p.ExamID)
	if err != nil {
		s.log.Error().Err(err).Str("exam_id", p.ExamID.String()).Msg("Failed to load questions for scoring")
		return session.Err("Could not load exam questions")
	}
	if len(qs) == 0 {
		return session.Err("Exam has no questions")
	}

	result := scoring.Score(qs, p.Answers)
	result.TimeTaken = p.TimeTaken
	s.grade(exam, &result)

	sub := s.submission(p, result)
	if err := s.record(ctx, &sub); err != nil {
		s.log.Error().Err(err).Str("session_id", p.SessionID.String()).Msg("Failed to record submission")
		return session.Err("Could not record submission, please try again")
	}

	s.log.Info().
		Str("session_id", p.SessionID.String()).
		Str("exam_id", p.ExamID.String()).
		Str("student_id", p.StudentID.String()).
		Int("score", result.Total).
		Int("total_marks", result.TotalMarks).
		Bool("passed", result.Passed).
		Str("trigger", string(p.Trigger)).
		Msg("Submission scored")
	return session.Ok(result)
}

// grade sets the letter grade and the pass mark. An exam's passing_marks
// overrides the global passing percentage when set.
func (s *SubmissionService) grade(exam *model.Exam, result *model.Result) {
	result.Grade, result.Passed = scoring.Grade(result.Percentage, s.passingPercent)
	if exam != nil && exam.PassingMarks > 0 {
		result.Passed = result.Total >= exam.PassingMarks
	}
}

func (s *SubmissionService) submission(p model.SubmissionPayload, result model.Result) model.Submission {
	sub := model.Submission{
		ID:                 uuid.New(),
		SessionID:          p.SessionID,
		ExamID:             p.ExamID,
		StudentID:          p.StudentID,
		Answers:            p.Answers,
		Score:              result.Total,
		TotalMarks:         result.TotalMarks,
		Percentage:         result.Percentage,
		TimeTaken:          p.TimeTaken,
		FlaggedQuestions:   nonNil(p.FlaggedQuestions),
		TabSwitches:        p.TabSwitchCount,
		SuspiciousActivity: nonNil(p.SuspiciousActivity),
		Result:             result,
		Trigger:            p.Trigger,
		StartedAt:          p.StartedAt,
		SubmittedAt:        p.FinishedAt,
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = s.now()
	}
	return sub
}

// Recording returns a sink that grades on remote and records every accepted
// result the same way local grading does, so history, reports and the
// integrity record stay complete.
func (s *SubmissionService) Recording(remote session.Sink) session.Sink {
	return &recordingSink{remote: remote, svc: s}
}

type recordingSink struct {
	remote session.Sink
	svc    *SubmissionService
}

func (r *recordingSink) Submit(ctx context.Context, p model.SubmissionPayload) session.Outcome {
	out := r.remote.Submit(ctx, p)
	result, ok := out.Result()
	if !ok {
		return out
	}

	if result.Grade == "" {
		exam, err := r.svc.exams.GetByID(ctx, p.ExamID)
		if err != nil {
			r.svc.log.Warn().Err(err).Str("exam_id", p.ExamID.String()).Msg("Grading remote result without exam settings")
		}
		r.svc.grade(exam, &result)
	}
	if result.TimeTaken == 0 {
		result.TimeTaken = p.TimeTaken
	}

	sub := r.svc.submission(p, result)
	if err := r.svc.record(ctx, &sub); err != nil {
		// The grader already accepted the attempt; the student keeps the result.
		r.svc.log.Error().Err(err).Str("session_id", p.SessionID.String()).Msg("Failed to record remote submission")
	}
	return session.Ok(result)
}

// record hands the submission to the persistence worker, writing it directly
// when the queue is unavailable.
func (s *SubmissionService) record(ctx context.Context, sub *model.Submission) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	err = s.queue.Push(ctx, config.WorkerKey.PersistSubmissionsQueue, raw)
	if err == nil {
		return nil
	}
	s.log.Warn().Err(err).Msg("Submission queue unavailable, writing directly")
	return s.submissions.Insert(ctx, sub)
}

// History lists the recorded submissions of a student, newest first.
func (s *SubmissionService) History(ctx context.Context, studentID uuid.UUID) ([]model.Submission, error) {
	subs, err := s.submissions.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []model.Submission{}
	}
	return subs, nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
