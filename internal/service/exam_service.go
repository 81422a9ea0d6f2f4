package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/repository"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/store"
)

// Domain Errors
var (
	ErrNoQuestions          = errors.New("exam has no questions")
	ErrExamNotAvailable     = errors.New("exam is not available")
	ErrInvalidCorrectAnswer = errors.New("correct answer does not match any option")
	ErrInvalidSchedule      = errors.New("end time must be after start time")
)

// ExamService handles exam and question management and caches question sets
// in the KV store so live sessions never hit the database on start.
type ExamService struct {
	exams     repository.ExamStore
	questions repository.QuestionStore
	kv        store.KV
	log       zerolog.Logger
	now       func() time.Time
}

// NewExamService creates a new ExamService.
func NewExamService(
	exams repository.ExamStore,
	questions repository.QuestionStore,
	kv store.KV,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		exams:     exams,
		questions: questions,
		kv:        kv,
		log:       log.With().Str("component", "exam_service").Logger(),
		now:       time.Now,
	}
}

// GetByID retrieves an exam by its UUID.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.exams.GetByID(ctx, id)
}

// List retrieves exams page by page, newest first.
func (s *ExamService) List(ctx context.Context, page, perPage int) ([]model.Exam, *response.Pagination, error) {
	pagination := response.NewPagination(page, perPage, 0)
	exams, total, err := s.exams.ListPaginated(ctx, pagination.PerPage, pagination.Offset())
	if err != nil {
		return nil, nil, err
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	return exams, response.NewPagination(pagination.Page, pagination.PerPage, total), nil
}

// Create inserts a new, inactive exam.
func (s *ExamService) Create(ctx context.Context, adminID uuid.UUID, req *model.CreateExamRequest) (*model.Exam, error) {
	exam := &model.Exam{
		Title:                  strings.TrimSpace(req.Title),
		Description:            req.Description,
		StartTime:              req.StartTime,
		EndTime:                req.EndTime,
		DurationMinutes:        req.DurationMinutes,
		PassingMarks:           req.PassingMarks,
		RandomizeQuestions:     req.RandomizeQuestions,
		ShowResultsImmediately: req.ShowResultsImmediately,
		AllowReview:            req.AllowReview,
		CreatedBy:              adminID,
	}
	if err := s.exams.Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}
	s.log.Info().Str("exam_id", exam.ID.String()).Msg("Exam created")
	return exam, nil
}

// Update applies the non-empty fields of req.
func (s *ExamService) Update(ctx context.Context, id uuid.UUID, req *model.UpdateExamRequest) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		exam.Title = strings.TrimSpace(req.Title)
	}
	if req.Description != nil {
		exam.Description = *req.Description
	}
	if req.StartTime != nil {
		exam.StartTime = req.StartTime
	}
	if req.EndTime != nil {
		exam.EndTime = req.EndTime
	}
	if req.DurationMinutes > 0 {
		exam.DurationMinutes = req.DurationMinutes
	}
	if req.PassingMarks != nil {
		exam.PassingMarks = *req.PassingMarks
	}
	if req.RandomizeQuestions != nil {
		exam.RandomizeQuestions = *req.RandomizeQuestions
	}
	if req.ShowResultsImmediately != nil {
		exam.ShowResultsImmediately = *req.ShowResultsImmediately
	}
	if req.AllowReview != nil {
		exam.AllowReview = *req.AllowReview
	}
	if exam.StartTime != nil && exam.EndTime != nil && !exam.EndTime.After(*exam.StartTime) {
		return nil, ErrInvalidSchedule
	}

	if err := s.exams.Update(ctx, exam); err != nil {
		return nil, err
	}
	return exam, nil
}

// Delete removes an exam with its questions.
func (s *ExamService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.exams.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// SetActive publishes or withdraws an exam. An exam without questions cannot be activated.
func (s *ExamService) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	exam, err := s.exams.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if active {
		if err := s.WarmExamCache(ctx, exam); err != nil {
			return err
		}
	}

	if err := s.exams.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	s.log.Info().Str("exam_id", id.String()).Bool("active", active).Msg("Exam visibility changed")
	return nil
}

// ─── Questions ─────────────────────────────────────────────────────────

func buildQuestion(examID uuid.UUID, req *model.AddQuestionRequest) (model.Question, error) {
	q := model.Question{
		ExamID:        examID,
		Subject:       model.Subject(strings.ToLower(req.Subject)),
		QuestionText:  strings.TrimSpace(req.QuestionText),
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		Marks:         req.Marks,
		ImageURL:      req.ImageURL,
		Difficulty:    model.Difficulty(req.Difficulty),
		Topic:         req.Topic,
		Explanation:   req.Explanation,
		OrderNum:      req.OrderNum,
	}
	if q.Marks <= 0 {
		q.Marks = model.DefaultMarks
	}
	if q.Difficulty == "" {
		q.Difficulty = model.DifficultyMedium
	}
	if !q.HasOption(q.CorrectAnswer) {
		return q, ErrInvalidCorrectAnswer
	}
	return q, nil
}

// AddQuestion appends a question to an exam.
func (s *ExamService) AddQuestion(ctx context.Context, examID uuid.UUID, req *model.AddQuestionRequest) (*model.Question, error) {
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		return nil, err
	}
	q, err := buildQuestion(examID, req)
	if err != nil {
		return nil, err
	}
	if err := s.questions.Create(ctx, &q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	s.afterQuestionsChanged(ctx, examID)
	return &q, nil
}

// ReplaceQuestions swaps the full question set of an exam.
func (s *ExamService) ReplaceQuestions(ctx context.Context, examID uuid.UUID, reqs []model.AddQuestionRequest) ([]model.Question, error) {
	qs := make([]model.Question, 0, len(reqs))
	for i := range reqs {
		q, err := buildQuestion(examID, &reqs[i])
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		qs = append(qs, q)
	}
	return s.ReplaceQuestionSet(ctx, examID, qs)
}

// ReplaceQuestionSet stores already-built questions as the exam's full set.
func (s *ExamService) ReplaceQuestionSet(ctx context.Context, examID uuid.UUID, qs []model.Question) ([]model.Question, error) {
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		return nil, err
	}
	if err := s.questions.ReplaceForExam(ctx, examID, qs); err != nil {
		return nil, fmt.Errorf("replace questions: %w", err)
	}
	s.afterQuestionsChanged(ctx, examID)
	return qs, nil
}

// AppendQuestions adds already-built questions after the existing ones.
func (s *ExamService) AppendQuestions(ctx context.Context, examID uuid.UUID, qs []model.Question) ([]model.Question, error) {
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		return nil, err
	}
	for i := range qs {
		qs[i].ExamID = examID
		if err := s.questions.Create(ctx, &qs[i]); err != nil {
			s.afterQuestionsChanged(ctx, examID)
			return nil, fmt.Errorf("create question %d: %w", i+1, err)
		}
	}
	s.afterQuestionsChanged(ctx, examID)
	return qs, nil
}

// DeleteQuestion removes one question of an exam.
func (s *ExamService) DeleteQuestion(ctx context.Context, examID, questionID uuid.UUID) error {
	if err := s.questions.Delete(ctx, examID, questionID); err != nil {
		return err
	}
	s.afterQuestionsChanged(ctx, examID)
	return nil
}

// afterQuestionsChanged refreshes the cached total marks and drops the question cache.
func (s *ExamService) afterQuestionsChanged(ctx context.Context, examID uuid.UUID) {
	s.invalidate(ctx, examID)

	qs, err := s.questions.ListByExam(ctx, examID)
	if err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to recount marks")
		return
	}
	total := 0
	for i := range qs {
		total += qs[i].EffectiveMarks()
	}
	if err := s.exams.SetTotalMarks(ctx, examID, total); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to store total marks")
	}
}

func (s *ExamService) invalidate(ctx context.Context, examID uuid.UUID) {
	if err := s.kv.Del(ctx, config.CacheKey.ExamQuestionsKey(examID.String())); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to invalidate question cache")
	}
}

// Questions returns the full question set (including answer keys), from cache when possible.
func (s *ExamService) Questions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	key := config.CacheKey.ExamQuestionsKey(examID.String())
	if raw, err := s.kv.Get(ctx, key); err == nil {
		var qs []model.Question
		if err := json.Unmarshal([]byte(raw), &qs); err == nil {
			return qs, nil
		}
		s.log.Warn().Str("exam_id", examID.String()).Msg("Discarding corrupt question cache")
	} else if !errors.Is(err, store.ErrNotFound) {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Question cache unavailable")
	}

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := s.WarmExamCache(ctx, exam); err != nil && !errors.Is(err, ErrNoQuestions) {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to warm question cache")
	}
	return s.questions.ListByExam(ctx, examID)
}

// WarmExamCache loads an exam's questions into the KV store.
func (s *ExamService) WarmExamCache(ctx context.Context, exam *model.Exam) error {
	qs, err := s.questions.ListByExam(ctx, exam.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if len(qs) == 0 {
		return ErrNoQuestions
	}

	raw, err := json.Marshal(qs)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	if err := s.kv.Set(ctx, config.CacheKey.ExamQuestionsKey(exam.ID.String()), string(raw), 0); err != nil {
		return fmt.Errorf("cache questions: %w", err)
	}

	s.log.Debug().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(qs)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads all active exams into the KV store on startup.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.exams.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active exams: %w", err)
	}

	warmed := 0
	for i := range exams {
		if err := s.WarmExamCache(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

// ─── Student view ──────────────────────────────────────────────────────

// ListAvailable returns the active exams whose window is open now.
func (s *ExamService) ListAvailable(ctx context.Context) ([]model.Exam, error) {
	exams, err := s.exams.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]model.Exam, 0, len(exams))
	for i := range exams {
		if exams[i].IsOpen(now) {
			out = append(out, exams[i])
		}
	}
	return out, nil
}

// OpenExam returns an exam a student may take now along with its question set.
func (s *ExamService) OpenExam(ctx context.Context, examID uuid.UUID) (*model.Exam, []model.Question, error) {
	return s.open(ctx, examID, func(e *model.Exam) bool { return e.IsOpen(s.now()) })
}

// ResumeExam loads an exam for an attempt that already began. The start and
// end times are not checked, so a student can finish an attempt that outlived
// the window; the exam must still be active.
func (s *ExamService) ResumeExam(ctx context.Context, examID uuid.UUID) (*model.Exam, []model.Question, error) {
	return s.open(ctx, examID, func(e *model.Exam) bool { return e.Active })
}

func (s *ExamService) open(ctx context.Context, examID uuid.UUID, allowed func(*model.Exam) bool) (*model.Exam, []model.Question, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, nil, err
	}
	if !allowed(exam) {
		return nil, nil, ErrExamNotAvailable
	}
	qs, err := s.Questions(ctx, examID)
	if err != nil {
		return nil, nil, err
	}
	if len(qs) == 0 {
		return nil, nil, ErrNoQuestions
	}
	return exam, qs, nil
}

// Paper strips the answer key for delivery to a student.
func Paper(exam *model.Exam, qs []model.Question) model.ExamPaper {
	out := make([]model.QuestionForStudent, len(qs))
	for i := range qs {
		out[i] = qs[i].ForStudent()
	}
	return model.ExamPaper{Exam: *exam, Questions: out}
}
