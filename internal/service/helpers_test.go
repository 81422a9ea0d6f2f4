package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/repository"
	"github.com/stemsi/mocktest-backend/internal/store"
)

type testEnv struct {
	cfg   *config.Config
	repo  *repository.Memory
	kv    *store.MemoryKV
	queue *store.MemoryQueue
	exams *ExamService
	log   zerolog.Logger
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		JWTSecret:          "test-secret",
		JWTExpiry:          time.Hour,
		BcryptCost:         4,
		UploadDir:          t.TempDir(),
		MaxUploadBytes:     1 << 20,
		TickInterval:       time.Hour,
		AutosaveInterval:   time.Hour,
		DefaultMarks:       4,
		PassingPercent:     40,
		SessionIdleTimeout: 15 * time.Minute,
		SnapshotTTL:        time.Hour,
		ResultTTL:          time.Hour,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := repository.NewMemory()
	kv := store.NewMemoryKV()
	log := zerolog.Nop()
	return &testEnv{
		cfg:   testConfig(t),
		repo:  repo,
		kv:    kv,
		queue: store.NewMemoryQueue(),
		exams: NewExamService(repo.Exams(), repo.Questions(), kv, log),
		log:   log,
	}
}

func optionsABCD() []model.Option {
	return []model.Option{
		{ID: "a", Text: "Alpha"},
		{ID: "b", Text: "Beta"},
		{ID: "c", Text: "Gamma"},
		{ID: "d", Text: "Delta"},
	}
}

// seedExam creates an active one-hour exam with two mathematics questions and
// one physics question.
func (e *testEnv) seedExam(t *testing.T) (*model.Exam, []model.Question) {
	t.Helper()
	ctx := context.Background()

	exam, err := e.exams.Create(ctx, uuid.New(), &model.CreateExamRequest{
		Title:           "JEE Mock 1",
		DurationMinutes: 60,
	})
	require.NoError(t, err)

	qs, err := e.exams.ReplaceQuestions(ctx, exam.ID, []model.AddQuestionRequest{
		{Subject: "mathematics", QuestionText: "2+2", Options: optionsABCD(), CorrectAnswer: "a", OrderNum: 1},
		{Subject: "mathematics", QuestionText: "3*3", Options: optionsABCD(), CorrectAnswer: "b", OrderNum: 2},
		{Subject: "physics", QuestionText: "g", Options: optionsABCD(), CorrectAnswer: "c", Marks: 3, OrderNum: 1},
	})
	require.NoError(t, err)
	require.NoError(t, e.exams.SetActive(ctx, exam.ID, true))

	exam, err = e.exams.GetByID(ctx, exam.ID)
	require.NoError(t, err)
	return exam, qs
}
