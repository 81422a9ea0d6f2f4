// Package demo fills an empty deployment with an admin, a handful of
// students and one published mock test.
package demo

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/repository"
	"github.com/stemsi/mocktest-backend/internal/service"
)

// Options controls what Seed creates.
type Options struct {
	AdminEmail      string
	AdminPassword   string
	StudentPassword string
	Students        int
}

// DefaultOptions matches the credentials printed in the README.
var DefaultOptions = Options{
	AdminEmail:      "admin@mocktest.local",
	AdminPassword:   "admin12345",
	StudentPassword: "student123",
	Students:        5,
}

// Report summarizes what a Seed run created.
type Report struct {
	AdminCreated bool
	Students     int
	ExamID       string
	Questions    int
}

// Seed is idempotent for accounts: existing emails are skipped. The demo exam
// is only created when no admin existed before the run.
func Seed(
	ctx context.Context,
	users repository.UserStore,
	auth *service.AuthService,
	exams *service.ExamService,
	opts Options,
	log zerolog.Logger,
) (*Report, error) {
	log = log.With().Str("component", "demo_seed").Logger()
	report := &Report{}

	admin, err := users.GetByEmail(ctx, opts.AdminEmail)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		hash, err := auth.HashPassword(opts.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		admin = &model.User{
			Email:        opts.AdminEmail,
			Name:         "Demo Admin",
			Role:         model.RoleAdmin,
			PasswordHash: hash,
		}
		if err := users.Create(ctx, admin); err != nil {
			return nil, fmt.Errorf("create admin: %w", err)
		}
		report.AdminCreated = true
	case err != nil:
		return nil, fmt.Errorf("lookup admin: %w", err)
	}

	studentHash, err := auth.HashPassword(opts.StudentPassword)
	if err != nil {
		return nil, fmt.Errorf("hash student password: %w", err)
	}
	for i := 1; i <= opts.Students; i++ {
		u := &model.User{
			Email:        fmt.Sprintf("student%d@mocktest.local", i),
			Name:         fmt.Sprintf("Student %d", i),
			Role:         model.RoleStudent,
			PasswordHash: studentHash,
		}
		if err := users.Create(ctx, u); err != nil {
			if errors.Is(err, repository.ErrDuplicateEmail) {
				continue
			}
			return nil, fmt.Errorf("create %s: %w", u.Email, err)
		}
		report.Students++
	}

	if !report.AdminCreated {
		log.Info().Int("students", report.Students).Msg("Admin already present, demo exam skipped")
		return report, nil
	}

	exam, err := exams.Create(ctx, admin.ID, &model.CreateExamRequest{
		Title:                  "Demo Mock Test",
		Description:            "A short sample covering all three subjects.",
		DurationMinutes:        30,
		ShowResultsImmediately: true,
		AllowReview:            true,
	})
	if err != nil {
		return nil, err
	}
	qs, err := exams.ReplaceQuestions(ctx, exam.ID, sampleQuestions())
	if err != nil {
		return nil, err
	}
	if err := exams.SetActive(ctx, exam.ID, true); err != nil {
		return nil, err
	}
	report.ExamID = exam.ID.String()
	report.Questions = len(qs)

	log.Info().
		Str("exam_id", report.ExamID).
		Int("questions", report.Questions).
		Int("students", report.Students).
		Msg("Demo data seeded")
	return report, nil
}

func abcd(a, b, c, d string) []model.Option {
	return []model.Option{{ID: "A", Text: a}, {ID: "B", Text: b}, {ID: "C", Text: c}, {ID: "D", Text: d}}
}

func sampleQuestions() []model.AddQuestionRequest {
	return []model.AddQuestionRequest{
		{
			Subject:       string(model.SubjectMathematics),
			QuestionText:  "What is the derivative of x^2?",
			Options:       abcd("x", "2x", "x^2", "2"),
			CorrectAnswer: "B",
			Difficulty:    string(model.DifficultyEasy),
			Topic:         "Calculus",
		},
		{
			Subject:       string(model.SubjectMathematics),
			QuestionText:  "The roots of x^2 - 5x + 6 = 0 are",
			Options:       abcd("1 and 6", "-2 and -3", "2 and 3", "0 and 5"),
			CorrectAnswer: "C",
			Difficulty:    string(model.DifficultyMedium),
			Topic:         "Algebra",
		},
		{
			Subject:       string(model.SubjectPhysics),
			QuestionText:  "The SI unit of force is",
			Options:       abcd("Joule", "Watt", "Pascal", "Newton"),
			CorrectAnswer: "D",
			Difficulty:    string(model.DifficultyEasy),
			Topic:         "Units",
		},
		{
			Subject:       string(model.SubjectPhysics),
			QuestionText:  "A body falls freely from rest. Its speed after 2 s (g = 10 m/s^2) is",
			Options:       abcd("20 m/s", "10 m/s", "5 m/s", "40 m/s"),
			CorrectAnswer: "A",
			Difficulty:    string(model.DifficultyMedium),
			Topic:         "Kinematics",
		},
		{
			Subject:       string(model.SubjectChemistry),
			QuestionText:  "The atomic number of carbon is",
			Options:       abcd("12", "6", "8", "14"),
			CorrectAnswer: "B",
			Difficulty:    string(model.DifficultyEasy),
			Topic:         "Atomic structure",
		},
		{
			Subject:       string(model.SubjectChemistry),
			QuestionText:  "pH of a neutral solution at 25 C is",
			Options:       abcd("0", "14", "7", "1"),
			CorrectAnswer: "C",
			Difficulty:    string(model.DifficultyEasy),
			Topic:         "Acids and bases",
			Marks:         2,
		},
	}
}
