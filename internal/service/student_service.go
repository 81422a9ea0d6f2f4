package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/repository"
	"github.com/stemsi/mocktest-backend/internal/response"
)

// StudentService handles admin-facing student management.
type StudentService struct {
	users   repository.UserStore
	reports repository.ReportStore
	auth    *AuthService
	log     zerolog.Logger
}

// NewStudentService creates a new StudentService.
func NewStudentService(users repository.UserStore, reports repository.ReportStore, auth *AuthService, log zerolog.Logger) *StudentService {
	return &StudentService{
		users:   users,
		reports: reports,
		auth:    auth,
		log:     log.With().Str("component", "student_service").Logger(),
	}
}

// ListStudents retrieves students page by page, ordered by name, each with
// their submission count and latest score.
func (s *StudentService) ListStudents(ctx context.Context, page, perPage int) ([]model.StudentSummary, *response.Pagination, error) {
	pagination := response.NewPagination(page, perPage, 0)
	users, total, err := s.users.ListByRole(ctx, model.RoleStudent, pagination.PerPage, pagination.Offset())
	if err != nil {
		return nil, nil, fmt.Errorf("list students: %w", err)
	}

	ids := make([]uuid.UUID, len(users))
	for i := range users {
		ids[i] = users[i].ID
	}
	activity, err := s.reports.StudentActivity(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("student activity: %w", err)
	}

	students := make([]model.StudentSummary, len(users))
	for i, u := range users {
		students[i] = model.StudentSummary{User: u}
		a, ok := activity[u.ID]
		if !ok {
			continue
		}
		students[i].SubmissionCount = a.Submissions
		students[i].LatestScore = &a.LatestScore
		students[i].LatestTotalMarks = &a.LatestTotalMarks
		students[i].LatestPercentage = &a.LatestPercentage
		students[i].LastSubmittedAt = &a.LastSubmittedAt
	}
	return students, response.NewPagination(pagination.Page, pagination.PerPage, total), nil
}

// ResetSession drops a student's live login so they can sign in on another device.
func (s *StudentService) ResetSession(ctx context.Context, studentID uuid.UUID) error {
	u, err := s.users.GetByID(ctx, studentID)
	if err != nil {
		return err
	}
	if u.Role != model.RoleStudent {
		return repository.ErrNotFound
	}
	if err := s.auth.Logout(ctx, studentID); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	s.log.Info().Str("student_id", studentID.String()).Msg("Student session reset")
	return nil
}
