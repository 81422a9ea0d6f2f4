package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam represents an exam entity.
type Exam struct {
	ID                     uuid.UUID  `json:"id"`
	Title                  string     `json:"title"`
	Description            string     `json:"description"`
	Active                 bool       `json:"active"`
	StartTime              *time.Time `json:"start_time,omitempty"`
	EndTime                *time.Time `json:"end_time,omitempty"`
	DurationMinutes        int        `json:"duration"`
	TotalMarks             int        `json:"total_marks"`
	PassingMarks           int        `json:"passing_marks"`
	RandomizeQuestions     bool       `json:"randomize_questions"`
	ShowResultsImmediately bool       `json:"show_results_immediately"`
	AllowReview            bool       `json:"allow_review"`
	CreatedBy              uuid.UUID  `json:"created_by"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// IsOpen reports whether students may start the exam at the given instant.
func (e *Exam) IsOpen(now time.Time) bool {
	if !e.Active {
		return false
	}
	if e.StartTime != nil && now.Before(*e.StartTime) {
		return false
	}
	if e.EndTime != nil && !now.Before(*e.EndTime) {
		return false
	}
	return true
}

// Duration returns the allotted time of one attempt.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title                  string     `json:"title" binding:"required,min=3,max=255"`
	Description            string     `json:"description" binding:"omitempty,max=2000"`
	StartTime              *time.Time `json:"start_time" binding:"omitempty"`
	EndTime                *time.Time `json:"end_time" binding:"omitempty,gtfield=StartTime"`
	DurationMinutes        int        `json:"duration" binding:"required,min=1,max=600"`
	PassingMarks           int        `json:"passing_marks" binding:"omitempty,min=0"`
	RandomizeQuestions     bool       `json:"randomize_questions"`
	ShowResultsImmediately bool       `json:"show_results_immediately"`
	AllowReview            bool       `json:"allow_review"`
}

// UpdateExamRequest is the payload for updating an existing exam.
type UpdateExamRequest struct {
	Title                  string     `json:"title" binding:"omitempty,min=3,max=255"`
	Description            *string    `json:"description" binding:"omitempty,max=2000"`
	StartTime              *time.Time `json:"start_time" binding:"omitempty"`
	EndTime                *time.Time `json:"end_time" binding:"omitempty"`
	DurationMinutes        int        `json:"duration" binding:"omitempty,min=1,max=600"`
	PassingMarks           *int       `json:"passing_marks" binding:"omitempty,min=0"`
	RandomizeQuestions     *bool      `json:"randomize_questions"`
	ShowResultsImmediately *bool      `json:"show_results_immediately"`
	AllowReview            *bool      `json:"allow_review"`
}

// SetActiveRequest toggles whether an exam is visible to students.
type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// ExamPaper is what a student receives when starting an exam (no correct answers).
type ExamPaper struct {
	Exam      Exam                 `json:"exam"`
	Questions []QuestionForStudent `json:"questions"`
}
