package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmitTrigger records what initiated a submission.
type SubmitTrigger string

const (
	TriggerUser  SubmitTrigger = "user"
	TriggerTimer SubmitTrigger = "timer"
)

// SubmissionPayload is what the submission pipeline hands to a sink.
type SubmissionPayload struct {
	SessionID          uuid.UUID     `json:"session_id"`
	ExamID             uuid.UUID     `json:"exam_id"`
	StudentID          uuid.UUID     `json:"student_id"`
	Answers            AnswerSet     `json:"answers"`
	FlaggedQuestions   []string      `json:"flagged_questions"`
	TabSwitchCount     int           `json:"tab_switch_count"`
	SuspiciousActivity []string      `json:"suspicious_activity"`
	StartedAt          time.Time     `json:"started_at"`
	FinishedAt         time.Time     `json:"finished_at"`
	TimeTaken          int           `json:"time_taken"`
	Trigger            SubmitTrigger `json:"trigger"`
}

// Submission is a recorded, scored attempt.
type Submission struct {
	ID                 uuid.UUID     `json:"id"`
	SessionID          uuid.UUID     `json:"session_id"`
	ExamID             uuid.UUID     `json:"exam_id"`
	StudentID          uuid.UUID     `json:"student_id"`
	Answers            AnswerSet     `json:"answers"`
	Score              int           `json:"score"`
	TotalMarks         int           `json:"total_marks"`
	Percentage         float64       `json:"percentage"`
	TimeTaken          int           `json:"time_taken"`
	FlaggedQuestions   []string      `json:"flagged_questions"`
	TabSwitches        int           `json:"tab_switches"`
	SuspiciousActivity []string      `json:"suspicious_activity"`
	Result             Result        `json:"result"`
	Trigger            SubmitTrigger `json:"trigger"`
	StartedAt          time.Time     `json:"started_at"`
	SubmittedAt        time.Time     `json:"submitted_at"`
}

// SubmissionSummary is a submission joined with student and exam details for reports.
type SubmissionSummary struct {
	ID                   uuid.UUID `json:"id"`
	SessionID            uuid.UUID `json:"session_id"`
	ExamID               uuid.UUID `json:"exam_id"`
	ExamTitle            string    `json:"exam_title"`
	StudentID            uuid.UUID `json:"student_id"`
	StudentName          string    `json:"student_name"`
	StudentEmail         string    `json:"student_email"`
	Score                int       `json:"score"`
	TotalMarks           int       `json:"total_marks"`
	Percentage           float64   `json:"percentage"`
	TimeTaken            int       `json:"time_taken"`
	SubmittedAt          time.Time `json:"submitted_at"`
	FlaggedQuestions     int       `json:"flagged_questions"`
	TabSwitches          int       `json:"tab_switches"`
	SuspiciousActivities int       `json:"suspicious_activities"`
}

// ExamStat aggregates the submissions of one exam.
type ExamStat struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	Active           bool      `json:"active"`
	TotalSubmissions int       `json:"total_submissions"`
	AverageScore     float64   `json:"average_score"`
	HighestScore     float64   `json:"highest_score"`
	LowestScore      float64   `json:"lowest_score"`
	PassedCount      int       `json:"passed_count"`
	PassRate         float64   `json:"pass_rate"`
}

// AdminStats is the admin dashboard summary.
type AdminStats struct {
	TotalStudents    int        `json:"total_students"`
	TotalExams       int        `json:"total_exams"`
	TotalSubmissions int        `json:"total_submissions"`
	ExamStats        []ExamStat `json:"exam_stats"`
}
