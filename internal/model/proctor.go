package model

import (
	"time"

	"github.com/google/uuid"
)

// ProctorPhoto is one webcam capture taken during a session.
type ProctorPhoto struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	ExamID     uuid.UUID `json:"exam_id"`
	StudentID  uuid.UUID `json:"student_id"`
	URL        string    `json:"url"`
	CapturedAt time.Time `json:"captured_at"`
}
