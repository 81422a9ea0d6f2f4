package model

import (
	"time"

	"github.com/google/uuid"
)

// NotAnswered is the selected-answer text reported for questions left blank.
const NotAnswered = "Not Answered"

// Answer is one (question, selected option) pair.
type Answer struct {
	QuestionID     string `json:"questionId"`
	SelectedAnswer string `json:"selectedAnswer"`
}

// AnswerSet holds the ordered answer list of every subject.
type AnswerSet map[Subject][]Answer

// Count returns the number of answers across all subjects.
func (a AnswerSet) Count() int {
	n := 0
	for _, list := range a {
		n += len(list)
	}
	return n
}

// Clone returns a deep copy.
func (a AnswerSet) Clone() AnswerSet {
	out := make(AnswerSet, len(a))
	for subject, list := range a {
		out[subject] = append(make([]Answer, 0, len(list)), list...)
	}
	return out
}

// QuestionState tracks the navigation status of one question.
type QuestionState struct {
	Answered bool `json:"answered"`
	Flagged  bool `json:"flagged"`
	Visited  bool `json:"visited"`
}

// SecurityKind enumerates integrity monitor triggers.
type SecurityKind string

const (
	SecurityTabHidden   SecurityKind = "tab_hidden"
	SecurityWindowBlur  SecurityKind = "window_blur"
	SecurityContextMenu SecurityKind = "context_menu"
	SecurityKeyCombo    SecurityKind = "key_combo"
)

// SecurityEvent is one entry of the suspicious activity log.
type SecurityEvent struct {
	Kind        SecurityKind `json:"kind"`
	Description string       `json:"description"`
	At          time.Time    `json:"at"`
}

// SessionSnapshot is the autosaved shadow of a live session.
// The integrity record travels with it, so a resumed attempt keeps its
// session id, tab switch count and activity log.
type SessionSnapshot struct {
	SessionID          uuid.UUID       `json:"session_id"`
	Answers            AnswerSet       `json:"answers"`
	Flags              []string        `json:"flags"`
	TabSwitchCount     int             `json:"tab_switch_count"`
	SuspiciousActivity []SecurityEvent `json:"suspicious_activity"`
	StartedAt          time.Time       `json:"started_at"`
	Submitted          bool            `json:"submitted"`
	SavedAt            time.Time       `json:"saved_at"`
}

// QuestionView is the per-question projection of the current subject.
type QuestionView struct {
	QuestionID string `json:"question_id"`
	Index      int    `json:"index"`
	Selected   string `json:"selected,omitempty"`
	QuestionState
}

// SessionView is the read-only projection of a live session.
type SessionView struct {
	SessionID          uuid.UUID      `json:"session_id"`
	ExamID             uuid.UUID      `json:"exam_id"`
	CurrentSubject     Subject        `json:"current_subject"`
	CurrentIndex       int            `json:"current_index"`
	QuestionCount      int            `json:"question_count"`
	Questions          []QuestionView `json:"questions"`
	Answers            AnswerSet      `json:"answers"`
	Flags              []string       `json:"flags"`
	TimeRemaining      int            `json:"time_remaining"`
	TabSwitchCount     int            `json:"tab_switch_count"`
	SuspiciousActivity int            `json:"suspicious_activity_count"`
	Submitted          bool           `json:"submitted"`
	SubmitState        string         `json:"submit_state"`
	SubmitError        string         `json:"submit_error,omitempty"`
	StartedAt          time.Time      `json:"started_at"`
}

// SelectAnswerRequest selects an option for a question.
type SelectAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,max=64"`
	OptionID   string `json:"option_id" binding:"required,max=10"`
}

// FlagRequest toggles the review flag of a question.
type FlagRequest struct {
	QuestionID string `json:"question_id" binding:"required,max=64"`
}

// NavigateRequest moves to a question index of the current subject.
type NavigateRequest struct {
	Index *int `json:"index" binding:"required"`
}

// SwitchSubjectRequest changes the current subject.
type SwitchSubjectRequest struct {
	Subject string `json:"subject" binding:"required,max=32"`
}

// SecurityEventRequest reports an integrity monitor trigger observed by the client.
type SecurityEventRequest struct {
	Kind  string `json:"kind" binding:"required,oneof=tab_hidden window_blur context_menu key_combo"`
	Key   string `json:"key" binding:"omitempty,max=32"`
	Ctrl  bool   `json:"ctrl"`
	Shift bool   `json:"shift"`
}
