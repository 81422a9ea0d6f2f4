// Package session holds the live state of one student's exam attempt and the
// machinery around it: countdown, integrity log, autosave mirror and submission.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/mocktest-backend/internal/model"
)

// Session is one student's single attempt at one exam.
//
// All methods are safe for concurrent use. Each call runs to completion under
// the session lock, so ticks, autosaves and user input never interleave.
type Session struct {
	mu sync.Mutex

	id        uuid.UUID
	examID    uuid.UUID
	studentID uuid.UUID
	startedAt time.Time
	duration  time.Duration

	questions []model.Question
	byID      map[string]*model.Question
	bySubject map[model.Subject][]*model.Question
	subjects  []model.Subject

	currentSubject model.Subject
	currentIndex   int

	answers model.AnswerSet
	flags   map[string]bool
	states  map[string]*model.QuestionState

	remaining int
	warned    map[int]bool
	expired   bool
	submitted bool

	tabSwitches int
	activity    []model.SecurityEvent
}

// New creates a fresh session. The first question of the first subject that
// has questions is marked visited.
func New(id, examID, studentID uuid.UUID, questions []model.Question, duration time.Duration, startedAt time.Time) *Session {
	s := &Session{
		id:        id,
		examID:    examID,
		studentID: studentID,
		startedAt: startedAt,
		duration:  duration,
		questions: questions,
		byID:      make(map[string]*model.Question, len(questions)),
		bySubject: make(map[model.Subject][]*model.Question, len(model.Subjects)),
		answers:   make(model.AnswerSet, len(model.Subjects)),
		flags:     make(map[string]bool),
		states:    make(map[string]*model.QuestionState, len(questions)),
		remaining: int(duration / time.Second),
		warned:    make(map[int]bool, len(WarningThresholds)),
	}

	for i := range questions {
		q := &questions[i]
		s.byID[q.ID.String()] = q
		s.bySubject[q.Subject] = append(s.bySubject[q.Subject], q)
		s.states[q.ID.String()] = &model.QuestionState{}
	}
	for _, subject := range model.Subjects {
		s.answers[subject] = []model.Answer{}
		if len(s.bySubject[subject]) > 0 {
			s.subjects = append(s.subjects, subject)
		}
	}

	if len(s.subjects) > 0 {
		s.currentSubject = s.subjects[0]
		s.visitCurrent()
	} else {
		s.currentSubject = model.SubjectMathematics
	}
	return s
}

func (s *Session) ID() uuid.UUID        { return s.id }
func (s *Session) ExamID() uuid.UUID    { return s.examID }
func (s *Session) StudentID() uuid.UUID { return s.studentID }

// StartedAt returns the time the attempt began.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Questions returns the exam's question set.
func (s *Session) Questions() []model.Question {
	return s.questions
}

// SelectAnswer records optionID as the answer to questionID, replacing any
// earlier answer. Unknown questions, unknown options and submitted sessions
// are ignored and reported with false.
func (s *Session) SelectAnswer(questionID, optionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submitted {
		return false
	}
	q, ok := s.byID[questionID]
	if !ok || !q.HasOption(optionID) {
		return false
	}

	list := s.answers[q.Subject]
	replaced := false
	for i := range list {
		if list[i].QuestionID == questionID {
			list[i].SelectedAnswer = optionID
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, model.Answer{QuestionID: questionID, SelectedAnswer: optionID})
	}
	s.answers[q.Subject] = list

	st := s.states[questionID]
	st.Answered = true
	st.Visited = true
	return true
}

// ToggleFlag flips the review flag of questionID.
func (s *Session) ToggleFlag(questionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submitted {
		return false
	}
	st, ok := s.states[questionID]
	if !ok {
		return false
	}
	if s.flags[questionID] {
		delete(s.flags, questionID)
	} else {
		s.flags[questionID] = true
	}
	st.Flagged = s.flags[questionID]
	return true
}

// NavigateTo moves to index within the current subject. Out of range indexes are ignored.
func (s *Session) NavigateTo(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submitted || index < 0 || index >= len(s.bySubject[s.currentSubject]) {
		return false
	}
	s.currentIndex = index
	s.visitCurrent()
	return true
}

// SwitchSubject makes subject current and moves to its first question.
// Unknown subjects and subjects without questions are ignored.
func (s *Session) SwitchSubject(subject model.Subject) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submitted || !subject.Valid() || len(s.bySubject[subject]) == 0 {
		return false
	}
	s.currentSubject = subject
	s.currentIndex = 0
	s.visitCurrent()
	return true
}

// visitCurrent must be called with mu held.
func (s *Session) visitCurrent() {
	qs := s.bySubject[s.currentSubject]
	if s.currentIndex < len(qs) {
		s.states[qs[s.currentIndex].ID.String()].Visited = true
	}
}

// State returns the navigation state of one question.
func (s *Session) State(questionID string) (model.QuestionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[questionID]
	if !ok {
		return model.QuestionState{}, false
	}
	return *st, true
}

// Answers returns a copy of the answer set.
func (s *Session) Answers() model.AnswerSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers.Clone()
}

// Flags returns the flagged question ids in question order.
func (s *Session) Flags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flagList()
}

func (s *Session) flagList() []string {
	out := make([]string, 0, len(s.flags))
	for _, q := range s.questions {
		if s.flags[q.ID.String()] {
			out = append(out, q.ID.String())
		}
	}
	// Flags restored for questions no longer in the exam are kept last.
	for id := range s.flags {
		if _, ok := s.byID[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Remaining returns the seconds left on the countdown.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Submitted reports whether the session has been submitted successfully.
func (s *Session) Submitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted
}

// MarkSubmitted freezes the session. It is one-way.
func (s *Session) MarkSubmitted() {
	s.mu.Lock()
	s.submitted = true
	s.mu.Unlock()
}

// View returns a read-only projection of the session.
func (s *Session) View() model.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	qs := s.bySubject[s.currentSubject]
	views := make([]model.QuestionView, 0, len(qs))
	selected := make(map[string]string, len(s.answers[s.currentSubject]))
	for _, a := range s.answers[s.currentSubject] {
		selected[a.QuestionID] = a.SelectedAnswer
	}
	for i, q := range qs {
		id := q.ID.String()
		views = append(views, model.QuestionView{
			QuestionID:    id,
			Index:         i,
			Selected:      selected[id],
			QuestionState: *s.states[id],
		})
	}

	return model.SessionView{
		SessionID:          s.id,
		ExamID:             s.examID,
		CurrentSubject:     s.currentSubject,
		CurrentIndex:       s.currentIndex,
		QuestionCount:      len(qs),
		Questions:          views,
		Answers:            s.answers.Clone(),
		Flags:              s.flagList(),
		TimeRemaining:      s.remaining,
		TabSwitchCount:     s.tabSwitches,
		SuspiciousActivity: len(s.activity),
		Submitted:          s.submitted,
		StartedAt:          s.startedAt,
	}
}

// Snapshot captures the state the autosave mirror persists.
func (s *Session) Snapshot(now time.Time) model.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return model.SessionSnapshot{
		SessionID:          s.id,
		Answers:            s.answers.Clone(),
		Flags:              s.flagList(),
		TabSwitchCount:     s.tabSwitches,
		SuspiciousActivity: append([]model.SecurityEvent{}, s.activity...),
		StartedAt:          s.startedAt,
		Submitted:          s.submitted,
		SavedAt:            now,
	}
}

// Restore replaces answers, flags and the integrity record with a persisted
// snapshot and resumes the countdown from the snapshot's start time.
// Submitted snapshots are rejected. The session id is fixed at New; callers
// resuming an attempt pass the snapshot's id there.
func (s *Session) Restore(snap model.SessionSnapshot, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Submitted || s.submitted {
		return false
	}

	s.answers = make(model.AnswerSet, len(model.Subjects))
	for _, subject := range model.Subjects {
		s.answers[subject] = []model.Answer{}
	}
	for subject, list := range snap.Answers {
		s.answers[subject] = append([]model.Answer{}, list...)
		for _, a := range list {
			if st, ok := s.states[a.QuestionID]; ok {
				st.Answered = true
				st.Visited = true
			}
		}
	}

	s.flags = make(map[string]bool, len(snap.Flags))
	for _, id := range snap.Flags {
		s.flags[id] = true
		if st, ok := s.states[id]; ok {
			st.Flagged = true
		}
	}

	s.tabSwitches = snap.TabSwitchCount
	s.activity = append([]model.SecurityEvent(nil), snap.SuspiciousActivity...)

	if !snap.StartedAt.IsZero() {
		s.startedAt = snap.StartedAt
		left := s.duration - now.Sub(snap.StartedAt)
		if left < 0 {
			left = 0
		}
		s.remaining = int(left / time.Second)
		for _, th := range WarningThresholds {
			if s.remaining <= th {
				s.warned[th] = true
			}
		}
	}
	return true
}

// Payload assembles the submission payload at finishedAt.
func (s *Session) Payload(trigger model.SubmitTrigger, finishedAt time.Time) model.SubmissionPayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	activity := make([]string, len(s.activity))
	for i, ev := range s.activity {
		activity[i] = ev.Description
	}

	taken := int(finishedAt.Sub(s.startedAt) / time.Second)
	if taken < 0 {
		taken = 0
	}

	return model.SubmissionPayload{
		SessionID:          s.id,
		ExamID:             s.examID,
		StudentID:          s.studentID,
		Answers:            s.answers.Clone(),
		FlaggedQuestions:   s.flagList(),
		TabSwitchCount:     s.tabSwitches,
		SuspiciousActivity: activity,
		StartedAt:          s.startedAt,
		FinishedAt:         finishedAt,
		TimeTaken:          taken,
		Trigger:            trigger,
	}
}
