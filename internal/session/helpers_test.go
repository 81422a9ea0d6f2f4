package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/mocktest-backend/internal/model"
)

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testQuestions() []model.Question {
	opts := []model.Option{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}, {ID: "c", Text: "C"}, {ID: "d", Text: "D"}}
	mk := func(subject model.Subject, correct string) model.Question {
		return model.Question{ID: uuid.New(), Subject: subject, QuestionText: "q", Options: opts, CorrectAnswer: correct, Marks: 4}
	}
	return []model.Question{
		mk(model.SubjectMathematics, "a"),
		mk(model.SubjectMathematics, "b"),
		mk(model.SubjectPhysics, "c"),
		mk(model.SubjectChemistry, "d"),
	}
}

func newTestSession(duration time.Duration) *Session {
	return New(uuid.New(), uuid.New(), uuid.New(), testQuestions(), duration, testStart)
}

// fakeSink returns a scripted outcome and counts calls. When block is set,
// Submit waits on it before returning.
type fakeSink struct {
	mu       sync.Mutex
	calls    int
	outcomes []Outcome
	payloads []model.SubmissionPayload
	block    chan struct{}
	entered  chan struct{}
}

func (f *fakeSink) Submit(_ context.Context, p model.SubmissionPayload) Outcome {
	f.mu.Lock()
	f.calls++
	f.payloads = append(f.payloads, p)
	idx := f.calls - 1
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}

	if idx < len(f.outcomes) {
		return f.outcomes[idx]
	}
	return Ok(model.Result{Total: 4, TotalMarks: 16, Percentage: 25})
}

func (f *fakeSink) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
