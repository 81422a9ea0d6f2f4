package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/store"
)

var (
	ErrSubmissionInProgress = errors.New("submission already in progress")
	ErrAlreadySubmitted     = errors.New("session already submitted")
	ErrSubmissionFailed     = errors.New("submission failed")
)

// Outcome is the normalized answer of a Sink: either a result or an error message.
type Outcome struct {
	result  *model.Result
	message string
}

// Ok wraps a successful result.
func Ok(r model.Result) Outcome { return Outcome{result: &r} }

// Err wraps a failure message.
func Err(message string) Outcome {
	if message == "" {
		message = "Submission failed"
	}
	return Outcome{message: message}
}

// IsOk reports whether the outcome carries a result.
func (o Outcome) IsOk() bool { return o.result != nil }

// Result returns the result of a successful outcome.
func (o Outcome) Result() (model.Result, bool) {
	if o.result == nil {
		return model.Result{}, false
	}
	return *o.result, true
}

// Message returns the failure message, empty on success.
func (o Outcome) Message() string { return o.message }

// Sink grades and records a submission. Implementations convert their own
// transport shape into an Outcome and never return raw transport errors.
type Sink interface {
	Submit(ctx context.Context, payload model.SubmissionPayload) Outcome
}

// SubmitState is the state of a Pipeline.
type SubmitState string

const (
	StateIdle       SubmitState = "idle"
	StateSubmitting SubmitState = "submitting"
	StateSucceeded  SubmitState = "succeeded"
	StateFailed     SubmitState = "failed"
)

// Pipeline moves one session through idle -> submitting -> succeeded|failed.
// A failed submission leaves the session intact and may be retried explicitly.
type Pipeline struct {
	sink      Sink
	kv        store.KV
	mirror    *Mirror
	resultTTL time.Duration
	log       zerolog.Logger
	now       func() time.Time

	mu      sync.Mutex
	state   SubmitState
	lastErr string
	result  *model.Result
}

// NewPipeline creates a Pipeline. The result is stored under the session's
// result key for resultTTL (0 keeps it forever).
func NewPipeline(sink Sink, kv store.KV, mirror *Mirror, resultTTL time.Duration, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		sink:      sink,
		kv:        kv,
		mirror:    mirror,
		resultTTL: resultTTL,
		log:       log.With().Str("component", "submission_pipeline").Logger(),
		now:       time.Now,
		state:     StateIdle,
	}
}

// State returns the pipeline state and the last failure message.
func (p *Pipeline) State() (SubmitState, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.lastErr
}

// Result returns the result of a successful submission.
func (p *Pipeline) Result() (model.Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.result == nil {
		return model.Result{}, false
	}
	return *p.result, true
}

// Submit sends the session to the sink. Concurrent calls while a submission
// is in flight get ErrSubmissionInProgress; calls after success get
// ErrAlreadySubmitted. Sink failures are returned wrapped in ErrSubmissionFailed.
func (p *Pipeline) Submit(ctx context.Context, s *Session, trigger model.SubmitTrigger) (model.Result, error) {
	p.mu.Lock()
	switch p.state {
	case StateSubmitting:
		p.mu.Unlock()
		return model.Result{}, ErrSubmissionInProgress
	case StateSucceeded:
		p.mu.Unlock()
		return model.Result{}, ErrAlreadySubmitted
	}
	p.state = StateSubmitting
	p.lastErr = ""
	p.mu.Unlock()

	payload := s.Payload(trigger, p.now())
	outcome := p.sink.Submit(ctx, payload)

	result, ok := outcome.Result()
	if !ok {
		p.mu.Lock()
		p.state = StateFailed
		p.lastErr = outcome.Message()
		p.mu.Unlock()

		p.log.Warn().
			Str("session_id", payload.SessionID.String()).
			Str("trigger", string(trigger)).
			Str("reason", outcome.Message()).
			Msg("Submission failed")
		return model.Result{}, fmt.Errorf("%w: %s", ErrSubmissionFailed, outcome.Message())
	}

	s.MarkSubmitted()
	p.storeResult(ctx, s, result)
	if p.mirror != nil {
		p.mirror.MarkSubmitted(ctx, s)
	}

	p.mu.Lock()
	p.state = StateSucceeded
	p.result = &result
	p.mu.Unlock()

	p.log.Info().
		Str("session_id", payload.SessionID.String()).
		Str("trigger", string(trigger)).
		Int("score", result.Total).
		Int("total_marks", result.TotalMarks).
		Msg("Submission recorded")
	return result, nil
}

func (p *Pipeline) storeResult(ctx context.Context, s *Session, result model.Result) {
	if p.kv == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to encode result")
		return
	}
	key := config.CacheKey.SessionResultKey(s.ExamID().String(), s.StudentID().String())
	if err := p.kv.Set(ctx, key, string(raw), p.resultTTL); err != nil {
		p.log.Warn().Err(err).Str("key", key).Msg("Failed to store result")
	}
}
