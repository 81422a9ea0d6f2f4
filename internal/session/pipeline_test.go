package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/store"
)

func TestOutcome(t *testing.T) {
	ok := Ok(model.Result{Total: 8})
	assert.True(t, ok.IsOk())
	r, has := ok.Result()
	assert.True(t, has)
	assert.Equal(t, 8, r.Total)
	assert.Empty(t, ok.Message())

	bad := Err("")
	assert.False(t, bad.IsOk())
	assert.Equal(t, "Submission failed", bad.Message())
}

func TestPipeline_SuccessPersistsResult(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	mirror := NewMirror(kv, 0, zerolog.Nop())
	sink := &fakeSink{}
	p := NewPipeline(sink, kv, mirror, 0, zerolog.Nop())
	s := newTestSession(time.Hour)
	require.True(t, s.SelectAnswer(s.Questions()[0].ID.String(), "a"))

	res, err := p.Submit(ctx, s, model.TriggerUser)

	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
	assert.True(t, s.Submitted())

	state, _ := p.State()
	assert.Equal(t, StateSucceeded, state)

	raw, err := kv.Get(ctx, config.CacheKey.SessionResultKey(s.ExamID().String(), s.StudentID().String()))
	require.NoError(t, err)
	var stored model.Result
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, res, stored)

	_, resumable := mirror.Load(ctx, s.ExamID(), s.StudentID())
	assert.False(t, resumable)

	_, err = p.Submit(ctx, s, model.TriggerUser)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Equal(t, 1, sink.Calls())
}

func TestPipeline_FailureKeepsSessionAndAllowsRetry(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{outcomes: []Outcome{Err("Submission failed (502)")}}
	p := NewPipeline(sink, store.NewMemoryKV(), nil, 0, zerolog.Nop())
	s := newTestSession(time.Hour)
	q := s.Questions()[0].ID.String()
	require.True(t, s.SelectAnswer(q, "a"))
	require.True(t, s.ToggleFlag(q))

	_, err := p.Submit(ctx, s, model.TriggerUser)

	require.ErrorIs(t, err, ErrSubmissionFailed)
	state, msg := p.State()
	assert.Equal(t, StateFailed, state)
	assert.Equal(t, "Submission failed (502)", msg)
	assert.False(t, s.Submitted())
	assert.Equal(t, 1, s.Answers().Count())
	assert.Equal(t, []string{q}, s.Flags())

	_, err = p.Submit(ctx, s, model.TriggerUser)
	require.NoError(t, err)
	assert.Equal(t, 2, sink.Calls())
	assert.True(t, s.Submitted())
}

func TestPipeline_RejectsReentry(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	p := NewPipeline(sink, store.NewMemoryKV(), nil, 0, zerolog.Nop())
	s := newTestSession(time.Hour)

	errs := make(chan error, 1)
	go func() {
		_, err := p.Submit(ctx, s, model.TriggerTimer)
		errs <- err
	}()
	<-sink.entered

	_, err := p.Submit(ctx, s, model.TriggerUser)
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	close(sink.block)
	require.NoError(t, <-errs)
	assert.Equal(t, 1, sink.Calls())
}
