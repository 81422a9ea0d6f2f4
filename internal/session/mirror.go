package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/store"
)

// DefaultAutosaveInterval is the wall-clock period of the autosave loop.
const DefaultAutosaveInterval = 30 * time.Second

// Mirror shadows live sessions into the KV store so an attempt can resume
// after a reconnect or a server restart. Storage failures never reach the
// caller: they are logged and the feature degrades to "no resume".
type Mirror struct {
	kv  store.KV
	ttl time.Duration
	log zerolog.Logger
	now func() time.Time
}

// NewMirror creates a Mirror. Snapshots expire after ttl (0 keeps them forever).
func NewMirror(kv store.KV, ttl time.Duration, log zerolog.Logger) *Mirror {
	return &Mirror{
		kv:  kv,
		ttl: ttl,
		log: log.With().Str("component", "session_mirror").Logger(),
		now: time.Now,
	}
}

func snapshotKey(examID, studentID uuid.UUID) string {
	return config.CacheKey.SessionSnapshotKey(examID.String(), studentID.String())
}

// Save persists the session when it holds at least one answer or integrity
// event. It reports whether a snapshot was written.
func (m *Mirror) Save(ctx context.Context, s *Session) bool {
	snap := s.Snapshot(m.now())
	if snap.Answers.Count() == 0 && len(snap.SuspiciousActivity) == 0 && !snap.Submitted {
		return false
	}
	return m.write(ctx, s.ExamID(), s.StudentID(), snap)
}

func (m *Mirror) write(ctx context.Context, examID, studentID uuid.UUID, snap model.SessionSnapshot) bool {
	raw, err := json.Marshal(snap)
	if err != nil {
		m.log.Warn().Err(err).Msg("Failed to encode session snapshot")
		return false
	}
	if err := m.kv.Set(ctx, snapshotKey(examID, studentID), string(raw), m.ttl); err != nil {
		m.log.Warn().Err(err).
			Str("exam_id", examID.String()).
			Str("student_id", studentID.String()).
			Msg("Autosave failed")
		return false
	}
	return true
}

// Load returns the persisted snapshot of an unfinished attempt. Missing,
// corrupt and already submitted snapshots all report false.
func (m *Mirror) Load(ctx context.Context, examID, studentID uuid.UUID) (model.SessionSnapshot, bool) {
	raw, err := m.kv.Get(ctx, snapshotKey(examID, studentID))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to read session snapshot")
		}
		return model.SessionSnapshot{}, false
	}

	var snap model.SessionSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		m.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Discarding corrupt session snapshot")
		return model.SessionSnapshot{}, false
	}
	if snap.Submitted {
		return model.SessionSnapshot{}, false
	}
	return snap, true
}

// MarkSubmitted records that the attempt is finished so it is never resumed.
func (m *Mirror) MarkSubmitted(ctx context.Context, s *Session) {
	snap := s.Snapshot(m.now())
	snap.Submitted = true
	m.write(ctx, s.ExamID(), s.StudentID(), snap)
}

// Run saves the session every interval until ctx is cancelled or the session is submitted.
func (m *Mirror) Run(ctx context.Context, s *Session, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.Submitted() {
				return
			}
			m.Save(ctx, s)
		}
	}
}
