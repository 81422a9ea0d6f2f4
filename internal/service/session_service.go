package service

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/repository"
	"github.com/stemsi/mocktest-backend/internal/session"
	"github.com/stemsi/mocktest-backend/internal/store"
)

var (
	ErrSessionNotStarted = errors.New("exam session not started")
	ErrResultNotFound    = errors.New("result not found")
)

// StartedSession is returned when a student starts or resumes an exam.
type StartedSession struct {
	Paper   model.ExamPaper   `json:"paper"`
	State   model.SessionView `json:"state"`
	Resumed bool              `json:"resumed"`
}

// SessionService keeps one live controller per (exam, student) and routes
// student input to it.
type SessionService struct {
	cfg         *config.Config
	exams       *ExamService
	submissions repository.SubmissionStore
	kv          store.KV
	sink        session.Sink
	mirror      *session.Mirror
	log         zerolog.Logger
	now         func() time.Time

	mu   sync.Mutex
	live map[string]*session.Controller
}

// NewSessionService creates a new SessionService. sink grades submissions,
// either in process or on a remote grader.
func NewSessionService(
	cfg *config.Config,
	exams *ExamService,
	submissions repository.SubmissionStore,
	kv store.KV,
	sink session.Sink,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		cfg:         cfg,
		exams:       exams,
		submissions: submissions,
		kv:          kv,
		sink:        sink,
		mirror:      session.NewMirror(kv, cfg.SnapshotTTL, log),
		log:         log.With().Str("component", "session_service").Logger(),
		now:         time.Now,
		live:        make(map[string]*session.Controller),
	}
}

func liveKey(examID, studentID uuid.UUID) string {
	return examID.String() + ":" + studentID.String()
}

// Start opens the exam for a student. A live unfinished attempt is reused and
// an autosaved attempt is restored under its original session id; otherwise a
// fresh attempt begins. Only fresh attempts are held to the exam window.
func (s *SessionService) Start(ctx context.Context, examID, studentID uuid.UUID) (*StartedSession, error) {
	key := liveKey(examID, studentID)

	if started, err := s.rejoin(ctx, key, examID); started != nil || err != nil {
		return started, err
	}

	// Read before locking so a slow KV does not hold up every other student.
	snap, restorable := s.mirror.Load(ctx, examID, studentID)

	var (
		exam *model.Exam
		qs   []model.Question
		err  error
	)
	if restorable {
		exam, qs, err = s.exams.ResumeExam(ctx, examID)
	} else {
		exam, qs, err = s.exams.OpenExam(ctx, examID)
	}
	if err != nil {
		return nil, err
	}
	if exam.RandomizeQuestions {
		qs = shuffleWithinSubjects(qs, examID, studentID)
	}

	s.mu.Lock()
	if c, ok := s.live[key]; ok {
		if !c.Session().Submitted() {
			// A concurrent start won the race.
			s.mu.Unlock()
			c.Touch()
			return &StartedSession{
				Paper:   Paper(exam, c.Session().Questions()),
				State:   c.View(),
				Resumed: true,
			}, nil
		}
		delete(s.live, key)
		defer c.Stop()
	}

	now := s.now()
	id := uuid.New()
	if restorable && snap.SessionID != uuid.Nil {
		id = snap.SessionID
	}
	sess := session.New(id, examID, studentID, qs, exam.Duration(), now)
	resumed := restorable && sess.Restore(snap, now)

	pipeline := session.NewPipeline(s.sink, s.kv, s.mirror, s.cfg.ResultTTL, s.log)
	c := session.NewController(sess, pipeline, s.mirror, session.ControllerConfig{
		TickInterval:     s.cfg.TickInterval,
		AutosaveInterval: s.cfg.AutosaveInterval,
	}, s.log)
	s.live[key] = c
	s.mu.Unlock()

	// The loops outlive the request that started them; Sweep and StopAll end them.
	c.Start(context.WithoutCancel(ctx))

	s.log.Info().
		Str("exam_id", examID.String()).
		Str("student_id", studentID.String()).
		Str("session_id", sess.ID().String()).
		Bool("resumed", resumed).
		Int("tab_switches", sess.TabSwitchCount()).
		Msg("Exam session started")

	return &StartedSession{
		Paper:   Paper(exam, sess.Questions()),
		State:   c.View(),
		Resumed: resumed,
	}, nil
}

// rejoin returns the live unfinished attempt under key, or nil when there is none.
func (s *SessionService) rejoin(ctx context.Context, key string, examID uuid.UUID) (*StartedSession, error) {
	s.mu.Lock()
	c, ok := s.live[key]
	s.mu.Unlock()
	if !ok || c.Session().Submitted() {
		return nil, nil
	}

	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	c.Touch()
	return &StartedSession{
		Paper:   Paper(exam, c.Session().Questions()),
		State:   c.View(),
		Resumed: true,
	}, nil
}

// shuffleWithinSubjects reorders questions inside each subject. The order is
// derived from the exam and student ids so a resumed attempt sees the same paper.
func shuffleWithinSubjects(qs []model.Question, examID, studentID uuid.UUID) []model.Question {
	rng := rand.New(rand.NewPCG(binary.BigEndian.Uint64(examID[:8]), binary.BigEndian.Uint64(studentID[:8])))

	out := make([]model.Question, 0, len(qs))
	for _, subject := range model.Subjects {
		start := len(out)
		for _, q := range qs {
			if q.Subject == subject {
				out = append(out, q)
			}
		}
		part := out[start:]
		rng.Shuffle(len(part), func(i, j int) { part[i], part[j] = part[j], part[i] })
	}
	return out
}

// Controller returns the live controller of a student's attempt.
func (s *SessionService) Controller(examID, studentID uuid.UUID) (*session.Controller, error) {
	s.mu.Lock()
	c, ok := s.live[liveKey(examID, studentID)]
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotStarted
	}
	c.Touch()
	return c, nil
}

func (s *SessionService) apply(examID, studentID uuid.UUID, fn func(*session.Session) bool) (model.SessionView, error) {
	c, err := s.Controller(examID, studentID)
	if err != nil {
		return model.SessionView{}, err
	}
	fn(c.Session())
	return c.View(), nil
}

// SelectAnswer records the chosen option of a question.
func (s *SessionService) SelectAnswer(examID, studentID uuid.UUID, req *model.SelectAnswerRequest) (model.SessionView, error) {
	return s.apply(examID, studentID, func(sess *session.Session) bool {
		return sess.SelectAnswer(req.QuestionID, req.OptionID)
	})
}

// ToggleFlag marks or unmarks a question for review.
func (s *SessionService) ToggleFlag(examID, studentID uuid.UUID, req *model.FlagRequest) (model.SessionView, error) {
	return s.apply(examID, studentID, func(sess *session.Session) bool {
		return sess.ToggleFlag(req.QuestionID)
	})
}

// Navigate moves to a question of the current subject.
func (s *SessionService) Navigate(examID, studentID uuid.UUID, req *model.NavigateRequest) (model.SessionView, error) {
	return s.apply(examID, studentID, func(sess *session.Session) bool {
		return sess.NavigateTo(*req.Index)
	})
}

// SwitchSubject changes the current subject.
func (s *SessionService) SwitchSubject(examID, studentID uuid.UUID, req *model.SwitchSubjectRequest) (model.SessionView, error) {
	return s.apply(examID, studentID, func(sess *session.Session) bool {
		return sess.SwitchSubject(model.Subject(req.Subject))
	})
}

// State returns the current projection of the attempt.
func (s *SessionService) State(examID, studentID uuid.UUID) (model.SessionView, error) {
	return s.apply(examID, studentID, func(*session.Session) bool { return false })
}

// RecordSecurity logs an integrity event reported by the browser.
func (s *SessionService) RecordSecurity(examID, studentID uuid.UUID, req *model.SecurityEventRequest) (session.SecurityOutcome, error) {
	c, err := s.Controller(examID, studentID)
	if err != nil {
		return session.SecurityOutcome{}, err
	}
	out := c.Session().RecordSecurity(model.SecurityKind(req.Kind), session.KeyCombo{Key: req.Key, Ctrl: req.Ctrl, Shift: req.Shift}, s.now())
	if out.Logged {
		s.log.Debug().
			Str("session_id", c.Session().ID().String()).
			Str("kind", req.Kind).
			Int("tab_switches", out.TabSwitchCount).
			Msg("Security event recorded")
	}
	return out, nil
}

// Submit submits the attempt on behalf of the student.
func (s *SessionService) Submit(ctx context.Context, examID, studentID uuid.UUID) (model.Result, error) {
	c, err := s.Controller(examID, studentID)
	if err != nil {
		return model.Result{}, err
	}
	return c.Submit(ctx, model.TriggerUser)
}

// Result returns the latest result of a student's attempt at an exam,
// looking at the live session, then the result cache, then the database.
func (s *SessionService) Result(ctx context.Context, examID, studentID uuid.UUID) (*model.Result, error) {
	s.mu.Lock()
	c, ok := s.live[liveKey(examID, studentID)]
	s.mu.Unlock()
	if ok {
		if r, done := c.Result(); done {
			return &r, nil
		}
	}

	key := config.CacheKey.SessionResultKey(examID.String(), studentID.String())
	raw, err := s.kv.Get(ctx, key)
	switch {
	case err == nil:
		var r model.Result
		if err := json.Unmarshal([]byte(raw), &r); err == nil {
			return &r, nil
		}
		s.log.Warn().Str("exam_id", examID.String()).Msg("Discarding corrupt cached result")
	case !errors.Is(err, store.ErrNotFound):
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Result cache unavailable")
	}

	sub, err := s.submissions.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrResultNotFound
		}
		return nil, err
	}
	return &sub.Result, nil
}

// Sweep stops live sessions that were submitted or left idle. Idle attempts
// are autosaved first so the student can resume them. It returns the number
// of evicted sessions.
func (s *SessionService) Sweep(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	var evicted []*session.Controller
	for key, c := range s.live {
		if c.Finished(now, s.cfg.SessionIdleTimeout) {
			evicted = append(evicted, c)
			delete(s.live, key)
		}
	}
	s.mu.Unlock()

	for _, c := range evicted {
		c.Stop()
		if !c.Session().Submitted() {
			s.mirror.Save(ctx, c.Session())
		}
	}

	if len(evicted) > 0 {
		s.log.Info().Int("evicted", len(evicted)).Int("live", s.LiveCount()).Msg("Swept exam sessions")
	}
	return len(evicted)
}

// StopAll autosaves and stops every live session. Used on shutdown.
func (s *SessionService) StopAll(ctx context.Context) {
	s.mu.Lock()
	all := make([]*session.Controller, 0, len(s.live))
	for key, c := range s.live {
		all = append(all, c)
		delete(s.live, key)
	}
	s.mu.Unlock()

	for _, c := range all {
		c.Stop()
		if !c.Session().Submitted() {
			s.mirror.Save(ctx, c.Session())
		}
	}
	s.log.Info().Int("stopped", len(all)).Msg("All exam sessions stopped")
}

// Live returns the views of the exam's live attempts, keyed by student id.
func (s *SessionService) Live(examID uuid.UUID) map[uuid.UUID]model.SessionView {
	s.mu.Lock()
	ctrls := make([]*session.Controller, 0, len(s.live))
	for _, c := range s.live {
		if c.Session().ExamID() == examID {
			ctrls = append(ctrls, c)
		}
	}
	s.mu.Unlock()

	out := make(map[uuid.UUID]model.SessionView, len(ctrls))
	for _, c := range ctrls {
		out[c.Session().StudentID()] = c.View()
	}
	return out
}

// LiveCount returns the number of live sessions.
func (s *SessionService) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}
