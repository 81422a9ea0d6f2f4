package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/mocktest-backend/internal/model"
)

// Memory is an in-process data store implementing every repository interface.
// It backs DATA_BACKEND=memory and the service tests.
type Memory struct {
	mu          sync.RWMutex
	exams       map[uuid.UUID]model.Exam
	questions   map[uuid.UUID][]model.Question
	users       map[uuid.UUID]model.User
	submissions []model.Submission
	photos      []model.ProctorPhoto
	now         func() time.Time
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		exams:     make(map[uuid.UUID]model.Exam),
		questions: make(map[uuid.UUID][]model.Question),
		users:     make(map[uuid.UUID]model.User),
		now:       time.Now,
	}
}

func (m *Memory) Exams() ExamStore             { return memoryExams{m} }
func (m *Memory) Questions() QuestionStore     { return memoryQuestions{m} }
func (m *Memory) Users() UserStore             { return memoryUsers{m} }
func (m *Memory) Submissions() SubmissionStore { return memorySubmissions{m} }
func (m *Memory) Reports() ReportStore         { return memoryReports{m} }
func (m *Memory) Proctor() ProctorStore        { return memoryProctor{m} }

// ─── Exams ─────────────────────────────────────────────────────────────

type memoryExams struct{ m *Memory }

func (s memoryExams) Create(_ context.Context, e *model.Exam) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = s.m.now()
	e.UpdatedAt = e.CreatedAt
	s.m.exams[e.ID] = *e
	return nil
}

func (s memoryExams) Update(_ context.Context, e *model.Exam) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cur, ok := s.m.exams[e.ID]
	if !ok {
		return ErrNotFound
	}
	e.Active = cur.Active
	e.TotalMarks = cur.TotalMarks
	e.CreatedBy = cur.CreatedBy
	e.CreatedAt = cur.CreatedAt
	e.UpdatedAt = s.m.now()
	s.m.exams[e.ID] = *e
	return nil
}

func (s memoryExams) Delete(_ context.Context, id uuid.UUID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.exams[id]; !ok {
		return ErrNotFound
	}
	delete(s.m.exams, id)
	delete(s.m.questions, id)
	return nil
}

func (s memoryExams) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	e, ok := s.m.exams[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (s memoryExams) sorted(filter func(model.Exam) bool) []model.Exam {
	out := make([]model.Exam, 0, len(s.m.exams))
	for _, e := range s.m.exams {
		if filter == nil || filter(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s memoryExams) ListPaginated(_ context.Context, limit, offset int) ([]model.Exam, int, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	all := s.sorted(nil)
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s memoryExams) ListActive(_ context.Context) ([]model.Exam, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return s.sorted(func(e model.Exam) bool { return e.Active }), nil
}

func (s memoryExams) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	e, ok := s.m.exams[id]
	if !ok {
		return ErrNotFound
	}
	e.Active = active
	e.UpdatedAt = s.m.now()
	s.m.exams[id] = e
	return nil
}

func (s memoryExams) SetTotalMarks(_ context.Context, id uuid.UUID, total int) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	e, ok := s.m.exams[id]
	if !ok {
		return ErrNotFound
	}
	e.TotalMarks = total
	s.m.exams[id] = e
	return nil
}

// ─── Questions ─────────────────────────────────────────────────────────

type memoryQuestions struct{ m *Memory }

func subjectRank(s model.Subject) int {
	for i, v := range model.Subjects {
		if v == s {
			return i
		}
	}
	return len(model.Subjects)
}

func (s memoryQuestions) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := append([]model.Question(nil), s.m.questions[examID]...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := subjectRank(out[i].Subject), subjectRank(out[j].Subject)
		if ri != rj {
			return ri < rj
		}
		return out[i].OrderNum < out[j].OrderNum
	})
	return out, nil
}

func (s memoryQuestions) Create(_ context.Context, q *model.Question) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	q.ID = uuid.New()
	q.CreatedAt = s.m.now()
	s.m.questions[q.ExamID] = append(s.m.questions[q.ExamID], *q)
	return nil
}

func (s memoryQuestions) ReplaceForExam(_ context.Context, examID uuid.UUID, qs []model.Question) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	list := make([]model.Question, len(qs))
	for i := range qs {
		qs[i].ID = uuid.New()
		qs[i].ExamID = examID
		qs[i].CreatedAt = s.m.now()
		list[i] = qs[i]
	}
	s.m.questions[examID] = list
	return nil
}

func (s memoryQuestions) Delete(_ context.Context, examID, id uuid.UUID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	list := s.m.questions[examID]
	for i := range list {
		if list[i].ID == id {
			s.m.questions[examID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// ─── Users ─────────────────────────────────────────────────────────────

type memoryUsers struct{ m *Memory }

func (s memoryUsers) Create(_ context.Context, u *model.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u.Email = strings.ToLower(u.Email)
	for _, existing := range s.m.users {
		if existing.Email == u.Email {
			return ErrDuplicateEmail
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = s.m.now()
	u.UpdatedAt = u.CreatedAt
	s.m.users[u.ID] = *u
	return nil
}

func (s memoryUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	u, ok := s.m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s memoryUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range s.m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s memoryUsers) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u, ok := s.m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = s.m.now()
	s.m.users[id] = u
	return nil
}

func (s memoryUsers) CountByRole(_ context.Context, role model.Role) (int, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	n := 0
	for _, u := range s.m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (s memoryUsers) ListByRole(_ context.Context, role model.Role, limit, offset int) ([]model.User, int, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var all []model.User
	for _, u := range s.m.users {
		if u.Role == role {
			all = append(all, u)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return all[i].Email < all[j].Email
	})
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// ─── Submissions ───────────────────────────────────────────────────────

type memorySubmissions struct{ m *Memory }

// insert must be called with mu held.
func (s memorySubmissions) insert(sub model.Submission) {
	for _, existing := range s.m.submissions {
		if existing.SessionID == sub.SessionID {
			return
		}
	}
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	s.m.submissions = append(s.m.submissions, sub)
}

func (s memorySubmissions) Insert(_ context.Context, sub *model.Submission) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.insert(*sub)
	return nil
}

func (s memorySubmissions) BulkInsert(_ context.Context, subs []model.Submission) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, sub := range subs {
		s.insert(sub)
	}
	return nil
}

func (s memorySubmissions) GetByExamAndStudent(_ context.Context, examID, studentID uuid.UUID) (*model.Submission, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var latest *model.Submission
	for i := range s.m.submissions {
		sub := &s.m.submissions[i]
		if sub.ExamID == examID && sub.StudentID == studentID {
			if latest == nil || sub.SubmittedAt.After(latest.SubmittedAt) {
				latest = sub
			}
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	out := *latest
	return &out, nil
}

func (s memorySubmissions) ListByStudent(_ context.Context, studentID uuid.UUID) ([]model.Submission, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []model.Submission
	for _, sub := range s.m.submissions {
		if sub.StudentID == studentID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

// ─── Reports ───────────────────────────────────────────────────────────

type memoryReports struct{ m *Memory }

func (s memoryReports) Summary(_ context.Context) (students, exams, submissions int, err error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, u := range s.m.users {
		if u.Role == model.RoleStudent {
			students++
		}
	}
	return students, len(s.m.exams), len(s.m.submissions), nil
}

func (s memoryReports) ExamStats(_ context.Context) ([]model.ExamStat, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	exams := memoryExams(s).sorted(nil)
	stats := make([]model.ExamStat, 0, len(exams))
	for _, e := range exams {
		st := model.ExamStat{ID: e.ID, Title: e.Title, Active: e.Active}
		sum := 0.0
		for _, sub := range s.m.submissions {
			if sub.ExamID != e.ID {
				continue
			}
			if st.TotalSubmissions == 0 || sub.Percentage > st.HighestScore {
				st.HighestScore = sub.Percentage
			}
			if st.TotalSubmissions == 0 || sub.Percentage < st.LowestScore {
				st.LowestScore = sub.Percentage
			}
			st.TotalSubmissions++
			sum += sub.Percentage
			if sub.Result.Passed {
				st.PassedCount++
			}
		}
		if st.TotalSubmissions > 0 {
			st.AverageScore = sum / float64(st.TotalSubmissions)
		}
		stats = append(stats, st)
	}
	return stats, nil
}

func (s memoryReports) SubmissionsByExam(_ context.Context, examID uuid.UUID) ([]model.SubmissionSummary, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	exam := s.m.exams[examID]
	var out []model.SubmissionSummary
	for _, sub := range s.m.submissions {
		if sub.ExamID != examID {
			continue
		}
		u := s.m.users[sub.StudentID]
		out = append(out, model.SubmissionSummary{
			ID:                   sub.ID,
			SessionID:            sub.SessionID,
			ExamID:               sub.ExamID,
			ExamTitle:            exam.Title,
			StudentID:            sub.StudentID,
			StudentName:          u.Name,
			StudentEmail:         u.Email,
			Score:                sub.Score,
			TotalMarks:           sub.TotalMarks,
			Percentage:           sub.Percentage,
			TimeTaken:            sub.TimeTaken,
			SubmittedAt:          sub.SubmittedAt,
			FlaggedQuestions:     len(sub.FlaggedQuestions),
			TabSwitches:          sub.TabSwitches,
			SuspiciousActivities: len(sub.SuspiciousActivity),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Percentage != out[j].Percentage {
			return out[i].Percentage > out[j].Percentage
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

func (s memoryReports) StudentActivity(_ context.Context, studentIDs []uuid.UUID) (map[uuid.UUID]model.StudentActivity, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()

	wanted := make(map[uuid.UUID]bool, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = true
	}
	out := make(map[uuid.UUID]model.StudentActivity)
	for _, sub := range s.m.submissions {
		if !wanted[sub.StudentID] {
			continue
		}
		a := out[sub.StudentID]
		a.Submissions++
		if a.Submissions == 1 || sub.SubmittedAt.After(a.LastSubmittedAt) {
			a.LatestScore = sub.Score
			a.LatestTotalMarks = sub.TotalMarks
			a.LatestPercentage = sub.Percentage
			a.LastSubmittedAt = sub.SubmittedAt
		}
		out[sub.StudentID] = a
	}
	return out, nil
}

// ─── Proctoring ────────────────────────────────────────────────────────

type memoryProctor struct{ m *Memory }

func (s memoryProctor) Insert(_ context.Context, p *model.ProctorPhoto) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	p.ID = uuid.New()
	s.m.photos = append(s.m.photos, *p)
	return nil
}

func (s memoryProctor) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.ProctorPhoto, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	var out []model.ProctorPhoto
	for _, p := range s.m.photos {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	return out, nil
}
