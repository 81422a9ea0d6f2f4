package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/handler"
	"github.com/stemsi/mocktest-backend/internal/middleware"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/repository"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/service"
	"github.com/stemsi/mocktest-backend/internal/store"
	"github.com/stemsi/mocktest-backend/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

type app struct {
	router   *gin.Engine
	auth     *service.AuthService
	repo     *repository.Memory
	sessions *service.SessionService
}

func newApp(t *testing.T) *app {
	t.Helper()
	cfg := &config.Config{
		GinMode:            gin.TestMode,
		JWTSecret:          "test-secret",
		JWTExpiry:          time.Hour,
		BcryptCost:         4,
		UploadDir:          t.TempDir(),
		MaxUploadBytes:     1 << 20,
		TickInterval:       time.Hour,
		AutosaveInterval:   time.Hour,
		DefaultMarks:       4,
		PassingPercent:     40,
		SessionIdleTimeout: 15 * time.Minute,
		SnapshotTTL:        time.Hour,
		ResultTTL:          time.Hour,
		AuthRatePerMinute:  100,
	}
	log := zerolog.Nop()
	repo := repository.NewMemory()
	kv := store.NewMemoryKV()
	queue := store.NewMemoryQueue()

	auth := service.NewAuthService(cfg, repo.Users(), kv)
	exams := service.NewExamService(repo.Exams(), repo.Questions(), kv, log)
	imports := service.NewImportService(exams, cfg.DefaultMarks, log)
	media := service.NewMediaService(cfg)
	proctor := service.NewProctorService(media, repo.Proctor(), log)
	submissions := service.NewSubmissionService(exams, repo.Submissions(), queue, cfg.PassingPercent, log)
	sessions := service.NewSessionService(cfg, exams, repo.Submissions(), kv, submissions, log)
	reports := service.NewReportService(repo.Reports(), repo.Exams(), log)
	students := service.NewStudentService(repo.Users(), repo.Reports(), auth, log)
	t.Cleanup(func() { sessions.StopAll(context.Background()) })

	handlers := &Handlers{
		Auth:          handler.NewAuthHandler(auth, log),
		StudentPortal: handler.NewStudentPortalHandler(exams, sessions, submissions, media, proctor, log),
		Students:      handler.NewStudentManagementHandler(students, log),
		Exam:          handler.NewExamHandler(exams, imports, media, log),
		WS:            handler.NewWSHandler(sessions, log, nil),
		Dashboard:     handler.NewDashboardHandler(reports, proctor, log),
		Monitor:       handler.NewMonitorHandler(exams, sessions, log),
		System:        handler.NewSystemHandler(sessions, queue, log),
	}
	r := SetupRouter(auth, handlers, middleware.NewRateLimiter(cfg.AuthRatePerMinute), cfg, log)
	return &app{router: r, auth: auth, repo: repo, sessions: sessions}
}

type envelope struct {
	Data       json.RawMessage      `json:"data"`
	Error      *response.ErrorBody  `json:"error"`
	Pagination *response.Pagination `json:"pagination"`
}

func (a *app) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func (a *app) adminToken(t *testing.T) string {
	t.Helper()
	hash, err := a.auth.HashPassword("admin-pass")
	require.NoError(t, err)
	require.NoError(t, a.repo.Users().Create(context.Background(), &model.User{
		Email: "admin@example.com", Name: "Admin", Role: model.RoleAdmin, PasswordHash: hash,
	}))

	code, env := a.do(t, http.MethodPost, "/api/v1/auth/admin/login", "", gin.H{
		"email": "admin@example.com", "password": "admin-pass",
	})
	require.Equal(t, http.StatusOK, code)
	var res model.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	return res.Token
}

func (a *app) studentToken(t *testing.T, email string) string {
	t.Helper()
	code, env := a.do(t, http.MethodPost, "/api/v1/auth/student/register", "", gin.H{
		"name": "Asha", "email": email, "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var res model.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	return res.Token
}

func options() []gin.H {
	return []gin.H{{"id": "a", "text": "1"}, {"id": "b", "text": "2"}, {"id": "c", "text": "3"}, {"id": "d", "text": "4"}}
}

// publishExam creates an active exam with one mathematics and one physics question.
func (a *app) publishExam(t *testing.T, token string) string {
	t.Helper()
	code, env := a.do(t, http.MethodPost, "/api/v1/admin/exams", token, gin.H{"title": "JEE Mock 1", "duration": 60})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var created struct {
		Exam model.Exam `json:"exam"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	examID := created.Exam.ID.String()

	code, env = a.do(t, http.MethodPut, "/api/v1/admin/exams/"+examID+"/questions", token, gin.H{
		"questions": []gin.H{
			{"subject": "mathematics", "question_text": "1+1", "options": options(), "correct_answer": "b", "order_num": 1},
			{"subject": "physics", "question_text": "g", "options": options(), "correct_answer": "c", "order_num": 1},
		},
	})
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = a.do(t, http.MethodPut, "/api/v1/admin/exams/"+examID+"/active", token, gin.H{"active": true})
	require.Equal(t, http.StatusOK, code, env.Error)
	return examID
}

func TestExamFlow(t *testing.T) {
	a := newApp(t)
	admin := a.adminToken(t)
	examID := a.publishExam(t, admin)
	student := a.studentToken(t, "asha@example.com")
	base := "/api/v1/student/exams/" + examID

	code, env := a.do(t, http.MethodGet, "/api/v1/student/exams", student, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), examID)

	code, env = a.do(t, http.MethodGet, base+"/state", student, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, response.ErrSessionNotStarted, env.Error.Code)

	code, env = a.do(t, http.MethodPost, base+"/start", student, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.NotContains(t, string(env.Data), "correct_answer")
	var started service.StartedSession
	require.NoError(t, json.Unmarshal(env.Data, &started))
	require.Len(t, started.Paper.Questions, 2)
	assert.False(t, started.Resumed)
	assert.Equal(t, model.SubjectMathematics, started.State.CurrentSubject)

	var mathQ, physQ string
	for _, q := range started.Paper.Questions {
		if q.Subject == model.SubjectMathematics {
			mathQ = q.ID.String()
		} else {
			physQ = q.ID.String()
		}
	}

	code, env = a.do(t, http.MethodPut, base+"/answer", student, gin.H{"question_id": mathQ, "option_id": "b"})
	require.Equal(t, http.StatusOK, code, env.Error)
	code, _ = a.do(t, http.MethodPut, base+"/subject", student, gin.H{"subject": "physics"})
	require.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodPut, base+"/answer", student, gin.H{"question_id": physQ, "option_id": "a"})
	require.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodPut, base+"/flag", student, gin.H{"question_id": physQ})
	require.Equal(t, http.StatusOK, code)

	code, env = a.do(t, http.MethodPost, base+"/security", student, gin.H{"kind": "tab_hidden"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"tab_switch_count":1`)

	code, env = a.do(t, http.MethodPost, base+"/submit", student, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	var submitted struct {
		Result model.Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &submitted))
	assert.Equal(t, 4, submitted.Result.Total)
	assert.Equal(t, 8, submitted.Result.TotalMarks)
	assert.Equal(t, 1, submitted.Result.CorrectAnswers)

	code, env = a.do(t, http.MethodPost, base+"/submit", student, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, response.ErrAlreadySubmitted, env.Error.Code)

	code, env = a.do(t, http.MethodGet, base+"/result", student, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"total":4`)
}

func TestRoleSeparation(t *testing.T) {
	a := newApp(t)
	student := a.studentToken(t, "role@example.com")

	code, env := a.do(t, http.MethodGet, "/api/v1/admin/exams", student, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, response.ErrAdminAccessOnly, env.Error.Code)

	code, env = a.do(t, http.MethodGet, "/api/v1/student/exams", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, response.ErrTokenRequired, env.Error.Code)
}

func TestAdminValidationAndErrors(t *testing.T) {
	a := newApp(t)
	admin := a.adminToken(t)

	code, env := a.do(t, http.MethodPost, "/api/v1/admin/exams", admin, gin.H{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, response.ErrValidation, env.Error.Code)
	assert.Contains(t, env.Error.Fields, "title")

	code, env = a.do(t, http.MethodGet, "/api/v1/admin/exams/not-a-uuid", admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, response.ErrInvalidID, env.Error.Code)

	examID := a.publishExam(t, admin)
	code, env = a.do(t, http.MethodPost, "/api/v1/admin/exams/"+examID+"/questions", admin, gin.H{
		"subject": "biology", "question_text": "?", "options": options(), "correct_answer": "a",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, response.ErrValidation, env.Error.Code)

	code, env = a.do(t, http.MethodPost, "/api/v1/admin/exams/"+examID+"/questions", admin, gin.H{
		"subject": "chemistry", "question_text": "?", "options": options(), "correct_answer": "z",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, response.ErrInvalidCorrectAnswer, env.Error.Code)
}

func TestLoginSupersedesEarlierToken(t *testing.T) {
	a := newApp(t)
	first := a.studentToken(t, "twice@example.com")

	code, env := a.do(t, http.MethodPost, "/api/v1/auth/student/login", "", gin.H{
		"email": "twice@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, code)
	var res model.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))

	code, env = a.do(t, http.MethodGet, "/api/v1/auth/me", first, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, response.ErrSessionInvalidated, env.Error.Code)

	code, _ = a.do(t, http.MethodGet, "/api/v1/auth/me", res.Token, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestAdminStudents(t *testing.T) {
	a := newApp(t)
	admin := a.adminToken(t)
	examID := a.publishExam(t, admin)
	a.studentToken(t, "asha@example.com")
	other := a.studentToken(t, "bima@example.com")
	ctx := context.Background()

	asha, err := a.repo.Users().GetByEmail(ctx, "asha@example.com")
	require.NoError(t, err)
	first := time.Now().Add(-time.Hour)
	for i, score := range []int{4, 8} {
		require.NoError(t, a.repo.Submissions().Insert(ctx, &model.Submission{
			SessionID: uuid.New(), ExamID: uuid.MustParse(examID), StudentID: asha.ID,
			Score: score, TotalMarks: 8, Percentage: float64(score) / 8 * 100,
			SubmittedAt: first.Add(time.Duration(i) * time.Minute),
		}))
	}

	code, env := a.do(t, http.MethodGet, "/api/v1/admin/students?page=1&per_page=1", admin, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 2, env.Pagination.TotalItems)
	assert.Equal(t, 2, env.Pagination.TotalPages)

	var body struct {
		Students []model.StudentSummary `json:"students"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	require.Len(t, body.Students, 1)
	got := body.Students[0]
	assert.Equal(t, "asha@example.com", got.Email)
	assert.NotContains(t, string(env.Data), "password")
	assert.Equal(t, 2, got.SubmissionCount)
	require.NotNil(t, got.LatestScore)
	assert.Equal(t, 8, *got.LatestScore)
	assert.InDelta(t, 100.0, *got.LatestPercentage, 0.001)

	code, env = a.do(t, http.MethodGet, "/api/v1/admin/students?page=2&per_page=1", admin, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &body))
	require.Len(t, body.Students, 1)
	assert.Equal(t, "bima@example.com", body.Students[0].Email)
	assert.Zero(t, body.Students[0].SubmissionCount)
	assert.Nil(t, body.Students[0].LatestScore)

	code, _ = a.do(t, http.MethodGet, "/api/v1/admin/students", other, nil)
	assert.Equal(t, http.StatusForbidden, code)

	bima, err := a.repo.Users().GetByEmail(ctx, "bima@example.com")
	require.NoError(t, err)
	code, env = a.do(t, http.MethodPost, "/api/v1/admin/students/"+bima.ID.String()+"/reset-session", admin, nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = a.do(t, http.MethodGet, "/api/v1/auth/me", other, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, response.ErrSessionInvalidated, env.Error.Code)

	code, env = a.do(t, http.MethodPost, "/api/v1/admin/students/"+uuid.NewString()+"/reset-session", admin, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, response.ErrNotFound, env.Error.Code)
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	code, env := a.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"status":"ok"`)
}
