package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/handler"
	"github.com/stemsi/mocktest-backend/internal/middleware"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	Students      *handler.StudentManagementHandler
	Exam          *handler.ExamHandler
	WS            *handler.WSHandler
	Dashboard     *handler.DashboardHandler
	Monitor       *handler.MonitorHandler
	System        *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	authLimiter *middleware.RateLimiter,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so access logs and error envelopes share it.
	router.Use(response.RequestIDMiddleware())
	router.Use(response.AccessLog(log))

	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		SkipPrefixes: []string{"/uploads"},
	}))

	// Uploaded images never change once written (names are random).
	uploadsGroup := router.Group("/uploads")
	uploadsGroup.Use(middleware.CacheControl(365*24*time.Hour, true))
	{
		uploadsGroup.Static("/", cfg.UploadDir)
	}

	router.GET("/health", handlers.System.Health)

	requireStudent := []gin.HandlerFunc{
		middleware.RequireJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
		middleware.RequireRole(model.RoleStudent),
	}

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/student/register", authLimiter.Middleware(), handlers.Auth.Register)
		auth.POST("/student/login", authLimiter.Middleware(), handlers.Auth.StudentLogin)
		auth.POST("/admin/login", authLimiter.Middleware(), handlers.Auth.AdminLogin)

		authed := auth.Group("", middleware.RequireJWT(authService), middleware.CheckSingleDeviceSession(authService))
		authed.GET("/me", handlers.Auth.Me)
		authed.POST("/logout", handlers.Auth.Logout)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(requireStudent...)
	studentAPI.Use(middleware.NoStore())
	{
		studentAPI.GET("/exams", handlers.StudentPortal.ListExams)
		studentAPI.GET("/submissions", handlers.StudentPortal.History)

		exam := studentAPI.Group("/exams/:exam_id")
		exam.POST("/start", handlers.StudentPortal.StartExam)
		exam.GET("/state", handlers.StudentPortal.GetState)
		exam.PUT("/answer", handlers.StudentPortal.SelectAnswer)
		exam.PUT("/flag", handlers.StudentPortal.ToggleFlag)
		exam.PUT("/navigate", handlers.StudentPortal.Navigate)
		exam.PUT("/subject", handlers.StudentPortal.SwitchSubject)
		exam.POST("/security", handlers.StudentPortal.ReportSecurity)
		exam.POST("/submit", handlers.StudentPortal.SubmitExam)
		exam.GET("/result", handlers.StudentPortal.GetResult)
		exam.POST("/proctor", handlers.StudentPortal.UploadProctorPhoto)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireWSAuth(authService),
		middleware.CheckSingleDeviceSession(authService),
		middleware.RequireRole(model.RoleStudent),
	)
	{
		ws.GET("/student/exams/:exam_id/stream", handlers.WS.ExamWebSocketStream)
	}

	// ─── 4. Admin Group ────────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
		middleware.RequireRole(model.RoleAdmin),
	)
	{
		adminAPI.GET("/dashboard", handlers.Dashboard.GetStats)
		adminAPI.GET("/system/metrics", handlers.System.SystemMetricsSSE)
		adminAPI.POST("/media/questions", handlers.Exam.UploadQuestionImage)
		adminAPI.GET("/questions/template", handlers.Exam.ImportTemplate)
		adminAPI.GET("/sessions/:session_id/photos", handlers.Dashboard.ListProctorPhotos)

		// Student management
		adminAPI.GET("/students", handlers.Students.ListStudents)
		adminAPI.POST("/students/:student_id/reset-session", handlers.Students.ResetStudentSession)

		// Exam management
		adminAPI.GET("/exams", handlers.Exam.ListExams)
		adminAPI.POST("/exams", handlers.Exam.CreateExam)
		adminAPI.GET("/exams/:exam_id", handlers.Exam.GetExam)
		adminAPI.PATCH("/exams/:exam_id", handlers.Exam.UpdateExam)
		adminAPI.DELETE("/exams/:exam_id", handlers.Exam.DeleteExam)
		adminAPI.PUT("/exams/:exam_id/active", handlers.Exam.SetActive)
		adminAPI.GET("/exams/:exam_id/monitor", handlers.Monitor.MonitorExamSSE)

		// Questions
		adminAPI.GET("/exams/:exam_id/questions", handlers.Exam.ListQuestions)
		adminAPI.POST("/exams/:exam_id/questions", handlers.Exam.AddQuestion)
		adminAPI.PUT("/exams/:exam_id/questions", handlers.Exam.ReplaceQuestions)
		adminAPI.DELETE("/exams/:exam_id/questions/:question_id", handlers.Exam.DeleteQuestion)
		adminAPI.POST("/exams/:exam_id/questions/import", handlers.Exam.ImportQuestions)
		adminAPI.GET("/exams/:exam_id/questions/export", handlers.Exam.ExportQuestions)

		// Results
		adminAPI.GET("/exams/:exam_id/submissions", handlers.Dashboard.ListSubmissions)
		adminAPI.GET("/exams/:exam_id/submissions/export", handlers.Dashboard.ExportSubmissions)
	}

	return router
}
