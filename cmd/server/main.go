package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/database"
	"github.com/stemsi/mocktest-backend/internal/demo"
	"github.com/stemsi/mocktest-backend/internal/grader"
	"github.com/stemsi/mocktest-backend/internal/handler"
	"github.com/stemsi/mocktest-backend/internal/logger"
	"github.com/stemsi/mocktest-backend/internal/middleware"
	"github.com/stemsi/mocktest-backend/internal/repository"
	"github.com/stemsi/mocktest-backend/internal/router"
	"github.com/stemsi/mocktest-backend/internal/service"
	"github.com/stemsi/mocktest-backend/internal/session"
	"github.com/stemsi/mocktest-backend/internal/store"
	"github.com/stemsi/mocktest-backend/internal/validator"
	"github.com/stemsi/mocktest-backend/internal/worker"
)

// backend bundles the storage selected by DATA_BACKEND.
type backend struct {
	exams       repository.ExamStore
	questions   repository.QuestionStore
	users       repository.UserStore
	submissions repository.SubmissionStore
	reports     repository.ReportStore
	proctor     repository.ProctorStore
	kv          store.KV
	queue       store.Queue
	close       func()
}

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.FromConfig(cfg)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("backend", cfg.DataBackend).
		Str("log_level", cfg.LogLevel).
		Msg("Starting MockTest Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect Storage ───────────────────────────────────────────────
	var b *backend
	switch cfg.DataBackend {
	case config.BackendMemory:
		b = memoryBackend()
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
	case config.BackendPostgres:
		var err error
		if b, err = postgresBackend(ctx, cfg, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect storage")
		}
	default:
		log.Fatal().Str("backend", cfg.DataBackend).Msg("Unknown DATA_BACKEND")
	}
	defer b.close()

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, b.users, b.kv)
	examService := service.NewExamService(b.exams, b.questions, b.kv, log)
	importService := service.NewImportService(examService, cfg.DefaultMarks, log)
	mediaService := service.NewMediaService(cfg)
	proctorService := service.NewProctorService(mediaService, b.proctor, log)
	submissionService := service.NewSubmissionService(examService, b.submissions, b.queue, cfg.PassingPercent, log)
	reportService := service.NewReportService(b.reports, b.exams, log)
	studentService := service.NewStudentService(b.users, b.reports, authService, log)

	var sink session.Sink = submissionService
	if cfg.GraderURL != "" {
		sink = submissionService.Recording(grader.NewClient(cfg.GraderURL, cfg.GraderTimeout, log))
		log.Info().Str("url", cfg.GraderURL).Msg("Submissions routed to remote grader")
	}
	sessionService := service.NewSessionService(cfg, examService, b.submissions, b.kv, sink, log)

	if cfg.DataBackend == config.BackendMemory {
		if _, err := demo.Seed(ctx, b.users, authService, examService, demo.DefaultOptions, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed demo data")
		}
	}

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:          handler.NewAuthHandler(authService, log),
		StudentPortal: handler.NewStudentPortalHandler(examService, sessionService, submissionService, mediaService, proctorService, log),
		Students:      handler.NewStudentManagementHandler(studentService, log),
		Exam:          handler.NewExamHandler(examService, importService, mediaService, log),
		WS:            handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		Dashboard:     handler.NewDashboardHandler(reportService, proctorService, log),
		Monitor:       handler.NewMonitorHandler(examService, sessionService, log),
		System:        handler.NewSystemHandler(sessionService, b.queue, log),
	}
	authLimiter := middleware.NewRateLimiter(cfg.AuthRatePerMinute)

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	submissionWorker := worker.NewSubmissionWorker(b.submissions, b.queue, log)
	go func() {
		defer close(workerDone)
		submissionWorker.Start(workerCtx)
	}()

	sweeper := worker.NewSweeper(log)
	if err := sweeper.AddSessionSweep(workerCtx, worker.DefaultSweepSchedule, sessionService); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule session sweep")
	}
	if err := sweeper.AddJob(workerCtx, "rate_limiter_cleanup", "@every 5m", func(context.Context) {
		authLimiter.Cleanup(time.Now())
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule limiter cleanup")
	}
	sweeper.Start()

	// ─── Prewarm Caches ───────────────────────────────────────────────
	// Load all active exams into the cache BEFORE accepting traffic so the
	// first wave of starts does not stampede the database.
	if err := examService.PrewarmAllCaches(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, authLimiter, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Autosave and stop every live session, then let pending proctor
	//    uploads finish.
	sessionService.StopAll(shutdownCtx)
	proctorService.Wait()

	// 3. Stop cron jobs and drain the submission queue.
	sweeper.Stop()
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Submission worker did not drain in time")
	}

	log.Info().Msg("Shutdown complete")
}

func memoryBackend() *backend {
	repo := repository.NewMemory()
	return &backend{
		exams:       repo.Exams(),
		questions:   repo.Questions(),
		users:       repo.Users(),
		submissions: repo.Submissions(),
		reports:     repo.Reports(),
		proctor:     repo.Proctor(),
		kv:          store.NewMemoryKV(),
		queue:       store.NewMemoryQueue(),
		close:       func() {},
	}
}

func postgresBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &backend{
		exams:       repository.NewExamRepository(pool),
		questions:   repository.NewQuestionRepository(pool),
		users:       repository.NewUserRepository(pool),
		submissions: repository.NewSubmissionRepository(pool),
		reports:     repository.NewReportRepository(pool),
		proctor:     repository.NewProctorRepository(pool),
		kv:          store.NewRedisKV(rdb),
		queue:       store.NewRedisQueue(rdb),
		close: func() {
			_ = rdb.Close()
			pool.Close()
		},
	}, nil
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
