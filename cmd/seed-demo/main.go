package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/database"
	"github.com/stemsi/mocktest-backend/internal/demo"
	"github.com/stemsi/mocktest-backend/internal/logger"
	"github.com/stemsi/mocktest-backend/internal/repository"
	"github.com/stemsi/mocktest-backend/internal/service"
	"github.com/stemsi/mocktest-backend/internal/store"
)

func main() {
	opts := demo.DefaultOptions
	flag.StringVar(&opts.AdminEmail, "admin-email", opts.AdminEmail, "Email of the demo admin")
	flag.StringVar(&opts.AdminPassword, "admin-password", opts.AdminPassword, "Password of the demo admin")
	flag.StringVar(&opts.StudentPassword, "student-password", opts.StudentPassword, "Password shared by demo students")
	flag.IntVar(&opts.Students, "students", 50, "Number of demo students")
	flag.Parse()

	cfg := config.Load()
	log := logger.FromConfig(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// The exam cache lives in Redis so a running server sees the new exam.
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	kv := store.NewRedisKV(rdb)
	users := repository.NewUserRepository(pool)
	auth := service.NewAuthService(cfg, users, kv)
	exams := service.NewExamService(repository.NewExamRepository(pool), repository.NewQuestionRepository(pool), kv, log)

	fmt.Printf("=== Seeding demo data (%d students) ===\n", opts.Students)
	report, err := demo.Seed(ctx, users, auth, exams, opts, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Seed failed")
	}

	fmt.Printf("\nSeed completed! admin created: %t, students added: %d/%d\n", report.AdminCreated, report.Students, opts.Students)
	if report.ExamID != "" {
		fmt.Printf("Demo exam %s published with %d questions\n", report.ExamID, report.Questions)
	}
}
