package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/repository"
)

// ReportService builds the admin dashboard and result reports.
type ReportService struct {
	reports repository.ReportStore
	exams   repository.ExamStore
	log     zerolog.Logger
}

// NewReportService creates a new ReportService.
func NewReportService(reports repository.ReportStore, exams repository.ExamStore, log zerolog.Logger) *ReportService {
	return &ReportService{
		reports: reports,
		exams:   exams,
		log:     log.With().Str("component", "report_service").Logger(),
	}
}

// Stats returns platform totals and per-exam score statistics.
func (s *ReportService) Stats(ctx context.Context) (*model.AdminStats, error) {
	students, exams, submissions, err := s.reports.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	stats, err := s.reports.ExamStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("exam stats: %w", err)
	}
	if stats == nil {
		stats = []model.ExamStat{}
	}
	for i := range stats {
		if stats[i].TotalSubmissions > 0 {
			stats[i].PassRate = float64(stats[i].PassedCount) / float64(stats[i].TotalSubmissions) * 100
		}
	}
	return &model.AdminStats{
		TotalStudents:    students,
		TotalExams:       exams,
		TotalSubmissions: submissions,
		ExamStats:        stats,
	}, nil
}

// Submissions lists the submissions of an exam, best score first.
func (s *ReportService) Submissions(ctx context.Context, examID uuid.UUID) ([]model.SubmissionSummary, error) {
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		return nil, err
	}
	subs, err := s.reports.SubmissionsByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []model.SubmissionSummary{}
	}
	return subs, nil
}

var resultHeaders = []interface{}{
	"Rank", "Student Name", "Email", "Score", "Total Marks", "Percentage",
	"Time Taken (minutes)", "Flagged", "Tab Switches", "Suspicious Activities", "Submitted At",
}

// ExportSubmissions renders the submissions of an exam as an xlsx workbook.
func (s *ReportService) ExportSubmissions(ctx context.Context, examID uuid.UUID) ([]byte, string, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		return nil, "", err
	}
	subs, err := s.reports.SubmissionsByExam(ctx, examID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Results"
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, "", fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, "", err
	}
	if index, err := f.GetSheetIndex(sheet); err == nil {
		f.SetActiveSheet(index)
	}

	if err := f.SetSheetRow(sheet, "A1", &resultHeaders); err != nil {
		return nil, "", err
	}
	for i, sub := range subs {
		row := []interface{}{
			i + 1, sub.StudentName, sub.StudentEmail, sub.Score, sub.TotalMarks,
			fmt.Sprintf("%.2f", sub.Percentage), sub.TimeTaken / 60,
			sub.FlaggedQuestions, sub.TabSwitches, sub.SuspiciousActivities,
			sub.SubmittedAt.Format("2006-01-02 15:04:05"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, "", err
		}
	}
	_ = f.SetColWidth(sheet, "A", "A", 6)
	_ = f.SetColWidth(sheet, "B", "C", 28)
	_ = f.SetColWidth(sheet, "D", "J", 14)
	_ = f.SetColWidth(sheet, "K", "K", 20)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("write workbook: %w", err)
	}

	s.log.Info().Str("exam_id", examID.String()).Int("rows", len(subs)).Msg("Results exported")
	return buf.Bytes(), exam.Title, nil
}
