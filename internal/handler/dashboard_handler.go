package handler

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/service"
)

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// DashboardHandler handles admin statistics and result reports.
type DashboardHandler struct {
	reportService  *service.ReportService
	proctorService *service.ProctorService
	log            zerolog.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(reportService *service.ReportService, proctorService *service.ProctorService, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		reportService:  reportService,
		proctorService: proctorService,
		log:            log.With().Str("component", "dashboard_handler").Logger(),
	}
}

// GetStats godoc
// GET /api/v1/admin/dashboard
// Returns platform totals and per-exam score statistics.
func (h *DashboardHandler) GetStats(c *gin.Context) {
	stats, err := h.reportService.Stats(c.Request.Context())
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// ListSubmissions godoc
// GET /api/v1/admin/exams/:exam_id/submissions
// Lists an exam's submissions, best score first.
func (h *DashboardHandler) ListSubmissions(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	subs, err := h.reportService.Submissions(c.Request.Context(), examID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"submissions": subs})
}

// ExportSubmissions godoc
// GET /api/v1/admin/exams/:exam_id/submissions/export
// Downloads the exam's results as an xlsx workbook.
func (h *DashboardHandler) ExportSubmissions(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	data, title, err := h.reportService.ExportSubmissions(c.Request.Context(), examID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Attachment(c, resultsFilename(title, time.Now()), xlsxContentType, data)
}

func resultsFilename(title string, at time.Time) string {
	slug := strings.Trim(unsafeFilename.ReplaceAllString(title, "_"), "_")
	if slug == "" {
		slug = "exam"
	}
	return fmt.Sprintf("%s_results_%s.xlsx", slug, at.Format("2006-01-02"))
}

// ListProctorPhotos godoc
// GET /api/v1/admin/sessions/:session_id/photos
// Lists the webcam captures of one exam attempt.
func (h *DashboardHandler) ListProctorPhotos(c *gin.Context) {
	sessionID, ok := paramID(c, "session_id")
	if !ok {
		return
	}

	photos, err := h.proctorService.List(c.Request.Context(), sessionID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"photos": photos})
}
