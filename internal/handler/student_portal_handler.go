package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/middleware"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/service"
	"github.com/stemsi/mocktest-backend/internal/session"
	"github.com/stemsi/mocktest-backend/internal/validator"
)

// StudentPortalHandler handles student-facing endpoints (exam list, exam taking, results).
type StudentPortalHandler struct {
	examService       *service.ExamService
	sessionService    *service.SessionService
	submissionService *service.SubmissionService
	mediaService      *service.MediaService
	proctorService    *service.ProctorService
	log               zerolog.Logger
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	examService *service.ExamService,
	sessionService *service.SessionService,
	submissionService *service.SubmissionService,
	mediaService *service.MediaService,
	proctorService *service.ProctorService,
	log zerolog.Logger,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		examService:       examService,
		sessionService:    sessionService,
		submissionService: submissionService,
		mediaService:      mediaService,
		proctorService:    proctorService,
		log:               log.With().Str("component", "student_portal_handler").Logger(),
	}
}

// ListExams godoc
// GET /api/v1/student/exams
// Returns the active exams open for taking now.
func (h *StudentPortalHandler) ListExams(c *gin.Context) {
	exams, err := h.examService.ListAvailable(c.Request.Context())
	if err != nil {
		fail(c, h.log, err)
		return
	}
	if exams == nil {
		exams = []model.Exam{}
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// StartExam godoc
// POST /api/v1/student/exams/:exam_id/start
// Starts the exam, or resumes the unfinished attempt. Returns the paper without the answer key.
func (h *StudentPortalHandler) StartExam(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	started, err := h.sessionService.Start(c.Request.Context(), examID, middleware.UserID(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, started)
}

// GetState godoc
// GET /api/v1/student/exams/:exam_id/state
func (h *StudentPortalHandler) GetState(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	view, err := h.sessionService.State(examID, middleware.UserID(c))
	h.respondView(c, view, err)
}

// SelectAnswer godoc
// PUT /api/v1/student/exams/:exam_id/answer
func (h *StudentPortalHandler) SelectAnswer(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.SelectAnswer(examID, middleware.UserID(c), &req)
	h.respondView(c, view, err)
}

// ToggleFlag godoc
// PUT /api/v1/student/exams/:exam_id/flag
func (h *StudentPortalHandler) ToggleFlag(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	var req model.FlagRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.ToggleFlag(examID, middleware.UserID(c), &req)
	h.respondView(c, view, err)
}

// Navigate godoc
// PUT /api/v1/student/exams/:exam_id/navigate
func (h *StudentPortalHandler) Navigate(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.Navigate(examID, middleware.UserID(c), &req)
	h.respondView(c, view, err)
}

// SwitchSubject godoc
// PUT /api/v1/student/exams/:exam_id/subject
func (h *StudentPortalHandler) SwitchSubject(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	var req model.SwitchSubjectRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.SwitchSubject(examID, middleware.UserID(c), &req)
	h.respondView(c, view, err)
}

// ReportSecurity godoc
// POST /api/v1/student/exams/:exam_id/security
// Logs an integrity event observed by the browser.
func (h *StudentPortalHandler) ReportSecurity(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	var req model.SecurityEventRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	out, err := h.sessionService.RecordSecurity(examID, middleware.UserID(c), &req)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, out)
}

// SubmitExam godoc
// POST /api/v1/student/exams/:exam_id/submit
// Grades the attempt. A failed submission leaves the attempt open for another try.
func (h *StudentPortalHandler) SubmitExam(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}
	studentID := middleware.UserID(c)

	result, err := h.sessionService.Submit(c.Request.Context(), examID, studentID)
	if err != nil {
		h.respondSubmitError(c, examID, studentID, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

func (h *StudentPortalHandler) respondSubmitError(c *gin.Context, examID, studentID uuid.UUID, err error) {
	if errors.Is(err, session.ErrSubmissionFailed) {
		msg := ""
		if view, vErr := h.sessionService.State(examID, studentID); vErr == nil {
			msg = view.SubmitError
		}
		response.FailWithMessage(c, http.StatusBadGateway, response.ErrSubmissionFailed, msg)
		return
	}
	fail(c, h.log, err)
}

// GetResult godoc
// GET /api/v1/student/exams/:exam_id/result
func (h *StudentPortalHandler) GetResult(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	result, err := h.sessionService.Result(c.Request.Context(), examID, middleware.UserID(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// History godoc
// GET /api/v1/student/submissions
// Lists the student's past submissions, newest first.
func (h *StudentPortalHandler) History(c *gin.Context) {
	subs, err := h.submissionService.History(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"submissions": subs})
}

// UploadProctorPhoto godoc
// POST /api/v1/student/exams/:exam_id/proctor
// Accepts a webcam capture. The photo is stored in the background.
func (h *StudentPortalHandler) UploadProctorPhoto(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}
	studentID := middleware.UserID(c)

	ctrl, err := h.sessionService.Controller(examID, studentID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	data, ext, err := h.mediaService.ReadImage(file, header)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	h.proctorService.Capture(ctrl.Session().ID(), examID, studentID, data, ext)
	response.Success(c, http.StatusAccepted, gin.H{})
}

func (h *StudentPortalHandler) respondView(c *gin.Context, view model.SessionView, err error) {
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": view})
}
