package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/middleware"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/service"
	"github.com/stemsi/mocktest-backend/internal/validator"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExamHandler handles exam and question management endpoints.
type ExamHandler struct {
	examService   *service.ExamService
	importService *service.ImportService
	mediaService  *service.MediaService
	log           zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(
	examService *service.ExamService,
	importService *service.ImportService,
	mediaService *service.MediaService,
	log zerolog.Logger,
) *ExamHandler {
	return &ExamHandler{
		examService:   examService,
		importService: importService,
		mediaService:  mediaService,
		log:           log.With().Str("component", "exam_handler").Logger(),
	}
}

// ListExams godoc
// GET /api/v1/admin/exams
// Lists exams with pagination, newest first.
func (h *ExamHandler) ListExams(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	exams, pagination, err := h.examService.List(c.Request.Context(), page, perPage)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// GetExam godoc
// GET /api/v1/admin/exams/:exam_id
func (h *ExamHandler) GetExam(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// CreateExam godoc
// POST /api/v1/admin/exams
// Creates an inactive exam.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// UpdateExam godoc
// PATCH /api/v1/admin/exams/:exam_id
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Update(c.Request.Context(), examID, &req)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// DeleteExam godoc
// DELETE /api/v1/admin/exams/:exam_id
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	if err := h.examService.Delete(c.Request.Context(), examID); err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// SetActive godoc
// PUT /api/v1/admin/exams/:exam_id/active
// Shows or hides an exam for students. Activating warms the exam cache.
func (h *ExamHandler) SetActive(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	var req model.SetActiveRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.examService.SetActive(c.Request.Context(), examID, *req.Active); err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"active": *req.Active})
}

// ListQuestions godoc
// GET /api/v1/admin/exams/:exam_id/questions
// Lists all questions of an exam including the answer key.
func (h *ExamHandler) ListQuestions(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	if _, err := h.examService.GetByID(c.Request.Context(), examID); err != nil {
		fail(c, h.log, err)
		return
	}
	questions, err := h.examService.Questions(c.Request.Context(), examID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// AddQuestion godoc
// POST /api/v1/admin/exams/:exam_id/questions
func (h *ExamHandler) AddQuestion(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.examService.AddQuestion(c.Request.Context(), examID, &req)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": question})
}

// ReplaceQuestions godoc
// PUT /api/v1/admin/exams/:exam_id/questions
// Bulk replaces all questions of an exam.
func (h *ExamHandler) ReplaceQuestions(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, err := h.examService.ReplaceQuestions(c.Request.Context(), examID, req.Questions)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// DeleteQuestion godoc
// DELETE /api/v1/admin/exams/:exam_id/questions/:question_id
func (h *ExamHandler) DeleteQuestion(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}
	questionID, ok := paramID(c, "question_id")
	if !ok {
		return
	}

	if err := h.examService.DeleteQuestion(c.Request.Context(), examID, questionID); err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// UploadQuestionImage godoc
// POST /api/v1/admin/media/questions
// Stores an image for use as a question's image_url.
func (h *ExamHandler) UploadQuestionImage(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	url, err := h.mediaService.SaveQuestionImage(file, header)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"url": url})
}

// ImportQuestions godoc
// POST /api/v1/admin/exams/:exam_id/questions/import?replace=true
// Reads questions from an uploaded xlsx workbook.
func (h *ExamHandler) ImportQuestions(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".xlsx") {
		response.Fail(c, http.StatusBadRequest, response.ErrUnsupportedFile)
		return
	}

	replace, _ := strconv.ParseBool(c.DefaultQuery("replace", c.PostForm("replace")))

	res, err := h.importService.Import(c.Request.Context(), examID, file, replace)
	if err != nil {
		status, code := statusFor(err)
		if status == http.StatusInternalServerError {
			// excelize reports corrupt or non-xlsx files as plain errors.
			status, code = http.StatusBadRequest, response.ErrInvalidWorkbook
			h.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Workbook rejected")
		}
		response.Fail(c, status, code)
		return
	}

	if res.Imported == 0 {
		response.FailWithData(c, http.StatusUnprocessableEntity, response.ErrNothingToImport, res)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// ExportQuestions godoc
// GET /api/v1/admin/exams/:exam_id/questions/export
// Downloads the question set as an xlsx workbook.
func (h *ExamHandler) ExportQuestions(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	data, err := h.importService.Export(c.Request.Context(), examID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	filename := fmt.Sprintf("questions_%s_%s.xlsx", examID.String()[:8], time.Now().Format("2006-01-02"))
	response.Attachment(c, filename, xlsxContentType, data)
}

// ImportTemplate godoc
// GET /api/v1/admin/questions/template
// Downloads an empty workbook with the import column headers.
func (h *ExamHandler) ImportTemplate(c *gin.Context) {
	data, err := service.BuildImportTemplate()
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Attachment(c, "question_template.xlsx", xlsxContentType, data)
}
