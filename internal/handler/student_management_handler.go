package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/service"
)

// StudentManagementHandler handles admin-facing student management.
type StudentManagementHandler struct {
	studentService *service.StudentService
	log            zerolog.Logger
}

// NewStudentManagementHandler creates a new StudentManagementHandler.
func NewStudentManagementHandler(studentService *service.StudentService, log zerolog.Logger) *StudentManagementHandler {
	return &StudentManagementHandler{
		studentService: studentService,
		log:            log.With().Str("component", "student_management_handler").Logger(),
	}
}

// ListStudents godoc
// GET /api/v1/admin/students
// Lists students with pagination, including their submission count and latest score.
func (h *StudentManagementHandler) ListStudents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	students, pagination, err := h.studentService.ListStudents(c.Request.Context(), page, perPage)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"students": students}, pagination)
}

// ResetStudentSession godoc
// POST /api/v1/admin/students/:student_id/reset-session
// Clears a student's active login, allowing them to sign in on a new device.
func (h *StudentManagementHandler) ResetStudentSession(c *gin.Context) {
	studentID, ok := paramID(c, "student_id")
	if !ok {
		return
	}

	if err := h.studentService.ResetSession(c.Request.Context(), studentID); err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "student session reset successfully"})
}
