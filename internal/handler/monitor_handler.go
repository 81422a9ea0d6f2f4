package handler

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/service"
)

const (
	refreshInterval   = 5 * time.Second
	keepAliveInterval = 30 * time.Second
)

// MonitorHandler streams the live attempts of an exam to proctoring admins.
type MonitorHandler struct {
	examService    *service.ExamService
	sessionService *service.SessionService
	log            zerolog.Logger
}

func NewMonitorHandler(examService *service.ExamService, sessionService *service.SessionService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		examService:    examService,
		sessionService: sessionService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

type liveStudent struct {
	StudentID          uuid.UUID `json:"student_id"`
	SessionID          uuid.UUID `json:"session_id"`
	CurrentSubject     string    `json:"current_subject"`
	Answered           int       `json:"answered_count"`
	Flagged            int       `json:"flagged_count"`
	TimeRemaining      int       `json:"time_remaining"`
	TabSwitchCount     int       `json:"tab_switch_count"`
	SuspiciousActivity int       `json:"suspicious_activity_count"`
	Submitted          bool      `json:"submitted"`
	SubmitState        string    `json:"submit_state"`
}

func liveSnapshot(views map[uuid.UUID]model.SessionView) []liveStudent {
	out := make([]liveStudent, 0, len(views))
	for studentID, v := range views {
		out = append(out, liveStudent{
			StudentID:          studentID,
			SessionID:          v.SessionID,
			CurrentSubject:     string(v.CurrentSubject),
			Answered:           v.Answers.Count(),
			Flagged:            len(v.Flags),
			TimeRemaining:      v.TimeRemaining,
			TabSwitchCount:     v.TabSwitchCount,
			SuspiciousActivity: v.SuspiciousActivity,
			Submitted:          v.Submitted,
			SubmitState:        v.SubmitState,
		})
	}
	// Most suspicious first.
	sort.Slice(out, func(i, j int) bool {
		if out[i].SuspiciousActivity != out[j].SuspiciousActivity {
			return out[i].SuspiciousActivity > out[j].SuspiciousActivity
		}
		return out[i].StudentID.String() < out[j].StudentID.String()
	})
	return out
}

// MonitorExamSSE godoc
// GET /api/v1/admin/exams/:exam_id/monitor
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	examID, ok := paramID(c, "exam_id")
	if !ok {
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	send := func(kind string) {
		c.SSEvent("message", gin.H{
			"type": kind,
			"exam": gin.H{
				"id":       exam.ID,
				"title":    exam.Title,
				"duration": exam.DurationMinutes,
			},
			"students": liveSnapshot(h.sessionService.Live(examID)),
		})
		c.Writer.Flush()
	}

	send("snapshot")
	h.log.Info().Str("exam_id", examID.String()).Msg("Admin attached to live monitor SSE")

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()
	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Admin disconnected from live monitor SSE")
			return
		case <-refreshTicker.C:
			send("refresh")
		case <-keepAliveTicker.C:
			c.SSEvent("message", gin.H{"type": "ping"})
			c.Writer.Flush()
		}
	}
}
