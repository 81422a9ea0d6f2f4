package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/store"
)

const metricsInterval = 7 * time.Second

// LiveCounter reports the number of live exam sessions.
type LiveCounter interface {
	LiveCount() int
}

// SystemHandler exposes health and runtime metrics.
type SystemHandler struct {
	sessions  LiveCounter
	queue     store.Queue
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(sessions LiveCounter, queue store.Queue, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		sessions:  sessions,
		queue:     queue,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type systemMetrics struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`
	GoVersion string `json:"go_version"`
	NumCPU    int    `json:"num_cpu"`

	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	StackInuse uint64 `json:"stack_inuse"`
	NumGC      uint32 `json:"num_gc"`

	LiveSessions      int   `json:"live_sessions"`
	SubmissionBacklog int64 `json:"submission_backlog"`
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"status":        "ok",
		"uptime":        formatDuration(time.Since(h.startTime)),
		"live_sessions": h.sessions.LiveCount(),
	})
}

// SystemMetricsSSE godoc
// GET /api/v1/admin/system/metrics
// Streams runtime metrics every few seconds.
func (h *SystemHandler) SystemMetricsSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	h.log.Info().Msg("Admin connected to system metrics SSE")

	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()

	h.writeMetrics(c)
	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Admin disconnected from system metrics SSE")
			return
		case <-ticker.C:
			h.writeMetrics(c)
		}
	}
}

func (h *SystemHandler) writeMetrics(c *gin.Context) {
	c.SSEvent("metrics", h.collect(c.Request.Context()))
	c.Writer.Flush()
}

func (h *SystemHandler) collect(ctx context.Context) systemMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m := systemMetrics{
		Timestamp:    time.Now().Unix(),
		Uptime:       formatDuration(time.Since(h.startTime)),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		Goroutines:   runtime.NumGoroutine(),
		HeapAlloc:    ms.HeapAlloc,
		HeapSys:      ms.HeapSys,
		StackInuse:   ms.StackInuse,
		NumGC:        ms.NumGC,
		LiveSessions: h.sessions.LiveCount(),
	}

	if b, ok := h.queue.(store.Backlogger); ok {
		qctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if n, err := b.Backlog(qctx, config.WorkerKey.PersistSubmissionsQueue); err == nil {
			m.SubmissionBacklog = n
		}
	}
	return m
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
