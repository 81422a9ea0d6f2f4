package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/middleware"
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/service"
	"github.com/stemsi/mocktest-backend/internal/session"
	ws "github.com/stemsi/mocktest-backend/internal/websocket"
)

const wsReadLimit = 4096

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a live exam session over WebSocket: the client sends
// input actions and receives state updates, countdown ticks and the result.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// ExamWebSocketStream godoc
// WS /ws/v1/student/exams/:exam_id/stream?token=...
// The exam must have been started over HTTP first.
func (h *WSHandler) ExamWebSocketStream(c *gin.Context) {
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

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.Wrap(raw, wsReadLimit)
	defer conn.Close()

	wsLog := h.log.With().
		Str("student_id", studentID.String()).
		Str("exam_id", examID.String()).
		Str("session_id", ctrl.Session().ID().String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	events, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	defer close(done)
	go h.forward(conn, events, done, wsLog)

	_ = conn.WriteTyped(ws.StateResponse{Event: ws.EventState, State: ctrl.View()})

	// The request context ends with the hijacked connection; submissions
	// must not be cut short by a client that disconnects mid-request.
	ctx := context.WithoutCancel(c.Request.Context())

	for {
		var req ws.Request
		if err := conn.ReadRequest(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}
		h.handle(ctx, conn, examID, studentID, &req, wsLog)
	}
}

// forward pushes controller events and keepalive pings to the client until
// the subscription closes or the reader exits.
func (h *WSHandler) forward(conn *ws.Conn, events <-chan session.Event, done <-chan struct{}, log zerolog.Logger) {
	ping := time.NewTicker(ws.PingPeriod())
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteTyped(ws.SessionEventResponse{Event: ws.Event(ev.Type), Data: ev}); err != nil {
				log.Debug().Err(err).Msg("Event write failed")
				return
			}
		case <-ping.C:
			if err := conn.Ping(); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) handle(ctx context.Context, conn *ws.Conn, examID, studentID uuid.UUID, req *ws.Request, log zerolog.Logger) {
	var (
		view model.SessionView
		err  error
	)

	switch req.Action {
	case ws.ActionPing:
		_ = conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		return
	case ws.ActionState:
		view, err = h.sessionService.State(examID, studentID)
	case ws.ActionAnswer:
		if req.QuestionID == "" || req.OptionID == "" {
			_ = conn.WriteError(string(response.ErrValidation), "question_id and option_id are required")
			return
		}
		view, err = h.sessionService.SelectAnswer(examID, studentID, &model.SelectAnswerRequest{
			QuestionID: req.QuestionID, OptionID: req.OptionID,
		})
	case ws.ActionFlag:
		if req.QuestionID == "" {
			_ = conn.WriteError(string(response.ErrValidation), "question_id is required")
			return
		}
		view, err = h.sessionService.ToggleFlag(examID, studentID, &model.FlagRequest{QuestionID: req.QuestionID})
	case ws.ActionNavigate:
		if req.Index == nil {
			_ = conn.WriteError(string(response.ErrValidation), "index is required")
			return
		}
		view, err = h.sessionService.Navigate(examID, studentID, &model.NavigateRequest{Index: req.Index})
	case ws.ActionSubject:
		view, err = h.sessionService.SwitchSubject(examID, studentID, &model.SwitchSubjectRequest{Subject: req.Subject})
	case ws.ActionSecurity:
		h.handleSecurity(conn, examID, studentID, req)
		return
	case ws.ActionSubmit:
		h.handleSubmit(ctx, conn, examID, studentID, log)
		return
	default:
		log.Warn().Str("action", string(req.Action)).Msg("Unknown action")
		_ = conn.WriteError(string(response.ErrInvalidPayload), "unknown action: "+string(req.Action))
		return
	}

	if err != nil {
		_, code := statusFor(err)
		_ = conn.WriteError(string(code), err.Error())
		return
	}
	_ = conn.WriteTyped(ws.StateResponse{Event: ws.EventState, State: view})
}

func (h *WSHandler) handleSecurity(conn *ws.Conn, examID, studentID uuid.UUID, req *ws.Request) {
	out, err := h.sessionService.RecordSecurity(examID, studentID, &model.SecurityEventRequest{
		Kind: req.Kind, Key: req.Key, Ctrl: req.Ctrl, Shift: req.Shift,
	})
	if err != nil {
		_, code := statusFor(err)
		_ = conn.WriteError(string(code), err.Error())
		return
	}
	_ = conn.WriteTyped(ws.SecurityResponse{Event: ws.EventSecurity, SecurityOutcome: out})
}

// handleSubmit submits the attempt. The outcome reaches the client as a
// submitted or submit_failed event from the controller; only rejections
// before the pipeline runs are answered here.
func (h *WSHandler) handleSubmit(ctx context.Context, conn *ws.Conn, examID, studentID uuid.UUID, log zerolog.Logger) {
	_, err := h.sessionService.Submit(ctx, examID, studentID)
	if err == nil || errors.Is(err, session.ErrSubmissionFailed) {
		return
	}
	log.Debug().Err(err).Msg("Submit rejected")
	_, code := statusFor(err)
	_ = conn.WriteError(string(code), err.Error())
}
