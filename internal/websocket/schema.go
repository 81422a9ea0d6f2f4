package websocket

import (
	"github.com/stemsi/mocktest-backend/internal/model"
	"github.com/stemsi/mocktest-backend/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionState    Action = "state"
	ActionAnswer   Action = "answer"
	ActionFlag     Action = "flag"
	ActionNavigate Action = "navigate"
	ActionSubject  Action = "subject"
	ActionSecurity Action = "security"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// Request is the single client message shape. Only the fields relevant to
// the action are read.
type Request struct {
	Action     Action `json:"action"`
	QuestionID string `json:"question_id,omitempty"`
	OptionID   string `json:"option_id,omitempty"`
	Index      *int   `json:"index,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Key        string `json:"key,omitempty"`
	Ctrl       bool   `json:"ctrl,omitempty"`
	Shift      bool   `json:"shift,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState        Event = "state"
	EventTick         Event = Event(session.EventTick)
	EventWarning      Event = Event(session.EventWarning)
	EventExpired      Event = Event(session.EventExpired)
	EventSubmitted    Event = Event(session.EventSubmitted)
	EventSubmitFailed Event = Event(session.EventSubmitFailed)
	EventSecurity     Event = "security"
	EventError        Event = "error"
	EventPong         Event = "pong"
)

// StateResponse carries the full session projection.
type StateResponse struct {
	Event Event             `json:"event"`
	State model.SessionView `json:"state"`
}

// SessionEventResponse forwards a controller event (tick, warning, expiry,
// submission outcome).
type SessionEventResponse struct {
	Event Event         `json:"event"`
	Data  session.Event `json:"data"`
}

// SecurityResponse acknowledges an integrity report. Suppress tells the
// client to cancel the browser's default action.
type SecurityResponse struct {
	Event Event `json:"event"`
	session.SecurityOutcome
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
