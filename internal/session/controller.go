package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/mocktest-backend/internal/model"
)

// EventType names a server-pushed session event.
type EventType string

const (
	EventTick         EventType = "tick"
	EventWarning      EventType = "warning"
	EventExpired      EventType = "expired"
	EventSubmitted    EventType = "submitted"
	EventSubmitFailed EventType = "submit_failed"
)

// Event is pushed to every subscriber of a Controller.
type Event struct {
	Type           EventType     `json:"type"`
	Remaining      int           `json:"remaining"`
	Warning        int           `json:"warning,omitempty"`
	DismissAfterMs int           `json:"dismiss_after_ms,omitempty"`
	Result         *model.Result `json:"result,omitempty"`
	Message        string        `json:"message,omitempty"`
	At             time.Time     `json:"at"`
}

// ControllerConfig tunes the loops of a Controller.
type ControllerConfig struct {
	TickInterval     time.Duration
	AutosaveInterval time.Duration
	// SubscriberBuffer is the channel size of each subscriber. Slow subscribers lose events.
	SubscriberBuffer int
}

// Controller owns one live Session together with its countdown, autosave
// loop and submission pipeline.
type Controller struct {
	session  *Session
	pipeline *Pipeline
	mirror   *Mirror
	cfg      ControllerConfig
	log      zerolog.Logger

	mu      sync.Mutex
	subs    map[int]chan Event
	nextSub int
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	touched time.Time
}

// NewController wires a session to its pipeline and mirror.
func NewController(s *Session, p *Pipeline, m *Mirror, cfg ControllerConfig, log zerolog.Logger) *Controller {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.AutosaveInterval <= 0 {
		cfg.AutosaveInterval = DefaultAutosaveInterval
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = 16
	}
	return &Controller{
		session:  s,
		pipeline: p,
		mirror:   m,
		cfg:      cfg,
		log: log.With().
			Str("component", "session_controller").
			Str("session_id", s.ID().String()).
			Logger(),
		subs:    make(map[int]chan Event),
		touched: time.Now(),
	}
}

// Session returns the controlled session.
func (c *Controller) Session() *Session { return c.session }

// Start launches the countdown and autosave loops. Calling Start twice is a no-op.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.running = true

	timer := NewTimer(c.session, c.cfg.TickInterval, c.onTick)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		timer.Run(ctx)
	}()

	if c.mirror != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.mirror.Run(ctx, c.session, c.cfg.AutosaveInterval)
		}()
	}
}

// Stop cancels both loops and waits for them to return. Subscribers are closed.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.running = false
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()

	c.mu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.mu.Unlock()
}

// Subscribe registers a listener for session events. The returned function unsubscribes.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Event, c.cfg.SubscriberBuffer)
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			close(sub)
			delete(c.subs, id)
		}
	}
}

func (c *Controller) publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			c.log.Debug().Str("event", string(ev.Type)).Msg("Dropping event for slow subscriber")
		}
	}
}

func (c *Controller) onTick(ctx context.Context, res TickResult) {
	c.publish(Event{Type: EventTick, Remaining: res.Remaining})

	if res.Warning > 0 {
		c.publish(Event{
			Type:           EventWarning,
			Remaining:      res.Remaining,
			Warning:        res.Warning,
			DismissAfterMs: int(WarningDismissAfter / time.Millisecond),
		})
	}

	if res.Expired {
		c.publish(Event{Type: EventExpired})
		c.log.Info().Msg("Time expired, submitting")
		_, _ = c.Submit(ctx, model.TriggerTimer)
	}
}

// Submit runs the submission pipeline and publishes its outcome.
func (c *Controller) Submit(ctx context.Context, trigger model.SubmitTrigger) (model.Result, error) {
	c.Touch()
	result, err := c.pipeline.Submit(ctx, c.session, trigger)
	switch {
	case err == nil:
		c.publish(Event{Type: EventSubmitted, Result: &result})
	case errors.Is(err, ErrSubmissionFailed):
		_, msg := c.pipeline.State()
		c.publish(Event{Type: EventSubmitFailed, Message: msg, Remaining: c.session.Remaining()})
	}
	return result, err
}

// View returns the session projection including the submission state.
func (c *Controller) View() model.SessionView {
	v := c.session.View()
	state, msg := c.pipeline.State()
	v.SubmitState = string(state)
	v.SubmitError = msg
	return v
}

// Result returns the result once the session was submitted.
func (c *Controller) Result() (model.Result, bool) {
	return c.pipeline.Result()
}

// Touch records client activity for idle eviction.
func (c *Controller) Touch() {
	c.mu.Lock()
	c.touched = time.Now()
	c.mu.Unlock()
}

// Finished reports whether the controller can be evicted: the session was
// submitted, or nobody touched it for idle.
func (c *Controller) Finished(now time.Time, idle time.Duration) bool {
	if c.session.Submitted() {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return idle > 0 && now.Sub(c.touched) > idle
}
