package session

import (
	"context"
	"time"
)

// WarningThresholds are the remaining-seconds marks that raise a warning.
var WarningThresholds = []int{300, 60}

// WarningDismissAfter is how long a warning notification stays visible.
const WarningDismissAfter = 5 * time.Second

// TickResult reports what a single countdown step observed.
type TickResult struct {
	Remaining int
	// Warning is the threshold crossed on this tick, or 0.
	Warning int
	// Expired is true on exactly one tick: the first that sees zero remaining.
	Expired bool
}

// Tick advances the countdown by one second. Remaining never drops below zero.
func (s *Session) Tick() TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submitted || s.expired {
		return TickResult{Remaining: s.remaining}
	}

	prev := s.remaining
	if s.remaining > 0 {
		s.remaining--
	}

	res := TickResult{Remaining: s.remaining}
	for _, th := range WarningThresholds {
		if !s.warned[th] && prev > th && s.remaining <= th {
			s.warned[th] = true
			res.Warning = th
		}
	}
	if s.remaining == 0 {
		s.expired = true
		res.Expired = true
	}
	return res
}

// Expired reports whether the countdown has reached zero.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expired
}

// Timer drives Session.Tick on a fixed cadence.
type Timer struct {
	session  *Session
	interval time.Duration
	onTick   func(context.Context, TickResult)
}

// NewTimer creates a Timer calling onTick after every tick.
func NewTimer(s *Session, interval time.Duration, onTick func(context.Context, TickResult)) *Timer {
	if interval <= 0 {
		interval = time.Second
	}
	return &Timer{session: s, interval: interval, onTick: onTick}
}

// Run ticks until ctx is cancelled or the session is submitted.
func (t *Timer) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.session.Submitted() {
				return
			}
			res := t.session.Tick()
			if t.onTick != nil {
				t.onTick(ctx, res)
			}
		}
	}
}
