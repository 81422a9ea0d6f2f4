package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/stemsi/mocktest-backend/internal/model"
)

// KeyCombo is a keyboard event reported by the client.
type KeyCombo struct {
	Key   string
	Ctrl  bool
	Shift bool
}

// Blocked reports whether the combination is one the exam page suppresses:
// F12, Ctrl+Shift+I, Ctrl+U, Ctrl+C, Ctrl+V and Ctrl+A.
func (k KeyCombo) Blocked() bool {
	if k.Key == "F12" {
		return true
	}
	if !k.Ctrl {
		return false
	}
	if k.Shift && k.Key == "I" {
		return true
	}
	switch k.Key {
	case "u", "c", "v", "a":
		return true
	}
	return false
}

// SecurityOutcome tells the client how to treat the reported event.
type SecurityOutcome struct {
	Logged         bool `json:"logged"`
	Suppress       bool `json:"suppress"`
	TabSwitchCount int  `json:"tab_switch_count"`
}

// RecordSecurity appends an integrity event. Nothing is enforced; the log and
// the tab switch counter travel with the submission for later review.
func (s *Session) RecordSecurity(kind model.SecurityKind, combo KeyCombo, at time.Time) SecurityOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := at.UTC().Format("2006-01-02T15:04:05.000Z")
	var desc string
	suppress := false

	switch kind {
	case model.SecurityTabHidden:
		s.tabSwitches++
		desc = "Tab switched at " + stamp
	case model.SecurityWindowBlur:
		desc = "Window lost focus at " + stamp
	case model.SecurityContextMenu:
		desc = "Right-click attempted at " + stamp
		suppress = true
	case model.SecurityKeyCombo:
		if !combo.Blocked() {
			return SecurityOutcome{TabSwitchCount: s.tabSwitches}
		}
		desc = fmt.Sprintf("Blocked shortcut: %s at %s", strings.TrimSpace(combo.Key), stamp)
		suppress = true
	default:
		return SecurityOutcome{TabSwitchCount: s.tabSwitches}
	}

	s.activity = append(s.activity, model.SecurityEvent{Kind: kind, Description: desc, At: at})
	return SecurityOutcome{Logged: true, Suppress: suppress, TabSwitchCount: s.tabSwitches}
}

// TabSwitchCount returns the number of times the exam tab was hidden.
func (s *Session) TabSwitchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabSwitches
}

// SecurityLog returns a copy of the suspicious activity log.
func (s *Session) SecurityLog() []model.SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SecurityEvent(nil), s.activity...)
}
