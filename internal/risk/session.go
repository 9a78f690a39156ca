package risk

import (
	"sync"
	"time"
)

// Session owns the process-wide trading session state: the pause flag,
// the daily trade counter, and the post-loss cooldown anchor. The
// command layer only toggles the pause flag; the position supervisor
// records closes; the engine drives day rollover. TradesToday never
// decreases except on rollover.
type Session struct {
	mu          sync.Mutex
	paused      bool
	suspended   bool // fatal exchange error, cleared only by RESUME
	tradesToday int
	lastLossAt  time.Time
	dayBoundary time.Time // start of the current trading day
}

// NewSession creates a session anchored to the current day.
func NewSession(now time.Time) *Session {
	return &Session{
		dayBoundary: startOfDay(now),
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Snapshot returns a point-in-time copy for gate evaluation.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Paused:      s.paused,
		Suspended:   s.suspended,
		TradesToday: s.tradesToday,
		LastLossAt:  s.lastLossAt,
	}
}

// Pause pauses trading. Idempotent.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume resumes trading and clears any fatal-error suspension.
// Idempotent.
func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.suspended = false
}

// Suspend marks trading implicitly paused after a fatal exchange error.
// Only an operator RESUME clears it.
func (s *Session) Suspend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suspended = true
}

// Paused reports whether trading is paused or suspended.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused || s.suspended
}

// TradesToday returns the current daily trade count.
func (s *Session) TradesToday() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tradesToday
}

// RecordClose records a confirmed position close: increments the daily
// trade counter and anchors the loss cooldown on a losing close.
func (s *Session) RecordClose(pnl float64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tradesToday++
	if pnl < 0 {
		s.lastLossAt = now
	}
}

// Rollover resets the daily trade counter when the calendar day has
// changed. Returns true if a rollover happened.
func (s *Session) Rollover(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := startOfDay(now)
	if !day.After(s.dayBoundary) {
		return false
	}
	s.dayBoundary = day
	s.tradesToday = 0
	return true
}
