package risk

import (
	"testing"
	"time"
)

func TestSessionPauseResumeIdempotent(t *testing.T) {
	s := NewSession(time.Now())

	if s.Paused() {
		t.Fatal("new session must not start paused")
	}

	s.Pause()
	s.Pause()
	if !s.Paused() {
		t.Fatal("expected paused after Pause")
	}

	s.Resume()
	s.Resume()
	if s.Paused() {
		t.Fatal("expected running after Resume")
	}
}

func TestSessionSuspendClearedOnlyByResume(t *testing.T) {
	s := NewSession(time.Now())

	s.Suspend()
	if !s.Paused() {
		t.Fatal("suspended session must report paused")
	}
	if !s.Snapshot().Suspended {
		t.Fatal("snapshot must carry the suspension")
	}

	// Pausing and un-pausing something else does not clear a suspension;
	// only Resume does.
	s.Resume()
	if s.Paused() {
		t.Fatal("Resume must clear the suspension")
	}
}

func TestSessionRecordCloseCountsAndAnchorsCooldown(t *testing.T) {
	now := time.Now()
	s := NewSession(now)

	s.RecordClose(120, now)
	if s.TradesToday() != 1 {
		t.Fatalf("expected 1 trade, got %d", s.TradesToday())
	}
	if !s.Snapshot().LastLossAt.IsZero() {
		t.Fatal("winning close must not anchor cooldown")
	}

	lossAt := now.Add(time.Minute)
	s.RecordClose(-40, lossAt)
	if s.TradesToday() != 2 {
		t.Fatalf("expected 2 trades, got %d", s.TradesToday())
	}
	if !s.Snapshot().LastLossAt.Equal(lossAt) {
		t.Fatalf("losing close must anchor cooldown at close time")
	}
}

func TestSessionRollover(t *testing.T) {
	now := time.Date(2026, 3, 10, 23, 50, 0, 0, time.UTC)
	s := NewSession(now)

	s.RecordClose(-10, now)
	s.RecordClose(5, now)

	if s.Rollover(now.Add(time.Minute)) {
		t.Fatal("same day must not roll over")
	}
	if s.TradesToday() != 2 {
		t.Fatalf("counter must survive same-day ticks, got %d", s.TradesToday())
	}

	if !s.Rollover(now.Add(time.Hour)) {
		t.Fatal("expected rollover across midnight")
	}
	if s.TradesToday() != 0 {
		t.Fatalf("counter must reset on rollover, got %d", s.TradesToday())
	}

	if s.Rollover(now.Add(time.Hour)) {
		t.Fatal("second rollover on the same day must be a no-op")
	}
}
