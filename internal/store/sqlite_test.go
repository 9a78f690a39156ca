package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"swarm-trader/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndQueryDecision(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	decision := &models.ConsensusResult{
		ID:         "d1",
		Symbol:     "BTC",
		Decision:   models.VoteBuy,
		Confidence: 79,
		Tally:      map[models.Vote]int{models.VoteBuy: 5, models.VoteSell: 1, models.VoteHold: 0},
		Responded:  6,
		Timestamp:  time.Now(),
	}
	if err := s.SaveDecision(ctx, decision); err != nil {
		t.Fatalf("save decision failed: %v", err)
	}
}

func TestSaveAndQueryTrades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	trades := []models.Trade{
		{
			ID: "t1", PositionID: "p1", Symbol: "BTC", Side: models.SideLong,
			EntryPrice: 100, ExitPrice: 115, Size: 5000, Leverage: 5,
			PnL: 3750, PnLPercent: 75, Reason: models.ExitTakeProfit,
			OpenedAt: now.Add(-time.Hour), ClosedAt: now.Add(-30 * time.Minute),
		},
		{
			ID: "t2", PositionID: "p2", Symbol: "ETH", Side: models.SideShort,
			EntryPrice: 200, ExitPrice: 220, Size: 1000, Leverage: 2,
			PnL: -200, PnLPercent: -20, Reason: models.ExitStopLoss,
			OpenedAt: now.Add(-20 * time.Minute), ClosedAt: now.Add(-10 * time.Minute),
		},
	}
	for i := range trades {
		if err := s.SaveTrade(ctx, &trades[i]); err != nil {
			t.Fatalf("save trade failed: %v", err)
		}
	}

	got, err := s.GetTrades(ctx, now.Add(-2*time.Hour), now)
	if err != nil {
		t.Fatalf("get trades failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(got))
	}
	// Newest first.
	if got[0].ID != "t2" {
		t.Errorf("expected t2 first, got %s", got[0].ID)
	}
	if got[1].Reason != models.ExitTakeProfit {
		t.Errorf("reason round-trip failed, got %s", got[1].Reason)
	}

	// A window before both trades is empty.
	empty, err := s.GetTrades(ctx, now.Add(-4*time.Hour), now.Add(-3*time.Hour))
	if err != nil {
		t.Fatalf("get trades failed: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no trades in empty window, got %d", len(empty))
	}
}

func TestGetDailyStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	wins := []float64{100, 250}
	losses := []float64{-80}
	id := 0
	for _, pnl := range append(wins, losses...) {
		id++
		trade := &models.Trade{
			ID: string(rune('a' + id)), PositionID: "p", Symbol: "BTC",
			Side: models.SideLong, EntryPrice: 100, ExitPrice: 101,
			Size: 1000, Leverage: 1, PnL: pnl, Reason: models.ExitManual,
			OpenedAt: now.Add(-time.Hour), ClosedAt: now,
		}
		if err := s.SaveTrade(ctx, trade); err != nil {
			t.Fatalf("save trade failed: %v", err)
		}
	}

	stats, err := s.GetDailyStats(ctx, now)
	if err != nil {
		t.Fatalf("get daily stats failed: %v", err)
	}
	if stats.TotalTrades != 3 {
		t.Errorf("total: want 3, got %d", stats.TotalTrades)
	}
	if stats.WinningTrades != 2 || stats.LosingTrades != 1 {
		t.Errorf("win/loss: want 2/1, got %d/%d", stats.WinningTrades, stats.LosingTrades)
	}
	if math.Abs(stats.TotalPnL-270) > 1e-9 {
		t.Errorf("pnl: want 270, got %f", stats.TotalPnL)
	}
	if math.Abs(stats.WinRate-100*2.0/3.0) > 1e-6 {
		t.Errorf("win rate: want %.2f, got %f", 100*2.0/3.0, stats.WinRate)
	}
}

func TestGetDailyStatsEmptyDay(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.GetDailyStats(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("get daily stats failed: %v", err)
	}
	if stats.TotalTrades != 0 || stats.TotalPnL != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}
