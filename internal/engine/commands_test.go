package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"swarm-trader/internal/command"
	"swarm-trader/internal/config"
	"swarm-trader/internal/models"
	"swarm-trader/internal/risk"
	"swarm-trader/internal/swarm"
)

type fixedVoter struct {
	id   string
	vote models.Vote
	conf float64
}

func (f *fixedVoter) ID() string { return f.id }

func (f *fixedVoter) Vote(ctx context.Context, symbol, marketContext string) (*models.VoteRecord, error) {
	return &models.VoteRecord{
		VoterID:    f.id,
		Vote:       f.vote,
		Confidence: f.conf,
		Timestamp:  time.Now(),
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Trading: config.TradingConfig{
			Mode:            "paper",
			Symbols:         []string{"BTC"},
			IntervalMinutes: 15,
			PnLCheckSeconds: 10,
		},
		Risk: config.RiskConfig{
			MaxPositionPct:  50,
			Leverage:        5,
			StopLossPct:     10,
			TakeProfitPct:   15,
			MinConfidence:   60,
			MaxDailyTrades:  10,
			CooldownMinutes: 30,
		},
		Swarm: config.SwarmConfig{
			Models:              []string{"m1", "m2", "m3"},
			MinVoters:           2,
			VoterTimeoutSeconds: 5,
		},
	}
}

func newTestEngine(venue *fakeVenue, voters []swarm.Voter) (*Engine, *risk.Session, *Supervisor, *captureSink) {
	cfg := testConfig()
	session := risk.NewSession(time.Now())
	st := &memStore{}
	sink := &captureSink{}
	sup := NewSupervisor(cfg.Risk, venue, session, st, sink, zerolog.Nop())
	pool := swarm.NewPool(voters, cfg.Swarm.MinVoters, 5*time.Second, zerolog.Nop())
	eng := New(cfg, session, pool, venue, sup, command.NewStaticSource(), sink, st, nil, zerolog.Nop())
	return eng, session, sup, sink
}

func buyVoters() []swarm.Voter {
	return []swarm.Voter{
		&fixedVoter{id: "a", vote: models.VoteBuy, conf: 80},
		&fixedVoter{id: "b", vote: models.VoteBuy, conf: 90},
		&fixedVoter{id: "c", vote: models.VoteSell, conf: 40},
	}
}

func lastAck(t *testing.T, sink *captureSink) models.CommandAck {
	t.Helper()
	acks := sink.byType(models.EventCommandAcknowledge)
	if len(acks) == 0 {
		t.Fatal("expected a command acknowledgement")
	}
	return *acks[len(acks)-1].CommandAck
}

func TestHandleCommandPauseResumeIdempotent(t *testing.T) {
	ctx := context.Background()
	venue := &fakeVenue{price: 100, balance: 10000}
	eng, session, _, sink := newTestEngine(venue, buyVoters())

	pause := command.Parse("/pause", time.Now())
	eng.HandleCommand(ctx, pause)
	eng.HandleCommand(ctx, pause)

	if !session.Paused() {
		t.Fatal("expected paused")
	}
	if acks := sink.byType(models.EventCommandAcknowledge); len(acks) != 2 {
		t.Fatalf("every command must be acknowledged, got %d acks", len(acks))
	}

	eng.HandleCommand(ctx, command.Parse("/resume", time.Now()))
	if session.Paused() {
		t.Fatal("expected running after resume")
	}
}

func TestHandleCommandResumeClearsSuspension(t *testing.T) {
	ctx := context.Background()
	venue := &fakeVenue{price: 100, balance: 10000}
	eng, session, _, _ := newTestEngine(venue, buyVoters())

	session.Suspend()
	eng.HandleCommand(ctx, command.Parse("/resume", time.Now()))

	if session.Paused() {
		t.Fatal("resume must clear a fatal-error suspension")
	}
}

func TestHandleCommandUnknownIsAcknowledged(t *testing.T) {
	ctx := context.Background()
	venue := &fakeVenue{price: 100, balance: 10000}
	eng, _, _, sink := newTestEngine(venue, buyVoters())

	eng.HandleCommand(ctx, command.Parse("/frobnicate", time.Now()))

	ack := lastAck(t, sink)
	if ack.Command != string(models.CommandUnknown) {
		t.Errorf("want UNKNOWN ack, got %s", ack.Command)
	}
	if !strings.Contains(ack.Message, "Unknown command") {
		t.Errorf("unexpected message: %q", ack.Message)
	}
}

func TestHandleCommandCloseAll(t *testing.T) {
	ctx := context.Background()
	venue := &fakeVenue{price: 100, balance: 10000}
	eng, _, sup, sink := newTestEngine(venue, buyVoters())

	eng.HandleCommand(ctx, command.Parse("/closeall", time.Now()))
	if ack := lastAck(t, sink); !strings.Contains(ack.Message, "No open positions") {
		t.Errorf("want no-positions ack, got %q", ack.Message)
	}

	if err := sup.Open(ctx, "BTC", openAction()); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	eng.HandleCommand(ctx, command.Parse("/closeall", time.Now()))
	if ack := lastAck(t, sink); !strings.Contains(ack.Message, "Closing 1") {
		t.Errorf("want closing-1 ack, got %q", ack.Message)
	}
}

func TestHandleCommandStatusAndSettings(t *testing.T) {
	ctx := context.Background()
	venue := &fakeVenue{price: 100, balance: 10000}
	eng, _, _, sink := newTestEngine(venue, buyVoters())

	eng.HandleCommand(ctx, command.Parse("/status", time.Now()))
	status := lastAck(t, sink).Message
	if !strings.Contains(status, "State: RUNNING") {
		t.Errorf("status missing state: %q", status)
	}
	if !strings.Contains(status, "Trades today: 0/10") {
		t.Errorf("status missing trade count: %q", status)
	}
	if !strings.Contains(status, "Open positions: none") {
		t.Errorf("status missing positions: %q", status)
	}

	eng.HandleCommand(ctx, command.Parse("/settings", time.Now()))
	settings := lastAck(t, sink).Message
	if !strings.Contains(settings, "Leverage: 5x") {
		t.Errorf("settings missing leverage: %q", settings)
	}
	if !strings.Contains(settings, "Stop loss: 10.0%") {
		t.Errorf("settings missing stop loss: %q", settings)
	}
}

func TestRunCycleOpensOnBuyConsensus(t *testing.T) {
	ctx := context.Background()
	venue := &fakeVenue{price: 100, balance: 10000}
	eng, _, sup, sink := newTestEngine(venue, buyVoters())

	eng.runCycle(ctx, "BTC")

	p, ok := sup.Position("BTC")
	if !ok {
		t.Fatal("expected a position after a BUY majority")
	}
	if p.Side != models.SideLong {
		t.Errorf("want LONG, got %s", p.Side)
	}
	if p.Size != 5000 {
		t.Errorf("want size 5000, got %f", p.Size)
	}

	if got := sink.byType(models.EventDecisionMade); len(got) != 1 {
		t.Fatalf("expected 1 decision event, got %d", len(got))
	}
}

func TestRunCycleSkipsDecisionWhilePaused(t *testing.T) {
	ctx := context.Background()
	venue := &fakeVenue{price: 100, balance: 10000}
	eng, session, sup, sink := newTestEngine(venue, buyVoters())

	session.Pause()
	eng.runCycle(ctx, "BTC")

	if sup.HasOpenPosition("BTC") {
		t.Fatal("paused cycle must not open")
	}
	if got := sink.byType(models.EventDecisionMade); len(got) != 0 {
		t.Fatalf("paused cycle must not vote, got %d decision events", len(got))
	}
}

func TestRunCycleHoldMajorityDoesNotOpen(t *testing.T) {
	ctx := context.Background()
	venue := &fakeVenue{price: 100, balance: 10000}
	voters := []swarm.Voter{
		&fixedVoter{id: "a", vote: models.VoteHold, conf: 80},
		&fixedVoter{id: "b", vote: models.VoteHold, conf: 70},
		&fixedVoter{id: "c", vote: models.VoteBuy, conf: 95},
	}
	eng, _, sup, _ := newTestEngine(venue, voters)

	eng.runCycle(ctx, "BTC")

	if sup.HasOpenPosition("BTC") {
		t.Fatal("HOLD majority must not open")
	}
}
