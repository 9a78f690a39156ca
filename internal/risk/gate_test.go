package risk

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"swarm-trader/internal/config"
	"swarm-trader/internal/models"
)

func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxPositionPct:  50,
		Leverage:        5,
		StopLossPct:     10,
		TakeProfitPct:   15,
		MinConfidence:   60,
		MaxDailyTrades:  10,
		CooldownMinutes: 30,
	}
}

func buyConsensus(confidence float64) models.ConsensusResult {
	return models.ConsensusResult{
		Symbol:     "BTC",
		Decision:   models.VoteBuy,
		Confidence: confidence,
	}
}

func TestEvaluateAdmitsAndSizes(t *testing.T) {
	now := time.Now()
	action := Evaluate(buyConsensus(75), Snapshot{}, testRiskConfig(), false, false, 10000, now)

	if action.Type != ActionOpen {
		t.Fatalf("expected OPEN, got %v (%s)", action.Type, action.Reason)
	}
	if action.Side != models.SideLong {
		t.Errorf("expected LONG for BUY, got %s", action.Side)
	}
	if action.Size != 5000 {
		t.Errorf("expected size 5000 (50%% of 10000), got %f", action.Size)
	}
	if action.Leverage != 5 {
		t.Errorf("expected leverage 5, got %d", action.Leverage)
	}
}

func TestEvaluateShortCircuits(t *testing.T) {
	now := time.Now()
	cfg := testRiskConfig()

	tests := []struct {
		name       string
		consensus  models.ConsensusResult
		session    Snapshot
		hasOpen    bool
		longOnly   bool
		wantReason string
	}{
		{"paused", buyConsensus(90), Snapshot{Paused: true}, false, false, "trading is paused"},
		{"suspended", buyConsensus(90), Snapshot{Suspended: true}, false, false, "trading is paused"},
		{"hold decision", models.ConsensusResult{Decision: models.VoteHold}, Snapshot{}, false, false, "consensus is HOLD"},
		{"position open", buyConsensus(90), Snapshot{}, true, false, "position already open"},
		{"low confidence", buyConsensus(59.9), Snapshot{}, false, false, "confidence below threshold"},
		{"daily cap", buyConsensus(90), Snapshot{TradesToday: 10}, false, false, "daily trade limit reached"},
		{"cooldown active", buyConsensus(90), Snapshot{LastLossAt: now.Add(-10 * time.Minute)}, false, false, "loss cooldown active"},
		{"cooldown boundary", buyConsensus(90), Snapshot{LastLossAt: now.Add(-30 * time.Minute).Add(time.Second)}, false, false, "loss cooldown active"},
		{"long only blocks sell", models.ConsensusResult{Decision: models.VoteSell, Confidence: 90}, Snapshot{}, false, true, "short positions disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action := Evaluate(tt.consensus, tt.session, cfg, tt.longOnly, tt.hasOpen, 10000, now)
			if action.Type != ActionNone {
				t.Fatalf("expected NONE, got OPEN")
			}
			if action.Reason != tt.wantReason {
				t.Errorf("reason: want %q, got %q", tt.wantReason, action.Reason)
			}
		})
	}
}

func TestEvaluateCooldownExpires(t *testing.T) {
	now := time.Now()
	session := Snapshot{LastLossAt: now.Add(-31 * time.Minute)}

	action := Evaluate(buyConsensus(80), session, testRiskConfig(), false, false, 10000, now)

	if action.Type != ActionOpen {
		t.Fatalf("expected OPEN after cooldown expiry, got NONE (%s)", action.Reason)
	}
}

func TestEvaluateSellOpensShort(t *testing.T) {
	consensus := models.ConsensusResult{Decision: models.VoteSell, Confidence: 80}

	action := Evaluate(consensus, Snapshot{}, testRiskConfig(), false, false, 10000, time.Now())

	if action.Type != ActionOpen {
		t.Fatalf("expected OPEN, got NONE (%s)", action.Reason)
	}
	if action.Side != models.SideShort {
		t.Errorf("expected SHORT for SELL, got %s", action.Side)
	}
}

func TestStopAndTargetPrices(t *testing.T) {
	cfg := testRiskConfig()

	if got := StopLossPrice(100, models.SideLong, cfg); got != 90 {
		t.Errorf("long stop: want 90, got %f", got)
	}
	if got := TakeProfitPrice(100, models.SideLong, cfg); got != 115 {
		t.Errorf("long target: want 115, got %f", got)
	}
	if got := StopLossPrice(100, models.SideShort, cfg); got != 110 {
		t.Errorf("short stop: want 110, got %f", got)
	}
	if got := TakeProfitPrice(100, models.SideShort, cfg); got != 85 {
		t.Errorf("short target: want 85, got %f", got)
	}
}

// No admitted action may ever escape a paused or suspended session,
// whatever the consensus looks like.
func TestPropertyPausedSessionNeverOpens(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("paused session yields no action", prop.ForAll(
		func(decision models.Vote, confidence float64, trades int, paused, suspended bool) bool {
			if !paused && !suspended {
				return true
			}
			session := Snapshot{Paused: paused, Suspended: suspended, TradesToday: trades}
			consensus := models.ConsensusResult{Decision: decision, Confidence: confidence}
			action := Evaluate(consensus, session, testRiskConfig(), false, false, 10000, time.Now())
			return action.Type == ActionNone
		},
		gen.OneConstOf(models.VoteBuy, models.VoteSell, models.VoteHold),
		gen.Float64Range(0, 100),
		gen.IntRange(0, 20),
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("admitted size never exceeds the configured fraction", prop.ForAll(
		func(balance, confidence float64) bool {
			cfg := testRiskConfig()
			action := Evaluate(buyConsensus(confidence), Snapshot{}, cfg, false, false, balance, time.Now())
			if action.Type != ActionOpen {
				return true
			}
			return action.Size <= balance*cfg.MaxPositionPct/100+1e-9
		},
		gen.Float64Range(0, 1e9),
		gen.Float64Range(0, 100),
	))

	properties.TestingRun(t)
}
