// Package risk provides trade admission control and session limits.
package risk

import (
	"time"

	"swarm-trader/internal/config"
	"swarm-trader/internal/models"
)

// ActionType identifies what the gate admitted.
type ActionType string

const (
	ActionNone ActionType = "NONE"
	ActionOpen ActionType = "OPEN"
)

// Action is the gate's verdict for one consensus decision. When admitted
// it carries the sized open order; Reason explains a denial.
type Action struct {
	Type     ActionType
	Side     models.Side
	Size     float64
	Leverage int
	Reason   string
}

// none builds a denial with the given reason.
func none(reason string) Action {
	return Action{Type: ActionNone, Reason: reason}
}

// Snapshot is a point-in-time copy of session state, taken under the
// session lock and evaluated without it.
type Snapshot struct {
	Paused      bool
	Suspended   bool
	TradesToday int
	LastLossAt  time.Time
}

// Evaluate decides whether a consensus decision may become a live
// position. Pure function of its inputs; the caller applies the result.
//
// Rules are checked in order — the first failing rule short-circuits:
// paused, HOLD decision, existing position, confidence threshold, daily
// trade cap, loss cooldown. The gate only opens positions; it never adds
// to one.
func Evaluate(
	consensus models.ConsensusResult,
	session Snapshot,
	cfg config.RiskConfig,
	longOnly bool,
	hasOpenPosition bool,
	balance float64,
	now time.Time,
) Action {
	if session.Paused || session.Suspended {
		return none("trading is paused")
	}
	if consensus.Decision == models.VoteHold {
		return none("consensus is HOLD")
	}
	if hasOpenPosition {
		return none("position already open")
	}
	if consensus.Confidence < cfg.MinConfidence {
		return none("confidence below threshold")
	}
	if session.TradesToday >= cfg.MaxDailyTrades {
		return none("daily trade limit reached")
	}
	if !session.LastLossAt.IsZero() {
		cooldown := time.Duration(cfg.CooldownMinutes) * time.Minute
		if now.Sub(session.LastLossAt) < cooldown {
			return none("loss cooldown active")
		}
	}

	side := models.SideLong
	if consensus.Decision == models.VoteSell {
		if longOnly {
			return none("short positions disabled")
		}
		side = models.SideShort
	}

	return Action{
		Type:     ActionOpen,
		Side:     side,
		Size:     balance * cfg.MaxPositionPct / 100,
		Leverage: cfg.Leverage,
	}
}

// StopLossPrice returns the fixed stop-loss price for an entry, a raw
// percentage move against the position.
func StopLossPrice(entryPrice float64, side models.Side, cfg config.RiskConfig) float64 {
	distance := entryPrice * cfg.StopLossPct / 100
	if side == models.SideShort {
		return entryPrice + distance
	}
	return entryPrice - distance
}

// TakeProfitPrice returns the fixed take-profit price for an entry, a
// raw percentage move in the position's favor.
func TakeProfitPrice(entryPrice float64, side models.Side, cfg config.RiskConfig) float64 {
	distance := entryPrice * cfg.TakeProfitPct / 100
	if side == models.SideShort {
		return entryPrice - distance
	}
	return entryPrice + distance
}
