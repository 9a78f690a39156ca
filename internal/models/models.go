// Package models provides domain models for the trading engine.
package models

import (
	"time"
)

// Vote represents a trading recommendation from a single voter.
type Vote string

const (
	VoteBuy  Vote = "BUY"
	VoteSell Vote = "SELL"
	VoteHold Vote = "HOLD"
)

// Side represents the direction of a position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// PositionStatus represents the lifecycle state of a position.
type PositionStatus string

const (
	PositionOpen    PositionStatus = "OPEN"
	PositionClosing PositionStatus = "CLOSING"
	PositionClosed  PositionStatus = "CLOSED"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "STOP_LOSS"
	ExitTakeProfit ExitReason = "TAKE_PROFIT"
	ExitManual     ExitReason = "MANUAL"
	ExitForced     ExitReason = "FORCED"
)

// VoteRecord is a single voter's recommendation for one tick.
// Immutable once produced; discarded after the tick's consensus is computed.
type VoteRecord struct {
	VoterID    string
	Vote       Vote
	Confidence float64 // 0-100
	Timestamp  time.Time
}

// ConsensusResult is the aggregate decision derived from one tick's votes.
type ConsensusResult struct {
	ID         string
	Symbol     string
	Decision   Vote
	Confidence float64 // mean confidence of winning voters, 0 without quorum
	Tally      map[Vote]int
	Responded  int
	Timestamp  time.Time
}

// Position is an open, risk-bearing exposure for one symbol.
// StopLossPrice and TakeProfitPrice are fixed at open time and never
// recomputed.
type Position struct {
	ID              string
	Symbol          string
	Side            Side
	EntryPrice      float64
	Size            float64 // notional in quote currency
	Leverage        int
	OpenedAt        time.Time
	StopLossPrice   float64
	TakeProfitPrice float64
	Status          PositionStatus
}

// UnrealizedPnLPercent returns the leveraged P&L percentage of the
// position at the given mark price.
func (p *Position) UnrealizedPnLPercent(markPrice float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	move := (markPrice - p.EntryPrice) / p.EntryPrice * 100
	if p.Side == SideShort {
		move = -move
	}
	return move * float64(p.Leverage)
}

// Trade represents a completed (closed) position.
type Trade struct {
	ID         string
	PositionID string
	Symbol     string
	Side       Side
	EntryPrice float64
	ExitPrice  float64
	Size       float64
	Leverage   int
	PnL        float64
	PnLPercent float64
	Reason     ExitReason
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// DailyStats summarizes a day of trading for the status report.
type DailyStats struct {
	Date          string
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	TotalPnL      float64
	WinRate       float64
}
