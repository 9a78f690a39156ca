// Package store provides data persistence for decisions and trades.
package store

import (
	"context"
	"time"

	"swarm-trader/internal/models"
)

// DataStore defines the audit persistence interface.
type DataStore interface {
	// SaveDecision records one tick's consensus result.
	SaveDecision(ctx context.Context, decision *models.ConsensusResult) error
	// SaveTrade records a confirmed closed trade.
	SaveTrade(ctx context.Context, trade *models.Trade) error
	// GetTrades returns trades closed within [from, to], newest first.
	GetTrades(ctx context.Context, from, to time.Time) ([]models.Trade, error)
	// GetDailyStats summarizes the trades of one calendar day.
	GetDailyStats(ctx context.Context, day time.Time) (*models.DailyStats, error)
	// Close releases the underlying database.
	Close() error
}
