package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"swarm-trader/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Consensus decisions, one row per tick with votes
	CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		timestamp DATETIME NOT NULL,
		symbol TEXT NOT NULL,
		decision TEXT NOT NULL,
		confidence REAL NOT NULL,
		tally TEXT NOT NULL,
		responded INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_symbol_time ON decisions(symbol, timestamp);

	-- Closed trades
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		position_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		size REAL NOT NULL,
		leverage INTEGER NOT NULL,
		pnl REAL NOT NULL,
		pnl_percent REAL NOT NULL,
		reason TEXT NOT NULL,
		opened_at DATETIME NOT NULL,
		closed_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON trades(closed_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveDecision records one tick's consensus result.
func (s *SQLiteStore) SaveDecision(ctx context.Context, decision *models.ConsensusResult) error {
	tally, err := json.Marshal(decision.Tally)
	if err != nil {
		return fmt.Errorf("marshaling tally: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, timestamp, symbol, decision, confidence, tally, responded)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		decision.ID, decision.Timestamp, decision.Symbol,
		string(decision.Decision), decision.Confidence, string(tally), decision.Responded,
	)
	if err != nil {
		return fmt.Errorf("saving decision: %w", err)
	}
	return nil
}

// SaveTrade records a confirmed closed trade.
func (s *SQLiteStore) SaveTrade(ctx context.Context, trade *models.Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, position_id, symbol, side, entry_price, exit_price,
			size, leverage, pnl, pnl_percent, reason, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.ID, trade.PositionID, trade.Symbol, string(trade.Side),
		trade.EntryPrice, trade.ExitPrice, trade.Size, trade.Leverage,
		trade.PnL, trade.PnLPercent, string(trade.Reason),
		trade.OpenedAt, trade.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("saving trade: %w", err)
	}
	return nil
}

// GetTrades returns trades closed within [from, to], newest first.
func (s *SQLiteStore) GetTrades(ctx context.Context, from, to time.Time) ([]models.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, position_id, symbol, side, entry_price, exit_price,
			size, leverage, pnl, pnl_percent, reason, opened_at, closed_at
		FROM trades
		WHERE closed_at >= ? AND closed_at <= ?
		ORDER BY closed_at DESC`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		var t models.Trade
		var side, reason string
		if err := rows.Scan(&t.ID, &t.PositionID, &t.Symbol, &side,
			&t.EntryPrice, &t.ExitPrice, &t.Size, &t.Leverage,
			&t.PnL, &t.PnLPercent, &reason, &t.OpenedAt, &t.ClosedAt); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		t.Side = models.Side(side)
		t.Reason = models.ExitReason(reason)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetDailyStats summarizes the trades of one calendar day.
func (s *SQLiteStore) GetDailyStats(ctx context.Context, day time.Time) (*models.DailyStats, error) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN pnl < 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(pnl), 0)
		FROM trades
		WHERE closed_at >= ? AND closed_at < ?`,
		start, end,
	)

	stats := &models.DailyStats{Date: start.Format("2006-01-02")}
	if err := row.Scan(&stats.TotalTrades, &stats.WinningTrades,
		&stats.LosingTrades, &stats.TotalPnL); err != nil {
		return nil, fmt.Errorf("scanning daily stats: %w", err)
	}
	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100
	}
	return stats, nil
}

// Close releases the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ DataStore = (*SQLiteStore)(nil)
