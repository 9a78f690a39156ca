// Package exchange provides exchange connectivity for balances, prices
// and position orders.
package exchange

import (
	"context"
	"time"

	"swarm-trader/internal/models"
)

// Fill is a positively confirmed execution. A position is never treated
// as opened or closed without one.
type Fill struct {
	Symbol    string
	Price     float64
	Size      float64
	Timestamp time.Time
}

// Exchange defines the operations the engine needs from a venue. Every
// call is context-bound; a timeout is a retryable failure, never a
// confirmed state change.
type Exchange interface {
	// GetBalance returns the account equity in quote currency.
	GetBalance(ctx context.Context) (float64, error)
	// GetPrice returns the current mark price for a symbol.
	GetPrice(ctx context.Context, symbol string) (float64, error)
	// OpenPosition opens a leveraged market position and returns the fill.
	OpenPosition(ctx context.Context, symbol string, side models.Side, size float64, leverage int) (*Fill, error)
	// ClosePosition closes the open position for a symbol and returns the fill.
	ClosePosition(ctx context.Context, symbol string) (*Fill, error)
}
