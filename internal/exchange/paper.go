package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"swarm-trader/internal/errors"
	"swarm-trader/internal/models"
)

// PriceFunc supplies the current mark price for a symbol.
type PriceFunc func(ctx context.Context, symbol string) (float64, error)

// paperPosition is the simulated open exposure for one symbol.
type paperPosition struct {
	side       models.Side
	entryPrice decimal.Decimal
	size       decimal.Decimal // notional at entry
	leverage   int
}

// Paper simulates an exchange for paper mode and tests. The ledger is
// kept in decimals so repeated fills do not accumulate float error.
type Paper struct {
	mu        sync.Mutex
	balance   decimal.Decimal
	positions map[string]*paperPosition
	priceFn   PriceFunc
}

// NewPaper creates a paper exchange with a starting balance. priceFn
// provides mark prices, typically backed by the live REST ticker or a
// fixture in tests.
func NewPaper(initialBalance float64, priceFn PriceFunc) *Paper {
	return &Paper{
		balance:   decimal.NewFromFloat(initialBalance),
		positions: make(map[string]*paperPosition),
		priceFn:   priceFn,
	}
}

// GetBalance returns the simulated account equity.
func (p *Paper) GetBalance(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, _ := p.balance.Float64()
	return f, nil
}

// GetPrice delegates to the configured price source.
func (p *Paper) GetPrice(ctx context.Context, symbol string) (float64, error) {
	return p.priceFn(ctx, symbol)
}

// OpenPosition records a simulated fill at the current mark price.
func (p *Paper) OpenPosition(ctx context.Context, symbol string, side models.Side, size float64, leverage int) (*Fill, error) {
	price, err := p.priceFn(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if price <= 0 {
		return nil, errors.NewExchangeError("open", symbol, 0, "invalid mark price", nil)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.positions[symbol]; exists {
		return nil, errors.ErrPositionOpen
	}

	notional := decimal.NewFromFloat(size)
	if notional.GreaterThan(p.balance.Mul(decimal.NewFromInt(int64(leverage)))) {
		return nil, errors.NewExchangeError("open", symbol, 0, "insufficient balance", nil)
	}

	p.positions[symbol] = &paperPosition{
		side:       side,
		entryPrice: decimal.NewFromFloat(price),
		size:       notional,
		leverage:   leverage,
	}

	return &Fill{
		Symbol:    symbol,
		Price:     price,
		Size:      size,
		Timestamp: time.Now(),
	}, nil
}

// ClosePosition closes the simulated position at the current mark price
// and settles leveraged P&L into the ledger.
func (p *Paper) ClosePosition(ctx context.Context, symbol string) (*Fill, error) {
	price, err := p.priceFn(ctx, symbol)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pos, exists := p.positions[symbol]
	if !exists {
		return nil, errors.ErrNoPosition
	}

	exit := decimal.NewFromFloat(price)
	move := exit.Sub(pos.entryPrice).Div(pos.entryPrice)
	if pos.side == models.SideShort {
		move = move.Neg()
	}
	pnl := pos.size.Mul(move).Mul(decimal.NewFromInt(int64(pos.leverage)))

	p.balance = p.balance.Add(pnl)
	delete(p.positions, symbol)

	size, _ := pos.size.Float64()
	return &Fill{
		Symbol:    symbol,
		Price:     price,
		Size:      size,
		Timestamp: time.Now(),
	}, nil
}

var _ Exchange = (*Paper)(nil)
