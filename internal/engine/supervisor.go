// Package engine drives the consensus-then-control trading loop.
package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"swarm-trader/internal/config"
	apperrors "swarm-trader/internal/errors"
	"swarm-trader/internal/exchange"
	"swarm-trader/internal/models"
	"swarm-trader/internal/notify"
	"swarm-trader/internal/risk"
	"swarm-trader/internal/store"
)

// closeFailEscalation is how many consecutive failed close attempts
// upgrade the retry alerts from warning to critical.
const closeFailEscalation = 3

// symbolState is the supervised lifecycle state for one symbol. Its
// mutex serializes tick-driven evaluation and command-driven closes for
// the symbol; different symbols proceed fully in parallel.
type symbolState struct {
	mu         sync.Mutex
	position   *models.Position
	exitReason models.ExitReason // pending reason while CLOSING
	abortOpen  bool              // CLOSEALL arrived while an open was being admitted
	closeFails int
}

// Supervisor owns the lifecycle of at most one open position per symbol:
// NONE -> OPEN -> CLOSING -> CLOSED. Stop-loss and take-profit prices
// are fixed at open time and never recomputed.
type Supervisor struct {
	riskCfg config.RiskConfig
	venue   exchange.Exchange
	session *risk.Session
	store   store.DataStore
	sink    notify.Sink
	logger  zerolog.Logger

	mu      sync.Mutex
	symbols map[string]*symbolState
}

// NewSupervisor creates a position supervisor.
func NewSupervisor(
	riskCfg config.RiskConfig,
	venue exchange.Exchange,
	session *risk.Session,
	dataStore store.DataStore,
	sink notify.Sink,
	logger zerolog.Logger,
) *Supervisor {
	return &Supervisor{
		riskCfg: riskCfg,
		venue:   venue,
		session: session,
		store:   dataStore,
		sink:    sink,
		logger:  logger,
		symbols: make(map[string]*symbolState),
	}
}

func (s *Supervisor) state(symbol string) *symbolState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.symbols[symbol]
	if !ok {
		st = &symbolState{}
		s.symbols[symbol] = st
	}
	return st
}

// HasOpenPosition reports whether a non-CLOSED position exists for the
// symbol.
func (s *Supervisor) HasOpenPosition(symbol string) bool {
	st := s.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.position != nil
}

// Position returns a copy of the symbol's current position, if any.
func (s *Supervisor) Position(symbol string) (models.Position, bool) {
	st := s.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.position == nil {
		return models.Position{}, false
	}
	return *st.position, true
}

// OpenPositions returns copies of every non-CLOSED position.
func (s *Supervisor) OpenPositions() []models.Position {
	s.mu.Lock()
	symbols := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		symbols = append(symbols, sym)
	}
	s.mu.Unlock()

	var positions []models.Position
	for _, sym := range symbols {
		if p, ok := s.Position(sym); ok {
			positions = append(positions, p)
		}
	}
	return positions
}

// ClearAbort resets the open-preemption flag at the start of a decision
// cycle, so a CLOSEALL from a previous cycle does not veto future opens.
func (s *Supervisor) ClearAbort(symbol string) {
	st := s.state(symbol)
	st.mu.Lock()
	st.abortOpen = false
	st.mu.Unlock()
}

// Open applies an admitted open action. If a CLOSEALL arrived while the
// action was being admitted, the open is skipped. Only a confirmed
// exchange fill creates the position.
func (s *Supervisor) Open(ctx context.Context, symbol string, action risk.Action) error {
	st := s.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.position != nil {
		return apperrors.ErrPositionOpen
	}
	if st.abortOpen {
		st.abortOpen = false
		s.logger.Info().Str("symbol", symbol).Msg("Open preempted by close-all")
		return nil
	}

	fill, err := s.venue.OpenPosition(ctx, symbol, action.Side, action.Size, action.Leverage)
	if err != nil {
		s.emitError(ctx, "opening position "+symbol, err)
		return err
	}

	st.position = &models.Position{
		ID:              uuid.NewString(),
		Symbol:          symbol,
		Side:            action.Side,
		EntryPrice:      fill.Price,
		Size:            fill.Size,
		Leverage:        action.Leverage,
		OpenedAt:        fill.Timestamp,
		StopLossPrice:   risk.StopLossPrice(fill.Price, action.Side, s.riskCfg),
		TakeProfitPrice: risk.TakeProfitPrice(fill.Price, action.Side, s.riskCfg),
		Status:          models.PositionOpen,
	}
	st.closeFails = 0

	s.logger.Info().
		Str("symbol", symbol).
		Str("side", string(action.Side)).
		Float64("entry", fill.Price).
		Float64("size", fill.Size).
		Int("leverage", action.Leverage).
		Msg("Position opened")

	event := notify.NewEvent(models.EventPositionOpened)
	pos := *st.position
	event.Position = &pos
	s.sink.Notify(ctx, event)

	return nil
}

// OnTick evaluates exit conditions for the symbol at the given mark
// price. A CLOSING position retries its close every tick until the
// exchange positively confirms the fill; the retry loop never gives up
// on its own.
func (s *Supervisor) OnTick(ctx context.Context, symbol string, markPrice float64) {
	st := s.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.position == nil {
		return
	}

	if st.position.Status == models.PositionOpen {
		if reason, triggered := exitTrigger(st.position, markPrice); triggered {
			st.position.Status = models.PositionClosing
			st.exitReason = reason
			s.logger.Info().
				Str("symbol", symbol).
				Str("reason", string(reason)).
				Float64("mark_price", markPrice).
				Msg("Exit triggered")
		}
	}

	if st.position.Status == models.PositionClosing {
		s.tryClose(ctx, symbol, st)
	}
}

// exitTrigger decides whether an OPEN position must close at this mark
// price. Stop loss takes priority over take profit when a gap crosses
// both in the same tick: capital preservation over profit-taking.
func exitTrigger(p *models.Position, markPrice float64) (models.ExitReason, bool) {
	if p.Side == models.SideLong {
		if markPrice <= p.StopLossPrice {
			return models.ExitStopLoss, true
		}
		if markPrice >= p.TakeProfitPrice {
			return models.ExitTakeProfit, true
		}
	} else {
		if markPrice >= p.StopLossPrice {
			return models.ExitStopLoss, true
		}
		if markPrice <= p.TakeProfitPrice {
			return models.ExitTakeProfit, true
		}
	}
	return "", false
}

// RequestClose marks the symbol's position CLOSING with the given
// reason. The close executes on the next tick. No-op without a
// position.
func (s *Supervisor) RequestClose(symbol string, reason models.ExitReason) bool {
	st := s.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.position == nil || st.position.Status != models.PositionOpen {
		return false
	}
	st.position.Status = models.PositionClosing
	st.exitReason = reason
	return true
}

// RequestCloseAll marks every OPEN position CLOSING with reason FORCED
// and arms open-preemption on every symbol, so an in-flight open
// admission is skipped. Returns the number of positions marked.
func (s *Supervisor) RequestCloseAll() int {
	s.mu.Lock()
	symbols := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		symbols = append(symbols, sym)
	}
	s.mu.Unlock()

	marked := 0
	for _, sym := range symbols {
		st := s.state(sym)
		st.mu.Lock()
		st.abortOpen = true
		if st.position != nil && st.position.Status == models.PositionOpen {
			st.position.Status = models.PositionClosing
			st.exitReason = models.ExitForced
			marked++
		}
		st.mu.Unlock()
	}
	return marked
}

// tryClose attempts the exchange close for a CLOSING position. Called
// with the symbol lock held. Failure keeps the position CLOSING and
// escalates alerts; only a confirmed fill transitions to CLOSED.
func (s *Supervisor) tryClose(ctx context.Context, symbol string, st *symbolState) {
	fill, err := s.venue.ClosePosition(ctx, symbol)
	if err != nil {
		st.closeFails++
		s.logger.Error().
			Str("symbol", symbol).
			Int("attempts", st.closeFails).
			Err(err).
			Msg("Close failed, will retry next tick")

		severity := models.SeverityWarning
		if st.closeFails >= closeFailEscalation {
			severity = models.SeverityCritical
		}
		s.emitErrorWithSeverity(ctx, "closing position "+symbol, err, severity)
		return
	}

	p := st.position
	rawMove := 0.0
	if p.EntryPrice > 0 {
		rawMove = (fill.Price - p.EntryPrice) / p.EntryPrice
		if p.Side == models.SideShort {
			rawMove = -rawMove
		}
	}

	trade := &models.Trade{
		ID:         uuid.NewString(),
		PositionID: p.ID,
		Symbol:     p.Symbol,
		Side:       p.Side,
		EntryPrice: p.EntryPrice,
		ExitPrice:  fill.Price,
		Size:       p.Size,
		Leverage:   p.Leverage,
		PnL:        p.Size * rawMove * float64(p.Leverage),
		PnLPercent: rawMove * 100 * float64(p.Leverage),
		Reason:     st.exitReason,
		OpenedAt:   p.OpenedAt,
		ClosedAt:   fill.Timestamp,
	}

	p.Status = models.PositionClosed
	st.position = nil
	st.exitReason = ""
	st.abortOpen = false
	st.closeFails = 0

	s.session.RecordClose(trade.PnL, fill.Timestamp)

	if s.store != nil {
		if err := s.store.SaveTrade(ctx, trade); err != nil {
			s.logger.Error().Err(err).Str("symbol", symbol).Msg("Failed to persist trade")
		}
	}

	s.logger.Info().
		Str("symbol", symbol).
		Str("reason", string(trade.Reason)).
		Float64("pnl", trade.PnL).
		Float64("pnl_percent", trade.PnLPercent).
		Msg("Position closed")

	event := notify.NewEvent(models.EventPositionClosed)
	event.Trade = trade
	s.sink.Notify(ctx, event)
}

func (s *Supervisor) emitError(ctx context.Context, errContext string, err error) {
	severity := models.SeverityWarning
	if apperrors.IsFatal(err) {
		severity = models.SeverityCritical
	}
	s.emitErrorWithSeverity(ctx, errContext, err, severity)
}

func (s *Supervisor) emitErrorWithSeverity(ctx context.Context, errContext string, err error, severity models.ErrorSeverity) {
	event := notify.NewEvent(models.EventError)
	event.Err = &models.ErrorPayload{
		Context:  errContext,
		Message:  err.Error(),
		Severity: severity,
	}
	s.sink.Notify(ctx, event)
}
