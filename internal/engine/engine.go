package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"swarm-trader/internal/command"
	"swarm-trader/internal/config"
	apperrors "swarm-trader/internal/errors"
	"swarm-trader/internal/exchange"
	"swarm-trader/internal/models"
	"swarm-trader/internal/notify"
	"swarm-trader/internal/risk"
	"swarm-trader/internal/store"
	"swarm-trader/internal/swarm"
)

// commandPollInterval is how often pending operator commands are
// drained.
const commandPollInterval = 5 * time.Second

// priceHistory keeps the recent prices fed to voters as market context.
type priceHistory struct {
	mu      sync.Mutex
	samples []priceSample
	max     int
}

type priceSample struct {
	price float64
	at    time.Time
}

func newPriceHistory(max int) *priceHistory {
	return &priceHistory{max: max}
}

func (h *priceHistory) add(price float64, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = append(h.samples, priceSample{price: price, at: at})
	if len(h.samples) > h.max {
		h.samples = h.samples[len(h.samples)-h.max:]
	}
}

func (h *priceHistory) render(symbol string) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "TOKEN: %s\nSAMPLES: %d\n\nRECENT PRICES (oldest first):\n", symbol, len(h.samples))
	for _, s := range h.samples {
		fmt.Fprintf(&sb, "%s  %.4f\n", s.at.Format("2006-01-02 15:04:05"), s.price)
	}
	return sb.String()
}

// Engine wires the voter pool, consensus, risk gate, position
// supervisor and command channel into the periodic trading loop: one
// tick driver per symbol plus one command listener, sharing the session
// and per-symbol position state.
type Engine struct {
	cfg        *config.Config
	session    *risk.Session
	pool       *swarm.Pool
	venue      exchange.Exchange
	supervisor *Supervisor
	source     command.Source
	sink       notify.Sink
	store      store.DataStore
	stream     *exchange.PriceStream // optional
	logger     zerolog.Logger

	histories map[string]*priceHistory
}

// New creates an engine. stream may be nil, in which case mark prices
// come from the REST exchange only.
func New(
	cfg *config.Config,
	session *risk.Session,
	pool *swarm.Pool,
	venue exchange.Exchange,
	supervisor *Supervisor,
	source command.Source,
	sink notify.Sink,
	dataStore store.DataStore,
	stream *exchange.PriceStream,
	logger zerolog.Logger,
) *Engine {
	histories := make(map[string]*priceHistory, len(cfg.Trading.Symbols))
	for _, sym := range cfg.Trading.Symbols {
		histories[sym] = newPriceHistory(96)
	}
	return &Engine{
		cfg:        cfg,
		session:    session,
		pool:       pool,
		venue:      venue,
		supervisor: supervisor,
		source:     source,
		sink:       sink,
		store:      dataStore,
		stream:     stream,
		logger:     logger,
		histories:  histories,
	}
}

// Run starts the per-symbol tick loops and the command listener, and
// blocks until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info().
		Strs("symbols", e.cfg.Trading.Symbols).
		Int("interval_minutes", e.cfg.Trading.IntervalMinutes).
		Bool("long_only", e.cfg.Trading.LongOnly).
		Msg("Engine starting")

	var wg sync.WaitGroup

	if e.stream != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.stream.Run(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.commandLoop(ctx)
	}()

	for _, symbol := range e.cfg.Trading.Symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			e.symbolLoop(ctx, sym)
		}(symbol)
	}

	wg.Wait()
	e.logger.Info().Msg("Engine stopped")
	return ctx.Err()
}

// symbolLoop runs the decision cycle and the faster position monitor
// for one symbol. Ticks within a symbol are strictly sequential.
func (e *Engine) symbolLoop(ctx context.Context, symbol string) {
	decide := time.NewTicker(time.Duration(e.cfg.Trading.IntervalMinutes) * time.Minute)
	defer decide.Stop()
	monitor := time.NewTicker(time.Duration(e.cfg.Trading.PnLCheckSeconds) * time.Second)
	defer monitor.Stop()

	// First decision immediately rather than a full interval from now.
	e.runCycle(ctx, symbol)

	for {
		select {
		case <-ctx.Done():
			return
		case <-monitor.C:
			e.monitorTick(ctx, symbol)
		case <-decide.C:
			e.runCycle(ctx, symbol)
		}
	}
}

// monitorTick evaluates exit conditions for an open position. It runs
// regardless of pause state: pausing stops new opens, not supervision
// of existing positions.
func (e *Engine) monitorTick(ctx context.Context, symbol string) {
	if !e.supervisor.HasOpenPosition(symbol) {
		return
	}

	price, err := e.markPrice(ctx, symbol)
	if err != nil {
		e.handleExchangeError(ctx, "fetching price for "+symbol, err)
		return
	}
	e.histories[symbol].add(price, time.Now())

	e.supervisor.OnTick(ctx, symbol, price)
}

// runCycle performs one full decision tick for a symbol: collect votes,
// reduce to consensus, gate, and open if admitted.
func (e *Engine) runCycle(ctx context.Context, symbol string) {
	now := time.Now()
	if e.session.Rollover(now) {
		e.logger.Info().Msg("Daily trade counter reset")
	}

	// A new cycle forgets any stale close-all open preemption.
	e.supervisor.ClearAbort(symbol)

	price, err := e.markPrice(ctx, symbol)
	if err != nil {
		e.handleExchangeError(ctx, "fetching price for "+symbol, err)
		return
	}
	e.histories[symbol].add(price, now)

	// Exit evaluation happens every tick whether or not new votes come in.
	e.supervisor.OnTick(ctx, symbol, price)

	if e.session.Paused() {
		e.logger.Debug().Str("symbol", symbol).Msg("Paused, skipping decision cycle")
		return
	}

	marketContext := e.histories[symbol].render(symbol)
	votes := e.pool.CollectVotes(ctx, symbol, marketContext)
	consensus := swarm.Reduce(symbol, votes)

	e.logger.Info().
		Str("symbol", symbol).
		Str("decision", string(consensus.Decision)).
		Float64("confidence", consensus.Confidence).
		Int("responded", consensus.Responded).
		Msg("Consensus computed")

	if e.store != nil {
		if err := e.store.SaveDecision(ctx, &consensus); err != nil {
			e.logger.Error().Err(err).Msg("Failed to persist decision")
		}
	}

	event := notify.NewEvent(models.EventDecisionMade)
	decisionCopy := consensus
	event.Decision = &decisionCopy
	e.sink.Notify(ctx, event)

	balance, err := e.venue.GetBalance(ctx)
	if err != nil {
		e.handleExchangeError(ctx, "fetching balance", err)
		return
	}

	action := risk.Evaluate(
		consensus,
		e.session.Snapshot(),
		e.cfg.Risk,
		e.cfg.Trading.LongOnly,
		e.supervisor.HasOpenPosition(symbol),
		balance,
		now,
	)
	if action.Type != risk.ActionOpen {
		if action.Reason != "" {
			e.logger.Debug().Str("symbol", symbol).Str("reason", action.Reason).Msg("No action")
		}
		return
	}

	if err := e.supervisor.Open(ctx, symbol, action); err != nil {
		e.handleExchangeError(ctx, "opening position for "+symbol, err)
	}
}

// markPrice prefers the websocket stream's cache and falls back to the
// REST ticker.
func (e *Engine) markPrice(ctx context.Context, symbol string) (float64, error) {
	if e.stream != nil {
		if price, ok := e.stream.Latest(symbol); ok {
			return price, nil
		}
	}
	return e.venue.GetPrice(ctx, symbol)
}

// handleExchangeError applies the error taxonomy: transient failures
// are logged and retried next tick; fatal failures suspend trading
// until an operator RESUME and raise a critical alert.
func (e *Engine) handleExchangeError(ctx context.Context, errContext string, err error) {
	if apperrors.IsFatal(err) {
		e.session.Suspend()
		e.logger.Error().Err(err).Str("context", errContext).Msg("Fatal exchange error, trading suspended")

		event := notify.NewEvent(models.EventError)
		event.Err = &models.ErrorPayload{
			Context:  errContext,
			Message:  err.Error() + " — trading suspended, send /resume after fixing",
			Severity: models.SeverityCritical,
		}
		e.sink.Notify(ctx, event)
		return
	}

	e.logger.Warn().Err(err).Str("context", errContext).Msg("Transient exchange error, retrying next tick")
}

// commandLoop drains operator commands until the context is cancelled.
// Transport failures are logged and polling continues; the channel
// never halts on bad input.
func (e *Engine) commandLoop(ctx context.Context) {
	ticker := time.NewTicker(commandPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			events, err := e.source.Poll(ctx)
			if err != nil {
				e.logger.Warn().Err(err).Msg("Command poll failed")
				continue
			}
			for _, ev := range events {
				e.HandleCommand(ctx, ev)
			}
		}
	}
}
