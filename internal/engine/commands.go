package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"swarm-trader/internal/models"
	"swarm-trader/internal/notify"
)

// HandleCommand dispatches one operator command. Every command gets an
// acknowledgement, including unknown ones; commands are idempotent so a
// repeated /pause or /resume simply re-confirms the state.
func (e *Engine) HandleCommand(ctx context.Context, cmd models.CommandEvent) {
	e.logger.Info().Str("command", string(cmd.Type)).Str("raw", cmd.RawText).Msg("Command received")

	var message string
	switch cmd.Type {
	case models.CommandPause:
		e.session.Pause()
		message = "Trading paused. Open positions are still monitored. Send /resume to continue."
	case models.CommandResume:
		e.session.Resume()
		message = "Trading resumed."
	case models.CommandCloseAll:
		n := e.supervisor.RequestCloseAll()
		if n == 0 {
			message = "No open positions."
		} else {
			message = fmt.Sprintf("Closing %d position(s).", n)
		}
	case models.CommandStatus:
		message = e.statusReport(ctx)
	case models.CommandSettings:
		message = e.settingsReport()
	case models.CommandHelp:
		message = e.helpText()
	default:
		message = fmt.Sprintf("Unknown command %q. Send /help for the command list.", cmd.RawText)
	}

	event := notify.NewEvent(models.EventCommandAcknowledge)
	event.CommandAck = &models.CommandAck{
		Command: string(cmd.Type),
		Message: message,
	}
	e.sink.Notify(ctx, event)
}

// statusReport snapshots the session, open positions and today's
// realized results.
func (e *Engine) statusReport(ctx context.Context) string {
	var sb strings.Builder

	snap := e.session.Snapshot()
	switch {
	case snap.Suspended:
		sb.WriteString("State: SUSPENDED (send /resume after fixing credentials)\n")
	case snap.Paused:
		sb.WriteString("State: PAUSED\n")
	default:
		sb.WriteString("State: RUNNING\n")
	}
	fmt.Fprintf(&sb, "Mode: %s\n", e.cfg.Trading.Mode)
	fmt.Fprintf(&sb, "Trades today: %d/%d\n", snap.TradesToday, e.cfg.Risk.MaxDailyTrades)

	if balance, err := e.venue.GetBalance(ctx); err == nil {
		fmt.Fprintf(&sb, "Balance: %.2f\n", balance)
	} else {
		sb.WriteString("Balance: unavailable\n")
	}

	positions := e.supervisor.OpenPositions()
	if len(positions) == 0 {
		sb.WriteString("Open positions: none\n")
	} else {
		fmt.Fprintf(&sb, "Open positions: %d\n", len(positions))
		for _, p := range positions {
			line := fmt.Sprintf("  %s %s %.2f @ %.4f (%dx)", p.Symbol, p.Side, p.Size, p.EntryPrice, p.Leverage)
			if price, err := e.markPrice(ctx, p.Symbol); err == nil {
				line += fmt.Sprintf(" P&L %.2f%%", p.UnrealizedPnLPercent(price))
			}
			if p.Status == models.PositionClosing {
				line += " [closing]"
			}
			sb.WriteString(line + "\n")
		}
	}

	if e.store != nil {
		if stats, err := e.store.GetDailyStats(ctx, time.Now()); err == nil && stats.TotalTrades > 0 {
			fmt.Fprintf(&sb, "Today: %d trades, %d won, P&L %.2f (win rate %.0f%%)\n",
				stats.TotalTrades, stats.WinningTrades, stats.TotalPnL, stats.WinRate)
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// settingsReport renders the active risk and swarm parameters.
func (e *Engine) settingsReport() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Symbols: %s\n", strings.Join(e.cfg.Trading.Symbols, ", "))
	fmt.Fprintf(&sb, "Decision interval: %d min\n", e.cfg.Trading.IntervalMinutes)
	fmt.Fprintf(&sb, "Position monitor: every %d s\n", e.cfg.Trading.PnLCheckSeconds)
	fmt.Fprintf(&sb, "Long only: %v\n", e.cfg.Trading.LongOnly)
	fmt.Fprintf(&sb, "Max position: %.0f%% of balance\n", e.cfg.Risk.MaxPositionPct)
	fmt.Fprintf(&sb, "Leverage: %dx\n", e.cfg.Risk.Leverage)
	fmt.Fprintf(&sb, "Stop loss: %.1f%% / Take profit: %.1f%%\n", e.cfg.Risk.StopLossPct, e.cfg.Risk.TakeProfitPct)
	fmt.Fprintf(&sb, "Min confidence: %.0f\n", e.cfg.Risk.MinConfidence)
	fmt.Fprintf(&sb, "Max daily trades: %d\n", e.cfg.Risk.MaxDailyTrades)
	fmt.Fprintf(&sb, "Loss cooldown: %d min\n", e.cfg.Risk.CooldownMinutes)
	fmt.Fprintf(&sb, "Voters: %d models, quorum %d", len(e.cfg.Swarm.Models), e.cfg.Swarm.MinVoters)
	return sb.String()
}

func (e *Engine) helpText() string {
	return fmt.Sprintf(`Commands:
/pause - stop opening new positions
/resume - resume trading (also clears a suspension)
/closeall - close every open position now
/status - session state, positions, today's P&L
/settings - active risk parameters
/help - this message

Decisions run every %d minutes.`, e.cfg.Trading.IntervalMinutes)
}

// NotifyStartup announces the session to the operator.
func (e *Engine) NotifyStartup(ctx context.Context) {
	event := notify.NewEvent(models.EventCommandAcknowledge)
	event.CommandAck = &models.CommandAck{
		Command: "STARTUP",
		Message: fmt.Sprintf("Swarm trader started.\nMode: %s\nSymbols: %s\n%d voters, decisions every %d min.",
			e.cfg.Trading.Mode,
			strings.Join(e.cfg.Trading.Symbols, ", "),
			len(e.cfg.Swarm.Models),
			e.cfg.Trading.IntervalMinutes),
	}
	e.sink.Notify(ctx, event)
}

// NotifyShutdown announces a clean stop, listing positions left open.
func (e *Engine) NotifyShutdown(ctx context.Context) {
	msg := "Swarm trader stopped."
	if positions := e.supervisor.OpenPositions(); len(positions) > 0 {
		syms := make([]string, 0, len(positions))
		for _, p := range positions {
			syms = append(syms, p.Symbol)
		}
		msg += " Still open: " + strings.Join(syms, ", ")
	}
	event := notify.NewEvent(models.EventCommandAcknowledge)
	event.CommandAck = &models.CommandAck{Command: "SHUTDOWN", Message: msg}
	e.sink.Notify(ctx, event)
}
