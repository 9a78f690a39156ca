// Package notify delivers lifecycle and decision events to the operator.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"swarm-trader/internal/config"
	"swarm-trader/internal/models"
)

// Sink receives events from the engine. Delivery is fire-and-forget:
// a failed notification never rolls back or blocks the state transition
// that triggered it.
type Sink interface {
	Notify(ctx context.Context, event models.Event)
}

// Channel is one delivery mechanism for rendered messages.
type Channel interface {
	Name() string
	Send(ctx context.Context, title, message string) error
	IsEnabled() bool
}

// Level filters which event types are delivered.
type Level string

const (
	LevelAll        Level = "all"
	LevelTradesOnly Level = "trades_only"
	LevelErrorsOnly Level = "errors_only"
)

// MultiNotifier renders events and fans them out to all enabled
// channels.
type MultiNotifier struct {
	mu       sync.RWMutex
	channels []Channel
	level    Level
	onError  func(channel string, err error)
}

// NewMultiNotifier creates a notifier from configuration.
func NewMultiNotifier(cfg *config.NotificationConfig, creds *config.TelegramCredentials) *MultiNotifier {
	mn := &MultiNotifier{level: Level(cfg.Level)}
	if mn.level == "" {
		mn.level = LevelAll
	}

	if !cfg.Enabled {
		return mn
	}
	if cfg.Telegram.Enabled && creds != nil {
		mn.channels = append(mn.channels, NewTelegramChannel(creds.BotToken, creds.ChatID))
	}
	if cfg.Webhook.Enabled {
		mn.channels = append(mn.channels, NewWebhookChannel(cfg.Webhook.URL))
	}
	return mn
}

// AddChannel registers an additional delivery channel.
func (mn *MultiNotifier) AddChannel(ch Channel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// SetErrorHandler installs a callback for delivery failures, which are
// otherwise dropped silently.
func (mn *MultiNotifier) SetErrorHandler(fn func(channel string, err error)) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.onError = fn
}

func (mn *MultiNotifier) shouldSend(t models.EventType) bool {
	switch mn.level {
	case LevelTradesOnly:
		return t == models.EventPositionOpened || t == models.EventPositionClosed
	case LevelErrorsOnly:
		return t == models.EventError
	default:
		return true
	}
}

// Notify renders and delivers an event to every enabled channel.
func (mn *MultiNotifier) Notify(ctx context.Context, event models.Event) {
	if !mn.shouldSend(event.Type) {
		return
	}

	title, message := Render(event)
	if title == "" {
		return
	}

	mn.mu.RLock()
	channels := mn.channels
	onError := mn.onError
	mn.mu.RUnlock()

	for _, ch := range channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.Send(ctx, title, message); err != nil && onError != nil {
			onError(ch.Name(), err)
		}
	}
}

// Render formats an event into a title and message body.
func Render(event models.Event) (title, message string) {
	switch event.Type {
	case models.EventDecisionMade:
		d := event.Decision
		if d == nil {
			return "", ""
		}
		title = fmt.Sprintf("🧠 %s Consensus: %s", d.Symbol, d.Decision)
		message = fmt.Sprintf(
			"Symbol: %s\nDecision: %s\nConfidence: %.1f%%\nVotes: BUY=%d SELL=%d HOLD=%d (%d responded)",
			d.Symbol, d.Decision, d.Confidence,
			d.Tally[models.VoteBuy], d.Tally[models.VoteSell], d.Tally[models.VoteHold],
			d.Responded,
		)

	case models.EventPositionOpened:
		p := event.Position
		if p == nil {
			return "", ""
		}
		title = fmt.Sprintf("🚀 Position Opened: %s %s", p.Side, p.Symbol)
		message = fmt.Sprintf(
			"Symbol: %s\nSide: %s\nEntry: %s\nSize: %s\nLeverage: %dx\nStop Loss: %s\nTake Profit: %s",
			p.Symbol, p.Side,
			formatPrice(p.EntryPrice), formatAmount(p.Size), p.Leverage,
			formatPrice(p.StopLossPrice), formatPrice(p.TakeProfitPrice),
		)

	case models.EventPositionClosed:
		t := event.Trade
		if t == nil {
			return "", ""
		}
		emoji := "💰"
		if t.PnL < 0 {
			emoji = "📉"
		}
		title = fmt.Sprintf("%s %s: %s %s", emoji, exitLabel(t.Reason), t.Side, t.Symbol)
		message = fmt.Sprintf(
			"Symbol: %s\nEntry: %s\nExit: %s\nP&L: %+.2f%% (%s)\nReason: %s",
			t.Symbol, formatPrice(t.EntryPrice), formatPrice(t.ExitPrice),
			t.PnLPercent, formatAmount(t.PnL), t.Reason,
		)

	case models.EventCommandAcknowledge:
		a := event.CommandAck
		if a == nil {
			return "", ""
		}
		title = fmt.Sprintf("✅ %s", a.Command)
		message = a.Message

	case models.EventError:
		e := event.Err
		if e == nil {
			return "", ""
		}
		emoji := "⚠️"
		if e.Severity == models.SeverityCritical {
			emoji = "🚨"
		}
		title = fmt.Sprintf("%s Error: %s", emoji, e.Context)
		message = fmt.Sprintf("Context: %s\nError: %s\nTime: %s",
			e.Context, e.Message, event.Timestamp.Format("15:04:05"))
	}

	return title, message
}

func exitLabel(r models.ExitReason) string {
	return strings.ReplaceAll(string(r), "_", " ")
}

func formatPrice(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

func formatAmount(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}

// NoOpSink is a sink that discards every event.
type NoOpSink struct{}

// Notify does nothing.
func (NoOpSink) Notify(ctx context.Context, event models.Event) {}

// NewEvent builds an event stamped with the current time.
func NewEvent(t models.EventType) models.Event {
	return models.Event{Type: t, Timestamp: time.Now()}
}
