// Package command consumes external operator commands.
package command

import (
	"context"
	"strings"
	"time"

	"swarm-trader/internal/models"
)

// Source produces operator commands. Poll is non-blocking from the
// engine's perspective: it drains whatever is pending and returns.
type Source interface {
	Poll(ctx context.Context) ([]models.CommandEvent, error)
}

// Parse maps operator text to a command event. Unrecognized text maps to
// CommandUnknown so the channel never fails on bad input.
func Parse(text string, now time.Time) models.CommandEvent {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.TrimPrefix(normalized, "/")
	// Strip bot-name suffix Telegram appends in groups (/pause@MyBot).
	if i := strings.IndexByte(normalized, '@'); i >= 0 {
		normalized = normalized[:i]
	}

	event := models.CommandEvent{
		RawText:  text,
		IssuedAt: now,
	}

	switch normalized {
	case "pause":
		event.Type = models.CommandPause
	case "resume":
		event.Type = models.CommandResume
	case "closeall":
		event.Type = models.CommandCloseAll
	case "status":
		event.Type = models.CommandStatus
	case "settings":
		event.Type = models.CommandSettings
	case "help", "start":
		event.Type = models.CommandHelp
	default:
		event.Type = models.CommandUnknown
	}

	return event
}

// StaticSource replays a fixed command sequence; used in tests and for
// scripted operation.
type StaticSource struct {
	events []models.CommandEvent
}

// NewStaticSource creates a source that yields the given events once.
func NewStaticSource(events ...models.CommandEvent) *StaticSource {
	return &StaticSource{events: events}
}

// Poll returns all remaining events and empties the source.
func (s *StaticSource) Poll(ctx context.Context) ([]models.CommandEvent, error) {
	events := s.events
	s.events = nil
	return events, nil
}
