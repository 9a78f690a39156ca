package command

import (
	"context"
	"testing"
	"time"

	"swarm-trader/internal/models"
)

func TestParse(t *testing.T) {
	tests := []struct {
		text string
		want models.CommandType
	}{
		{"/pause", models.CommandPause},
		{"pause", models.CommandPause},
		{"PAUSE", models.CommandPause},
		{"  /pause  ", models.CommandPause},
		{"/pause@SwarmTraderBot", models.CommandPause},
		{"/resume", models.CommandResume},
		{"/closeall", models.CommandCloseAll},
		{"/status", models.CommandStatus},
		{"/settings", models.CommandSettings},
		{"/help", models.CommandHelp},
		{"/start", models.CommandHelp},
		{"/frobnicate", models.CommandUnknown},
		{"what's the weather", models.CommandUnknown},
		{"", models.CommandUnknown},
	}

	now := time.Now()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			event := Parse(tt.text, now)
			if event.Type != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.text, event.Type, tt.want)
			}
			if event.RawText != tt.text {
				t.Errorf("raw text must be preserved, got %q", event.RawText)
			}
		})
	}
}

func TestStaticSourceDrainsOnce(t *testing.T) {
	src := NewStaticSource(
		Parse("/pause", time.Now()),
		Parse("/status", time.Now()),
	)

	first, err := src.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 events, got %d", len(first))
	}

	second, err := src.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("source must be empty after draining, got %d", len(second))
	}
}
