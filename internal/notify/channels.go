package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TelegramChannel delivers messages via the Telegram Bot API.
type TelegramChannel struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// NewTelegramChannel creates a Telegram delivery channel.
func NewTelegramChannel(botToken, chatID string) *TelegramChannel {
	return &TelegramChannel{
		botToken: botToken,
		chatID:   chatID,
		enabled:  botToken != "" && chatID != "",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the channel name.
func (t *TelegramChannel) Name() string { return "telegram" }

// IsEnabled reports whether the channel is configured.
func (t *TelegramChannel) IsEnabled() bool { return t.enabled }

// Send delivers one message, HTML formatted.
func (t *TelegramChannel) Send(ctx context.Context, title, message string) error {
	text := fmt.Sprintf("<b>%s</b>\n\n%s", escapeHTML(title), escapeHTML(message))

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling telegram payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// WebhookChannel POSTs messages to an HTTP endpoint as JSON.
type WebhookChannel struct {
	url     string
	enabled bool
	client  *http.Client
}

// NewWebhookChannel creates a webhook delivery channel.
func NewWebhookChannel(url string) *WebhookChannel {
	return &WebhookChannel{
		url:     url,
		enabled: url != "",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the channel name.
func (w *WebhookChannel) Name() string { return "webhook" }

// IsEnabled reports whether the channel is configured.
func (w *WebhookChannel) IsEnabled() bool { return w.enabled }

// Send POSTs one message.
func (w *WebhookChannel) Send(ctx context.Context, title, message string) error {
	body, err := json.Marshal(map[string]string{
		"title":     title,
		"message":   message,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "SwarmTrader/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// TerminalChannel logs messages through the process logger.
type TerminalChannel struct {
	logger zerolog.Logger
}

// NewTerminalChannel creates a terminal delivery channel.
func NewTerminalChannel(logger zerolog.Logger) *TerminalChannel {
	return &TerminalChannel{logger: logger}
}

// Name returns the channel name.
func (t *TerminalChannel) Name() string { return "terminal" }

// IsEnabled always reports true.
func (t *TerminalChannel) IsEnabled() bool { return true }

// Send logs one message.
func (t *TerminalChannel) Send(ctx context.Context, title, message string) error {
	t.logger.Info().Str("notification", title).Msg(strings.ReplaceAll(message, "\n", " | "))
	return nil
}
