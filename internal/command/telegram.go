package command

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"swarm-trader/internal/models"
)

// TelegramSource polls the Telegram Bot API for operator commands.
// Only messages from the authorized chat are accepted. The update
// offset is persisted so commands are consumed exactly once across
// restarts.
type TelegramSource struct {
	botToken   string
	chatID     string
	offsetPath string
	client     *http.Client
	logger     zerolog.Logger

	offset int64
}

// NewTelegramSource creates a Telegram command source. offsetDir is
// where the last-consumed update ID is persisted.
func NewTelegramSource(botToken, chatID, offsetDir string, logger zerolog.Logger) *TelegramSource {
	s := &TelegramSource{
		botToken:   botToken,
		chatID:     chatID,
		offsetPath: filepath.Join(offsetDir, "telegram_offset"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
	s.offset = s.loadOffset()
	return s
}

func (s *TelegramSource) loadOffset() int64 {
	data, err := os.ReadFile(s.offsetPath)
	if err != nil {
		return 0
	}
	offset, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0
	}
	return offset
}

func (s *TelegramSource) saveOffset(offset int64) {
	s.offset = offset
	if err := os.MkdirAll(filepath.Dir(s.offsetPath), 0755); err != nil {
		return
	}
	if err := os.WriteFile(s.offsetPath, []byte(strconv.FormatInt(offset, 10)), 0644); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist telegram offset")
	}
}

type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Date int64 `json:"date"`
	} `json:"message"`
}

type updatesResponse struct {
	OK     bool             `json:"ok"`
	Result []telegramUpdate `json:"result"`
}

// Poll drains all pending updates and returns the parsed commands from
// the authorized chat. Transport errors are returned for logging but
// never abort the caller's loop.
func (s *TelegramSource) Poll(ctx context.Context) ([]models.CommandEvent, error) {
	if s.botToken == "" || s.chatID == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("offset", strconv.FormatInt(s.offset+1, 10))
	params.Set("timeout", "0")

	reqURL := fmt.Sprintf("https://api.telegram.org/bot%s/getUpdates?%s", s.botToken, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polling telegram updates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	var out updatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding telegram updates: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("telegram API reported not ok")
	}

	var events []models.CommandEvent
	for _, update := range out.Result {
		if update.UpdateID > s.offset {
			s.saveOffset(update.UpdateID)
		}

		if strconv.FormatInt(update.Message.Chat.ID, 10) != s.chatID {
			continue
		}
		text := strings.TrimSpace(update.Message.Text)
		if text == "" {
			continue
		}

		issued := time.Unix(update.Message.Date, 0)
		events = append(events, Parse(text, issued))
	}

	return events, nil
}
