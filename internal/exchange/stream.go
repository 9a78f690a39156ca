package exchange

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// PriceStream maintains a live mark-price cache over a websocket
// connection, reconnecting with backoff when the connection drops. The
// engine reads the cache and falls back to REST when a symbol has no
// fresh quote yet.
type PriceStream struct {
	url     string
	symbols []string
	logger  zerolog.Logger

	mu     sync.RWMutex
	prices map[string]float64

	writeTimeout time.Duration
	readTimeout  time.Duration
	pingInterval time.Duration
}

// NewPriceStream creates a stream for the given symbols.
func NewPriceStream(url string, symbols []string, logger zerolog.Logger) *PriceStream {
	return &PriceStream{
		url:          url,
		symbols:      symbols,
		logger:       logger,
		prices:       make(map[string]float64),
		writeTimeout: 10 * time.Second,
		readTimeout:  60 * time.Second,
		pingInterval: 20 * time.Second,
	}
}

// Latest returns the most recent streamed price for a symbol.
func (s *PriceStream) Latest(symbol string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.prices[strings.ToUpper(symbol)]
	return price, ok
}

// Run connects and pumps messages until the context is cancelled,
// reconnecting on failure.
func (s *PriceStream) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if err := s.connectAndPump(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn().Err(err).Dur("backoff", backoff).Msg("Price stream disconnected")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *PriceStream) connectAndPump(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := s.subscribe(conn); err != nil {
		return err
	}
	s.logger.Info().Str("url", s.url).Msg("Price stream connected")

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(ctx, conn, done)

	for {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleMessage(raw)
	}
}

func (s *PriceStream) subscribe(conn *websocket.Conn) error {
	params := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		params = append(params, strings.ToLower(perpSymbol(sym))+"@markPrice@1s")
	}
	payload := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     time.Now().Unix(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *PriceStream) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case <-done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// markPriceEvent is the futures markPrice stream payload.
type markPriceEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	MarkPrice string `json:"p"`
}

func (s *PriceStream) handleMessage(raw []byte) {
	var ev markPriceEvent
	if err := json.Unmarshal(raw, &ev); err != nil || ev.EventType != "markPriceUpdate" {
		return
	}
	price, err := strconv.ParseFloat(ev.MarkPrice, 64)
	if err != nil || price <= 0 {
		return
	}

	// Store under the bare symbol the engine ticks with.
	symbol := strings.TrimSuffix(strings.TrimSuffix(ev.Symbol, "USDT"), "USD")

	s.mu.Lock()
	s.prices[symbol] = price
	s.mu.Unlock()
}
