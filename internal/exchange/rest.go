package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"swarm-trader/internal/errors"
	"swarm-trader/internal/models"
)

// RESTClient talks to a Binance-futures-compatible perpetuals API with
// HMAC-SHA256 request signing.
type RESTClient struct {
	baseURL   string
	apiKey    string
	apiSecret string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewRESTClient creates a signed REST exchange client.
func NewRESTClient(baseURL, apiKey, apiSecret string) *RESTClient {
	return &RESTClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		// Stay well under typical futures API weight limits.
		limiter: rate.NewLimiter(rate.Limit(8), 16),
	}
}

func (c *RESTClient) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// do performs one API request. Signed requests get a timestamp and an
// HMAC signature over the query string.
func (c *RESTClient) do(ctx context.Context, method, path string, params url.Values, signed bool, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if params == nil {
		params = url.Values{}
	}
	if signed {
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		params.Set("signature", c.sign(params.Encode()))
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return err
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.NewExchangeError(path, "", 0, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewExchangeError(path, "", resp.StatusCode, "reading response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NewExchangeError(path, "", resp.StatusCode, strings.TrimSpace(string(body)), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.NewExchangeError(path, "", resp.StatusCode, "decoding response", err)
	}
	return nil
}

// GetPrice returns the mark price for a symbol.
func (c *RESTClient) GetPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", perpSymbol(symbol))

	var out struct {
		Price string `json:"price"`
	}
	if err := c.do(ctx, http.MethodGet, "/fapi/v1/ticker/price", params, false, &out); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(out.Price, 64)
}

// GetBalance returns total account equity in the quote asset.
func (c *RESTClient) GetBalance(ctx context.Context) (float64, error) {
	var out []struct {
		Asset   string `json:"asset"`
		Balance string `json:"balance"`
	}
	if err := c.do(ctx, http.MethodGet, "/fapi/v2/balance", nil, true, &out); err != nil {
		return 0, err
	}

	for _, b := range out {
		if b.Asset == "USDT" || b.Asset == "USD" {
			return strconv.ParseFloat(b.Balance, 64)
		}
	}
	return 0, errors.NewExchangeError("balance", "", 0, "quote asset not found", nil)
}

type orderResponse struct {
	Symbol   string `json:"symbol"`
	AvgPrice string `json:"avgPrice"`
	ExecQty  string `json:"executedQty"`
	Status   string `json:"status"`
}

// OpenPosition sets leverage, then places a market order sized in quote
// currency at the current mark price.
func (c *RESTClient) OpenPosition(ctx context.Context, symbol string, side models.Side, size float64, leverage int) (*Fill, error) {
	lev := url.Values{}
	lev.Set("symbol", perpSymbol(symbol))
	lev.Set("leverage", strconv.Itoa(leverage))
	if err := c.do(ctx, http.MethodPost, "/fapi/v1/leverage", lev, true, nil); err != nil {
		return nil, err
	}

	price, err := c.GetPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if price <= 0 {
		return nil, errors.NewExchangeError("open", symbol, 0, "invalid mark price", nil)
	}

	orderSide := "BUY"
	if side == models.SideShort {
		orderSide = "SELL"
	}

	params := url.Values{}
	params.Set("symbol", perpSymbol(symbol))
	params.Set("side", orderSide)
	params.Set("type", "MARKET")
	params.Set("quantity", strconv.FormatFloat(size/price, 'f', 6, 64))

	var out orderResponse
	if err := c.do(ctx, http.MethodPost, "/fapi/v1/order", params, true, &out); err != nil {
		return nil, err
	}

	return fillFromOrder(symbol, out, price)
}

// ClosePosition closes the full open position for a symbol with a
// reduce-only market order on the opposite side.
func (c *RESTClient) ClosePosition(ctx context.Context, symbol string) (*Fill, error) {
	params := url.Values{}
	params.Set("symbol", perpSymbol(symbol))

	var positions []struct {
		PositionAmt string `json:"positionAmt"`
		MarkPrice   string `json:"markPrice"`
	}
	if err := c.do(ctx, http.MethodGet, "/fapi/v2/positionRisk", params, true, &positions); err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, errors.ErrNoPosition
	}

	amt, err := strconv.ParseFloat(positions[0].PositionAmt, 64)
	if err != nil || amt == 0 {
		return nil, errors.ErrNoPosition
	}

	orderSide := "SELL"
	qty := amt
	if amt < 0 {
		orderSide = "BUY"
		qty = -amt
	}

	order := url.Values{}
	order.Set("symbol", perpSymbol(symbol))
	order.Set("side", orderSide)
	order.Set("type", "MARKET")
	order.Set("reduceOnly", "true")
	order.Set("quantity", strconv.FormatFloat(qty, 'f', 6, 64))

	var out orderResponse
	if err := c.do(ctx, http.MethodPost, "/fapi/v1/order", order, true, &out); err != nil {
		return nil, err
	}

	mark, _ := strconv.ParseFloat(positions[0].MarkPrice, 64)
	return fillFromOrder(symbol, out, mark)
}

func fillFromOrder(symbol string, out orderResponse, fallbackPrice float64) (*Fill, error) {
	price, _ := strconv.ParseFloat(out.AvgPrice, 64)
	if price <= 0 {
		price = fallbackPrice
	}
	qty, _ := strconv.ParseFloat(out.ExecQty, 64)

	return &Fill{
		Symbol:    symbol,
		Price:     price,
		Size:      qty * price,
		Timestamp: time.Now(),
	}, nil
}

// perpSymbol maps a bare symbol like "BTC" to its USDT perpetual pair.
func perpSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	if strings.HasSuffix(s, "USDT") || strings.HasSuffix(s, "USD") {
		return s
	}
	return s + "USDT"
}

var _ Exchange = (*RESTClient)(nil)
