// Package exchange implements the GMO Coin REST collaborator: public tickers
// and klines, and signed private endpoints for balance, orders, and fills.
// All calls are synchronous, short-timeout, single-attempt.
package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultPublicBaseURL  = "https://api.coin.z.com/public/v1"
	defaultPrivateBaseURL = "https://api.coin.z.com/private/v1"
)

// Options parameterise the client.
type Options struct {
	PublicBaseURL  string
	PrivateBaseURL string
	APIKey         string
	APISecret      string
	Timeout        time.Duration
	UserAgent      string
}

// Client talks to the GMO Coin REST API.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	public  string
	private string
	now     func() time.Time
}

// Execution is one fill belonging to an order.
type Execution struct {
	Price     decimal.Decimal
	Size      decimal.Decimal
	Timestamp time.Time
}

// OrderResult reports the outcome of an order submission. OrderID may be
// empty even on acceptance.
type OrderResult struct {
	Accepted bool
	OrderID  string
	Message  string
}

// Candle is one daily OHLC bar from the klines endpoint.
type Candle struct {
	Time  time.Time
	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal
}

// NewClient constructs an exchange client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	public := strings.TrimRight(opts.PublicBaseURL, "/")
	if public == "" {
		public = defaultPublicBaseURL
	}
	private := strings.TrimRight(opts.PrivateBaseURL, "/")
	if private == "" {
		private = defaultPrivateBaseURL
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "exchange").Logger(),
		client:  &http.Client{Timeout: timeout},
		public:  public,
		private: private,
		now:     time.Now,
	}
}

type apiEnvelope struct {
	Status   int             `json:"status"`
	Data     json.RawMessage `json:"data"`
	Messages []struct {
		MessageCode   string `json:"message_code"`
		MessageString string `json:"message_string"`
	} `json:"messages"`
}

// CurrentPrices fetches the latest traded JPY price per symbol. A symbol
// whose fetch fails is absent from the result; the remaining symbols are
// still returned.
func (c *Client) CurrentPrices(ctx context.Context, symbols []string) map[string]decimal.Decimal {
	result := make(map[string]decimal.Decimal, len(symbols))
	for _, symbol := range symbols {
		price, err := c.tickerLast(ctx, symbol)
		if err != nil {
			c.logger.Error().Err(err).Str("symbol", symbol).Msg("ticker fetch failed")
			continue
		}
		result[symbol] = price
	}
	return result
}

func (c *Client) tickerLast(ctx context.Context, symbol string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/ticker?symbol=%s_JPY", c.public, url.QueryEscape(symbol))
	payload, err := c.get(ctx, endpoint)
	if err != nil {
		return decimal.Decimal{}, err
	}

	var tickers []struct {
		Last string `json:"last"`
	}
	if err := json.Unmarshal(payload, &tickers); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode ticker: %w", err)
	}
	if len(tickers) == 0 {
		return decimal.Decimal{}, errors.New("ticker returned no data")
	}

	last, err := decimal.NewFromString(tickers[0].Last)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse last price: %w", err)
	}
	return last, nil
}

// DailyCandles fetches one year of daily OHLC bars for a symbol.
func (c *Client) DailyCandles(ctx context.Context, symbol string, year int) ([]Candle, error) {
	endpoint := fmt.Sprintf("%s/klines?symbol=%s&interval=1day&date=%d", c.public, url.QueryEscape(symbol), year)
	payload, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var bars []struct {
		OpenTime string `json:"openTime"`
		Open     string `json:"open"`
		High     string `json:"high"`
		Low      string `json:"low"`
		Close    string `json:"close"`
	}
	if err := json.Unmarshal(payload, &bars); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}

	candles := make([]Candle, 0, len(bars))
	for _, bar := range bars {
		millis, err := strconv.ParseInt(bar.OpenTime, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse candle open time: %w", err)
		}
		candle := Candle{Time: time.UnixMilli(millis).UTC()}
		if candle.Open, err = decimal.NewFromString(bar.Open); err != nil {
			return nil, fmt.Errorf("parse candle open: %w", err)
		}
		if candle.High, err = decimal.NewFromString(bar.High); err != nil {
			return nil, fmt.Errorf("parse candle high: %w", err)
		}
		if candle.Low, err = decimal.NewFromString(bar.Low); err != nil {
			return nil, fmt.Errorf("parse candle low: %w", err)
		}
		if candle.Close, err = decimal.NewFromString(bar.Close); err != nil {
			return nil, fmt.Errorf("parse candle close: %w", err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// JPYBalance fetches the available JPY balance from the assets endpoint.
func (c *Client) JPYBalance(ctx context.Context) (decimal.Decimal, error) {
	payload, err := c.privateRequest(ctx, http.MethodGet, "/account/assets", nil)
	if err != nil {
		return decimal.Decimal{}, err
	}

	var assets []struct {
		Symbol string `json:"symbol"`
		Amount string `json:"amount"`
	}
	if err := json.Unmarshal(payload, &assets); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decode assets: %w", err)
	}

	for _, asset := range assets {
		if asset.Symbol != "JPY" {
			continue
		}
		amount, err := decimal.NewFromString(asset.Amount)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("parse jpy amount: %w", err)
		}
		return amount, nil
	}
	return decimal.Decimal{}, errors.New("assets response contained no JPY entry")
}

// PlaceOrder submits a market buy. Transport failures return an error; an
// exchange-side rejection comes back as an unaccepted OrderResult.
func (c *Client) PlaceOrder(ctx context.Context, symbol string, size decimal.Decimal) (OrderResult, error) {
	body, err := json.Marshal(map[string]string{
		"symbol":        symbol,
		"side":          "BUY",
		"executionType": "MARKET",
		"size":          size.String(),
	})
	if err != nil {
		return OrderResult{}, fmt.Errorf("marshal order: %w", err)
	}

	payload, err := c.privateRequest(ctx, http.MethodPost, "/order", body)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return OrderResult{Accepted: false, Message: apiErr.Error()}, nil
		}
		return OrderResult{}, err
	}

	var orderID string
	if err := json.Unmarshal(payload, &orderID); err != nil {
		// Acceptance without a parseable id is still an acceptance.
		c.logger.Warn().Err(err).Str("symbol", symbol).Msg("order accepted but id not parseable")
		return OrderResult{Accepted: true}, nil
	}
	return OrderResult{Accepted: true, OrderID: orderID}, nil
}

// Executions fetches the fills for an order id. May legitimately be empty.
func (c *Client) Executions(ctx context.Context, orderID string) ([]Execution, error) {
	path := "/executions?orderId=" + url.QueryEscape(orderID)
	payload, err := c.privateRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var data struct {
		List []struct {
			Price     string `json:"price"`
			Size      string `json:"size"`
			Timestamp string `json:"timestamp"`
		} `json:"list"`
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("decode executions: %w", err)
	}

	fills := make([]Execution, 0, len(data.List))
	for _, item := range data.List {
		var fill Execution
		if fill.Price, err = decimal.NewFromString(item.Price); err != nil {
			return nil, fmt.Errorf("parse execution price: %w", err)
		}
		if fill.Size, err = decimal.NewFromString(item.Size); err != nil {
			return nil, fmt.Errorf("parse execution size: %w", err)
		}
		if fill.Timestamp, err = time.Parse(time.RFC3339Nano, item.Timestamp); err != nil {
			return nil, fmt.Errorf("parse execution timestamp: %w", err)
		}
		fills = append(fills, fill)
	}
	return fills, nil
}

func (c *Client) get(ctx context.Context, endpoint string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.setCommonHeaders(req)
	return c.do(req)
}

// privateRequest signs and issues a private API call. The path is relative
// to the private base URL, e.g. "/account/assets".
func (c *Client) privateRequest(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	if c.opts.APIKey == "" || c.opts.APISecret == "" {
		return nil, errors.New("api key and secret required for private endpoints")
	}

	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	signPath := "/v1" + stripQuery(path)
	signature := c.sign(timestamp, method, signPath, body)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.private+path, reader)
	if err != nil {
		return nil, err
	}
	c.setCommonHeaders(req)
	req.Header.Set("API-KEY", c.opts.APIKey)
	req.Header.Set("API-TIMESTAMP", timestamp)
	req.Header.Set("API-SIGN", signature)

	return c.do(req)
}

// sign produces the HMAC-SHA256 hex digest over timestamp+method+path+body.
func (c *Client) sign(timestamp, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.opts.APISecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(method))
	mac.Write([]byte(path))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "dcabot/1.0")
	}
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, truncateBody(payload))
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("decode response envelope: %w", err)
	}
	if envelope.Status != 0 {
		apiErr := &APIError{Status: envelope.Status}
		for _, m := range envelope.Messages {
			apiErr.Codes = append(apiErr.Codes, m.MessageCode)
			apiErr.Messages = append(apiErr.Messages, m.MessageString)
		}
		return nil, apiErr
	}
	return envelope.Data, nil
}

// APIError is a GMO Coin API-level rejection (HTTP 200, nonzero status).
type APIError struct {
	Status   int
	Codes    []string
	Messages []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("api status %d", e.Status)
	}
	return fmt.Sprintf("api status %d: %s", e.Status, strings.Join(e.Messages, "; "))
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

func truncateBody(payload []byte) string {
	const max = 256
	if len(payload) > max {
		payload = payload[:max]
	}
	return strings.TrimSpace(string(payload))
}
