package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func newTestClient(t *testing.T, public, private string) *Client {
	t.Helper()

	c := NewClient(Options{
		PublicBaseURL:  public,
		PrivateBaseURL: private,
		APIKey:         "test-key",
		APISecret:      "test-secret",
		Timeout:        2 * time.Second,
	}, zerolog.Nop())
	c.now = func() time.Time {
		return time.UnixMilli(1756450800000)
	}
	return c
}

func TestCurrentPricesParsesTicker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ticker" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		switch r.URL.Query().Get("symbol") {
		case "BTC_JPY":
			io.WriteString(w, `{"status":0,"data":[{"symbol":"BTC_JPY","last":"5123456"}]}`)
		case "ETH_JPY":
			io.WriteString(w, `{"status":5,"messages":[{"message_code":"ERR-5003","message_string":"requests too many"}]}`)
		default:
			t.Fatalf("unexpected symbol %s", r.URL.Query().Get("symbol"))
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, server.URL)
	prices := c.CurrentPrices(context.Background(), []string{"BTC", "ETH"})

	if len(prices) != 1 {
		t.Fatalf("failed symbol should be dropped, got %v", prices)
	}
	if !prices["BTC"].Equal(decimal.RequireFromString("5123456")) {
		t.Fatalf("unexpected BTC price %s", prices["BTC"])
	}
}

func TestDailyCandlesParsesBars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/klines" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("interval"); got != "1day" {
			t.Fatalf("unexpected interval %s", got)
		}
		if got := r.URL.Query().Get("date"); got != "2026" {
			t.Fatalf("unexpected date %s", got)
		}
		io.WriteString(w, `{"status":0,"data":[
			{"openTime":"1756425600000","open":"100","high":"110","low":"95","close":"105"}
		]}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, server.URL)
	candles, err := c.DailyCandles(context.Background(), "BTC", 2026)
	if err != nil {
		t.Fatalf("DailyCandles: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("want 1 candle, got %d", len(candles))
	}
	if !candles[0].Close.Equal(decimal.RequireFromString("105")) {
		t.Fatalf("unexpected close %s", candles[0].Close)
	}
	if got := candles[0].Time; !got.Equal(time.UnixMilli(1756425600000).UTC()) {
		t.Fatalf("unexpected candle time %v", got)
	}
}

func TestJPYBalanceSignsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/account/assets" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("API-KEY"); got != "test-key" {
			t.Fatalf("unexpected API-KEY %q", got)
		}

		timestamp := r.Header.Get("API-TIMESTAMP")
		if timestamp != "1756450800000" {
			t.Fatalf("unexpected API-TIMESTAMP %q", timestamp)
		}

		mac := hmac.New(sha256.New, []byte("test-secret"))
		io.WriteString(mac, timestamp+"GET"+"/v1/account/assets")
		if want := hex.EncodeToString(mac.Sum(nil)); r.Header.Get("API-SIGN") != want {
			t.Fatalf("signature mismatch: got %q want %q", r.Header.Get("API-SIGN"), want)
		}

		io.WriteString(w, `{"status":0,"data":[
			{"symbol":"BTC","amount":"0.05"},
			{"symbol":"JPY","amount":"123456"}
		]}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, server.URL)
	balance, err := c.JPYBalance(context.Background())
	if err != nil {
		t.Fatalf("JPYBalance: %v", err)
	}
	if !balance.Equal(decimal.RequireFromString("123456")) {
		t.Fatalf("unexpected balance %s", balance)
	}
}

func TestJPYBalanceRequiresCredentials(t *testing.T) {
	c := NewClient(Options{}, zerolog.Nop())
	if _, err := c.JPYBalance(context.Background()); err == nil {
		t.Fatal("missing credentials must be an error")
	}
}

func TestPlaceOrderAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/order" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"executionType":"MARKET","side":"BUY","size":"0.02","symbol":"BTC"}` {
			t.Fatalf("unexpected body %s", body)
		}
		io.WriteString(w, `{"status":0,"data":"223347898"}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, server.URL)
	result, err := c.PlaceOrder(context.Background(), "BTC", decimal.RequireFromString("0.02"))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if !result.Accepted || result.OrderID != "223347898" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestPlaceOrderRejectionIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":1,"messages":[{"message_code":"ERR-201","message_string":"余力が足りません"}]}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, server.URL)
	result, err := c.PlaceOrder(context.Background(), "BTC", decimal.RequireFromString("0.02"))
	if err != nil {
		t.Fatalf("exchange-side rejection must not be a transport error: %v", err)
	}
	if result.Accepted {
		t.Fatal("rejected order reported as accepted")
	}
	if result.Message == "" {
		t.Fatal("rejection message should carry the api detail")
	}
}

func TestPlaceOrderTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, server.URL)
	if _, err := c.PlaceOrder(context.Background(), "BTC", decimal.RequireFromString("0.02")); err == nil {
		t.Fatal("http failure must surface as an error")
	}
}

func TestExecutionsParsesFills(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("orderId"); got != "42" {
			t.Fatalf("unexpected orderId %q", got)
		}
		io.WriteString(w, `{"status":0,"data":{"list":[
			{"price":"5100000","size":"0.01","timestamp":"2026-08-29T00:00:01.123Z"},
			{"price":"5100500","size":"0.01","timestamp":"2026-08-29T00:00:02.456Z"}
		]}}`)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, server.URL)
	fills, err := c.Executions(context.Background(), "42")
	if err != nil {
		t.Fatalf("Executions: %v", err)
	}
	if len(fills) != 2 {
		t.Fatalf("want 2 fills, got %d", len(fills))
	}
	if !fills[0].Price.Equal(decimal.RequireFromString("5100000")) {
		t.Fatalf("unexpected fill price %s", fills[0].Price)
	}
}

func TestAPIErrorText(t *testing.T) {
	err := &APIError{Status: 5, Codes: []string{"ERR-5003"}, Messages: []string{"requests too many"}}
	if err.Error() != "api status 5: requests too many" {
		t.Fatalf("unexpected error text %q", err.Error())
	}

	var target *APIError
	if !errors.As(error(err), &target) {
		t.Fatal("APIError must unwrap via errors.As")
	}
}
