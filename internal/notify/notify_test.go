package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crypto-dca-bot/internal/config"
)

func TestSeverityPrefix(t *testing.T) {
	cases := map[Severity]string{
		SeverityInfo:   "[INFO]",
		SeverityWarn:   "[WARN]",
		SeverityError:  "[ERROR]",
		SeverityBuy:    "[BUY]",
		SeverityDryRun: "[DRY-RUN]",
		Severity("x"):  "[INFO]",
	}
	for severity, want := range cases {
		if got := severity.Prefix(); got != want {
			t.Fatalf("Prefix(%q) = %q, want %q", severity, got, want)
		}
	}
}

func TestSlackSendPostsPrefixedText(t *testing.T) {
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
	}))
	defer server.Close()

	n := NewSlackNotifier(server.URL, time.Second, zerolog.Nop())
	if err := n.Send(context.Background(), SeverityBuy, "BTC order success"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if body != `{"text":"[BUY] BTC order success"}` {
		t.Fatalf("unexpected payload %s", body)
	}
}

func TestSlackSendNon2xxIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	n := NewSlackNotifier(server.URL, time.Second, zerolog.Nop())
	if err := n.Send(context.Background(), SeverityInfo, "hello"); err == nil {
		t.Fatal("403 from the webhook must be an error")
	}
}

func TestMailSendBuildsMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg string

	n := NewMailNotifier(config.MailConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "bot@example.com",
		Password: "secret",
		To:       "owner@example.com",
	}, zerolog.Nop())
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	if err := n.Send(context.Background(), SeverityWarn, "balance low"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Fatalf("unexpected addr %q", gotAddr)
	}
	if gotFrom != "bot@example.com" || len(gotTo) != 1 || gotTo[0] != "owner@example.com" {
		t.Fatalf("unexpected envelope %q -> %v", gotFrom, gotTo)
	}
	if !strings.Contains(gotMsg, "Subject: dcabot notification [WARN]\r\n") {
		t.Fatalf("subject missing severity: %q", gotMsg)
	}
	if !strings.Contains(gotMsg, "\r\n\r\n[WARN] balance low\r\n") {
		t.Fatalf("body missing prefixed message: %q", gotMsg)
	}
}

func TestMailSendHonorsCancelledContext(t *testing.T) {
	n := NewMailNotifier(config.MailConfig{}, zerolog.Nop())
	called := false
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		called = true
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Send(ctx, SeverityInfo, "x"); err == nil {
		t.Fatal("cancelled context must fail the send")
	}
	if called {
		t.Fatal("cancelled context must not reach SMTP")
	}
}

// countingNotifier trips on demand and tracks deliveries.
type countingNotifier struct {
	name  string
	fail  bool
	calls int
}

func (c *countingNotifier) Send(ctx context.Context, severity Severity, message string) error {
	c.calls++
	if c.fail {
		return errors.New("channel down")
	}
	return nil
}

func (c *countingNotifier) Name() string { return c.name }

func TestBroadcasterIsolatesChannelFailures(t *testing.T) {
	broken := &countingNotifier{name: "slack", fail: true}
	healthy := &countingNotifier{name: "mail"}

	b := NewBroadcaster(zerolog.Nop(), broken, healthy)
	b.Send(context.Background(), SeverityError, "boom")

	if broken.calls != 1 || healthy.calls != 1 {
		t.Fatalf("both channels must be attempted: broken=%d healthy=%d", broken.calls, healthy.calls)
	}
}

func TestBroadcasterSkipsNilChannels(t *testing.T) {
	healthy := &countingNotifier{name: "mail"}

	b := NewBroadcaster(zerolog.Nop(), nil, healthy)
	b.Send(context.Background(), SeverityInfo, "hello")

	if healthy.calls != 1 {
		t.Fatalf("want 1 delivery, got %d", healthy.calls)
	}
}
