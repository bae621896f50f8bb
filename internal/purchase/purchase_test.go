package purchase

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"crypto-dca-bot/internal/exchange"
	"crypto-dca-bot/internal/notify"
	"crypto-dca-bot/internal/storage"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestQuantityTruncatesToUnit(t *testing.T) {
	cases := []struct {
		name    string
		jpy     string
		price   string
		minUnit string
		want    string
	}{
		{"exact multiple", "10000", "500000", "0.0001", "0.02"},
		{"truncates down", "10000", "333333", "0.0001", "0.03"},
		{"below one unit", "100", "500000", "0.0001", "0"},
		{"whole units", "30000", "9000", "1", "3"},
	}

	for _, tc := range cases {
		got := Quantity(dec(tc.jpy), dec(tc.price), dec(tc.minUnit))
		if !got.Equal(dec(tc.want)) {
			t.Fatalf("%s: Quantity(%s, %s, %s) = %s, want %s",
				tc.name, tc.jpy, tc.price, tc.minUnit, got, tc.want)
		}
	}
}

func TestQuantityGuardsNonPositive(t *testing.T) {
	if got := Quantity(dec("10000"), decimal.Zero, dec("0.0001")); !got.IsZero() {
		t.Fatalf("zero price must yield zero, got %s", got)
	}
	if got := Quantity(dec("10000"), dec("500000"), decimal.Zero); !got.IsZero() {
		t.Fatalf("zero unit must yield zero, got %s", got)
	}
}

func TestCalendarDaysBetweenIgnoresTimeOfDay(t *testing.T) {
	earlier := time.Date(2026, 8, 27, 23, 59, 0, 0, time.UTC)
	later := time.Date(2026, 8, 29, 0, 1, 0, 0, time.UTC)
	if got := calendarDaysBetween(earlier, later); got != 2 {
		t.Fatalf("want 2 calendar days, got %d", got)
	}

	sameDay := calendarDaysBetween(
		time.Date(2026, 8, 29, 1, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 29, 23, 0, 0, 0, time.UTC),
	)
	if sameDay != 0 {
		t.Fatalf("same day should be 0, got %d", sameDay)
	}
}

// fakeLedger records calls and serves canned history.
type fakeLedger struct {
	daily     []storage.DailyPrice
	last      *storage.PurchaseRecord
	pastBuys  []storage.PurchaseRecord
	recorded  []storage.PurchaseRecord
	lastTypes []storage.PurchaseType
}

func (f *fakeLedger) DailyHistory(ctx context.Context, symbol string, n int) []storage.DailyPrice {
	return f.daily
}

func (f *fakeLedger) RecordPurchase(ctx context.Context, rec storage.PurchaseRecord) {
	f.recorded = append(f.recorded, rec)
}

func (f *fakeLedger) LastPurchase(ctx context.Context, symbol string, typ storage.PurchaseType) *storage.PurchaseRecord {
	f.lastTypes = append(f.lastTypes, typ)
	return f.last
}

func (f *fakeLedger) PurchaseHistory(ctx context.Context, symbol string, limit int, before *time.Time, typ storage.PurchaseType) []storage.PurchaseRecord {
	return f.pastBuys
}

// fakeExchange returns a scripted order result and fill set.
type fakeExchange struct {
	result   exchange.OrderResult
	orderErr error
	fills    []exchange.Execution
	fillsErr error

	placed []decimal.Decimal
}

func (f *fakeExchange) PlaceOrder(ctx context.Context, symbol string, size decimal.Decimal) (exchange.OrderResult, error) {
	f.placed = append(f.placed, size)
	return f.result, f.orderErr
}

func (f *fakeExchange) Executions(ctx context.Context, orderID string) ([]exchange.Execution, error) {
	return f.fills, f.fillsErr
}

// fakeNotifier captures every message.
type fakeNotifier struct {
	severities []notify.Severity
	messages   []string
}

func (f *fakeNotifier) Send(ctx context.Context, severity notify.Severity, message string) {
	f.severities = append(f.severities, severity)
	f.messages = append(f.messages, message)
}
