// Package purchase holds the decision and execution engine: the recurring
// base-purchase scheduler, the signal-gated add-purchase evaluator, and the
// order executor that sizes, submits, and reconciles market buys.
package purchase

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"crypto-dca-bot/internal/exchange"
	"crypto-dca-bot/internal/notify"
	"crypto-dca-bot/internal/storage"
)

// Ledger is the slice of the price history store the purchase flows need.
type Ledger interface {
	DailyHistory(ctx context.Context, symbol string, n int) []storage.DailyPrice
	RecordPurchase(ctx context.Context, rec storage.PurchaseRecord)
	LastPurchase(ctx context.Context, symbol string, typ storage.PurchaseType) *storage.PurchaseRecord
	PurchaseHistory(ctx context.Context, symbol string, limit int, before *time.Time, typ storage.PurchaseType) []storage.PurchaseRecord
}

// Exchange is the slice of the exchange client the executor needs.
type Exchange interface {
	PlaceOrder(ctx context.Context, symbol string, size decimal.Decimal) (exchange.OrderResult, error)
	Executions(ctx context.Context, orderID string) ([]exchange.Execution, error)
}

// Notifier is the best-effort outbound message fan-out.
type Notifier interface {
	Send(ctx context.Context, severity notify.Severity, message string)
}

// Quantity converts a JPY budget into an order size: the raw quotient is
// truncated down to a multiple of the minimum order unit, so the order can
// never exceed the budget. Zero when price or unit is not positive.
func Quantity(jpy, price, minUnit decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() || !minUnit.IsPositive() {
		return decimal.Zero
	}
	raw := jpy.Div(price)
	return raw.Div(minUnit).Floor().Mul(minUnit)
}

// calendarDaysBetween returns the whole-calendar-day difference between two
// instants, ignoring time of day.
func calendarDaysBetween(earlier, later time.Time) int {
	a := startOfDay(earlier)
	b := startOfDay(later)
	return int(math.Round(b.Sub(a).Hours() / 24))
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
