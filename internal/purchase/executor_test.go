package purchase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crypto-dca-bot/internal/exchange"
	"crypto-dca-bot/internal/notify"
	"crypto-dca-bot/internal/storage"
)

func newTestExecutor(ex Exchange, ledger Ledger, n Notifier, dryRun bool) *Executor {
	e := NewExecutor(ex, ledger, n, dryRun, zerolog.Nop())
	e.now = func() time.Time {
		return time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	}
	return e
}

func TestExecuteDryRunSkipsExchangeAndLedger(t *testing.T) {
	ex := &fakeExchange{}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{}

	newTestExecutor(ex, ledger, notifier, true).Execute(context.Background(), Order{
		Symbol:         "BTC",
		Type:           storage.PurchaseBase,
		JPY:            dec("10000"),
		MinOrderAmount: dec("0.0001"),
		CurrentPrice:   dec("500000"),
	})

	if len(ex.placed) != 0 {
		t.Fatal("dry run must not contact the exchange")
	}
	if len(ledger.recorded) != 0 {
		t.Fatal("dry run must not persist")
	}
	if len(notifier.messages) != 1 || notifier.severities[0] != notify.SeverityDryRun {
		t.Fatalf("want one dry-run notification, got %v", notifier.messages)
	}
	if notifier.messages[0] != "BTC test order: 10000 JPY = 0.02" {
		t.Fatalf("unexpected message: %q", notifier.messages[0])
	}
}

func TestExecuteZeroQuantitySkips(t *testing.T) {
	ex := &fakeExchange{}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{}

	newTestExecutor(ex, ledger, notifier, false).Execute(context.Background(), Order{
		Symbol:         "BTC",
		JPY:            dec("10"),
		MinOrderAmount: dec("0.0001"),
		CurrentPrice:   dec("500000"),
	})

	if len(ex.placed) != 0 || len(ledger.recorded) != 0 || len(notifier.messages) != 0 {
		t.Fatal("zero quantity must be a silent skip")
	}
}

func TestExecuteSubmissionErrorNotifiesAndStops(t *testing.T) {
	ex := &fakeExchange{orderErr: errors.New("boom")}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{}

	newTestExecutor(ex, ledger, notifier, false).Execute(context.Background(), Order{
		Symbol:         "BTC",
		JPY:            dec("10000"),
		MinOrderAmount: dec("0.0001"),
		CurrentPrice:   dec("500000"),
	})

	if len(ledger.recorded) != 0 {
		t.Fatal("failed order must not be persisted")
	}
	if len(notifier.severities) != 1 || notifier.severities[0] != notify.SeverityError {
		t.Fatalf("want one error notification, got %v", notifier.messages)
	}
}

func TestExecuteRejectedOrderNotPersisted(t *testing.T) {
	ex := &fakeExchange{result: exchange.OrderResult{Accepted: false, Message: "insufficient funds"}}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{}

	newTestExecutor(ex, ledger, notifier, false).Execute(context.Background(), Order{
		Symbol:         "BTC",
		JPY:            dec("10000"),
		MinOrderAmount: dec("0.0001"),
		CurrentPrice:   dec("500000"),
	})

	if len(ledger.recorded) != 0 {
		t.Fatal("rejected order must not be persisted")
	}
	if len(notifier.messages) != 1 || !strings.Contains(notifier.messages[0], "insufficient funds") {
		t.Fatalf("rejection message missing: %v", notifier.messages)
	}
}

func TestExecuteReconcilesFillsToVWAP(t *testing.T) {
	early := time.Date(2026, 8, 29, 9, 0, 1, 0, time.UTC)
	late := time.Date(2026, 8, 29, 9, 0, 3, 0, time.UTC)
	ex := &fakeExchange{
		result: exchange.OrderResult{Accepted: true, OrderID: "42"},
		fills: []exchange.Execution{
			{Price: dec("102"), Size: dec("0.03"), Timestamp: late},
			{Price: dec("100"), Size: dec("0.01"), Timestamp: early},
		},
	}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{}

	newTestExecutor(ex, ledger, notifier, false).Execute(context.Background(), Order{
		Symbol:         "BTC",
		Type:           storage.PurchaseBase,
		JPY:            dec("10000"),
		MinOrderAmount: dec("0.0001"),
		CurrentPrice:   dec("500000"),
	})

	if len(ledger.recorded) != 1 {
		t.Fatalf("want one persisted purchase, got %d", len(ledger.recorded))
	}
	rec := ledger.recorded[0]
	if rec.ExecutedPrice == nil || !rec.ExecutedPrice.Equal(dec("101.50")) {
		t.Fatalf("want VWAP 101.50, got %v", rec.ExecutedPrice)
	}
	if rec.ExecutedTime == nil || !rec.ExecutedTime.Equal(early) {
		t.Fatalf("want earliest fill time %v, got %v", early, rec.ExecutedTime)
	}
	if notifier.severities[0] != notify.SeverityBuy {
		t.Fatalf("want a buy notification, got %v", notifier.severities)
	}
}

func TestExecuteFillLookupFailureStillPersists(t *testing.T) {
	ex := &fakeExchange{
		result:   exchange.OrderResult{Accepted: true, OrderID: "42"},
		fillsErr: errors.New("timeout"),
	}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{}

	newTestExecutor(ex, ledger, notifier, false).Execute(context.Background(), Order{
		Symbol:         "BTC",
		Type:           storage.PurchaseBase,
		JPY:            dec("10000"),
		MinOrderAmount: dec("0.0001"),
		CurrentPrice:   dec("500000"),
	})

	if len(ledger.recorded) != 1 {
		t.Fatalf("fill lookup failure must not block persistence, got %d rows", len(ledger.recorded))
	}
	rec := ledger.recorded[0]
	if rec.ExecutedPrice != nil || rec.ExecutedTime != nil {
		t.Fatal("failed reconciliation must leave fill details absent")
	}
}

func TestExecuteAcceptedWithoutOrderIDSkipsReconciliation(t *testing.T) {
	ex := &fakeExchange{result: exchange.OrderResult{Accepted: true}}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{}

	newTestExecutor(ex, ledger, notifier, false).Execute(context.Background(), Order{
		Symbol:         "ETH",
		Type:           storage.PurchaseBase,
		JPY:            dec("5000"),
		MinOrderAmount: dec("0.001"),
		CurrentPrice:   dec("250000"),
	})

	if len(ledger.recorded) != 1 {
		t.Fatalf("want one persisted purchase, got %d", len(ledger.recorded))
	}
	if ledger.recorded[0].ExecutedPrice != nil {
		t.Fatal("no order id means no fill details")
	}
}

func TestExecuteAddPurchaseNotificationCarriesReasons(t *testing.T) {
	ex := &fakeExchange{result: exchange.OrderResult{Accepted: true}}
	ledger := &fakeLedger{}
	notifier := &fakeNotifier{}

	newTestExecutor(ex, ledger, notifier, false).Execute(context.Background(), Order{
		Symbol:         "BTC",
		Type:           storage.PurchaseAdd,
		JPY:            dec("10000"),
		MinOrderAmount: dec("0.0001"),
		CurrentPrice:   dec("500000"),
		Reasons:        []string{"score=2/3 (min 2)", "RSI14 25.00 <= 30.00 (+1)"},
	})

	if len(notifier.messages) != 1 {
		t.Fatalf("want one notification, got %d", len(notifier.messages))
	}
	msg := notifier.messages[0]
	if !strings.Contains(msg, "score=2/3 (min 2)") || !strings.Contains(msg, "RSI14 25.00") {
		t.Fatalf("reason trail missing from notification: %q", msg)
	}
}
