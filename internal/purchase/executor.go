package purchase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crypto-dca-bot/internal/notify"
	"crypto-dca-bot/internal/storage"
)

// Order is one authorized purchase handed to the executor.
type Order struct {
	Symbol         string
	Type           storage.PurchaseType
	JPY            decimal.Decimal
	MinOrderAmount decimal.Decimal
	CurrentPrice   decimal.Decimal
	Reasons        []string
}

// Executor sizes market buys, submits them, reconciles fills best-effort,
// and appends the ledger row. A failed order is isolated to its symbol.
type Executor struct {
	exchange Exchange
	ledger   Ledger
	notifier Notifier
	logger   zerolog.Logger
	dryRun   bool
	now      func() time.Time
}

// NewExecutor constructs an order executor. In dry-run mode it reports the
// would-be quantity without contacting the exchange or persisting anything.
func NewExecutor(ex Exchange, ledger Ledger, notifier Notifier, dryRun bool, logger zerolog.Logger) *Executor {
	return &Executor{
		exchange: ex,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger.With().Str("component", "executor").Logger(),
		dryRun:   dryRun,
		now:      time.Now,
	}
}

// Execute runs one purchase end to end. It never returns an error: failures
// are logged and notified, and the caller proceeds to the next symbol.
func (e *Executor) Execute(ctx context.Context, order Order) {
	quantity := Quantity(order.JPY, order.CurrentPrice, order.MinOrderAmount)
	if !quantity.IsPositive() {
		e.logger.Warn().
			Str("symbol", order.Symbol).
			Str("jpy", order.JPY.String()).
			Str("price", order.CurrentPrice.String()).
			Msg("budget truncates to zero quantity, skipping")
		return
	}

	if e.dryRun {
		msg := fmt.Sprintf("%s test order: %s JPY = %s", order.Symbol, order.JPY.String(), quantity.String())
		e.logger.Info().Str("symbol", order.Symbol).Str("quantity", quantity.String()).Msg("dry-run order")
		e.notifier.Send(ctx, notify.SeverityDryRun, msg)
		return
	}

	result, err := e.exchange.PlaceOrder(ctx, order.Symbol, quantity)
	if err != nil {
		e.logger.Error().Err(err).Str("symbol", order.Symbol).Msg("order submission failed")
		e.notifier.Send(ctx, notify.SeverityError,
			fmt.Sprintf("%s order failed: %v", order.Symbol, err))
		return
	}
	if !result.Accepted {
		e.logger.Error().
			Str("symbol", order.Symbol).
			Str("message", result.Message).
			Msg("order rejected by exchange")
		e.notifier.Send(ctx, notify.SeverityError,
			fmt.Sprintf("%s order rejected: %s", order.Symbol, result.Message))
		return
	}

	rec := storage.PurchaseRecord{
		Symbol:       order.Symbol,
		Type:         order.Type,
		CreatedAt:    e.now(),
		JPYAmount:    order.JPY,
		CryptoAmount: quantity,
		QuotedPrice:  order.CurrentPrice,
	}

	if result.OrderID != "" {
		executedPrice, executedTime := e.reconcileFills(ctx, order.Symbol, result.OrderID)
		rec.ExecutedPrice = executedPrice
		rec.ExecutedTime = executedTime
	}

	e.ledger.RecordPurchase(ctx, rec)

	e.logger.Info().
		Str("symbol", order.Symbol).
		Str("type", string(order.Type)).
		Str("jpy", order.JPY.String()).
		Str("quantity", quantity.String()).
		Msg("order completed")

	if order.Type == storage.PurchaseAdd && len(order.Reasons) > 0 {
		e.notifier.Send(ctx, notify.SeverityBuy,
			fmt.Sprintf("%s add purchase executed: %s", order.Symbol, strings.Join(order.Reasons, ", ")))
	} else {
		e.notifier.Send(ctx, notify.SeverityBuy,
			fmt.Sprintf("%s order success: %s JPY = %s", order.Symbol, order.JPY.String(), quantity.String()))
	}
}

// reconcileFills fetches executions for the order and folds them into a
// volume-weighted average price plus the earliest fill time. Best effort:
// any failure leaves both absent.
func (e *Executor) reconcileFills(ctx context.Context, symbol, orderID string) (*decimal.Decimal, *time.Time) {
	fills, err := e.exchange.Executions(ctx, orderID)
	if err != nil {
		e.logger.Warn().Err(err).
			Str("symbol", symbol).
			Str("order_id", orderID).
			Msg("execution lookup failed, recording without fill details")
		return nil, nil
	}
	if len(fills) == 0 {
		return nil, nil
	}

	notional := decimal.Zero
	volume := decimal.Zero
	earliest := fills[0].Timestamp
	for _, fill := range fills {
		notional = notional.Add(fill.Price.Mul(fill.Size))
		volume = volume.Add(fill.Size)
		if fill.Timestamp.Before(earliest) {
			earliest = fill.Timestamp
		}
	}
	if !volume.IsPositive() {
		return nil, nil
	}

	vwap := notional.Div(volume).Round(2)
	return &vwap, &earliest
}
