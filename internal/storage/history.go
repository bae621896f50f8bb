package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository is the storage surface the history facade degrades over.
type Repository interface {
	UpsertDailyPrice(ctx context.Context, price DailyPrice) error
	ListDailyHistory(ctx context.Context, symbol string, limit int) ([]DailyPrice, error)
	UpsertShortTermPrice(ctx context.Context, tick ShortTermPrice) error
	ListLatestShortTermPrices(ctx context.Context, symbol string, limit int) ([]ShortTermPrice, error)
	InsertPurchase(ctx context.Context, rec PurchaseRecord) (int64, error)
	LastPurchase(ctx context.Context, symbol string, typ PurchaseType) (*PurchaseRecord, error)
	ListPurchases(ctx context.Context, symbol string, limit int, before *time.Time, typ PurchaseType) ([]PurchaseRecord, error)
}

var _ Repository = (*Store)(nil)

// History is the sole data-access point for the decision engine. Storage
// failures are classified, logged, and absorbed: callers receive empty or
// absent values and must treat them as insufficient data, never as errors.
type History struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

// NewHistory wraps a repository with degrade-on-failure semantics.
func NewHistory(repo Repository, logger zerolog.Logger) *History {
	return &History{
		repo:   repo,
		logger: logger.With().Str("component", "history").Logger(),
		now:    time.Now,
	}
}

func (h *History) logFailure(err error, op, symbol string) {
	h.logger.Error().
		Err(err).
		Str("category", string(Classify(err))).
		Str("op", op).
		Str("symbol", symbol).
		Msg("storage operation failed")
}

// RecordDailyPrice upserts one closing price. A zero date means today.
func (h *History) RecordDailyPrice(ctx context.Context, symbol string, price decimal.Decimal, date time.Time) {
	if date.IsZero() {
		date = h.now()
	}
	row := DailyPrice{
		Symbol: symbol,
		Date:   truncateToDate(date),
		Price:  price,
	}
	if err := h.repo.UpsertDailyPrice(ctx, row); err != nil {
		h.logFailure(err, "record_daily_price", symbol)
	}
}

// DailyHistory returns up to n most recent daily prices, oldest first.
// Empty on failure.
func (h *History) DailyHistory(ctx context.Context, symbol string, n int) []DailyPrice {
	prices, err := h.repo.ListDailyHistory(ctx, symbol, n)
	if err != nil {
		h.logFailure(err, "daily_history", symbol)
		return nil
	}
	return prices
}

// RecordShortTermPrice upserts one tick. A zero timestamp means now.
func (h *History) RecordShortTermPrice(ctx context.Context, symbol string, price decimal.Decimal, ts time.Time) {
	if ts.IsZero() {
		ts = h.now()
	}
	tick := ShortTermPrice{
		Symbol:    symbol,
		Timestamp: ts,
		Price:     price,
	}
	if err := h.repo.UpsertShortTermPrice(ctx, tick); err != nil {
		h.logFailure(err, "record_short_term_price", symbol)
	}
}

// LatestShortTermPrices returns up to limit most recent ticks, oldest first.
// Empty on failure.
func (h *History) LatestShortTermPrices(ctx context.Context, symbol string, limit int) []ShortTermPrice {
	ticks, err := h.repo.ListLatestShortTermPrices(ctx, symbol, limit)
	if err != nil {
		h.logFailure(err, "latest_short_term_prices", symbol)
		return nil
	}
	return ticks
}

// RecordPurchase appends one ledger row.
func (h *History) RecordPurchase(ctx context.Context, rec PurchaseRecord) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = h.now()
	}
	if _, err := h.repo.InsertPurchase(ctx, rec); err != nil {
		h.logFailure(err, "record_purchase", rec.Symbol)
	}
}

// LastPurchase returns the most recent ledger row, optionally filtered by
// type. Nil when none exists or on failure.
func (h *History) LastPurchase(ctx context.Context, symbol string, typ PurchaseType) *PurchaseRecord {
	rec, err := h.repo.LastPurchase(ctx, symbol, typ)
	if err != nil {
		h.logFailure(err, "last_purchase", symbol)
		return nil
	}
	return rec
}

// PurchaseHistory returns ledger rows newest first, optionally restricted to
// rows strictly before a timestamp and/or to one type. Empty on failure.
func (h *History) PurchaseHistory(ctx context.Context, symbol string, limit int, before *time.Time, typ PurchaseType) []PurchaseRecord {
	records, err := h.repo.ListPurchases(ctx, symbol, limit, before, typ)
	if err != nil {
		h.logFailure(err, "purchase_history", symbol)
		return nil
	}
	return records
}

func truncateToDate(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
