package purchase

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crypto-dca-bot/internal/config"
	"crypto-dca-bot/internal/storage"
)

// BaseScheduler authorizes unconditional recurring purchases gated solely by
// elapsed calendar days since the last base purchase.
type BaseScheduler struct {
	settings map[string]config.BaseSymbolConfig
	ledger   Ledger
	executor *Executor
	logger   zerolog.Logger
	now      func() time.Time
}

// NewBaseScheduler constructs the recurring purchase scheduler.
func NewBaseScheduler(settings map[string]config.BaseSymbolConfig, ledger Ledger, executor *Executor, logger zerolog.Logger) *BaseScheduler {
	return &BaseScheduler{
		settings: settings,
		ledger:   ledger,
		executor: executor,
		logger:   logger.With().Str("component", "base_scheduler").Logger(),
		now:      time.Now,
	}
}

// Run evaluates every configured symbol against the supplied current prices.
// A symbol whose interval has not elapsed is skipped silently; a symbol with
// no price is degraded data, not a failure.
func (s *BaseScheduler) Run(ctx context.Context, prices map[string]decimal.Decimal) {
	s.logger.Info().Msg("evaluating base purchases")

	for _, symbol := range sortedSymbols(s.settings) {
		conf := s.settings[symbol]
		if !conf.JPY.IsPositive() {
			continue
		}

		price, ok := prices[symbol]
		if !ok {
			s.logger.Warn().Str("symbol", symbol).Msg("no current price, skipping")
			continue
		}

		if !s.intervalElapsed(ctx, symbol, conf.IntervalDays) {
			s.logger.Info().
				Str("symbol", symbol).
				Int("interval_days", conf.IntervalDays).
				Msg("base purchase interval not elapsed, skipping")
			continue
		}

		s.executor.Execute(ctx, Order{
			Symbol:         symbol,
			Type:           storage.PurchaseBase,
			JPY:            conf.JPY,
			MinOrderAmount: conf.MinOrderAmount,
			CurrentPrice:   price,
		})
	}
}

// intervalElapsed reports whether the calendar-day gap since the last base
// purchase reaches the configured interval. No prior purchase authorizes.
func (s *BaseScheduler) intervalElapsed(ctx context.Context, symbol string, intervalDays int) bool {
	last := s.ledger.LastPurchase(ctx, symbol, storage.PurchaseBase)
	if last == nil {
		return true
	}
	return calendarDaysBetween(last.CreatedAt, s.now()) >= intervalDays
}

func sortedSymbols[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
