package purchase

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crypto-dca-bot/internal/config"
	"crypto-dca-bot/internal/indicator"
	"crypto-dca-bot/internal/scoring"
	"crypto-dca-bot/internal/storage"
)

// trendHistoryDays covers the longest indicator window (30-day SMA compared
// against the window ending 7 days earlier).
const trendHistoryDays = 37

// AddEvaluator authorizes conditional purchases by scoring momentum,
// mean-reversion, and oversold signals against per-symbol thresholds.
type AddEvaluator struct {
	enabled  bool
	settings map[string]config.AddSymbolConfig
	ledger   Ledger
	executor *Executor
	logger   zerolog.Logger
	now      func() time.Time
}

// NewAddEvaluator constructs the conditional purchase evaluator.
func NewAddEvaluator(cfg config.AddPurchaseConfig, ledger Ledger, executor *Executor, logger zerolog.Logger) *AddEvaluator {
	return &AddEvaluator{
		enabled:  cfg.Enabled,
		settings: cfg.Settings,
		ledger:   ledger,
		executor: executor,
		logger:   logger.With().Str("component", "add_evaluator").Logger(),
		now:      time.Now,
	}
}

// Run evaluates every configured symbol. No-buy outcomes are logged with
// their reason trail and nothing else happens.
func (e *AddEvaluator) Run(ctx context.Context, prices map[string]decimal.Decimal) {
	if !e.enabled {
		e.logger.Info().Msg("add purchases disabled by configuration")
		return
	}

	e.logger.Info().Msg("evaluating add purchases")

	for _, symbol := range sortedSymbols(e.settings) {
		conf := e.settings[symbol]

		price, ok := prices[symbol]
		if !ok {
			e.logger.Info().Str("symbol", symbol).Msg("no current price, skipping")
			continue
		}
		if !conf.JPY.IsPositive() {
			e.logger.Info().Str("symbol", symbol).Msg("jpy budget not positive, skipping")
			continue
		}

		result := e.evaluate(ctx, symbol, conf, price)
		if !result.Buy {
			e.logger.Info().
				Str("symbol", symbol).
				Int("score", result.Score).
				Str("reasons", strings.Join(result.Reasons, ", ")).
				Msg("add purchase conditions not met")
			continue
		}

		e.executor.Execute(ctx, Order{
			Symbol:         symbol,
			Type:           storage.PurchaseAdd,
			JPY:            conf.JPY,
			MinOrderAmount: conf.MinOrderAmount,
			CurrentPrice:   price,
			Reasons:        result.Reasons,
		})
	}
}

// evaluate assembles indicators plus the last purchase price strictly before
// today and scores them. Absent inputs stay absent; they never abort the
// evaluation.
func (e *AddEvaluator) evaluate(ctx context.Context, symbol string, conf config.AddSymbolConfig, price decimal.Decimal) scoring.Result {
	inputs := scoring.Inputs{CurrentPrice: price}

	today := startOfDay(e.now())
	if recs := e.ledger.PurchaseHistory(ctx, symbol, 1, &today, storage.PurchaseAny); len(recs) > 0 {
		last := recs[0].QuotedPrice
		inputs.LastPurchasePrice = &last
	}

	history := e.ledger.DailyHistory(ctx, symbol, trendHistoryDays)
	series := make([]decimal.Decimal, len(history))
	for i, row := range history {
		series[i] = row.Price
	}

	if sma, ok := indicator.SMA30(series); ok {
		inputs.SMA30 = &sma
	}
	if rsi, ok := indicator.RSI14(series); ok {
		inputs.RSI14 = &rsi
	}
	inputs.LongTermDowntrend = indicator.LongTermDowntrend(series)

	return scoring.Evaluate(inputs, scoring.Thresholds{
		PriceDropPercent: conf.PriceDropPercent,
		SMADeviation:     conf.SMADeviation,
		RSIThreshold:     conf.RSIThreshold,
		MinScore:         conf.MinScore,
	})
}
