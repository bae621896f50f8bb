// Package alert implements the balance-threshold and sudden-drop watchdogs.
// Both are best-effort observers: a failed fetch or delivery degrades to a
// log line and the run continues.
package alert

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crypto-dca-bot/internal/config"
	"crypto-dca-bot/internal/notify"
	"crypto-dca-bot/internal/storage"
)

var hundred = decimal.NewFromInt(100)

// BalanceSource provides the live JPY balance.
type BalanceSource interface {
	JPYBalance(ctx context.Context) (decimal.Decimal, error)
}

// TickSource provides recent short-term price samples.
type TickSource interface {
	LatestShortTermPrices(ctx context.Context, symbol string, limit int) []storage.ShortTermPrice
}

// Notifier is the best-effort outbound message fan-out.
type Notifier interface {
	Send(ctx context.Context, severity notify.Severity, message string)
}

// Monitor runs the configured watchdogs.
type Monitor struct {
	cfg      config.AlertsConfig
	balances BalanceSource
	ticks    TickSource
	notifier Notifier
	logger   zerolog.Logger
}

// NewMonitor constructs the alert monitor.
func NewMonitor(cfg config.AlertsConfig, balances BalanceSource, ticks TickSource, notifier Notifier, logger zerolog.Logger) *Monitor {
	return &Monitor{
		cfg:      cfg,
		balances: balances,
		ticks:    ticks,
		notifier: notifier,
		logger:   logger.With().Str("component", "alert").Logger(),
	}
}

// Run executes both watchdogs in sequence.
func (m *Monitor) Run(ctx context.Context) {
	m.CheckBalance(ctx)
	m.CheckSuddenDrops(ctx)
}

// CheckBalance warns across all channels when the JPY balance sits below the
// configured threshold. A failed balance fetch only logs; it never blocks
// anything downstream.
func (m *Monitor) CheckBalance(ctx context.Context) {
	if !m.cfg.BalanceThresholdJPY.IsPositive() {
		return
	}

	balance, err := m.balances.JPYBalance(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("balance fetch failed, skipping balance check")
		return
	}

	if balance.GreaterThanOrEqual(m.cfg.BalanceThresholdJPY) {
		m.logger.Debug().Str("balance", balance.String()).Msg("balance above threshold")
		return
	}

	msg := fmt.Sprintf("JPY balance below threshold: %s JPY (threshold %s JPY)",
		balance.StringFixed(0), m.cfg.BalanceThresholdJPY.StringFixed(0))
	m.logger.Warn().Str("balance", balance.String()).Msg("balance below threshold")
	m.notifier.Send(ctx, notify.SeverityWarn, msg)
}

// CheckSuddenDrops compares the two most recent short-term samples per
// monitored symbol. Fewer than two samples means nothing to compare.
func (m *Monitor) CheckSuddenDrops(ctx context.Context) {
	if !m.cfg.SuddenDrop.Enabled {
		return
	}

	for _, symbol := range m.cfg.SuddenDrop.Symbols {
		ticks := m.ticks.LatestShortTermPrices(ctx, symbol, 2)
		if len(ticks) < 2 {
			m.logger.Debug().Str("symbol", symbol).Msg("not enough short-term samples, skipping")
			continue
		}

		older := ticks[0].Price
		newer := ticks[1].Price
		if !older.IsPositive() {
			continue
		}

		change := newer.Sub(older).Div(older).Mul(hundred)
		if change.GreaterThan(m.cfg.SuddenDrop.ThresholdPct) {
			continue
		}

		msg := fmt.Sprintf("%s sudden drop: %s%% over the last two samples (threshold %s%%)",
			symbol, change.StringFixed(2), m.cfg.SuddenDrop.ThresholdPct.StringFixed(2))
		m.logger.Warn().
			Str("symbol", symbol).
			Str("change_pct", change.StringFixed(2)).
			Msg("sudden drop detected")
		m.notifier.Send(ctx, notify.SeverityWarn, msg)
	}
}
