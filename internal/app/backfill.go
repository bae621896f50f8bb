package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"crypto-dca-bot/internal/exchange"
)

// Backfill 拉取日线历史并补齐缺失的价格记录。
// One klines request covers a year; requests are paced with a randomized
// delay to respect the public API's rate limits.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	history, closeStore, err := a.openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	symbols := a.purchaseSymbols()
	if opts.Symbol != "" {
		if _, ok := a.Config.BasePurchase.Settings[opts.Symbol]; !ok {
			if _, ok := a.Config.AddPurchase.Settings[opts.Symbol]; !ok {
				return fmt.Errorf("symbol %s is not configured", opts.Symbol)
			}
		}
		symbols = []string{opts.Symbol}
	}

	required := a.Config.Backfill.RequiredDays
	ex := a.newExchange()
	firstRequest := true

	for _, symbol := range symbols {
		existing := history.DailyHistory(ctx, symbol, required)
		if len(existing) >= required && !opts.Force {
			a.Logger.Info().
				Str("symbol", symbol).
				Int("rows", len(existing)).
				Msg("history already sufficient, skipping")
			continue
		}

		candles, err := a.fetchRequiredCandles(ctx, ex, symbol, required, &firstRequest)
		if err != nil {
			a.Logger.Error().Err(err).Str("symbol", symbol).Msg("backfill fetch failed")
			continue
		}

		for _, candle := range candles {
			history.RecordDailyPrice(ctx, symbol, candle.Close, candle.Time)
		}
		a.Logger.Info().
			Str("symbol", symbol).
			Int("recorded", len(candles)).
			Msg("backfill recorded")
	}

	return nil
}

// fetchRequiredCandles walks backwards year by year until enough daily bars
// are collected, sleeping a randomized delay before every request after the
// first.
func (a *App) fetchRequiredCandles(ctx context.Context, ex *exchange.Client, symbol string, required int, firstRequest *bool) ([]exchange.Candle, error) {
	var collected []exchange.Candle
	year := time.Now().UTC().Year()

	// Two calendar years always cover the longest indicator window.
	for attempt := 0; attempt < 2 && len(collected) < required; attempt++ {
		if !*firstRequest {
			if err := a.rateLimitDelay(ctx); err != nil {
				return nil, err
			}
		}
		*firstRequest = false

		candles, err := ex.DailyCandles(ctx, symbol, year-attempt)
		if err != nil {
			return nil, err
		}
		collected = append(collected, candles...)
	}

	if len(collected) == 0 {
		return nil, errors.New("no candles returned")
	}

	sort.Slice(collected, func(i, j int) bool {
		return collected[i].Time.Before(collected[j].Time)
	})
	if len(collected) > required {
		collected = collected[len(collected)-required:]
	}
	return collected, nil
}

func (a *App) rateLimitDelay(ctx context.Context) error {
	min := a.Config.Backfill.MinDelay
	max := a.Config.Backfill.MaxDelay
	delay := min
	if max > min {
		delay = min + time.Duration(rand.Int63n(int64(max-min)))
	}

	a.Logger.Debug().Dur("delay", delay).Msg("pacing backfill request")
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
