// Package scoring combines indicators into a buy/no-buy decision with an
// auditable reason trail. Identical inputs always produce identical output,
// including reason text and ordering.
package scoring

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// maxScore is the number of additive signals.
const maxScore = 3

var hundred = decimal.NewFromInt(100)

// Thresholds hold the per-symbol gates for each signal.
type Thresholds struct {
	PriceDropPercent decimal.Decimal
	SMADeviation     decimal.Decimal
	RSIThreshold     decimal.Decimal
	MinScore         int
}

// Inputs carry everything a single evaluation needs. Nil pointers mark
// absent data; an absent signal contributes zero and is recorded as
// unavailable, it never blocks the other signals.
type Inputs struct {
	CurrentPrice      decimal.Decimal
	LastPurchasePrice *decimal.Decimal
	SMA30             *decimal.Decimal
	RSI14             *decimal.Decimal
	LongTermDowntrend bool
}

// Result is the transient outcome of one evaluation.
type Result struct {
	Score   int
	Buy     bool
	Reasons []string
}

// Evaluate scores the three signals, applies the downtrend penalty, and
// decides against MinScore. Reasons come back in fixed order: summary,
// momentum, mean-reversion, oversold, trend.
func Evaluate(in Inputs, th Thresholds) Result {
	score := 0
	reasons := make([]string, 0, maxScore+2)

	if in.LastPurchasePrice != nil && !in.LastPurchasePrice.IsZero() {
		change := in.CurrentPrice.Sub(*in.LastPurchasePrice).
			Div(*in.LastPurchasePrice).Mul(hundred)
		if change.LessThanOrEqual(th.PriceDropPercent) {
			score++
			reasons = append(reasons, fmt.Sprintf("change vs last buy %s%% (+1)", change.StringFixed(2)))
		} else {
			reasons = append(reasons, fmt.Sprintf("change vs last buy %s%% (+0)", change.StringFixed(2)))
		}
	} else {
		reasons = append(reasons, "change vs last buy unavailable (+0)")
	}

	if in.SMA30 != nil && !in.SMA30.IsZero() {
		deviation := in.CurrentPrice.Sub(*in.SMA30).Div(*in.SMA30).Mul(hundred)
		if deviation.LessThanOrEqual(th.SMADeviation) {
			score++
			reasons = append(reasons, fmt.Sprintf("SMA30 deviation %s%% (+1)", deviation.StringFixed(2)))
		} else {
			reasons = append(reasons, fmt.Sprintf("SMA30 deviation %s%% (+0)", deviation.StringFixed(2)))
		}
	} else {
		reasons = append(reasons, "SMA30 unavailable (+0)")
	}

	if in.RSI14 != nil {
		if in.RSI14.LessThanOrEqual(th.RSIThreshold) {
			score++
			reasons = append(reasons, fmt.Sprintf("RSI14 %s <= %s (+1)", in.RSI14.StringFixed(2), th.RSIThreshold.StringFixed(2)))
		} else {
			reasons = append(reasons, fmt.Sprintf("RSI14 %s > %s (+0)", in.RSI14.StringFixed(2), th.RSIThreshold.StringFixed(2)))
		}
	} else {
		reasons = append(reasons, "RSI14 unavailable (+0)")
	}

	if in.LongTermDowntrend {
		score--
		reasons = append(reasons, "long-term downtrend (-1)")
	} else {
		reasons = append(reasons, "long-term trend ok (+0)")
	}

	summary := fmt.Sprintf("score=%d/%d (min %d)", score, maxScore, th.MinScore)
	reasons = append([]string{summary}, reasons...)

	return Result{
		Score:   score,
		Buy:     score >= th.MinScore,
		Reasons: reasons,
	}
}
