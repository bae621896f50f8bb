// Package indicator derives technical signals from daily price history.
// Every function is pure: insufficient data yields an absent value or a
// conservative default, never an error.
package indicator

import "github.com/shopspring/decimal"

const (
	// SMAWindow is the length of the simple moving average window.
	SMAWindow = 30
	// RSIPeriod is the number of deltas the RSI averages over.
	RSIPeriod = 14
	// trendWindow is the minimum history for the long-term trend compare.
	trendWindow = 37
	// trendOffset is how far back the comparison SMA window ends.
	trendOffset = 7
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// SMA returns the mean of the given prices. The second return is false when
// the series is empty.
func SMA(prices []decimal.Decimal) (decimal.Decimal, bool) {
	if len(prices) == 0 {
		return decimal.Decimal{}, false
	}
	sum := decimal.Zero
	for _, p := range prices {
		sum = sum.Add(p)
	}
	return sum.Div(decimal.NewFromInt(int64(len(prices)))), true
}

// SMA30 returns the mean of up to the 30 most recent prices, oldest-first
// input assumed. Absent when the series is empty.
func SMA30(prices []decimal.Decimal) (decimal.Decimal, bool) {
	if len(prices) > SMAWindow {
		prices = prices[len(prices)-SMAWindow:]
	}
	return SMA(prices)
}

// RSI14 computes the unsmoothed 14-period relative strength index over the
// most recent 15 prices, quantized to two decimal places. Requires at least
// 15 points; absent otherwise. A series with no losses yields exactly 100.
func RSI14(prices []decimal.Decimal) (decimal.Decimal, bool) {
	if len(prices) < RSIPeriod+1 {
		return decimal.Decimal{}, false
	}
	window := prices[len(prices)-(RSIPeriod+1):]

	gains := decimal.Zero
	losses := decimal.Zero
	for i := 1; i <= RSIPeriod; i++ {
		delta := window[i].Sub(window[i-1])
		if delta.IsPositive() {
			gains = gains.Add(delta)
		} else {
			losses = losses.Sub(delta)
		}
	}

	period := decimal.NewFromInt(RSIPeriod)
	avgGain := gains.Div(period)
	avgLoss := losses.Div(period)

	if avgLoss.IsZero() {
		return hundred, true
	}

	rs := avgGain.Div(avgLoss)
	rsi := hundred.Sub(hundred.Div(one.Add(rs)))
	return rsi.Round(2), true
}

// LongTermDowntrend reports whether the 30-day SMA has fallen relative to the
// 30-day SMA ending 7 days earlier. Requires at least 37 points, oldest first;
// shorter histories report false, which deliberately errs on the side of "not
// in a downtrend".
func LongTermDowntrend(prices []decimal.Decimal) bool {
	if len(prices) < trendWindow {
		return false
	}
	recent := prices[len(prices)-SMAWindow:]
	earlier := prices[len(prices)-trendWindow : len(prices)-trendOffset]

	smaRecent, _ := SMA(recent)
	smaEarlier, _ := SMA(earlier)
	return smaRecent.LessThan(smaEarlier)
}
