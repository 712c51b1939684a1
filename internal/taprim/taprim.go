// Package taprim provides a small set of stateless technical-indicator
// primitives (EMA, RSI, ATR) over plain float64 slices. The indicator
// math itself is treated as a black-box numeric primitive — callers
// care about the warm-up/NaN padding contract, not the formulas.
package taprim

import "math"

// EMA computes the exponential moving average of length-period over
// close, padded at the front with NaN so the result is the same length
// as close.
func EMA(close []float64, period int) []float64 {
	if period <= 0 || len(close) == 0 {
		return fillNaN(nil, len(close))
	}
	if len(close) < period {
		return fillNaN(nil, len(close))
	}

	alpha := 2.0 / float64(period+1)
	out := make([]float64, 0, len(close)-period+1)

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += close[i]
	}
	prev := sum / float64(period)
	out = append(out, prev)
	for i := period; i < len(close); i++ {
		prev = alpha*close[i] + (1-alpha)*prev
		out = append(out, prev)
	}
	return fillNaN(out, len(close))
}

// RSI computes the 14-period relative strength index over close,
// padded at the front with NaN to match close's length.
func RSI(close []float64) []float64 {
	const period = 14
	if len(close) <= period {
		return fillNaN(nil, len(close))
	}

	gains := make([]float64, 0, len(close)-1)
	losses := make([]float64, 0, len(close)-1)
	for i := 1; i < len(close); i++ {
		diff := close[i] - close[i-1]
		if diff > 0 {
			gains = append(gains, diff)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -diff)
		}
	}

	avgGain, avgLoss := 0.0, 0.0
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= period
	avgLoss /= period

	out := make([]float64, 0, len(gains)-period+1)
	out = append(out, rsiFromAvg(avgGain, avgLoss))
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*(period-1) + gains[i]) / period
		avgLoss = (avgLoss*(period-1) + losses[i]) / period
		out = append(out, rsiFromAvg(avgGain, avgLoss))
	}
	return fillNaN(out, len(close))
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ATR computes the average true range over period using Wilder's
// smoothing, padded at the front with NaN to match high's length.
func ATR(high, low, close []float64, period int) []float64 {
	n := len(high)
	if n == 0 || n != len(low) || n != len(close) || n <= period {
		return fillNaN(nil, n)
	}

	tr := make([]float64, n)
	tr[0] = high[0] - low[0]
	for i := 1; i < n; i++ {
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	atr := sum / float64(period)

	out := make([]float64, 0, n-period)
	out = append(out, atr)
	for i := period + 1; i < n; i++ {
		atr = (atr*(float64(period)-1) + tr[i]) / float64(period)
		out = append(out, atr)
	}
	return fillNaN(out, n)
}

// Stochastic computes the %K stochastic oscillator over period,
// padded at the front with NaN to match close's length.
func Stochastic(high, low, close []float64, period int) []float64 {
	n := len(close)
	if n == 0 || n != len(high) || n != len(low) || n < period {
		return fillNaN(nil, n)
	}
	out := make([]float64, 0, n-period+1)
	for i := period - 1; i < n; i++ {
		hh, ll := high[i-period+1], low[i-period+1]
		for j := i - period + 1; j <= i; j++ {
			if high[j] > hh {
				hh = high[j]
			}
			if low[j] < ll {
				ll = low[j]
			}
		}
		if hh == ll {
			out = append(out, 50)
			continue
		}
		out = append(out, 100*(close[i]-ll)/(hh-ll))
	}
	return fillNaN(out, n)
}

// fillNaN prepends NaN to values until it has length expectedLen,
// truncating from the front if values is already longer (mirrors the
// warm-up padding used throughout the analyzer).
func fillNaN(values []float64, expectedLen int) []float64 {
	if len(values) < expectedLen {
		gap := expectedLen - len(values)
		out := make([]float64, 0, expectedLen)
		for i := 0; i < gap; i++ {
			out = append(out, math.NaN())
		}
		out = append(out, values...)
		return out
	}
	if len(values) > expectedLen {
		return values[len(values)-expectedLen:]
	}
	return values
}
