package trend

import (
	"testing"
	"time"

	"trading-systemv1/internal/model"
)

// buildLog constructs enough 1-minute candles to produce non-NaN 4h
// EMA(100) and 1h EMA(200) tails, with closes nudged to steer the
// resulting trend classification.
func buildLog(n int, closeAt func(i int) float64) []model.Candle {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, n)
	for i := 0; i < n; i++ {
		c := closeAt(i)
		candles[i] = model.Candle{
			Open: c, High: c + 0.5, Low: c - 0.5, Close: c,
			Volume: 1, Time: base.Add(time.Duration(i) * time.Minute), Duration: time.Minute,
		}
	}
	return candles
}

func TestCheckReturnsNoneOnShortLog(t *testing.T) {
	candles := buildLog(10, func(i int) float64 { return 100 })
	if got := Check(candles); got != model.TrendNone {
		t.Fatalf("expected TrendNone on short log, got %v", got)
	}
}

func TestCheckBullishOnStrongUptrend(t *testing.T) {
	// Enough history to fill 4h EMA(100) and 1h EMA(200) tail, strictly
	// increasing closes throughout.
	candles := buildLog(30000, func(i int) float64 { return 100 + float64(i)*0.01 })
	if got := Check(candles); got != model.TrendBullish {
		t.Fatalf("expected TrendBullish on monotonic uptrend, got %v", got)
	}
}

func TestCheckBearishOnStrongDowntrend(t *testing.T) {
	candles := buildLog(30000, func(i int) float64 { return 1000 - float64(i)*0.01 })
	if got := Check(candles); got != model.TrendBearish {
		t.Fatalf("expected TrendBearish on monotonic downtrend, got %v", got)
	}
}

func TestCheckNoneOnFlatSeries(t *testing.T) {
	candles := buildLog(30000, func(i int) float64 { return 100 })
	if got := Check(candles); got != model.TrendNone {
		t.Fatalf("expected TrendNone on flat series, got %v", got)
	}
}
