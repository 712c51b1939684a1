// Package supportresistance detects price rejections off a candidate
// support or resistance level: a pivot low/high followed by a
// directional move away from it, with volume context.
package supportresistance

import (
	"math"

	"trading-systemv1/internal/analyzer/gaussian"
	"trading-systemv1/internal/model"
)

// Config carries the level-clustering threshold parameters from
// trading configuration.
type Config struct {
	SRThresholdPerc float64 // percent of price, e.g. 0.4 means 0.4%
	SRThresholdMax  float64
}

// Threshold returns the clustering/band threshold for a given price:
// price * SRThresholdPerc/100, capped at SRThresholdMax.
func (c Config) Threshold(price float64) float64 {
	th := price * c.SRThresholdPerc / 100.0
	if th > c.SRThresholdMax {
		return c.SRThresholdMax
	}
	return th
}

// CheckSupport looks for a rejection off a support level within the
// given 5-minute aggregated candle sequence, using atr as a move-size
// confirmation gate.
func (c Config) CheckSupport(candles []model.Candle, support, atr float64) *model.PriceRejection {
	n := len(candles)
	if n <= 4 {
		return nil
	}

	last := candles[n-1]
	if !last.IsGreen() || last.Close < support {
		return nil
	}
	lastGreen := n - 1
	for lastGreen > 0 && candles[lastGreen-1].IsGreen() {
		lastGreen--
	}
	if math.Abs(last.Close-candles[lastGreen].Open) < 0.5*atr {
		return nil
	}

	band := c.Threshold(support) / 2.0
	lowerLimit, upperLimit := support-band, support+band

	lows := smooth(extract(candles, func(c model.Candle) float64 { return c.Low }))
	highs := smooth(extract(candles, func(c model.Candle) float64 { return c.High }))

	low := -1
	for i := n - 2; i >= 1; i-- {
		if candles[i].Low < lowerLimit {
			return nil
		}
		if lows[i-1] > lows[i] && lows[i] < lows[i+1] {
			low = i
			break
		}
	}
	if low == -1 {
		return nil
	}
	if !(lowerLimit <= candles[low].Low && candles[low].Low <= upperLimit) {
		return nil
	}

	high := -1
	redBarCount := 0
	for i := low; i >= 1; i-- {
		if lows[i] < lowerLimit {
			return nil
		}
		if candles[i].IsRed() {
			redBarCount++
		}
		if highs[i-1] < highs[i] && highs[i] > highs[i+1] && highs[i] >= upperLimit && redBarCount >= 2 {
			high = i
			break
		}
	}
	if high == -1 {
		return nil
	}

	var redVol, greenVol uint64
	greenVol += last.Volume
	if n >= 2 {
		greenVol += candles[n-2].Volume
	}

	redBarCount = 0
	for i := n - 1; i >= high; i-- {
		if candles[i].IsRed() {
			redVol += candles[i].Volume
			redBarCount++
			if redBarCount >= 2 {
				break
			}
		}
	}

	return &model.PriceRejection{
		Trend:        model.TrendBullish,
		PriceLevel:   support,
		RejectedAt:   candles[low],
		ArrivingFrom: candles[high],
		Now:          last,
		IsImminent:   greenVol > redVol,
	}
}

// CheckResistance is the symmetric form of CheckSupport: negate
// open/close and swap low/high, call CheckSupport with -resistance,
// then negate the result back.
func (c Config) CheckResistance(candles []model.Candle, resistance, atr float64) *model.PriceRejection {
	inverted := make([]model.Candle, len(candles))
	for i, cd := range candles {
		inverted[i] = model.Candle{
			Open: -cd.Open, Close: -cd.Close, High: -cd.Low, Low: -cd.High,
			Volume: cd.Volume, Time: cd.Time, Duration: cd.Duration,
		}
	}

	rej := c.CheckSupport(inverted, -resistance, atr)
	if rej == nil {
		return nil
	}

	return &model.PriceRejection{
		Trend:        model.TrendBearish,
		PriceLevel:   resistance,
		RejectedAt:   negateCandle(rej.RejectedAt),
		ArrivingFrom: negateCandle(rej.ArrivingFrom),
		Now:          negateCandle(rej.Now),
		IsImminent:   rej.IsImminent,
	}
}

func negateCandle(c model.Candle) model.Candle {
	return model.Candle{
		Open: -c.Open, Close: -c.Close, High: -c.Low, Low: -c.High,
		Volume: c.Volume, Time: c.Time, Duration: c.Duration,
	}
}

func extract(candles []model.Candle, f func(model.Candle) float64) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = f(c)
	}
	return out
}

func smooth(data []float64) []float64 {
	ksize := 3
	return gaussian.Smooth(data, 0.5, &ksize)
}
