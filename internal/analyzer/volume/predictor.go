package volume

import (
	"fmt"
	"math"
	"sort"
	"time"

	"trading-systemv1/internal/model"
)

// numFeatures is the width of the hand-engineered feature vector fed
// to Predictor: recent daily volume stats (mean, stddev, min, max,
// median), partial-day volume and session progress, sin/cos of hour
// and minute, day-of-week, intraday volatility and momentum, volume
// momentum and density, a regime indicator, a candle-gap indicator,
// and seconds-within-minute.
const numFeatures = 19

// minCandlesToTrain mirrors the source predictor's data-sufficiency
// gate: below this there isn't enough history to split into training
// days and a meaningful partial-day observation.
const minCandlesToTrain = 100

// Predictor is a single-layer feed-forward regressor over
// numFeatures standardized inputs, trained by batch gradient descent
// on one historical-day-total example per prior trading day.
type Predictor struct {
	weights [numFeatures]float64
	bias    float64

	featureMeans [numFeatures]float64
	featureStds  [numFeatures]float64
	targetMean   float64
	targetStd    float64

	trained bool
}

// NewPredictor returns an untrained predictor.
func NewPredictor() *Predictor { return &Predictor{} }

// Train fits the regressor on one example per historical trading day:
// features computed as of that day's last candle (full-day progress),
// target the day's realized total volume. One-shot: a full batch
// gradient-descent run over epochs, no incremental updates afterward.
func (p *Predictor) Train(historicalDays [][]model.Candle, epochs int) error {
	var X [][numFeatures]float64
	var y []float64

	for i, day := range historicalDays {
		if len(day) == 0 {
			continue
		}
		prior := historicalDays[:i]
		feats := features(prior, day, day[len(day)-1].Time)
		X = append(X, feats)
		y = append(y, dayTotal(day))
	}
	if len(X) < 2 {
		return fmt.Errorf("volume: need at least 2 historical training days, have %d", len(X))
	}

	p.featureMeans, p.featureStds = standardizeParams(X)
	p.targetMean, p.targetStd = meanStd(y)
	if p.targetStd == 0 {
		p.targetStd = 1
	}

	Xs := make([][numFeatures]float64, len(X))
	ys := make([]float64, len(y))
	for i := range X {
		for j := 0; j < numFeatures; j++ {
			Xs[i][j] = (X[i][j] - p.featureMeans[j]) / p.featureStds[j]
		}
		ys[i] = (y[i] - p.targetMean) / p.targetStd
	}

	const lr = 0.05
	n := float64(len(Xs))
	var w [numFeatures]float64
	var b float64
	for e := 0; e < epochs; e++ {
		var gw [numFeatures]float64
		var gb float64
		for i := range Xs {
			pred := b
			for j := 0; j < numFeatures; j++ {
				pred += w[j] * Xs[i][j]
			}
			errv := pred - ys[i]
			for j := 0; j < numFeatures; j++ {
				gw[j] += errv * Xs[i][j]
			}
			gb += errv
		}
		for j := 0; j < numFeatures; j++ {
			w[j] -= lr * gw[j] / n
		}
		b -= lr * gb / n
	}

	p.weights, p.bias = w, b
	p.trained = true
	return nil
}

// Predict returns the expected total volume for the trading day
// containing today, given historicalDays of completed prior days and
// the partial candles observed so far today. Never negative.
func (p *Predictor) Predict(historicalDays [][]model.Candle, today []model.Candle, now time.Time) (float64, error) {
	if !p.trained {
		return 0, fmt.Errorf("volume: predictor not trained")
	}
	feats := features(historicalDays, today, now)
	v := p.bias
	for j := 0; j < numFeatures; j++ {
		std := p.featureStds[j]
		if std == 0 {
			std = 1
		}
		v += p.weights[j] * (feats[j] - p.featureMeans[j]) / std
	}
	v = v*p.targetStd + p.targetMean
	if v < 0 {
		v = 0
	}
	return v, nil
}

func dayTotal(day []model.Candle) float64 {
	var total uint64
	for _, c := range day {
		total += c.Volume
	}
	return float64(total)
}

// features builds the numFeatures-wide hand-engineered vector for the
// partial day "today" as observed at wall-clock time now, given the
// fully completed historicalDays that preceded it.
func features(historicalDays [][]model.Candle, today []model.Candle, now time.Time) [numFeatures]float64 {
	var f [numFeatures]float64

	dailyTotals := make([]float64, 0, len(historicalDays))
	for _, day := range historicalDays {
		if len(day) > 0 {
			dailyTotals = append(dailyTotals, dayTotal(day))
		}
	}
	mean, std := meanStd(dailyTotals)
	f[0] = mean
	f[1] = std
	f[2] = minOf(dailyTotals)
	f[3] = maxOf(dailyTotals)
	f[4] = medianOf(dailyTotals)

	var todayVol float64
	for _, c := range today {
		todayVol += float64(c.Volume)
	}
	f[5] = todayVol

	sessionStart, sessionEnd := sessionBounds(today)
	f[6] = progress(sessionStart, sessionEnd, now)

	f[7] = math.Sin(2 * math.Pi * float64(now.Hour()) / 24)
	f[8] = math.Cos(2 * math.Pi * float64(now.Hour()) / 24)
	f[9] = math.Sin(2 * math.Pi * float64(now.Minute()) / 60)
	f[10] = math.Cos(2 * math.Pi * float64(now.Minute()) / 60)

	f[11] = float64(now.Weekday())

	closes := make([]float64, len(today))
	for i, c := range today {
		closes[i] = c.Close
	}
	f[12] = stddevOf(returns(closes))
	if len(closes) > 1 && closes[0] != 0 {
		f[13] = (closes[len(closes)-1] - closes[0]) / closes[0]
	}

	f[14] = volumeMomentum(today)
	f[15] = volumeDensity(today, now)

	if mean > 0 {
		f[16] = todayVol / mean
	}

	f[17] = candleGap(today)
	f[18] = float64(now.Second()) / 60

	return f
}

func sessionBounds(today []model.Candle) (time.Time, time.Time) {
	if len(today) == 0 {
		return time.Time{}, time.Time{}
	}
	first := today[0].Time
	last := today[len(today)-1]
	return first, last.Time.Add(last.Duration)
}

func progress(start, end, now time.Time) float64 {
	total := end.Sub(start).Seconds()
	if total <= 0 {
		return 0
	}
	p := now.Sub(start).Seconds() / total
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out = append(out, (closes[i]-closes[i-1])/closes[i-1])
	}
	return out
}

func volumeMomentum(candles []model.Candle) float64 {
	n := len(candles)
	if n < 4 {
		return 0
	}
	half := n / 2
	var first, second float64
	for _, c := range candles[:half] {
		first += float64(c.Volume)
	}
	for _, c := range candles[half:] {
		second += float64(c.Volume)
	}
	if first == 0 {
		return 0
	}
	return (second - first) / first
}

func volumeDensity(candles []model.Candle, now time.Time) float64 {
	if len(candles) == 0 {
		return 0
	}
	start, _ := sessionBounds(candles)
	elapsed := now.Sub(start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return dayTotal(candles) / elapsed
}

func candleGap(candles []model.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(candles); i++ {
		prevClose := candles[i-1].Close
		if prevClose == 0 {
			continue
		}
		sum += math.Abs(candles[i].Open-prevClose) / prevClose
	}
	return sum / float64(len(candles)-1)
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func stddevOf(values []float64) float64 {
	_, std := meanStd(values)
	return std
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func standardizeParams(X [][numFeatures]float64) ([numFeatures]float64, [numFeatures]float64) {
	var means, stds [numFeatures]float64
	n := float64(len(X))
	for j := 0; j < numFeatures; j++ {
		var sum float64
		for _, row := range X {
			sum += row[j]
		}
		means[j] = sum / n
	}
	for j := 0; j < numFeatures; j++ {
		var variance float64
		for _, row := range X {
			d := row[j] - means[j]
			variance += d * d
		}
		stds[j] = math.Sqrt(variance / n)
		if stds[j] == 0 {
			stds[j] = 1
		}
	}
	return means, stds
}

// SplitByDate groups candles into per-date slices, in first-seen
// order.
func SplitByDate(candles []model.Candle) [][]model.Candle {
	order := make([]string, 0)
	byDate := make(map[string][]model.Candle)
	for _, c := range candles {
		key := c.Time.Format("2006-01-02")
		if _, ok := byDate[key]; !ok {
			order = append(order, key)
		}
		byDate[key] = append(byDate[key], c)
	}
	out := make([][]model.Candle, len(order))
	for i, key := range order {
		out[i] = byDate[key]
	}
	return out
}
