// Package divergence finds disagreement between an indicator's slope
// and price's slope across two extrema, the classic technical-analysis
// divergence signal.
package divergence

import (
	"math"
	"time"

	"trading-systemv1/internal/analyzer/gaussian"
	"trading-systemv1/internal/dataframe"
	"trading-systemv1/internal/model"
)

// Find searches df's indicator column for a divergence against trend.
// Returns nil if trend is TrendNone, if the indicator has no qualifying
// extrema, or if the series' last point is not itself an extremum.
func Find(trend model.Trend, df *dataframe.DataFrame, indicatorCol string) *model.Divergence {
	if trend == model.TrendNone {
		return nil
	}

	usePeak := trend == model.TrendBearish

	indicator := df.Column(indicatorCol)
	extrema := findExtrema(indicator, usePeak, 3)
	if len(extrema) == 0 || extrema[len(extrema)-1] != len(indicator)-1 {
		return nil
	}

	index := df.Index()
	var values []float64
	if usePeak {
		values = df.Column("high")
	} else {
		values = df.Column("low")
	}
	ksize := 5
	smoothed := gaussian.Smooth(values, 1.0, &ksize)

	lastAngle := math.Inf(1)
	if !usePeak {
		lastAngle = math.Inf(-1)
	}
	lastIdx := extrema[len(extrema)-1]

	for i := len(extrema) - 2; i >= 0; i-- {
		idx := extrema[i]
		angle := findAngle(index, indicator, idx, lastIdx)
		if usePeak && angle > lastAngle {
			continue
		}
		if !usePeak && angle < lastAngle {
			continue
		}
		lastAngle = angle

		priceAngle := findAngle(index, smoothed, idx, lastIdx)
		if priceAngle*angle < 0 {
			return &model.Divergence{
				Trend:          trend,
				Start:          index[idx],
				StartPrice:     values[idx],
				StartIndicator: indicator[idx],
				End:            index[lastIdx],
				EndPrice:       values[lastIdx],
				EndIndicator:   indicator[lastIdx],
			}
		}
	}
	return nil
}

// findExtrema returns indices that are strict local peaks (or valleys)
// within a window of `order` neighbors on each side.
func findExtrema(values []float64, peaks bool, order int) []int {
	if len(values) == 0 || order == 0 {
		return nil
	}

	var extrema []int
	for i := range values {
		cur := values[i]
		isExtremum := true
		start := i - order
		if start < 0 {
			start = 0
		}
		end := i + order + 1
		if end > len(values) {
			end = len(values)
		}
		for j := start; j < end; j++ {
			if i == j {
				continue
			}
			if (peaks && values[j] >= cur) || (!peaks && values[j] <= cur) {
				isExtremum = false
				break
			}
		}
		if isExtremum {
			extrema = append(extrema, i)
		}
	}
	return extrema
}

func findAngle(index []time.Time, values []float64, p1, p2 int) float64 {
	dx := index[p2].Sub(index[p1]).Seconds()
	dy := values[p2] - values[p1]
	return math.Atan2(dy, dx)
}
