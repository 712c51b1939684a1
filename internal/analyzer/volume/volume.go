// Package volume provides relative-volume and daily-total-volume
// analytics, rendered as human-readable messages appended to a chart's
// message list.
package volume

import (
	"fmt"
	"time"

	"trading-systemv1/internal/model"
	"trading-systemv1/internal/taprim"
)

// WorkingDays groups candles by date and keeps only dates whose
// (first, last) span is >= minSpan and whose weekday is not
// Saturday/Sunday.
func WorkingDays(candles []model.Candle, minSpan time.Duration) map[string][]model.Candle {
	byDate := map[string][]model.Candle{}
	for _, c := range candles {
		key := c.Time.Format("2006-01-02")
		byDate[key] = append(byDate[key], c)
	}
	out := map[string][]model.Candle{}
	for date, day := range byDate {
		if len(day) == 0 {
			continue
		}
		wd := day[0].Time.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			continue
		}
		first, last := day[0].Time, day[0].Time
		for _, c := range day {
			if c.Time.Before(first) {
				first = c.Time
			}
			if c.Time.After(last) {
				last = c.Time
			}
		}
		if last.Sub(first) >= minSpan {
			out[date] = day
		}
	}
	return out
}

// PeriodRVOL computes the period relative-volume message: the
// current (possibly incomplete) bucket's volume, normalized to a full
// bucket, divided by the EMA(20) of prior bucket volumes.
func PeriodRVOL(candles []model.Candle, tf time.Duration, now time.Time) string {
	if len(candles) < 2 {
		return "RVOL: insufficient data"
	}
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		volumes[i] = float64(c.Volume)
	}
	ema := taprim.EMA(volumes[:len(volumes)-1], 20)
	baseline, ok := lastNonNaN(ema)
	if !ok || baseline == 0 {
		return "RVOL: insufficient data"
	}

	last := candles[len(candles)-1]
	elapsed := now.Sub(last.Time).Seconds()
	if elapsed <= 0 {
		elapsed = tf.Seconds()
	}
	normalized := float64(last.Volume) * (tf.Seconds() / elapsed)

	rvol := normalized / baseline
	return fmt.Sprintf("Period RVOL: %.2f", rvol)
}

// CurrentTimeOfDayRVOL compares the current bucket's normalized volume
// against the average volume of prior same-time-of-day buckets across
// the frame.
func CurrentTimeOfDayRVOL(candles []model.Candle, tf time.Duration, now time.Time) string {
	if len(candles) < 2 {
		return "TOD RVOL: insufficient data"
	}
	last := candles[len(candles)-1]
	tod := last.Time.Format("15:04:05")

	var sum float64
	var count int
	for _, c := range candles[:len(candles)-1] {
		if c.Time.Format("15:04:05") == tod {
			sum += float64(c.Volume)
			count++
		}
	}
	if count == 0 || sum == 0 {
		return "TOD RVOL: insufficient data"
	}
	avg := sum / float64(count)

	elapsed := now.Sub(last.Time).Seconds()
	if elapsed <= 0 {
		elapsed = tf.Seconds()
	}
	normalized := float64(last.Volume) * (tf.Seconds() / elapsed)

	return fmt.Sprintf("Time-of-day RVOL: %.2f", normalized/avg)
}

// VolsUntilNow summarizes the volume traded so far today against the
// average same-prefix volume (candles up to the same time of day as the
// last candle) across prior days. Every earlier date in candles counts
// as a prior day; dates are not filtered by weekday or session span.
func VolsUntilNow(candles []model.Candle) string {
	if len(candles) == 0 {
		return "Volume: no data"
	}
	last := candles[len(candles)-1]
	today := last.Time.Format("2006-01-02")
	lastTOD := last.Time.Format("15:04:05")

	var todayVol uint64
	priorTotals := map[string]uint64{}
	for _, c := range candles {
		date := c.Time.Format("2006-01-02")
		if date == today {
			todayVol += c.Volume
		} else if c.Time.Format("15:04:05") <= lastTOD {
			priorTotals[date] += c.Volume
		}
	}
	if len(priorTotals) == 0 {
		return fmt.Sprintf("Volume so far: %s", formatBigNum(float64(todayVol)))
	}
	var sum float64
	for _, v := range priorTotals {
		sum += float64(v)
	}
	avg := sum / float64(len(priorTotals))
	ratio := 0.0
	if avg > 0 {
		ratio = float64(todayVol) / avg
	}
	return fmt.Sprintf("Volume so far: %s, prior avg: %s, ratio: %.2f",
		formatBigNum(float64(todayVol)), formatBigNum(avg), ratio)
}

// DailyAvgVolume returns the average total daily volume across all but
// the current (incomplete) day in candles.
func DailyAvgVolume(candles []model.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	last := candles[len(candles)-1].Time.Format("2006-01-02")
	totals := map[string]uint64{}
	for _, c := range candles {
		date := c.Time.Format("2006-01-02")
		if date == last {
			continue
		}
		totals[date] += c.Volume
	}
	if len(totals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range totals {
		sum += float64(v)
	}
	return sum / float64(len(totals))
}

func lastNonNaN(values []float64) (float64, bool) {
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] == values[i] {
			return values[i], true
		}
	}
	return 0, false
}

func formatBigNum(n float64) string {
	switch {
	case n >= 1e7:
		return fmt.Sprintf("%.2fCr", n/1e7)
	case n >= 1e5:
		return fmt.Sprintf("%.2fL", n/1e5)
	case n >= 1e3:
		return fmt.Sprintf("%.2fK", n/1e3)
	default:
		return fmt.Sprintf("%.0f", n)
	}
}
