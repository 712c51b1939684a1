// Package aggregate buckets raw candles into a target timeframe. It is
// a pure function of its inputs: the same candles and duration always
// produce the same buckets, re-invoked by Chart on every controller
// update rather than maintained as incremental state.
package aggregate

import (
	"math"
	"sort"
	"time"

	"trading-systemv1/internal/model"
)

// Aggregate buckets candles into duration-sized, time-floored buckets.
// Bucket key = floor(time.Unix() / durationSeconds) * durationSeconds.
// Within a bucket: open = first by time, close = last by time, high =
// max of highs, low = min of lows, volume = sum of volumes. Buckets
// whose summed volume is zero are dropped.
func Aggregate(candles []model.Candle, duration time.Duration) []model.Candle {
	bucketSecs := int64(duration.Seconds())
	if bucketSecs <= 0 {
		return nil
	}

	type bucket struct {
		key     int64
		candles []model.Candle
	}
	buckets := map[int64]*bucket{}
	order := []int64{}
	for _, c := range candles {
		key := (c.Time.Unix() / bucketSecs) * bucketSecs
		b, ok := buckets[key]
		if !ok {
			b = &bucket{key: key}
			buckets[key] = b
			order = append(order, key)
		}
		b.candles = append(b.candles, c)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	out := make([]model.Candle, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		agg, ok := aggregateBucket(b.key, b.candles, duration)
		if ok && agg.Volume > 0 {
			out = append(out, agg)
		}
	}
	return out
}

func aggregateBucket(key int64, candles []model.Candle, duration time.Duration) (model.Candle, bool) {
	if len(candles) == 0 {
		return model.Candle{}, false
	}
	high := math.Inf(-1)
	low := math.Inf(1)
	var volume uint64
	for _, c := range candles {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
		volume += c.Volume
	}
	return model.Candle{
		Open:     candles[0].Open,
		Close:    candles[len(candles)-1].Close,
		High:     high,
		Low:      low,
		Volume:   volume,
		Time:     time.Unix(key, 0).UTC(),
		Duration: duration,
	}, true
}
