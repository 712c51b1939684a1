package aggregate

import (
	"testing"
	"time"

	"trading-systemv1/internal/model"
)

func candleAt(minute int, o, h, l, c float64, v uint64) model.Candle {
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	return model.Candle{
		Open: o, High: h, Low: l, Close: c, Volume: v,
		Time:     base.Add(time.Duration(minute) * time.Minute),
		Duration: time.Minute,
	}
}

// Scenario 1: one-minute into five-minute bucketing.
func TestAggregateFiveMinuteBucket(t *testing.T) {
	candles := []model.Candle{
		candleAt(0, 100, 105, 99, 101, 10),
		candleAt(1, 101, 106, 100, 102, 20),
		candleAt(2, 102, 107, 101, 103, 30),
		candleAt(3, 103, 108, 102, 104, 40),
		candleAt(4, 104, 109, 103, 105, 50),
	}
	out := Aggregate(candles, 5*time.Minute)
	if len(out) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(out))
	}
	b := out[0]
	if b.Open != 100 || b.High != 109 || b.Low != 99 || b.Close != 105 || b.Volume != 150 {
		t.Fatalf("unexpected bucket: %+v", b)
	}
	if !b.Time.Equal(time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected bucket time: %v", b.Time)
	}
}

// Scenario 2: zero-volume bucket suppression.
func TestAggregateDropsZeroVolumeBucket(t *testing.T) {
	candles := []model.Candle{
		candleAt(0, 100, 105, 99, 101, 10),
		candleAt(1, 101, 106, 100, 102, 20),
		candleAt(2, 102, 107, 101, 103, 30),
		candleAt(3, 103, 108, 102, 104, 40),
		candleAt(4, 104, 109, 103, 105, 50),
		candleAt(5, 105, 105, 105, 105, 0),
	}
	out := Aggregate(candles, 5*time.Minute)
	if len(out) != 1 {
		t.Fatalf("expected exactly 1 bucket (09:30), got %d", len(out))
	}
}

func TestAggregateMonotonicity(t *testing.T) {
	candles := []model.Candle{
		candleAt(0, 100, 101, 95, 98, 5),
		candleAt(1, 98, 103, 90, 102, 7),
	}
	out := Aggregate(candles, time.Minute)
	for _, b := range out {
		if !(b.Low <= minF(b.Open, b.Close) && minF(b.Open, b.Close) <= maxF(b.Open, b.Close) && maxF(b.Open, b.Close) <= b.High) {
			t.Fatalf("monotonicity violated: %+v", b)
		}
	}
}

func TestAggregateIdempotentUpToDuration(t *testing.T) {
	candles := []model.Candle{
		candleAt(0, 100, 105, 99, 101, 10),
		candleAt(1, 101, 106, 100, 102, 20),
	}
	once := Aggregate(candles, time.Minute)
	twice := Aggregate(once, time.Minute)
	if len(once) != len(twice) {
		t.Fatalf("expected same bucket count, got %d vs %d", len(once), len(twice))
	}
	for i := range once {
		a, b := once[i], twice[i]
		if a.Open != b.Open || a.Close != b.Close || a.High != b.High || a.Low != b.Low || a.Volume != b.Volume {
			t.Fatalf("expected idempotent aggregation, got %+v vs %+v", a, b)
		}
	}
}

func TestAggregateStableUnderReinvocation(t *testing.T) {
	candles := []model.Candle{
		candleAt(0, 100, 105, 99, 101, 10),
		candleAt(2, 101, 106, 100, 102, 20),
	}
	a := Aggregate(candles, 5*time.Minute)
	b := Aggregate(candles, 5*time.Minute)
	if len(a) != len(b) {
		t.Fatalf("expected identical output, got different lengths")
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected bitwise identical output, got %+v vs %+v", a[i], b[i])
		}
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
