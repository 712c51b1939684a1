package dataframe

import (
	"math"
	"testing"
	"time"

	"trading-systemv1/internal/model"
)

func mkCandle(tOffset time.Duration, o, l, h, c float64, v uint64) model.Candle {
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	return model.Candle{
		Open: o, Low: l, High: h, Close: c, Volume: v,
		Time: base.Add(tOffset), Duration: time.Minute,
	}
}

func TestFromCandlesLengthInvariant(t *testing.T) {
	candles := []model.Candle{
		mkCandle(0, 100, 99, 105, 101, 10),
		mkCandle(time.Minute, 101, 100, 106, 102, 20),
	}
	df := FromCandles(candles)
	rows, cols := df.Shape()
	if rows != 2 {
		t.Fatalf("expected 2 rows, got %d", rows)
	}
	if cols != 5 {
		t.Fatalf("expected 5 columns, got %d", cols)
	}
	for _, name := range []string{"open", "low", "high", "close", "volume"} {
		if len(df.Column(name)) != len(df.Index()) {
			t.Errorf("column %s length %d != index length %d", name, len(df.Column(name)), len(df.Index()))
		}
	}
}

func TestInsertColumnLengthMismatchPanics(t *testing.T) {
	df := FromCandles([]model.Candle{mkCandle(0, 1, 1, 1, 1, 1)})
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on length mismatch")
		}
	}()
	df.InsertColumn("bad", []float64{1, 2, 3})
}

func TestJSONEmitsNullForNaN(t *testing.T) {
	df := FromCandles([]model.Candle{mkCandle(0, 100, 99, 101, 100, 5)})
	df.InsertColumn("ma", []float64{math.NaN()})
	rows := df.JSON()
	if rows[0]["ma"] != nil {
		t.Fatalf("expected nil for NaN, got %v", rows[0]["ma"])
	}
}

func TestTrimWorkingDaysKeepsRecentN(t *testing.T) {
	df := New([]string{"close"})
	days := []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04"}
	for _, d := range days {
		day, _ := time.Parse("2006-01-02", d)
		df.index = append(df.index, day.Add(9*time.Hour))
		df.index = append(df.index, day.Add(15*time.Hour))
		df.columns["close"] = append(df.columns["close"], 1, 2)
	}
	df.colNames = []string{"close"}

	trimmed := df.TrimWorkingDays(2, 5*time.Hour)
	distinctDates := map[string]bool{}
	for _, idx := range trimmed.Index() {
		distinctDates[idx.Format("2006-01-02")] = true
	}
	if len(distinctDates) > 2 {
		t.Fatalf("expected at most 2 distinct dates, got %d", len(distinctDates))
	}
	if !distinctDates["2024-01-03"] || !distinctDates["2024-01-04"] {
		t.Fatalf("expected the two most recent days kept, got %v", distinctDates)
	}
}
