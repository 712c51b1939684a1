package volume

import (
	"testing"
	"time"

	"trading-systemv1/internal/model"
)

func mkDayCandles(date time.Time, n int, volStart uint64) []model.Candle {
	out := make([]model.Candle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.Candle{
			Open: 100, High: 101, Low: 99, Close: 100.5,
			Volume:   volStart + uint64(i),
			Time:     date.Add(time.Duration(i) * 5 * time.Minute),
			Duration: 5 * time.Minute,
		})
	}
	return out
}

func TestTrainRequiresAtLeastTwoHistoricalDays(t *testing.T) {
	p := NewPredictor()
	day := mkDayCandles(time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC), 75, 100)
	if err := p.Train([][]model.Candle{day}, 50); err == nil {
		t.Fatal("expected an error training on a single day")
	}
}

func TestTrainThenPredictReturnsNonNegative(t *testing.T) {
	p := NewPredictor()
	var historical [][]model.Candle
	for d := 0; d < 5; d++ {
		date := time.Date(2024, 1, 2+d, 9, 15, 0, 0, time.UTC)
		historical = append(historical, mkDayCandles(date, 75, 100))
	}
	if err := p.Train(historical, 100); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	today := mkDayCandles(time.Date(2024, 1, 10, 9, 15, 0, 0, time.UTC), 30, 100)
	now := today[len(today)-1].Time.Add(today[len(today)-1].Duration)
	got, err := p.Predict(historical, today, now)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if got < 0 {
		t.Fatalf("expected a non-negative prediction, got %v", got)
	}
}

func TestPredictBeforeTrainErrors(t *testing.T) {
	p := NewPredictor()
	if _, err := p.Predict(nil, nil, time.Now()); err == nil {
		t.Fatal("expected an error predicting before training")
	}
}

func TestSplitByDateGroupsInFirstSeenOrder(t *testing.T) {
	base := time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)
	candles := append(mkDayCandles(base, 3, 10), mkDayCandles(base.AddDate(0, 0, 1), 2, 20)...)
	days := SplitByDate(candles)
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(days))
	}
	if len(days[0]) != 3 || len(days[1]) != 2 {
		t.Fatalf("expected day sizes 3,2, got %d,%d", len(days[0]), len(days[1]))
	}
}
