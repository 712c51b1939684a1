package controller

import (
	"testing"
	"time"

	"trading-systemv1/internal/model"
)

func TestNearestLevelFiltersByTrendDirection(t *testing.T) {
	levels := []model.PriceLevel{
		model.NewPriceLevel(95, time.Now()),
		model.NewPriceLevel(98, time.Now()),
		model.NewPriceLevel(103, time.Now()),
		model.NewPriceLevel(110, time.Now()),
	}

	if got := nearestLevel(levels, 100, model.TrendBullish); got != 1 {
		t.Fatalf("bullish: expected nearest support index 1 (98), got %d", got)
	}
	if got := nearestLevel(levels, 100, model.TrendBearish); got != 2 {
		t.Fatalf("bearish: expected nearest resistance index 2 (103), got %d", got)
	}
}

func TestNearestLevelReturnsNoneWhenNoLevelQualifies(t *testing.T) {
	levels := []model.PriceLevel{model.NewPriceLevel(110, time.Now())}
	if got := nearestLevel(levels, 100, model.TrendBullish); got != -1 {
		t.Fatalf("expected no qualifying support level, got index %d", got)
	}
}

func TestCheckRejectionResetsIsActiveEveryPass(t *testing.T) {
	ctrl := New("NIFTY", model.Instrument{Symbol: "NIFTY"}, testConfig(), &fakePublisher{}, nil)
	ctrl.priceLevels = []model.PriceLevel{
		{Price: 100, IsActive: true},
		{Price: 105, IsActive: true},
	}

	ctrl.checkRejection(model.TrendNone)

	for i, lvl := range ctrl.priceLevels {
		if lvl.IsActive {
			t.Fatalf("expected priceLevels[%d].IsActive reset to false, got true", i)
		}
	}
}

func TestCheckRejectionGatesOutsideTradingHours(t *testing.T) {
	ctrl := New("NIFTY", model.Instrument{Symbol: "NIFTY"}, testConfig(), &fakePublisher{}, nil)
	ctrl.priceLevels = []model.PriceLevel{model.NewPriceLevel(100, time.Now())}

	base := time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC) // well past configured Close
	ctrl.candles = []model.Candle{mkCandle(base, 0, 100, 101, 99, 100, 10)}

	ctrl.checkRejection(model.TrendBullish)

	if !ctrl.rejection.Ended {
		t.Fatal("expected rejection detection to be gated off outside trading hours")
	}
}

func TestCheckRejectionSkipsWhenTrendIsNone(t *testing.T) {
	ctrl := New("NIFTY", model.Instrument{Symbol: "NIFTY"}, testConfig(), &fakePublisher{}, nil)
	ctrl.priceLevels = []model.PriceLevel{model.NewPriceLevel(100, time.Now())}

	base := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC) // inside configured hours
	ctrl.candles = []model.Candle{mkCandle(base, 0, 100, 101, 99, 100, 10)}

	ctrl.checkRejection(model.TrendNone)

	if !ctrl.rejection.Ended {
		t.Fatal("expected no rejection detection attempt when trend is TrendNone")
	}
	for _, lvl := range ctrl.priceLevels {
		if lvl.IsActive {
			t.Fatal("expected no level marked active when trend is TrendNone")
		}
	}
}

func TestCheckRejectionDayRolloverResetsTrendAndPoints(t *testing.T) {
	ctrl := New("NIFTY", model.Instrument{Symbol: "NIFTY"}, testConfig(), &fakePublisher{}, nil)
	ctrl.rejection = RejectionMessage{
		Trend:   model.TrendBullish,
		FoundAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Points:  []RejectionPoint{{Time: 1, Price: 100}},
		Ended:   false,
	}

	// Last candle is on a later calendar date and outside trading hours,
	// so the gate stops the pass right after the rollover reset runs.
	base := time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC)
	ctrl.candles = []model.Candle{mkCandle(base, 0, 100, 101, 99, 100, 10)}

	ctrl.checkRejection(model.TrendBullish)

	if ctrl.rejection.Trend != model.TrendNone {
		t.Fatalf("expected Trend reset to TrendNone on day rollover, got %v", ctrl.rejection.Trend)
	}
	if len(ctrl.rejection.Points) != 0 {
		t.Fatalf("expected Points cleared on day rollover, got %+v", ctrl.rejection.Points)
	}
}

func TestCheckRejectionCarriesTrendAndPointsWithinSameDay(t *testing.T) {
	ctrl := New("NIFTY", model.Instrument{Symbol: "NIFTY"}, testConfig(), &fakePublisher{}, nil)
	foundAt := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	points := []RejectionPoint{{Time: 1, Price: 100}}
	ctrl.rejection = RejectionMessage{
		Trend:   model.TrendBullish,
		FoundAt: foundAt,
		Points:  points,
		Ended:   false,
	}

	// Same calendar date as FoundAt, but outside trading hours so the
	// gate returns before anything else can overwrite the carried state.
	base := time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC)
	ctrl.candles = []model.Candle{mkCandle(base, 0, 100, 101, 99, 100, 10)}

	ctrl.checkRejection(model.TrendBullish)

	if ctrl.rejection.Trend != model.TrendBullish {
		t.Fatalf("expected carried Trend to survive within the same day, got %v", ctrl.rejection.Trend)
	}
	if len(ctrl.rejection.Points) != 1 {
		t.Fatalf("expected carried Points to survive within the same day, got %+v", ctrl.rejection.Points)
	}
}
