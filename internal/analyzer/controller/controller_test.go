package controller

import (
	"testing"
	"time"

	"trading-systemv1/internal/analyzer/chart"
	"trading-systemv1/internal/analyzer/supportresistance"
	"trading-systemv1/internal/model"
)

type fakePublisher struct {
	snapshots []Snapshot
}

func (f *fakePublisher) PublishChart(symbol string, snap Snapshot) {
	f.snapshots = append(f.snapshots, snap)
}

func testConfig() Config {
	return Config{
		ChartConfigs: []chart.Config{
			{Timeframe: time.Minute, Days: 5, EMA: 9},
			{Timeframe: 5 * time.Minute, Days: 5, EMA: 9},
		},
		TradingHours: TradingHours{Open: 9*time.Hour + 15*time.Minute, Close: 15*time.Hour + 30*time.Minute},
		SR:           supportresistance.Config{SRThresholdPerc: 0.4, SRThresholdMax: 10},
	}
}

func mkCandle(base time.Time, minute int, o, h, l, c float64, v uint64) model.Candle {
	return model.Candle{
		Open: o, High: h, Low: l, Close: c, Volume: v,
		Time: base.Add(time.Duration(minute) * time.Minute), Duration: time.Minute,
	}
}

func TestOnNewCandleRejectsOutOfOrder(t *testing.T) {
	pub := &fakePublisher{}
	ctrl := New("NIFTY", model.Instrument{Symbol: "NIFTY"}, testConfig(), pub, nil)
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

	ctrl.OnNewCandle(mkCandle(base, 5, 100, 101, 99, 100, 10), false)
	ctrl.OnNewCandle(mkCandle(base, 3, 100, 101, 99, 100, 10), false) // out of order

	if len(ctrl.candles) != 1 {
		t.Fatalf("expected out-of-order candle to be dropped, log has %d entries", len(ctrl.candles))
	}
}

func TestOnTickDoesNotGrowLog(t *testing.T) {
	pub := &fakePublisher{}
	ctrl := New("NIFTY", model.Instrument{Symbol: "NIFTY"}, testConfig(), pub, nil)
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	ctrl.OnNewCandle(mkCandle(base, 0, 100, 101, 99, 100, 10), false)

	before := len(ctrl.candles)
	tradeTime := base.Add(time.Minute)
	ctrl.OnTick(model.Quote{LastPrice: 101, LastSize: 5, TradeTime: &tradeTime})
	if len(ctrl.candles) != before {
		t.Fatalf("expected tick-candle to leave log length unchanged, got %d vs %d", len(ctrl.candles), before)
	}
}

func TestOnTickIgnoresMissingTradeTime(t *testing.T) {
	pub := &fakePublisher{}
	ctrl := New("NIFTY", model.Instrument{Symbol: "NIFTY"}, testConfig(), pub, nil)
	ctrl.OnTick(model.Quote{LastPrice: 100, LastSize: 1})
	if ctrl.tickCandle != nil {
		t.Fatal("expected no tick-candle to be created without a trade time")
	}
}

func TestPublishIdempotence(t *testing.T) {
	pub := &fakePublisher{}
	ctrl := New("NIFTY", model.Instrument{Symbol: "NIFTY"}, testConfig(), pub, nil)
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		ctrl.OnNewCandle(mkCandle(base, i, 100, 101, 99, 100, 10), false)
	}

	ctrl.Publish()
	ctrl.Publish()
	if len(pub.snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(pub.snapshots))
	}
	a, b := pub.snapshots[0], pub.snapshots[1]
	if a.Symbol != b.Symbol || a.LastUpdated != b.LastUpdated || a.ATR != b.ATR {
		t.Fatalf("expected identical consecutive snapshots, got %+v vs %+v", a, b)
	}
}

func TestSetFavoriteDoesNotPanic(t *testing.T) {
	ctrl := New("NIFTY", model.Instrument{Symbol: "NIFTY"}, testConfig(), &fakePublisher{}, nil)
	ctrl.SetFavorite(true)
	if !ctrl.favorite {
		t.Fatal("expected favorite flag to be set")
	}
}

func TestOverridePriceLevelsStopsRediscovery(t *testing.T) {
	ctrl := New("NIFTY", model.Instrument{Symbol: "NIFTY"}, testConfig(), &fakePublisher{}, nil)
	ctrl.OverridePriceLevels([]model.PriceLevel{model.NewPriceLevel(100, time.Now())})
	if !ctrl.priceLevelsOverridden {
		t.Fatal("expected override flag to be set")
	}
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	ctrl.OnNewCandle(mkCandle(base, 0, 100, 101, 99, 100, 10), false)
	if len(ctrl.priceLevels) != 1 || ctrl.priceLevels[0].Price != 100 {
		t.Fatalf("expected override to survive a chart update, got %+v", ctrl.priceLevels)
	}
}
