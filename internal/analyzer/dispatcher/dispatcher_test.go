package dispatcher

import (
	"context"
	"testing"
	"time"

	"trading-systemv1/internal/analyzer/chart"
	"trading-systemv1/internal/analyzer/controller"
	"trading-systemv1/internal/analyzer/supportresistance"
	"trading-systemv1/internal/model"
)

type fakePublisher struct{ published []controller.Snapshot }

func (f *fakePublisher) PublishChart(symbol string, snap controller.Snapshot) {
	f.published = append(f.published, snap)
}

type fakeSymbolsPub struct{ calls [][]string }

func (f *fakeSymbolsPub) PublishSymbols(symbols []string) { f.calls = append(f.calls, symbols) }

type fakeSubscriber struct {
	subCharts, unsubCharts, subTick, unsubTick []string
}

func (f *fakeSubscriber) SubCharts(symbols []string) error   { f.subCharts = append(f.subCharts, symbols...); return nil }
func (f *fakeSubscriber) UnsubCharts(symbols []string) error { f.unsubCharts = append(f.unsubCharts, symbols...); return nil }
func (f *fakeSubscriber) SubTick(symbols []string) error     { f.subTick = append(f.subTick, symbols...); return nil }
func (f *fakeSubscriber) UnsubTick(symbols []string) error   { f.unsubTick = append(f.unsubTick, symbols...); return nil }

func testControllerConfig() controller.Config {
	return controller.Config{
		ChartConfigs: []chart.Config{{Timeframe: time.Minute, Days: 5, EMA: 9}},
		TradingHours: controller.TradingHours{Open: 9*time.Hour + 15*time.Minute, Close: 15*time.Hour + 30*time.Minute},
		SR:           supportresistance.Config{SRThresholdPerc: 0.4, SRThresholdMax: 10},
	}
}

func TestUnknownSymbolEventsAreDropped(t *testing.T) {
	d := New(nil, nil, false, nil)
	events := make(chan StreamEvent, 1)
	commands := make(chan Command)
	ctx, cancel := context.WithCancel(context.Background())

	events <- EquityCandle{Symbol: "GHOST", Candle: model.Candle{Time: time.Now(), Duration: time.Minute}}
	close(events)

	done := make(chan struct{})
	go func() { d.Run(ctx, events, commands); close(done) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done
	close(commands)

	if len(d.Controllers()) != 0 {
		t.Fatalf("expected no controllers, got %d", len(d.Controllers()))
	}
}

func TestPublishCommandPublishesSymbolsAndControllers(t *testing.T) {
	symbolsPub := &fakeSymbolsPub{}
	d := New(nil, symbolsPub, false, nil)
	pub := &fakePublisher{}
	ctrl := controller.New("NIFTY", model.Instrument{Symbol: "NIFTY"}, testControllerConfig(), pub, nil)
	d.Add(ctrl)

	events := make(chan StreamEvent)
	commands := make(chan Command, 1)
	ctx, cancel := context.WithCancel(context.Background())

	commands <- PublishCmd{}
	done := make(chan struct{})
	go func() { d.Run(ctx, events, commands); close(done) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	close(events)
	close(commands)
	<-done

	if len(symbolsPub.calls) != 1 || len(symbolsPub.calls[0]) != 1 || symbolsPub.calls[0][0] != "NIFTY" {
		t.Fatalf("expected one UPDATE_SYMBOLS call with [NIFTY], got %+v", symbolsPub.calls)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected controller to publish once, got %d", len(pub.published))
	}
}

func TestRemoveUnsubscribesAndDropsController(t *testing.T) {
	sub := &fakeSubscriber{}
	symbolsPub := &fakeSymbolsPub{}
	d := New(sub, symbolsPub, true, nil)
	ctrl := controller.New("NIFTY", model.Instrument{Symbol: "NIFTY"}, testControllerConfig(), &fakePublisher{}, nil)
	d.Add(ctrl)

	d.handleCommand(RemoveCmd{Symbol: "NIFTY"})

	if len(d.Controllers()) != 0 {
		t.Fatal("expected controller to be removed")
	}
	if len(sub.unsubCharts) != 1 || len(sub.unsubTick) != 1 {
		t.Fatalf("expected chart and tick unsubscribe, got %+v", sub)
	}
}

func TestReInitializeSubscribesAndPublishes(t *testing.T) {
	sub := &fakeSubscriber{}
	d := New(sub, nil, true, nil)
	pub := &fakePublisher{}
	ctrl := controller.New("NIFTY", model.Instrument{Symbol: "NIFTY"}, testControllerConfig(), pub, nil)

	d.handleCommand(ReInitializeCmd{Controller: ctrl})

	if _, ok := d.Controllers()["NIFTY"]; !ok {
		t.Fatal("expected controller to be registered")
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected one publish on reinitialize, got %d", len(pub.published))
	}
	if len(sub.subCharts) != 1 || len(sub.subTick) != 1 {
		t.Fatalf("expected chart and tick subscribe, got %+v", sub)
	}
}
