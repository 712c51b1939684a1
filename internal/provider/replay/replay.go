// Package replay implements the analyzer's data provider against
// previously stored history: it has no broker connection, no live
// symbol search, and plays back one symbol's candles at a configured
// speed under the ReplayInfo control surface instead of reacting to
// subscribe/unsubscribe calls.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"trading-systemv1/internal/analyzer/dispatcher"
	"trading-systemv1/internal/model"
	"trading-systemv1/internal/provider"
)

// HistoryStore is the read-model this provider replays from.
type HistoryStore interface {
	LoadPrices(symbol string, start, end time.Time) ([]model.Candle, error)
}

// Provider replays stored candles for a single symbol at a time,
// driven by ReplayInfo updates.
type Provider struct {
	store  HistoryStore
	logger *slog.Logger
	events chan dispatcher.StreamEvent

	mu      sync.Mutex
	info    provider.ReplayInfo
	batch   []model.Candle
	cursor  int
	playing bool
}

// New creates a replay provider over store, with the default speed
// used until the first ReplayInfo write.
func New(store HistoryStore, logger *slog.Logger) *Provider {
	return &Provider{
		store:  store,
		logger: logger,
		events: make(chan dispatcher.StreamEvent, 1024),
		info:   provider.ReplayInfo{SpeedMs: 1000},
	}
}

// Listener implements provider.Provider.
func (p *Provider) Listener() <-chan dispatcher.StreamEvent { return p.events }

// SearchSymbol always rejects: replay mode serves a fixed, pre-loaded
// symbol set, not live lookup.
func (p *Provider) SearchSymbol(ctx context.Context, symbol string) (model.Instrument, error) {
	return model.Instrument{}, fmt.Errorf("replay: symbol search is unavailable in replay mode")
}

// FetchPriceHistory splits the stored history at start: everything
// before start primes the controller, everything from start onward is
// the batch later fed candle-by-candle by Run.
func (p *Provider) FetchPriceHistory(ctx context.Context, symbol string, start time.Time) ([]model.Candle, []model.Candle, error) {
	all, err := p.store.LoadPrices(symbol, time.Time{}, time.Time{})
	if err != nil {
		return nil, nil, fmt.Errorf("replay: load history for %s: %w", symbol, err)
	}
	var initBatch, replayBatch []model.Candle
	for _, c := range all {
		if c.Time.Before(start) {
			initBatch = append(initBatch, c)
		} else {
			replayBatch = append(replayBatch, c)
		}
	}

	p.mu.Lock()
	p.info.Symbol = symbol
	p.batch = replayBatch
	p.cursor = 0
	p.mu.Unlock()

	return initBatch, replayBatch, nil
}

// SubCharts, UnsubCharts, SubTick, UnsubTick are no-ops: replay mode's
// symbol set is fixed by FetchPriceHistory, not runtime subscription.
func (p *Provider) SubCharts(symbols []string) error   { return nil }
func (p *Provider) UnsubCharts(symbols []string) error { return nil }
func (p *Provider) SubTick(symbols []string) error     { return nil }
func (p *Provider) UnsubTick(symbols []string) error   { return nil }

// ReplayInfo reads the current replay state, or applies update when
// non-nil (switching symbol resets the playback cursor).
func (p *Provider) ReplayInfo(update *provider.ReplayInfo) (provider.ReplayInfo, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if update != nil {
		if update.Symbol != "" && update.Symbol != p.info.Symbol {
			p.info.Symbol = update.Symbol
			p.batch = nil
			p.cursor = 0
		}
		if update.SpeedMs > 0 {
			p.info.SpeedMs = update.SpeedMs
		}
		p.info.Playing = update.Playing
		p.playing = update.Playing
	}
	return p.info, true, nil
}

// Run drives playback: while playing, it emits the active symbol's
// next candle every SpeedMs and advances the cursor, pausing itself
// once the batch is exhausted. Blocks until ctx is cancelled.
func (p *Provider) Run(ctx context.Context) {
	defer close(p.events)

	for {
		p.mu.Lock()
		playing := p.playing
		speed := p.info.SpeedMs
		symbol := p.info.Symbol
		var next model.Candle
		hasNext := false
		if playing && p.cursor < len(p.batch) {
			next = p.batch[p.cursor]
			hasNext = true
		}
		p.mu.Unlock()

		if !playing || !hasNext {
			if !sleepOrDone(ctx, 200*time.Millisecond) {
				return
			}
			continue
		}

		select {
		case p.events <- dispatcher.EquityCandle{Symbol: symbol, Candle: next}:
		case <-ctx.Done():
			return
		}

		p.mu.Lock()
		p.cursor++
		if p.cursor >= len(p.batch) {
			p.playing = false
			if p.logger != nil {
				p.logger.Info("replay batch exhausted", "symbol", symbol)
			}
		}
		p.mu.Unlock()

		if !sleepOrDone(ctx, time.Duration(speed)*time.Millisecond) {
			return
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
