// Package provider declares the data-provider capability the analyzer
// runs against: a live broker implementation (internal/provider/live)
// and a replay implementation (internal/provider/replay) that reads
// stored history back at controlled speed. Both satisfy the same
// interface so cmd/analyzerd can swap one for the other on
// replay_mode alone.
package provider

import (
	"context"
	"time"

	"trading-systemv1/internal/analyzer/dispatcher"
	"trading-systemv1/internal/model"
)

// ReplayInfo is the replay-mode control state: which symbol is being
// replayed, at what speed, and whether it is currently playing.
type ReplayInfo struct {
	Playing bool   `json:"playing"`
	SpeedMs int    `json:"speed_ms"`
	Symbol  string `json:"symbol"`
}

// Provider is the analyzer's data-provider capability.
type Provider interface {
	// SearchSymbol normalizes and resolves a symbol to an Instrument.
	// Replay implementations reject every call: replay mode serves a
	// fixed, pre-selected symbol set and does not support live lookup.
	SearchSymbol(ctx context.Context, symbol string) (model.Instrument, error)

	// FetchPriceHistory returns an initial priming batch and a replay
	// batch to be fed candle-by-candle. The split point is either the
	// last full working day or a configured replay start time.
	FetchPriceHistory(ctx context.Context, symbol string, start time.Time) (initBatch, replayBatch []model.Candle, err error)

	// Listener returns the channel of stream events this provider
	// produces. Closing it signals the dispatcher to stop consuming
	// from this source.
	Listener() <-chan dispatcher.StreamEvent

	SubCharts(symbols []string) error
	UnsubCharts(symbols []string) error
	SubTick(symbols []string) error
	UnsubTick(symbols []string) error

	// ReplayInfo reads the current replay state, or writes it when
	// update is non-nil. Live providers always return ok=false.
	ReplayInfo(update *ReplayInfo) (info ReplayInfo, ok bool, err error)
}
