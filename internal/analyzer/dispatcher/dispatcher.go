// Package dispatcher owns the symbol→Controller map and multiplexes
// provider stream events with control commands onto it, single-
// consumer, so Controllers are never shared across goroutines.
package dispatcher

import (
	"context"
	"sort"

	"trading-systemv1/internal/analyzer/controller"
	"trading-systemv1/internal/model"
)

// StreamEvent is a tagged event arriving from the provider's listener.
type StreamEvent interface{ isStreamEvent() }

// EquityCandle is a completed candle for symbol.
type EquityCandle struct {
	Symbol string
	Candle model.Candle
}

// EquityTick is a level-one quote update for symbol.
type EquityTick struct {
	Symbol string
	Quote  model.Quote
}

func (EquityCandle) isStreamEvent() {}
func (EquityTick) isStreamEvent()   {}

// Command is a tagged control-plane instruction.
type Command interface{ isCommand() }

// PublishCmd requests an UPDATE_SYMBOLS broadcast followed by every
// controller publishing its current snapshot.
type PublishCmd struct{}

// ReInitializeCmd replaces (or creates) the controller for its symbol.
type ReInitializeCmd struct {
	Controller *controller.Controller
}

// RemoveCmd drops a symbol's controller and unsubscribes its streams.
type RemoveCmd struct {
	Symbol string
}

// SetFavoriteCmd forwards a favorite-flag change to a controller.
type SetFavoriteCmd struct {
	Symbol   string
	Favorite bool
}

func (PublishCmd) isCommand()       {}
func (ReInitializeCmd) isCommand()  {}
func (RemoveCmd) isCommand()        {}
func (SetFavoriteCmd) isCommand()   {}

// ChartSubscriber is the provider capability the dispatcher uses to
// keep upstream subscriptions in sync with the controller map.
type ChartSubscriber interface {
	SubCharts(symbols []string) error
	UnsubCharts(symbols []string) error
	SubTick(symbols []string) error
	UnsubTick(symbols []string) error
}

// SymbolsPublisher emits the UPDATE_SYMBOLS broadcast.
type SymbolsPublisher interface {
	PublishSymbols(symbols []string)
}

// Logger is the dispatcher's structured-logging surface.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Dispatcher is the single owner of every symbol's Controller.
type Dispatcher struct {
	controllers map[string]*controller.Controller
	provider    ChartSubscriber
	symbolsPub  SymbolsPublisher
	useTickData bool
	logger      Logger
}

// New creates an empty dispatcher.
func New(provider ChartSubscriber, symbolsPub SymbolsPublisher, useTickData bool, logger Logger) *Dispatcher {
	return &Dispatcher{
		controllers: make(map[string]*controller.Controller),
		provider:    provider,
		symbolsPub:  symbolsPub,
		useTickData: useTickData,
		logger:      logger,
	}
}

// Add registers a controller at startup, before Run begins consuming.
// Initialization errors for a single symbol are the caller's
// responsibility to skip before calling Add — a failure here must not
// abort startup for other symbols.
func (d *Dispatcher) Add(ctrl *controller.Controller) {
	d.controllers[ctrl.Symbol] = ctrl
}

// Controllers returns the current symbol set, for diagnostics/tests.
func (d *Dispatcher) Controllers() map[string]*controller.Controller {
	return d.controllers
}

// Run is the dispatcher's single-consumer select loop. It returns when
// ctx is cancelled or both input channels are closed.
func (d *Dispatcher) Run(ctx context.Context, events <-chan StreamEvent, commands <-chan Command) {
	for {
		if events == nil && commands == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			d.handleEvent(ev)
		case cmd, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			d.handleCommand(cmd)
		}
	}
}

func (d *Dispatcher) handleEvent(ev StreamEvent) {
	switch e := ev.(type) {
	case EquityCandle:
		ctrl, ok := d.controllers[e.Symbol]
		if !ok {
			d.warn("candle for unknown symbol dropped", "symbol", e.Symbol)
			return
		}
		ctrl.OnNewCandle(e.Candle, true)
	case EquityTick:
		ctrl, ok := d.controllers[e.Symbol]
		if !ok {
			d.warn("tick for unknown symbol dropped", "symbol", e.Symbol)
			return
		}
		ctrl.OnTick(e.Quote)
	}
}

func (d *Dispatcher) handleCommand(cmd Command) {
	switch c := cmd.(type) {
	case PublishCmd:
		d.publishSymbols()
		for _, ctrl := range d.controllers {
			ctrl.Publish()
		}
	case ReInitializeCmd:
		d.reinitialize(c.Controller)
	case RemoveCmd:
		d.remove(c.Symbol)
	case SetFavoriteCmd:
		ctrl, ok := d.controllers[c.Symbol]
		if !ok {
			d.warn("set-favorite for unknown symbol", "symbol", c.Symbol)
			return
		}
		ctrl.SetFavorite(c.Favorite)
	}
}

func (d *Dispatcher) reinitialize(ctrl *controller.Controller) {
	d.controllers[ctrl.Symbol] = ctrl
	ctrl.Publish()
	if d.provider == nil {
		return
	}
	if err := d.provider.SubCharts([]string{ctrl.Symbol}); err != nil {
		d.logError("chart subscribe failed", "symbol", ctrl.Symbol, "err", err)
	}
	if d.useTickData {
		if err := d.provider.SubTick([]string{ctrl.Symbol}); err != nil {
			d.logError("tick subscribe failed", "symbol", ctrl.Symbol, "err", err)
		}
	}
}

func (d *Dispatcher) remove(symbol string) {
	if _, ok := d.controllers[symbol]; !ok {
		d.warn("remove for unknown symbol", "symbol", symbol)
		return
	}
	delete(d.controllers, symbol)
	if d.provider != nil {
		if err := d.provider.UnsubCharts([]string{symbol}); err != nil {
			d.logError("chart unsubscribe failed", "symbol", symbol, "err", err)
		}
		if d.useTickData {
			if err := d.provider.UnsubTick([]string{symbol}); err != nil {
				d.logError("tick unsubscribe failed", "symbol", symbol, "err", err)
			}
		}
	}
	d.publishSymbols()
}

func (d *Dispatcher) publishSymbols() {
	if d.symbolsPub == nil {
		return
	}
	symbols := make([]string, 0, len(d.controllers))
	for s := range d.controllers {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	d.symbolsPub.PublishSymbols(symbols)
}

func (d *Dispatcher) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}

func (d *Dispatcher) logError(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Error(msg, args...)
	}
}
