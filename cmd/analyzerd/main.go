// Command analyzerd runs the per-symbol analysis engine: it wires a
// data provider (live broker or stored-history replay), the dispatcher
// that owns every symbol's Controller, the Redis/SQLite persistence
// surface, Prometheus metrics, and the WebSocket gateway that fans
// snapshots out to clients.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trading-systemv1/config"
	"trading-systemv1/internal/analyzer/controller"
	"trading-systemv1/internal/analyzer/dispatcher"
	"trading-systemv1/internal/gateway"
	"trading-systemv1/internal/logger"
	"trading-systemv1/internal/markethours"
	"trading-systemv1/internal/metrics"
	"trading-systemv1/internal/provider"
	"trading-systemv1/internal/provider/live"
	"trading-systemv1/internal/provider/replay"
	redisstore "trading-systemv1/internal/store/redis"
	sqlitestore "trading-systemv1/internal/store/sqlite"
)

func main() {
	log := logger.Init("analyzerd", slog.LevelInfo)
	log.Info("starting analyzerd")

	cfg, crawlerConfigPath, err := config.FromArgs(os.Args[1:])
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if crawlerConfigPath != "" {
		log.Info("crawler config path given but crawling is out of core", "path", crawlerConfigPath)
	}

	prom := metrics.New()

	sqlStore, err := sqlitestore.Open(cfg.SQLitePath)
	if err != nil {
		log.Error("sqlite open failed", "err", err)
		os.Exit(1)
	}
	defer sqlStore.Close()

	var redisStore *redisstore.Store
	redisStore, err = redisstore.New(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}, log)
	if err != nil {
		log.Warn("redis unavailable, continuing without it", "err", err)
		redisStore = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	hub := gateway.NewHub(log, prom)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.Handle("/metrics", prom.Handler())
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server stopped", "err", err)
		}
	}()

	tradingHours, err := cfg.TradingHoursWindow()
	if err != nil {
		log.Error("invalid trading_hours", "err", err)
		os.Exit(1)
	}
	marketWindow, err := cfg.MarketWindow()
	if err != nil {
		log.Error("invalid open_hours", "err", err)
		os.Exit(1)
	}

	ctrlConfig := controller.Config{
		ChartConfigs:    cfg.ChartConfigList(),
		TradingHours:    tradingHours,
		UseExtendedHour: cfg.UseExtendedHour,
		UseTickData:     cfg.UseTickData,
		SR:              cfg.SupportResistanceConfig(),
	}

	var dataProvider provider.Provider
	if cfg.ReplayMode {
		rp := replay.New(sqlStore, log)
		go rp.Run(ctx)
		dataProvider = rp
		log.Info("running in replay mode", "replay_start_time", cfg.ReplayStartTime)
	} else {
		lp := live.New(live.Config{
			APIKey:     cfg.AngelAPIKey,
			ClientCode: cfg.AngelClientCode,
			Password:   cfg.AngelPassword,
			TOTPSecret: cfg.AngelTOTPSecret,
		}, log)
		lp.OnReconnect = func() { prom.WSReconnects.Inc() }
		go lp.Run(ctx, marketWindow)
		dataProvider = lp
	}

	disp := dispatcher.New(dataProvider, hub, cfg.UseTickData, dispatcherLogger{log})

	for _, symbol := range startupSymbols(ctx, redisStore, log) {
		ctrl, err := primeController(ctx, symbol, dataProvider, ctrlConfig, hub, log, cfg)
		if err != nil {
			log.Warn("skipping symbol at startup", "symbol", symbol, "err", err)
			continue
		}
		disp.Add(ctrl)
		if err := dataProvider.SubCharts([]string{symbol}); err != nil {
			log.Warn("chart subscribe failed", "symbol", symbol, "err", err)
		}
		if cfg.UseTickData {
			if err := dataProvider.SubTick([]string{symbol}); err != nil {
				log.Warn("tick subscribe failed", "symbol", symbol, "err", err)
			}
		}
	}

	commands := make(chan dispatcher.Command, 64)
	if redisStore != nil {
		go relayRedisCommands(ctx, redisStore, disp, ctrlConfig, dataProvider, hub, log, cfg, commands)
	}

	disp.Run(ctx, dataProvider.Listener(), commands)

	log.Info("dispatcher stopped, shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx)
}

// startupSymbols returns the initial symbol set: favorites persisted
// in Redis, or none if Redis is unavailable (symbols then arrive
// purely via the command bus's ReInitialize commands).
func startupSymbols(ctx context.Context, store *redisstore.Store, log *slog.Logger) []string {
	if store == nil {
		return nil
	}
	symbols, err := store.Favorites(ctx)
	if err != nil {
		log.Warn("loading favorites failed", "err", err)
		return nil
	}
	return symbols
}

func primeController(ctx context.Context, symbol string, p provider.Provider, ctrlConfig controller.Config, hub *gateway.Hub, log *slog.Logger, cfg *config.Config) (*controller.Controller, error) {
	inst, err := p.SearchSymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	start := time.Now().AddDate(0, 0, -cfg.LookBackDays)
	if ts, ok, err := cfg.ReplayStart(); err == nil && ok {
		start = ts
	}
	initBatch, _, err := p.FetchPriceHistory(ctx, symbol, start)
	if err != nil {
		return nil, err
	}

	ctrl := controller.New(symbol, inst, ctrlConfig, hub, controllerLogger{log})
	ctrl.Prime(initBatch)
	return ctrl, nil
}

// relayRedisCommands translates the Redis command bus into dispatcher
// commands, reconstructing a fresh Controller for reinitialize so the
// dispatcher never reaches back into this goroutine's state.
func relayRedisCommands(ctx context.Context, store *redisstore.Store, disp *dispatcher.Dispatcher, ctrlConfig controller.Config, p provider.Provider, hub *gateway.Hub, log *slog.Logger, cfg *config.Config, out chan<- dispatcher.Command) {
	for msg := range store.SubscribeCommands(ctx) {
		switch msg.Type {
		case "publish":
			out <- dispatcher.PublishCmd{}
		case "set_favorite":
			out <- dispatcher.SetFavoriteCmd{Symbol: msg.Symbol, Favorite: msg.Favorite}
		case "remove":
			out <- dispatcher.RemoveCmd{Symbol: msg.Symbol}
		case "reinitialize":
			ctrl, err := primeController(ctx, msg.Symbol, p, ctrlConfig, hub, log, cfg)
			if err != nil {
				log.Warn("reinitialize failed", "symbol", msg.Symbol, "err", err)
				continue
			}
			out <- dispatcher.ReInitializeCmd{Controller: ctrl}
		default:
			log.Warn("unknown command type", "type", msg.Type)
		}
	}
	close(out)
}

type dispatcherLogger struct{ l *slog.Logger }

func (d dispatcherLogger) Warn(msg string, args ...any)  { d.l.Warn(msg, args...) }
func (d dispatcherLogger) Error(msg string, args ...any) { d.l.Error(msg, args...) }

type controllerLogger struct{ l *slog.Logger }

func (c controllerLogger) Warn(msg string, args ...any)  { c.l.Warn(msg, args...) }
func (c controllerLogger) Error(msg string, args ...any) { c.l.Error(msg, args...) }
