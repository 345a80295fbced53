// Package main is the entry point for the windowtrader engine.
// It initializes all components and starts the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/marcusklein/windowtrader/backend/api"
	"github.com/marcusklein/windowtrader/backend/clock"
	"github.com/marcusklein/windowtrader/backend/config"
	"github.com/marcusklein/windowtrader/backend/data"
	"github.com/marcusklein/windowtrader/backend/engine"
	"github.com/marcusklein/windowtrader/backend/execution"
	"github.com/marcusklein/windowtrader/backend/executor"
	"github.com/marcusklein/windowtrader/backend/live"
	"github.com/marcusklein/windowtrader/backend/machine"
	"github.com/marcusklein/windowtrader/backend/markethours"
	"github.com/marcusklein/windowtrader/backend/metrics"
	"github.com/marcusklein/windowtrader/backend/notifications"
	"github.com/marcusklein/windowtrader/backend/models"
	"github.com/marcusklein/windowtrader/backend/realtime"
	"github.com/marcusklein/windowtrader/backend/signals"
	"github.com/marcusklein/windowtrader/backend/sizing"
	"github.com/marcusklein/windowtrader/backend/tickhub"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	log.Info().Msg("Starting windowtrader engine...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// windowtrader always trades through the Paper Broker — spec.md has no
	// live-order-placement mode in scope, so fills always cross in the
	// paper book. When BinanceAPIKey/Secret are set a live.Feed is created
	// and handed to the engine, which only stops it at shutdown; nothing
	// subscribes it to a symbol, so it delivers no ticks to the Tick Hub.
	log.Info().Msg("Paper trading mode")

	exec := executor.New(0)
	defer exec.Stop()
	clk := clock.NewRealClock(exec)
	hub := tickhub.New(exec)

	db, err := data.NewDB(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	orderStore := data.NewOrderStore(db)
	machineStore := data.NewMachineStore(db)
	notificationStore := data.NewNotificationStore(db)

	wsManager := realtime.NewWebSocketManager()
	go wsManager.Run()

	risk := execution.NewRiskManager(&execution.RiskConfig{
		MaxDailyLoss:  cfg.RiskMaxDailyLoss,
		MaxOpenOrders: cfg.RiskMaxOpenOrders,
	})

	rule := brokerageRule(cfg)
	broker := execution.NewPaperBroker(hub, cfg.Capital, rule, risk)
	if err := broker.Connect(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to paper broker")
	}

	orderManager := execution.NewOrderManager(broker, orderStore, wsManager)
	if err := orderManager.LoadOrders(); err != nil {
		log.Warn().Err(err).Msg("Failed to load orders from database")
	}
	broker.SetFillListener(func(order models.Order, trade models.Trade) {
		orderManager.RecordFill(order, trade)
		metrics.ObserveFill(order.Symbol, order.Side, broker.OpenQty(order.Symbol))
		var symRealized float64
		for _, tr := range broker.Trades() {
			if tr.Symbol == order.Symbol {
				symRealized += tr.RealizedDelta - tr.BrokerageDelta
			}
		}
		metrics.ObserveRealizedPL(order.Symbol, symRealized)
	})

	notificationManager := notifications.NewManager(notificationStore, wsManager)

	sizer := sizing.New(cfg.Capital, sizing.DefaultLotSizes(), broker.OpenQty, underlyingOf)

	machineCfg := machine.Config{
		EntryOffset:        cfg.EntryOffset,
		ExitOffset:         cfg.ExitOffset,
		StopLossPoints:     cfg.StopLossPoints,
		WindowDuration:     cfg.WindowDuration,
		MissingPricePolicy: missingPricePolicy(cfg),
	}
	registry := machine.NewRegistry(machineCfg, clk, hub, broker, sizer)
	registry.SetRecorder(metrics.NewRecorder())

	if cfg.PersistMachineState {
		snaps, err := machineStore.GetAllSnapshots()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load machine snapshots from database")
		}
		for _, snap := range snaps {
			registry.Restore(snap)
		}
	}

	gateCfg, err := markethours.FromSource(markethours.ConfigSource{
		MarketTZ:        cfg.MarketTZ,
		MarketDays:      cfg.MarketDays,
		MarketStart:     cfg.MarketStart,
		MarketEnd:       cfg.MarketEnd,
		MarketHolidays:  cfg.MarketHolidays,
		AllowAfterHours: cfg.AllowAfterHours,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build market-hours gate")
	}
	gate := markethours.New(gateCfg)

	router := signals.NewRouter(exec, registry)
	router.SetGate(gate)

	var feed engine.Feed
	if cfg.BinanceAPIKey != "" && cfg.BinanceAPISecret != "" {
		feed = live.NewFeed(hub, cfg.UseBinanceUS)
		log.Info().Msg("Live market feed enabled")
	}

	tradingEngine := engine.New(registry, broker, feed, cfg.CloseOnShutdown)
	ctx, cancelEngine := context.WithCancel(context.Background())
	if err := tradingEngine.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start engine")
	}

	apiRouter := api.NewRouter(cfg, registry, router, broker, orderManager, wsManager, notificationManager, gate)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:      apiRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Msgf("API server listening on %s:%d", cfg.ServerHost, cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	cancelEngine()
	tradingEngine.Stop()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}

// underlyingOf extracts the underlying index/stock name from an
// option-style instrument key by truncating at the first digit, per
// spec.md §4.4's NIFTY25JUL23500CE -> NIFTY example.
func underlyingOf(sym string) string {
	idx := strings.IndexFunc(sym, unicode.IsDigit)
	if idx < 0 {
		return sym
	}
	return sym[:idx]
}

func brokerageRule(cfg *config.Config) execution.BrokerageRule {
	switch cfg.BrokeragePolicy {
	case "per_trade_rate":
		return execution.PerTradeRate{Rate: cfg.BrokerageParam}
	case "global_profit_share":
		return execution.GlobalProfitShare{Share: cfg.BrokerageParam}
	default:
		return execution.NoBrokerage{}
	}
}

func missingPricePolicy(cfg *config.Config) machine.MissingPricePolicy {
	switch cfg.MissingPricePolicyName {
	case "wait_then_seed":
		return machine.MissingPriceWaitThenSeed
	case "fail":
		return machine.MissingPriceFail
	default:
		return machine.MissingPriceUseSeed
	}
}
