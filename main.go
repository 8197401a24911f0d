package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"hft-sim/src/config"
	"hft-sim/src/csvport"
	"hft-sim/src/engine"
	"hft-sim/src/logger"
	"hft-sim/src/telemetry"
	"hft-sim/src/trader"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, cfg.LogPretty)
	log := logger.GetLogger()

	log.Info().
		Strs("symbols", cfg.Symbols).
		Int("traders", cfg.Traders.Count).
		Dur("run_duration", cfg.RunDuration).
		Msg("Initializing trading simulation")

	metrics := telemetry.New()
	eng := engine.NewEngineWithConfig(engine.Config{
		TradeHistoryCapacity: cfg.Engine.TradeHistoryCapacity,
		BookTradeCapacity:    cfg.Engine.BookTradeCapacity,
		LatencyWindowSize:    cfg.Engine.LatencyWindowSize,
		QueueCapacity:        cfg.Engine.QueueCapacity,
		BatchSize:            cfg.Engine.BatchSize,
		Metrics:              metrics,
	})

	eng.Subscribe(func(stats engine.PerformanceStats) {
		log.Debug().
			Int64("trades", stats.TotalTrades).
			Int64("volume", stats.TotalVolume).
			Float64("orders_per_sec", stats.OrdersPerSecond).
			Float64("avg_latency_ms", stats.AvgLatencyMs).
			Int("active_orders", stats.ActiveOrders).
			Msg("Engine stats")
	})

	eng.Start()

	traderCfg := trader.DefaultConfig()
	traderCfg.MinOrderSize = cfg.Traders.MinOrderSize
	traderCfg.MaxOrderSize = cfg.Traders.MaxOrderSize
	traderCfg.Volatility = cfg.Traders.Volatility
	traderCfg.MinInterval = time.Duration(cfg.Traders.MinIntervalMs) * time.Millisecond
	traderCfg.MaxInterval = time.Duration(cfg.Traders.MaxIntervalMs) * time.Millisecond

	initialCashCents := int64(cfg.Traders.InitialCash * 100)

	traders := make([]*trader.Trader, 0, cfg.Traders.Count)
	for i := 0; i < cfg.Traders.Count; i++ {
		t := trader.New(
			fmt.Sprintf("BOT_%03d", i+1),
			initialCashCents,
			cfg.Symbols,
			eng,
			traderCfg,
		)
		eng.RegisterTrader(t)
		traders = append(traders, t)
	}

	if cfg.ImportFile != "" {
		importOrders(cfg.ImportFile, eng)
	}

	for _, t := range traders {
		t.Start()
	}
	log.Info().Int("traders", len(traders)).Msg("Simulation running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Received shutdown signal, stopping simulation")
	case <-time.After(cfg.RunDuration):
		log.Info().Msg("Run duration elapsed, stopping simulation")
	}

	for _, t := range traders {
		t.Stop()
	}
	eng.Stop()

	logSummary(eng, traders)

	if cfg.Export.Dir != "" {
		if err := writeExports(cfg, eng, traders); err != nil {
			log.Error().Err(err).Msg("Failed to write exports")
		}
	}
}

func importOrders(path string, eng *engine.Engine) {
	log := logger.GetLogger()

	f, err := os.Open(path)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("Failed to open import file")
		return
	}
	defer f.Close()

	result := csvport.ImportOrders(f, eng)
	if !result.Success {
		log.Error().Str("error", result.Error).Str("file", path).Msg("Import rejected")
		return
	}
	for row, msg := range result.Errors {
		log.Warn().Int("row", row).Str("error", msg).Msg("Import row skipped")
	}
}

func logSummary(eng *engine.Engine, traders []*trader.Trader) {
	log := logger.GetLogger()

	stats := eng.PerformanceStats()
	log.Info().
		Int64("total_trades", stats.TotalTrades).
		Int64("total_volume", stats.TotalVolume).
		Float64("trades_per_sec", stats.TradesPerSecond).
		Float64("avg_latency_ms", stats.AvgLatencyMs).
		Int("active_orders", stats.ActiveOrders).
		Int("symbols", stats.SymbolsActive).
		Msg("Simulation finished")

	summary := eng.MarketSummary()
	symbols := make([]string, 0, len(summary))
	for s := range summary {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		row := summary[symbol]
		log.Info().
			Str("symbol", symbol).
			Int64("best_bid", row.BestBid).
			Int64("best_ask", row.BestAsk).
			Float64("vwap", row.VWAP).
			Int64("resting_volume", row.RestingVolume).
			Msg("Market summary")
	}

	for _, t := range traders {
		s := t.TradingStats()
		log.Info().
			Str("trader_id", s.TraderID).
			Int64("cash", s.Cash).
			Float64("total_pnl", s.TotalPnL).
			Int64("orders_sent", s.OrdersSent).
			Int64("orders_filled", s.OrdersFilled).
			Msg("Trader summary")
	}
}

func writeExports(cfg *config.Config, eng *engine.Engine, traders []*trader.Trader) error {
	if err := os.MkdirAll(cfg.Export.Dir, 0o755); err != nil {
		return err
	}

	write := func(name string, fn func(f *os.File) error) error {
		f, err := os.Create(filepath.Join(cfg.Export.Dir, name))
		if err != nil {
			return err
		}
		defer f.Close()
		return fn(f)
	}

	if err := write("trades.csv", func(f *os.File) error {
		return csvport.ExportTrades(f, eng.AllTrades())
	}); err != nil {
		return err
	}

	if err := write("orderbooks.csv", func(f *os.File) error {
		books := eng.Books()
		symbols := make([]string, 0, len(books))
		for s := range books {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)
		ordered := make([]*engine.OrderBook, 0, len(books))
		for _, s := range symbols {
			ordered = append(ordered, books[s])
		}
		return csvport.ExportOrderBooks(f, ordered, cfg.Export.Depth)
	}); err != nil {
		return err
	}

	if err := write("traders.csv", func(f *os.File) error {
		stats := make([]trader.Stats, 0, len(traders))
		for _, t := range traders {
			stats = append(stats, t.TradingStats())
		}
		return csvport.ExportTraderPerformance(f, stats)
	}); err != nil {
		return err
	}

	if err := write("metrics.csv", func(f *os.File) error {
		return csvport.ExportEngineMetrics(f, eng.PerformanceStats())
	}); err != nil {
		return err
	}

	return write("market_summary.csv", func(f *os.File) error {
		return csvport.ExportMarketSummary(f, eng.MarketSummary())
	})
}
