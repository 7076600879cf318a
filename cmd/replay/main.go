package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"pairs-bot/internal/config"
	"pairs-bot/internal/logging"
	"pairs-bot/internal/paper"
	"pairs-bot/internal/strategy"

	"go.uber.org/zap"
)

func main() {
	input := flag.String("input", "", "CSV of book rows: sequence,instrument,bid_price,bid_volume,ask_price,ask_volume (- for stdin)")
	configPath := flag.String("config", "", "optional config path for strategy settings")
	logLevel := flag.String("log-level", "warn", "log level when no config is given")
	flag.Parse()

	if *input == "" {
		fatal(errors.New("-input is required"))
	}

	cfg := config.Default()
	cfg.Log.Level = *logLevel
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fatal(err)
		}
		cfg = loaded
	}
	if err := config.ValidateStrategy(cfg.Strategy); err != nil {
		fatal(err)
	}
	log := logging.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	var r io.Reader = os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			fatal(err)
		}
		defer f.Close()
		r = f
	}
	books, err := paper.ReadBooks(r)
	if err != nil {
		fatal(err)
	}
	log.Info("replaying books", zap.Int("books", len(books)), zap.String("input", *input))

	engine := paper.NewEngine(log.Named("paper"))
	trader := strategy.NewTrader(cfg.Strategy, engine, log.Named("trader"))
	report := paper.Replay(books, trader, engine)

	stats := trader.Spread().Stats()
	fmt.Printf("events:          %d\n", len(books))
	fmt.Printf("spread samples:  %d (mean %.2f)\n", stats.Count, stats.Mean)
	fmt.Printf("orders inserted: %d\n", report.Inserts)
	fmt.Printf("orders cancelled: %d\n", report.Cancels)
	fmt.Printf("fills:           %d\n", report.Fills)
	fmt.Printf("hedges:          %d\n", report.HedgeFills)
	fmt.Printf("rejects:         %d\n", report.Rejects)
	fmt.Printf("etf position:    %d\n", report.ETFPosition)
	fmt.Printf("future position: %d\n", report.FuturePosition)
	fmt.Printf("cash:            $%s\n", report.Cash.StringFixed(2))
	fmt.Printf("pnl:             $%s\n", report.PnL.StringFixed(2))
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
