// Package main runs the kudos analysis over the cached dataset and renders
// the charts. It never talks to the remote API.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/sakif/kudoscope/internal/analyzer"
	"github.com/sakif/kudoscope/internal/config"
	"github.com/sakif/kudoscope/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to the YAML config file (optional)")
		dataDir    = flag.String("data-dir", "", "data directory (overrides config)")
		chartsDir  = flag.String("charts-dir", "", "chart output directory (overrides config)")
		topGivers  = flag.Int("top", 30, "rows in the top kudos givers ranking")
		noCharts   = flag.Bool("no-charts", false, "skip chart rendering")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *chartsDir != "" {
		cfg.ChartsDir = *chartsDir
	}

	st, err := store.New(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open data directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	a := analyzer.New(st, os.Stdout, logger, analyzer.WithTopGivers(*topGivers))
	ds, err := a.RunAll()
	if err != nil {
		logger.Error("analysis failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if !*noCharts {
		if err := a.RenderCharts(ds, cfg.ChartsDir); err != nil {
			logger.Error("chart rendering failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
}
