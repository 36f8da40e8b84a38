// Package main serves the collected dataset over HTTP: status, metadata,
// charts, and Prometheus metrics. Read-only — collection stays with the
// collect command.
package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/sakif/kudoscope/internal/config"
	"github.com/sakif/kudoscope/internal/report"
	"github.com/sakif/kudoscope/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to the YAML config file (optional)")
		port       = flag.Int("port", 0, "listen port (overrides config)")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Report.Port = *port
	}

	st, err := store.New(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open data directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv := report.New(report.Config{Port: cfg.Report.Port, ChartsDir: cfg.ChartsDir}, st, logger)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
