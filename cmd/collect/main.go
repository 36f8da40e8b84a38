// Package main is the collection entry point: it fetches activities and
// kudos from the remote API into the local CSV cache.
//
// The main package stays minimal — read flags and config, wire the
// dependency chain (credentials → API client → store → collector), run the
// requested operation. All actual logic lives in internal/.
//
// DEPENDENCY CHAIN:
//
//	creds.Store  → implements strava.Credentials (token refresh + headers)
//	strava.Client → implements collector.API (retry/rate-limit aware fetches)
//	store.Dir    → the CSV/JSON cache on disk
//	collector.Collector → orchestrates incremental collection
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sakif/kudoscope/internal/collector"
	"github.com/sakif/kudoscope/internal/config"
	"github.com/sakif/kudoscope/internal/creds"
	"github.com/sakif/kudoscope/internal/store"
	"github.com/sakif/kudoscope/internal/strava"
)

func main() {
	var (
		configPath     = flag.String("config", "config.yaml", "path to the YAML config file (optional)")
		activitiesOnly = flag.Bool("activities-only", false, "fetch activities, skip the kudos backfill")
		kudosOnly      = flag.Bool("kudos-only", false, "run only the kudos backfill over cached activities")
		kudosBatchSize = flag.Int("kudos-batch-size", 0, "activities per kudos backfill batch (default from config)")
		maxActivities  = flag.Int("max-activities", 0, "cap on newly fetched activities (0 = no cap)")
		statusOnly     = flag.Bool("status", false, "print the collection status and exit")
		detailIDs      = flag.String("details", "", "comma-separated activity ids: fetch their detail records, print as JSON, and exit")
	)
	flag.Parse()

	logger := newLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	st, err := store.New(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open data directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	credStore, err := creds.Load(cfg.CredFile, logger)
	if err != nil {
		logger.Error("failed to load credentials — run the setup command first",
			slog.String("file", cfg.CredFile),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	client := strava.NewClient(credStore, cfg.API.BaseURL, logger,
		strava.WithCooldown(cfg.API.RateLimitCooldown()),
	)
	c := collector.New(client, st, logger, collector.Config{
		PerPage:        cfg.API.PerPage,
		PageDelay:      cfg.API.PageDelay(),
		KudosDelay:     cfg.API.KudosDelay(),
		KudosBatchSize: cfg.Collector.KudosBatchSize,
	})

	if *statusOnly {
		status, err := c.Status()
		if err != nil {
			logger.Error("failed to build status", slog.String("error", err.Error()))
			os.Exit(1)
		}
		out, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(out))
		return
	}

	// Collection runs can take hours with the politeness delays; Ctrl-C
	// cancels the context and the current sleep aborts early.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *detailIDs != "" {
		ids, err := parseIDs(*detailIDs)
		if err != nil {
			logger.Error("invalid -details value", slog.String("error", err.Error()))
			os.Exit(1)
		}
		details, err := c.FetchDetails(ctx, ids)
		if err != nil {
			logger.Error("detail fetch failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		out, _ := json.MarshalIndent(details, "", "  ")
		fmt.Println(string(out))
		return
	}

	if !*kudosOnly {
		added, err := c.FetchActivities(ctx, *maxActivities)
		if err != nil {
			logger.Error("activity fetch failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Printf("Fetched %d new activities\n", added)
	}

	if !*activitiesOnly {
		added, err := c.FetchKudos(ctx, nil, *kudosBatchSize)
		if err != nil {
			// Earlier activities in the batch were persisted before the
			// failure surfaced.
			logger.Error("kudos backfill aborted",
				slog.Int("records_kept", added),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
		fmt.Printf("Collected %d new kudos records\n", added)
	}
}

func parseIDs(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("activity id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// newLogger builds the process logger; LOG_LEVEL selects debug/info/warn/error.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
