// Package main walks through the one-time API setup: it writes the
// credential file and completes the OAuth authorization code flow so the
// collector has a token pair to work with.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sakif/kudoscope/internal/config"
	"github.com/sakif/kudoscope/internal/creds"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file (optional)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	in := bufio.NewReader(os.Stdin)
	fmt.Println("API application setup")
	fmt.Println("Create an application at https://www.strava.com/settings/api first.")
	fmt.Println()

	clientID := prompt(in, "Client ID: ")
	clientSecret := prompt(in, "Client Secret: ")
	if clientID == "" || clientSecret == "" {
		fmt.Fprintln(os.Stderr, "client id and secret are required")
		os.Exit(1)
	}

	if err := creds.WriteInitial(cfg.CredFile, clientID, clientSecret); err != nil {
		logger.Error("failed to write credential file", slog.String("error", err.Error()))
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n\n", cfg.CredFile)

	credStore, err := creds.Load(cfg.CredFile, logger)
	if err != nil {
		logger.Error("failed to load credential file", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Println("Open this URL in your browser and authorize the application:")
	fmt.Println()
	fmt.Println("  " + credStore.AuthCodeURL())
	fmt.Println()
	fmt.Println("After authorizing you are redirected to a localhost URL.")
	fmt.Println("Copy the value of its `code` query parameter.")
	fmt.Println()

	code := prompt(in, "Authorization code: ")
	if code == "" {
		fmt.Fprintln(os.Stderr, "authorization code is required")
		os.Exit(1)
	}

	if err := credStore.Exchange(context.Background(), code); err != nil {
		logger.Error("token exchange failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Println("\nSetup complete. Tokens saved — you can now run the collector.")
}

func prompt(in *bufio.Reader, label string) string {
	fmt.Print(label)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimSpace(line)
}
