// Package main is the entry point for the homepage API server.
//
// The main package stays minimal. Its job is to:
//  1. Read configuration (env vars, .env, an optional config file)
//  2. Create the logger
//  3. Hand both to internal/server and block until shutdown
//
// Operator tasks that need the database but not HTTP (creating the admin
// account, pruning by hand) live in cmd/sitectl.
package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/homepage/internal/config"
	"github.com/sakif/homepage/internal/server"
)

func main() {
	configFile := flag.String("config", "", "optional config file (yaml, toml or json)")
	flag.Parse()

	// === 1. CONFIGURATION ===
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. LOGGING ===
	// Validate has already checked LOG_LEVEL, so the error is impossible here.
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if cfg.GeneratedSecret {
		logger.Warn("SID_SECRET not set, using a random one; visitor ids will reset on restart")
	}

	// === 3. DATABASE DIRECTORY ===
	// SQLite creates the file but not its parent directory.
	if cfg.IsSQLiteFile() {
		dbDir := filepath.Dir(cfg.DatabaseURL)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 4. SERVE ===
	srv, err := server.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
