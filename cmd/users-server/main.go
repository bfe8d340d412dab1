// main is the entry point of the users server.
//
// STARTUP SEQUENCE:
//  1. Load configuration (YAML file optional, env overrides, defaults)
//  2. Initialise the logger
//  3. Open (and set up) the SQLite database
//  4. Bind the TCP listener and start accepting connections
//  5. Block until SIGINT / SIGTERM, then close the store and exit
//
// RUNNING THE SERVER:
//
//	go run ./cmd/users-server --config=config/local.yaml
//
// or with defaults only (port 80, users.db in the working directory):
//
//	go run ./cmd/users-server
package main

import (
	"log/slog"
	"os"

	"github.com/aanand-mishra/users-server/internal/config"
	"github.com/aanand-mishra/users-server/internal/server"
	"github.com/aanand-mishra/users-server/internal/shutdown"
	"github.com/aanand-mishra/users-server/internal/storage/sqlite"
)

func main() {
	// ── 1. Load Config ────────────────────────────────────────────────────
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting users-server",
		slog.String("env", cfg.Env),
		slog.String("version", "1.0.0"),
	)

	// ── 3. Initialise Storage ─────────────────────────────────────────────
	// Failing to open the database is the only persistence error that is
	// fatal; everything after this point is confined to one connection.
	storage, err := sqlite.New(cfg)
	if err != nil {
		log.Error("failed to initialise storage",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("storage initialised",
		slog.String("path", cfg.StoragePath))

	// ── 4. Start the TCP Server ───────────────────────────────────────────
	srv := server.New(cfg.TCPServer, storage, server.WithLogger(log))
	if err := srv.Start(); err != nil {
		log.Error("failed to start server",
			slog.String("error", err.Error()))
		storage.Close()
		os.Exit(1)
	}

	// ── 5. Wait for Shutdown Signal ───────────────────────────────────────
	// No drain: open connections are cut when the process exits.
	shutdown.New(storage, log).Wait(shutdown.Notify())
}

// setupLogger returns a *slog.Logger configured for the given environment.
//
// Development (dev): human-readable text output at DEBUG level.
// Production (prod): machine-readable JSON output at INFO level.
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case "staging":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	default:
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	}
}
