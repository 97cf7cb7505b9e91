// Package main implements the audio2srt API server, which transcribes
// uploaded audio into timestamped text and subtitle files.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/audio2srt/internal/config"
	"github.com/phrazzld/audio2srt/internal/platform/logger"
	"github.com/phrazzld/audio2srt/internal/platform/postgres"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	migrateCmd := flag.String("migrate", "", "run a database migration command (up|down|status|version|redo|reset) and exit")
	flag.Parse()

	if err := run(*migrateCmd); err != nil {
		slog.Error("audio2srt server exited with error", "error", err)
		os.Exit(1)
	}
}

// run loads configuration and either executes a migration command or serves
// HTTP until SIGINT or SIGTERM.
func run(migrateCmd string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrateCmd != "" {
		return runMigrations(ctx, cfg, migrateCmd, log)
	}

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}

// loadAppConfig loads the application configuration from environment
// variables or config file.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("Server configuration loaded",
		"version", version,
		"addr", cfg.Server.Addr(),
		"log_level", cfg.Server.LogLevel,
		"backend", cfg.Whisper.Backend,
		"model", cfg.Whisper.Model)

	if cfg.Database.URL != "" {
		slog.Debug("Database configuration", "url_present", true)
	}
	if cfg.Redis.Addr != "" {
		slog.Debug("Redis configuration", "addr_present", true)
	}
	if cfg.Auth.Enabled() {
		slog.Debug("Auth configuration",
			"jwt_secret_present", cfg.Auth.JWTSecret != "",
			"api_key_count", len(cfg.Auth.APIKeyHashes))
	}

	return cfg, nil
}

// runMigrations executes a goose command against the configured database.
func runMigrations(ctx context.Context, cfg *config.Config, command string, log *slog.Logger) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url must be set to run migrations")
	}

	db, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database connection", "error", err)
		}
	}()

	log.Info("Executing migrations", "command", command)
	return postgres.Migrate(ctx, db, command, log)
}
