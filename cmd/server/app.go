package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/phrazzld/audio2srt/internal/config"
	"github.com/phrazzld/audio2srt/internal/events"
	"github.com/phrazzld/audio2srt/internal/job"
	"github.com/phrazzld/audio2srt/internal/platform/ffmpeg"
	"github.com/phrazzld/audio2srt/internal/platform/gemini"
	"github.com/phrazzld/audio2srt/internal/platform/postgres"
	"github.com/phrazzld/audio2srt/internal/platform/rediscache"
	"github.com/phrazzld/audio2srt/internal/platform/whisper"
	"github.com/phrazzld/audio2srt/internal/redact"
	"github.com/phrazzld/audio2srt/internal/service/auth"
	"github.com/phrazzld/audio2srt/internal/store"
	"github.com/phrazzld/audio2srt/internal/transcribe"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB
	cache  *rediscache.Cache

	// Transcription
	transcriber *transcribe.Service

	// Jobs
	jobStore store.JobStore
	runner   *job.Runner
	emitter  *events.InMemoryEventEmitter
	hub      *events.Hub

	// Auth (nil when disabled)
	jwtService auth.JWTService
	apiKeys    *auth.APIKeyVerifier
}

// newApplication creates a new application instance with all dependencies
// initialized. On error every resource opened so far is released.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *application, err error) {
	app := &application{
		config: cfg,
		logger: logger,
	}
	defer func() {
		if err != nil {
			app.cleanup()
		}
	}()

	if err := app.setupAuth(); err != nil {
		return nil, err
	}

	engine, err := newEngine(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Transcription engine initialized", "engine", engine.Name())

	var converter transcribe.Converter
	if cfg.FFmpeg.Enabled {
		conv := ffmpeg.NewConverter(cfg.FFmpeg.BinaryPath, logger)
		if !conv.Available() {
			logger.Warn("ffmpeg not found, non-WAV uploads will fail for engines that need WAV",
				"binary", cfg.FFmpeg.BinaryPath)
		}
		converter = conv
	}

	var cache transcribe.Cache
	if cfg.Redis.Addr != "" {
		app.cache, err = rediscache.New(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("Transcript cache unavailable, continuing without it", "error", redact.Error(err))
			err = nil
		} else {
			cache = app.cache
			logger.Info("Transcript cache enabled", "ttl_minutes", cfg.Redis.TTLMinutes)
		}
	}

	app.transcriber, err = transcribe.NewService(engine, converter, cache, transcribe.ServiceConfig{
		DefaultLanguage: cfg.Whisper.Language,
		Concurrency:     cfg.Whisper.Concurrency,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcribe service: %w", err)
	}

	if err := app.setupJobStore(ctx); err != nil {
		return nil, err
	}

	app.emitter = events.NewInMemoryEventEmitter(logger)
	app.hub = events.NewHub(events.DefaultSubscriberBuffer)
	app.emitter.RegisterHandler(app.hub)

	app.runner = job.NewRunner(app.jobStore, app.transcriber, app.emitter, job.RunnerConfig{
		WorkerCount: cfg.Jobs.WorkerCount,
		QueueSize:   cfg.Jobs.QueueSize,
		SpoolDir:    cfg.Jobs.SpoolDir,
		StuckJobAge: time.Duration(cfg.Jobs.StuckJobAgeMinutes) * time.Minute,
	}, logger)
	if err := app.runner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start job runner: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// newEngine builds the configured transcription backend.
func newEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (transcribe.Engine, error) {
	switch cfg.Whisper.Backend {
	case config.BackendGemini:
		engine, err := gemini.NewEngine(ctx, logger, cfg.Gemini)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini engine: %w", err)
		}
		return engine, nil
	default:
		engine, err := whisper.NewEngine(cfg.Whisper, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize whisper engine: %w", err)
		}
		return engine, nil
	}
}

// setupAuth creates the JWT service and API key verifier for whichever
// methods are configured.
func (app *application) setupAuth() error {
	cfg := app.config.Auth
	if !cfg.Enabled() {
		app.logger.Warn("Authentication disabled, all endpoints are public")
		return nil
	}

	if cfg.JWTSecret != "" {
		svc, err := auth.NewJWTService(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize JWT service: %w", err)
		}
		app.jwtService = svc
		app.logger.Info("JWT authentication service initialized",
			"token_lifetime_minutes", cfg.TokenLifetimeMinutes)
	}

	keys, err := auth.NewAPIKeyVerifier(cfg.APIKeyHashes)
	if err != nil {
		return fmt.Errorf("failed to initialize API key verifier: %w", err)
	}
	app.apiKeys = keys
	return nil
}

// setupJobStore connects to PostgreSQL when a URL is configured and applies
// pending migrations, otherwise keeps jobs in memory.
func (app *application) setupJobStore(ctx context.Context) error {
	if app.config.Database.URL == "" {
		app.logger.Info("No database configured, jobs are kept in memory")
		app.jobStore = job.NewMemoryStore()
		return nil
	}

	db, err := postgres.Open(ctx, app.config.Database.URL)
	if err != nil {
		return err
	}
	app.db = db

	if err := postgres.Migrate(ctx, db, "up", app.logger); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	app.jobStore = postgres.NewPostgresJobStore(db)
	app.logger.Info("Database connection established")
	return nil
}

// Run starts the application server, handling lifecycle and cleanup.
func (app *application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", app.config.Server.Addr())
	if err != nil {
		app.cleanup()
		return fmt.Errorf("failed to listen on %s: %w", app.config.Server.Addr(), err)
	}

	if err := app.startHTTPServer(ctx, ln, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.runner != nil {
		app.runner.Stop()
	}

	if app.cache != nil {
		if err := app.cache.Close(); err != nil {
			app.logger.Error("Error closing redis client", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
