package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mplosser/data-call-report/internal/config"
	"github.com/mplosser/data-call-report/internal/infrastructure"
)

// App holds what every pipeline binary needs after startup.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Telemetry *infrastructure.Telemetry
	RunID     string
}

// New bootstraps a pipeline binary: configuration, the process logger,
// the data directories, and telemetry, in that order. The name tags
// every log record the binary emits.
func New(name string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// The log file path resolves against the configured logs directory.
	logCfg := cfg.Logging
	logCfg.FilePath = cfg.LogFile()
	logger, err := infrastructure.InitializeLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = logger.With(slog.String("binary", name))

	runID := infrastructure.GenerateRunID()
	logger.Info("starting",
		slog.String("version", infrastructure.ServiceVersion),
		slog.String("run_id", runID),
		slog.String("data_dir", cfg.Paths.DataDir))

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}

	telemetry, err := infrastructure.InitializeTelemetry(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Telemetry: telemetry,
		RunID:     runID,
	}, nil
}

// Context returns the run context: it carries the run ID, so records
// logged through it are tagged, and it is cancelled on SIGINT or
// SIGTERM so in-flight work can stop at a clean boundary.
func (a *App) Context() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return infrastructure.WithRunID(ctx, a.RunID), cancel
}

// Shutdown flushes telemetry and closes the log file. Failures are
// logged rather than returned since the run's work is already done.
func (a *App) Shutdown(ctx context.Context) {
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}
	if err := infrastructure.CloseLogFile(); err != nil {
		a.Logger.Error("closing log file failed", slog.String("error", err.Error()))
	}
}
