// Package cli provides common process bootstrap shared by cmd/bbledger and
// cmd/sync-relay.
package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bbledger/internal/config"
	"bbledger/internal/core"
	"bbledger/internal/log"
	"bbledger/internal/storage"
)

// SetupLogger builds the process logger at level writing to out and
// installs it as the slog default.
func SetupLogger(level, component string, out io.Writer) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Component = component
	cfg.Output = out
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithFields(log.NewFields().WithOperation(log.OpStartup).WithError(err)).
			Error("Configuration validation failed")
		os.Exit(1)
	}
	return cfg
}

// OpenStore opens the database at path, brings its schema up to date and,
// when seedUser is not empty, seeds the starter data for that user.
func OpenStore(ctx context.Context, path, seedUser string) (*storage.DB, error) {
	db, err := storage.Open(ctx, path)
	if err != nil {
		return nil, &core.FatalStartupError{Stage: "open", Err: err}
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if seedUser != "" {
		if _, err := storage.NewSeeder(db).SeedDefaultsIfFirstRun(ctx, seedUser); err != nil {
			db.Close()
			return nil, &core.FatalStartupError{Stage: "seed", Err: err}
		}
	}
	return db, nil
}

// MustOpenStore is OpenStore for long-running processes: a startup failure
// is logged and the process exits.
func MustOpenStore(ctx context.Context, logger *log.Logger, path, seedUser string) *storage.DB {
	db, err := OpenStore(ctx, path, seedUser)
	if err != nil {
		startup := logger.WithFields(log.NewFields().WithOperation(log.OpStartup))
		var fatal *core.FatalStartupError
		if errors.As(err, &fatal) {
			startup.Error("Storage startup failed", "stage", fatal.Stage, log.FieldError, fatal.Err, "path", path)
		} else {
			startup.Error("Storage startup failed", log.FieldError, err, "path", path)
		}
		os.Exit(1)
	}
	return db
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has finished or timed out.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		shutdown := logger.WithFields(log.NewFields().WithOperation(log.OpShutdown))
		shutdown.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-shutdownCtx.Done():
			shutdown.Warn("Shutdown timeout reached")
		case <-finished:
			shutdown.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
