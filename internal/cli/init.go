// Package cli holds the process bootstrap shared by the binaries: config
// loading, logger setup and signal-driven shutdown.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expenses/internal/config"
	applog "expenses/internal/log"
)

// LoadConfig reads .env (when present) and the environment.
func LoadConfig() *config.Config {
	config.LoadDotEnv()
	return config.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// makes it the slog default.
func SetupLogger(cfg *config.Config) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: applog.ComponentApp,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)
	return logger
}

// MustValidate exits the process when the configuration is invalid.
func MustValidate(logger *applog.Logger, cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
}

// GracefulShutdown runs shutdown once SIGINT or SIGTERM arrives, or when
// ctx is cancelled. shutdown gets a context bounded by timeout. The
// returned channel closes when shutdown has returned.
func GracefulShutdown(ctx context.Context, logger *applog.Logger, timeout time.Duration, shutdown func(context.Context)) <-chan struct{} {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return onSignal(ctx, sigChan, logger, timeout, func(c context.Context) {
		signal.Stop(sigChan)
		shutdown(c)
	})
}

func onSignal(ctx context.Context, sigChan <-chan os.Signal, logger *applog.Logger, timeout time.Duration, shutdown func(context.Context)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
			logger.Info("Shutting down", "reason", context.Cause(ctx).Error())
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		shutdown(shutdownCtx)

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		}
	}()
	return done
}
