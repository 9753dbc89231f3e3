package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"expenses/internal/api"
	"expenses/internal/backend"
	"expenses/internal/cache"
	"expenses/internal/cli"
	"expenses/internal/events"
	apphttp "expenses/internal/http"
	"expenses/internal/session"
	"expenses/internal/telemetry"
)

func main() {
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(cfg)
	cli.MustValidate(logger, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		logger.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	logger.Info("Tracing configured", "enabled", tp.Enabled(), "endpoint", cfg.OTLPEndpoint)

	client, err := api.NewClient(cfg.APIBaseURL, api.WithTimeout(cfg.APITimeout))
	if err != nil {
		logger.Error("Failed to initialize API client", "error", err, "base_url", cfg.APIBaseURL)
		os.Exit(1)
	}

	// Session store
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid session backend configuration", "error", err)
		os.Exit(1)
	}
	stores, err := backend.NewFactory(logger).CreateStore(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize session store", "error", err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	defer func() {
		if err := stores.Cleanup(); err != nil {
			logger.Error("Failed to close session store", "error", err)
		}
	}()

	sessions := session.NewManager(stores.Store, session.Config{
		TTL:            cfg.SessionTTL,
		VerifyInterval: cfg.SessionVerifyInterval,
		Secure:         cfg.CookieSecure,
	}, logger)

	caches := cache.NewManager(logger)
	caches.Register(cache.CleanerFunc(sessions.Sweep))

	// Expense events (optional)
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP publisher, continuing without events", "error", err)
		} else {
			publisher = p
			logger.Info("Initialized AMQP publisher", "exchange", cfg.AMQPExchange, "routing_key", cfg.AMQPRoutingKey)
		}
	}
	defer publisher.Close()

	ready := map[string]func(context.Context) error{}
	if stores.Ping != nil {
		ready["sessions"] = stores.Ping
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:                cfg.Addr(),
		PerPage:             cfg.PerPage,
		SummaryDefaultYear:  cfg.SummaryDefaultYear,
		SummaryDefaultMonth: cfg.SummaryDefaultMonth,
		FilterYears:         cfg.FilterYears,
		RateLimitPerMinute:  cfg.RateLimitPerMinute,
	}, apphttp.Deps{
		API:         client,
		Sessions:    sessions,
		Publisher:   publisher,
		Caches:      caches,
		Logger:      logger,
		Tracer:      tp.Tracer(),
		ReadyChecks: ready,
	})
	if err != nil {
		logger.Error("Failed to initialize HTTP server", "error", err)
		os.Exit(1)
	}
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	caches.StartCleanup(5 * time.Minute)

	// Graceful shutdown handling
	done := cli.GracefulShutdown(ctx, logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("Tracer shutdown error", "error", err)
		}
	})

	logger.Info("Starting expenses-web server",
		"port", cfg.Port,
		"api_base_url", cfg.APIBaseURL,
		"session_backend", cfg.SessionBackend,
		"events_enabled", cfg.AMQPURL != "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		cancel()
		<-done
		os.Exit(1)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
