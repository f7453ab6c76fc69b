package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"hisab/internal/auth"
	"hisab/internal/cache"
	"hisab/internal/cli"
	apphttp "hisab/internal/http"
	"hisab/internal/log"
	"hisab/internal/metrics"
	"hisab/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	ctx := context.Background()
	res := cli.InitBackend(ctx, logger, cfg)

	gate, err := auth.NewGate(cfg.PINHash, cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		logger.Error("Failed to initialize PIN gate", log.FieldError, err)
		os.Exit(1)
	}

	m := metrics.New()
	caches := cache.NewManager()
	caches.StartCleanup(cfg.CacheTTL)

	ledgerSvc := services.NewLedgerService(res.Store, res.Publisher, m, services.LedgerConfig{
		ReadOnly:          cfg.ReadOnly,
		DefaultInitiation: cfg.InitiationDate(),
	})
	dashboardSvc := services.NewDashboardService(res.Store, m, caches, services.DashboardConfig{
		CacheTTL: cfg.CacheTTL,
	})

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		IdleTimeout:        60 * time.Second,
	}, apphttp.Deps{
		Ledger:    ledgerSvc,
		Dashboard: dashboardSvc,
		Gate:      gate,
		Metrics:   m,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("Failed to configure server", log.FieldError, err)
		os.Exit(1)
	}
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting hisab server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"read_only", cfg.ReadOnly,
		"auth_enabled", gate.Enabled(),
		"amqp_enabled", res.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
