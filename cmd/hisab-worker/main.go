package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"hisab/internal/amqp"
	"hisab/internal/cli"
	"hisab/internal/config"
	"hisab/internal/log"
	"hisab/internal/metrics"
	"hisab/internal/services"
	"hisab/internal/sheets"
	gsheet "hisab/internal/sheets/google"
	mirrormem "hisab/internal/sheets/memory"
	"hisab/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting hisab-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The worker reads the store directly and only consumes notifications.
	amqpURL := cfg.AMQPURL
	storeCfg := *cfg
	storeCfg.AMQPURL = ""
	res := cli.InitBackend(ctx, logger, &storeCfg)
	defer res.Cleanup()

	mirror, err := newMirror(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize spreadsheet mirror", log.FieldError, err)
		os.Exit(1)
	}

	m := metrics.New()
	syncWorker := worker.NewSyncWorker(res.Store, mirror, m)

	logger.Info("Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err)
	}

	if amqpURL != "" {
		amqpClient, err := amqp.NewClient(amqpURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		go func() {
			if err := amqpClient.ConsumeDatasetChanged(ctx, syncWorker.HandleDatasetChanged); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
				cancel()
			}
		}()
	} else {
		logger.Info("No AMQP_URL provided, relying on periodic sync only")
	}

	processor := services.NewSyncProcessor(syncWorker, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
	})
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", log.FieldError, err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	statusSrv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := statusSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Status server stopped", log.FieldError, err)
		}
	}()

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		cancel()
		if err := processor.Stop(ctx); err != nil {
			logger.Warn("Sync processor stop failed", log.FieldError, err)
		}
		if err := statusSrv.Shutdown(ctx); err != nil {
			logger.Warn("Status server shutdown failed", log.FieldError, err)
		}
	})

	select {
	case <-shutdownCtx.Done():
		<-done
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}
	logger.Info("Worker shutdown complete", "sync_stats", processor.Stats())
}

// newMirror selects the Google spreadsheet when one is configured and a
// local CSV mirror under ./data/mirror otherwise.
func newMirror(ctx context.Context, logger *log.Logger, cfg *config.Config) (sheets.DatasetMirror, error) {
	if !cfg.MirrorEnabled() {
		logger.Info("Google Sheets disabled, mirroring to local CSV files", "dir", "data/mirror")
		return mirrormem.NewWithDir("data/mirror"), nil
	}
	return gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		Concurrency:     cfg.SyncBatchSize,
	})
}
