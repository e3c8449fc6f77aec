package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finctl/internal/amqp"
	"finctl/internal/backend"
	"finctl/internal/cli"
	"finctl/internal/export"
	applog "finctl/internal/log"
	"finctl/internal/sheets"
	gsheet "finctl/internal/sheets/google"
	"finctl/internal/worker"

	"golang.org/x/sync/errgroup"
)

// Catch-up interval for changes whose notification was lost.
const pollInterval = 5 * time.Minute

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
	}

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentWorker, nil)
	logger.Info("Starting finctl-worker")

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	if !backendCfg.Type.Persistent() {
		cli.Fatal(logger, "Worker needs a shared store", errors.New("DATA_BACKEND must be sqlite"),
			"backend", cfg.DataBackend)
	}
	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "Worker needs a message broker", errors.New("AMQP_URL is not set"))
	}

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	store, err := backend.NewFactory(logger.Logger).OpenStore(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to open store", err, "path", cfg.SQLiteDBPath)
	}
	defer store.Close()

	writers := []sheets.ReportWriter{export.DirWriter{Dir: cfg.ReportsDir}}
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsFile: cfg.GoogleCredentialsFile,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
		})
		if err != nil {
			cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
		}
		writers = append(writers, client)
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets export disabled, no GOOGLE_SPREADSHEET_ID provided")
	}
	logger.Info("Reports directory", "path", cfg.ReportsDir)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer amqpClient.Close()

	reports := worker.NewReportWorker(store, writers...)
	if err := reports.StartupReport(ctx); err != nil {
		// A failed writer is retried on the next change or poll.
		logger.Error("Startup report failed", applog.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeDatasetChanged(gctx, reports.HandleDatasetChanged)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if _, err := reports.Generate(gctx); err != nil {
					logger.Error("Periodic report failed", applog.FieldError, err)
				}
			}
		}
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			cli.Fatal(logger, "Message consumption failed", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down worker", applog.FieldOperation, applog.OpShutdown)
		select {
		case err := <-done:
			if err != nil {
				logger.Error("Worker stopped with error", applog.FieldError, err)
			}
		case <-time.After(cli.ShutdownTimeout):
			logger.Warn("Shutdown timeout reached")
		}
	}
	logger.Info("Worker shutdown complete", "last_version", reports.LastVersion())
}
