package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/config"
	applog "ledger/internal/log"
	"ledger/internal/report"
	"ledger/internal/services"
	"ledger/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)
	logger.Info("Starting report-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for report-worker")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger)
	err := cli.WithBackend(ctx, cfg, logger, func(ctx context.Context, res *backend.BackendResult) error {
		return consume(ctx, cfg, logger, res)
	})
	stop()
	if err != nil {
		logger.Error("Report-worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Report-worker shutdown complete")
}

func consume(ctx context.Context, cfg *config.Config, logger *applog.Logger, res *backend.BackendResult) error {
	// The backend only warns on a broken broker; a consumer cannot run without one.
	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("amqp client: %w", err)
	}
	defer consumer.Close()

	writer, err := cli.ReportWriter(ctx, cfg, logger.WithComponent(applog.ComponentSheets))
	if err != nil {
		return err
	}

	exporter := report.NewExporter(
		services.NewBudgetService(res.Store, nil, logger.WithComponent(applog.ComponentBudget).Logger),
		services.NewLedgerService(res.Store, nil, logger.WithComponent(applog.ComponentLedger).Logger),
		writer,
		logger.Logger,
	)
	reportWorker := worker.NewReportWorker(exporter, logger.Logger)

	if err := reportWorker.StartupExport(ctx); err != nil {
		logger.Error("Startup export failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.ConsumeLedgerEvents(gctx, reportWorker.HandleLedgerEvent)
	})
	g.Go(func() error {
		// Periodic export covers events lost while the worker was down.
		ticker := time.NewTicker(cfg.ReportInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if _, err := exporter.Export(gctx, ""); err != nil {
					logger.Error("Periodic export failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("message consumption: %w", err)
	}
	return nil
}
