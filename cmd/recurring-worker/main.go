package main

import (
	"context"
	"errors"
	"os"

	"ledger/internal/backend"
	"ledger/internal/cli"
	applog "ledger/internal/log"
	"ledger/internal/services"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker)
	logger.Info("Starting recurring-worker")

	ctx, stop := cli.SignalContext(logger)
	err := cli.WithBackend(ctx, cfg, logger, func(ctx context.Context, res *backend.BackendResult) error {
		processor := services.NewRecurringProcessor(res.Store, res.EventPublisher(), logger.WithComponent(applog.ComponentBilling).Logger)
		scheduler := services.NewScheduler(processor, services.SchedulerConfig{
			Interval: cfg.RecurringInterval,
		}, logger.Logger)

		logger.Info("Recurring processor configured",
			"interval", cfg.RecurringInterval,
			"backend", cfg.DataBackend)

		if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	stop()
	if err != nil {
		logger.Error("Recurring-worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Recurring-worker shutdown complete")
}
