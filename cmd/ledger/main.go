package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/backend"
	"ledger/internal/cli"
	"ledger/internal/config"
	apphttp "ledger/internal/http"
	applog "ledger/internal/log"
	"ledger/internal/services"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentApp)

	ctx, stop := cli.SignalContext(logger)
	err := cli.WithBackend(ctx, cfg, logger, func(ctx context.Context, res *backend.BackendResult) error {
		return serve(ctx, cfg, logger, res)
	})
	stop()
	if err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// serve runs the API and the recurring scheduler until ctx is done or either fails.
func serve(ctx context.Context, cfg *config.Config, logger *applog.Logger, res *backend.BackendResult) error {
	publisher := res.EventPublisher()
	subs := services.NewSubscriptionService(res.Store, publisher, logger.WithComponent(applog.ComponentSubscription).Logger)
	budgets := services.NewBudgetService(res.Store, publisher, logger.WithComponent(applog.ComponentBudget).Logger)
	ledger := services.NewLedgerService(res.Store, publisher, logger.WithComponent(applog.ComponentLedger).Logger)

	processor := services.NewRecurringProcessor(res.Store, publisher, logger.WithComponent(applog.ComponentBilling).Logger)
	scheduler := services.NewScheduler(processor, services.SchedulerConfig{
		Interval: cfg.RecurringInterval,
	}, logger.WithComponent(applog.ComponentWorker).Logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Subscriptions: subs,
		Budgets:       budgets,
		Ledger:        ledger,
		Store:         res.Store,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		Logger:             logger.WithComponent(applog.ComponentHTTP),
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting ledger server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := scheduler.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
