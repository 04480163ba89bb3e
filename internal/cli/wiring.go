package cli

import (
	"context"
	"errors"
	"fmt"

	"ledger/internal/backend"
	"ledger/internal/config"
	applog "ledger/internal/log"
	"ledger/internal/sheets"
	gsheet "ledger/internal/sheets/google"
	memsheet "ledger/internal/sheets/memory"
)

// OpenBackend opens the configured store and optional AMQP publisher.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	factory := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger)
	return factory.CreateBackend(ctx, bcfg)
}

// WithBackend opens the backend, runs fn with it and always releases it
// afterwards, so an error from fn never leaks the store or broker connection.
func WithBackend(ctx context.Context, cfg *config.Config, logger *applog.Logger, fn func(context.Context, *backend.BackendResult) error) error {
	res, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	runErr := fn(ctx, res)
	if err := res.Cleanup(); err != nil {
		logger.ErrorContext(ctx, "Backend cleanup failed", "error", err)
		return errors.Join(runErr, fmt.Errorf("backend cleanup: %w", err))
	}
	return runErr
}

// ReportWriter returns the Google Sheets writer when a spreadsheet is
// configured and an in-memory writer otherwise.
func ReportWriter(ctx context.Context, cfg *config.Config, logger *applog.Logger) (sheets.ReportWriter, error) {
	if !cfg.SheetsEnabled() {
		logger.InfoContext(ctx, "Google Sheets disabled - budget report kept in memory")
		return memsheet.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		ReportSheetName:    cfg.GoogleReportSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("google sheets client: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", client.SheetName())
	return client, nil
}
