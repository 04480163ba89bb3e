package worker

import (
	"context"
	"fmt"
	"log/slog"

	"ledger/internal/amqp"
	applog "ledger/internal/log"
)

// Exporter rewrites the budget report.
type Exporter interface {
	Export(ctx context.Context, scope string) (int, error)
}

// ReportWorker keeps the exported budget report in step with the ledger by
// re-exporting whenever an event says ledger entries were written or removed.
type ReportWorker struct {
	exporter Exporter
	logger   *slog.Logger
}

func NewReportWorker(exporter Exporter, logger *slog.Logger) *ReportWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportWorker{exporter: exporter, logger: logger}
}

// HandleLedgerEvent processes a single ledger event from AMQP.
func (w *ReportWorker) HandleLedgerEvent(ctx context.Context, e *amqp.LedgerEvent) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		"kind", e.Kind,
		applog.FieldSubscriptionID, e.SubscriptionID,
		"entity_id", e.EntityID,
		applog.FieldGenerated, e.Generated,
		applog.FieldRemoved, e.Removed,
		"timestamp", e.Timestamp)

	if !touchesLedger(e) {
		w.logger.DebugContext(ctx, "Event leaves the ledger unchanged, skipping export",
			"kind", e.Kind,
			applog.FieldSubscriptionID, e.SubscriptionID)
		return nil
	}

	if _, err := w.exporter.Export(ctx, ""); err != nil {
		return fmt.Errorf("export after %s: %w", e.Kind, err)
	}
	return nil
}

// StartupExport writes the report once so it reflects anything that happened
// while the worker was down.
func (w *ReportWorker) StartupExport(ctx context.Context) error {
	n, err := w.exporter.Export(ctx, "")
	if err != nil {
		return fmt.Errorf("startup export: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup export completed", "budgets", n)
	return nil
}

func touchesLedger(e *amqp.LedgerEvent) bool {
	switch e.Kind {
	case amqp.EventSubscriptionPatched:
		return false
	case amqp.EventSubscriptionCreated, amqp.EventSubscriptionAdvanced:
		return e.Generated > 0
	case amqp.EventSubscriptionDeleted:
		return e.Removed > 0
	case amqp.EventSubscriptionRegenerated:
		return e.Removed > 0 || e.Generated > 0
	default:
		return true
	}
}
