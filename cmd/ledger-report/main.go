// Command ledger-report writes the budget progress report once and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"ledger/internal/backend"
	"ledger/internal/cli"
	applog "ledger/internal/log"
	"ledger/internal/report"
	"ledger/internal/services"
	memsheet "ledger/internal/sheets/memory"
)

func main() {
	account := flag.String("account", "", "restrict progress to one account id")
	flag.Parse()

	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentSheets)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	err := cli.WithBackend(ctx, cfg, logger, func(ctx context.Context, res *backend.BackendResult) error {
		writer, err := cli.ReportWriter(ctx, cfg, logger)
		if err != nil {
			return err
		}

		exporter := report.NewExporter(
			services.NewBudgetService(res.Store, nil, logger.WithComponent(applog.ComponentBudget).Logger),
			services.NewLedgerService(res.Store, nil, logger.WithComponent(applog.ComponentLedger).Logger),
			writer,
			logger.Logger,
		)
		n, err := exporter.Export(ctx, *account)
		if err != nil {
			return err
		}

		// Without a spreadsheet the report goes to stdout.
		if mem, ok := writer.(*memsheet.Writer); ok {
			for _, row := range mem.Rows() {
				fmt.Println(row...)
			}
		}
		logger.Info("Budget report written", "budgets", n)
		return nil
	})
	cancel()
	if err != nil {
		logger.Error("Export failed", "error", err)
		os.Exit(1)
	}
}
