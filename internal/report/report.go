// Package report turns budget progress into the rows of the exported budget
// report and pushes them to a sheets.ReportWriter.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"ledger/internal/core"
	applog "ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/sheets"
)

// Header is the first row of every report.
var Header = []any{"Scope", "Limit", "Current", "Progress", "Status"}

// BuildBudgetRows renders one row per budget after the header. accountNames
// maps account ids to display names; unknown ids are shown as is.
func BuildBudgetRows(items []services.BudgetProgress, accountNames map[string]string) [][]any {
	rows := make([][]any, 0, len(items)+1)
	rows = append(rows, Header)
	for _, it := range items {
		rows = append(rows, []any{
			scopeLabel(it.Budget, accountNames),
			it.Progress.Limit.Units(),
			it.Progress.Current.Units(),
			fmt.Sprintf("%d%%", int(math.Round(it.Progress.Ratio*100))),
			string(it.Progress.Status),
		})
	}
	return rows
}

func scopeLabel(b core.Budget, accountNames map[string]string) string {
	account := b.AccountID
	if name, ok := accountNames[account]; ok {
		account = name
	}
	switch {
	case b.Category != nil && account != "":
		return b.Category.Name + " @ " + account
	case b.Category != nil:
		return b.Category.Name
	default:
		return "account " + account
	}
}

type (
	ProgressSource interface {
		ProgressAll(ctx context.Context, scope string) ([]services.BudgetProgress, error)
	}

	AccountLister interface {
		ListAccounts(ctx context.Context) ([]core.Account, error)
	}
)

// Exporter computes every budget's progress and writes the report.
type Exporter struct {
	budgets  ProgressSource
	accounts AccountLister
	writer   sheets.ReportWriter
	logger   *slog.Logger
}

func NewExporter(budgets ProgressSource, accounts AccountLister, writer sheets.ReportWriter, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{budgets: budgets, accounts: accounts, writer: writer, logger: logger}
}

// Export writes the report for scope (empty for all accounts) and returns the
// number of budgets in it.
func (e *Exporter) Export(ctx context.Context, scope string) (int, error) {
	items, err := e.budgets.ProgressAll(ctx, scope)
	if err != nil {
		return 0, fmt.Errorf("compute budget progress: %w", err)
	}
	accounts, err := e.accounts.ListAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list accounts: %w", err)
	}
	names := make(map[string]string, len(accounts))
	for _, a := range accounts {
		names[a.ID] = a.Name
	}

	if err := e.writer.WriteBudgetReport(ctx, BuildBudgetRows(items, names)); err != nil {
		return 0, fmt.Errorf("write budget report: %w", err)
	}

	e.logger.InfoContext(ctx, "Budget report exported",
		applog.FieldOperation, applog.OpExport,
		"budgets", len(items),
		"scope", scope)
	return len(items), nil
}
