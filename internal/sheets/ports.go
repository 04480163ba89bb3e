package sheets

import "context"

// Ports for outbound report adapters.
type (
	// ReportWriter replaces the content of the budget report with rows. The first
	// row is the header.
	ReportWriter interface {
		WriteBudgetReport(ctx context.Context, rows [][]any) error
	}
)
