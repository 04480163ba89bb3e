package memory

import (
	"context"
	"sync"

	ports "ledger/internal/sheets"
)

var _ ports.ReportWriter = (*Writer)(nil)

// Writer keeps the last written report in memory. It backs local runs
// without Google credentials.
type Writer struct {
	mu     sync.Mutex
	rows   [][]any
	writes int
}

func New() *Writer {
	return &Writer{}
}

// WriteBudgetReport replaces the stored report with a copy of rows.
func (w *Writer) WriteBudgetReport(ctx context.Context, rows [][]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = copyRows(rows)
	w.writes++
	return nil
}

// Rows returns a copy of the last report.
func (w *Writer) Rows() [][]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return copyRows(w.rows)
}

// Writes counts completed writes.
func (w *Writer) Writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}

func copyRows(in [][]any) [][]any {
	if in == nil {
		return nil
	}
	out := make([][]any, len(in))
	for i, r := range in {
		out[i] = append([]any(nil), r...)
	}
	return out
}
