// Package budget derives month-to-date progress for budgets. Nothing here is
// stored; every figure is recomputed from the ledger on demand.
package budget

import (
	"time"

	"ledger/internal/core"
)

// Status is the label attached to a budget's progress.
type Status string

const (
	StatusGoalReached Status = "goal_reached"
	StatusInProgress  Status = "in_progress"
	StatusOver        Status = "over"
	StatusNear        Status = "near"
	StatusOnTrack     Status = "on_track"
)

// NearThreshold is the ratio above which a spending budget reports StatusNear.
const NearThreshold = 0.8

type Progress struct {
	Current core.Money `json:"current"`
	Limit   core.Money `json:"limit"`
	Ratio   float64    `json:"progress"`
	Status  Status     `json:"status"`
}

// StartOfMonth returns the first calendar day of the month now falls in, read in
// now's own location.
func StartOfMonth(now time.Time) core.Date {
	return core.NewDate(now.Year(), int(now.Month()), 1)
}

// Compute sums the transactions that count toward b since the start of the
// current month. A non-empty scope keeps only transactions of that account.
// Budgets with neither a category nor an account match nothing.
func Compute(b core.Budget, txs []core.Transaction, scope string, now time.Time) Progress {
	var (
		from     = StartOfMonth(now)
		income   = b.IsIncome()
		category = ""
	)
	if b.Category != nil {
		category = b.Category.ID
	}

	var total int64
	for _, t := range txs {
		if t.Date.Before(from) {
			continue
		}
		if income && t.Type != core.Income {
			continue
		}
		if !income && t.Type != core.Expense {
			continue
		}
		if scope != "" && t.AccountID != scope {
			continue
		}
		if !matches(category, b.AccountID, t) {
			continue
		}
		total += t.Amount.Cents
	}

	return progress(b, total, income)
}

func matches(category, account string, t core.Transaction) bool {
	switch {
	case category != "" && account != "":
		return t.CategoryID == category && t.AccountID == account
	case category != "":
		return t.CategoryID == category
	case account != "":
		return t.AccountID == account
	default:
		return false
	}
}

func progress(b core.Budget, total int64, income bool) Progress {
	p := Progress{
		Current: core.Money{Cents: total},
		Limit:   b.Limit,
	}
	if b.Limit.Cents > 0 {
		p.Ratio = min(float64(total)/float64(b.Limit.Cents), 1)
	}

	switch {
	case income && total >= b.Limit.Cents:
		p.Status = StatusGoalReached
	case income:
		p.Status = StatusInProgress
	case total > b.Limit.Cents:
		p.Status = StatusOver
	case p.Ratio > NearThreshold:
		p.Status = StatusNear
	default:
		p.Status = StatusOnTrack
	}
	return p
}
