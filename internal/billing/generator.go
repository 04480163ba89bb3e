package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ledger/internal/core"
	"ledger/internal/storage"
)

// Charge is one billing occurrence of a subscription.
type Charge struct {
	Date   core.Date
	Amount core.Money
	Waived bool
}

// Plan lists the charges of sub after since (exclusive, zero means from the
// anchor) up to cutoff, marking those that fall inside the waiver window.
func Plan(sub core.Subscription, since, cutoff core.Date) []Charge {
	waiver := sub.Waiver()

	var charges []Charge
	for _, d := range Occurrences(sub.StartDate, sub.Cadence, cutoff) {
		if !since.IsEmpty() && !d.After(since) {
			continue
		}
		charges = append(charges, Charge{
			Date:   d,
			Amount: sub.Amount,
			Waived: waiver.Covers(d),
		})
	}
	return charges
}

// Generator writes a subscription's charges into the ledger. It appends only;
// callers clear earlier entries or pass the last cutoff as since.
type Generator struct {
	newID  func() string
	logger *slog.Logger
}

func NewGenerator(newID func() string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{newID: newID, logger: logger}
}

// Generate inserts one expense transaction per non-waived charge in
// (since, cutoff] and returns how many it wrote.
func (g *Generator) Generate(ctx context.Context, tx storage.Tx, sub core.Subscription, since, cutoff core.Date) (int, error) {
	charges := Plan(sub, since, cutoff)

	var category *core.Category
	written := 0
	for _, c := range charges {
		if c.Waived {
			continue
		}
		if category == nil {
			var err error
			if category, err = g.subscriptionsCategory(ctx, tx); err != nil {
				return written, err
			}
		}

		t := core.Transaction{
			ID:             g.newID(),
			Title:          sub.Name,
			Amount:         c.Amount,
			Date:           c.Date,
			Type:           core.Expense,
			Currency:       sub.Currency,
			CategoryID:     category.ID,
			AccountID:      sub.AccountID,
			SubscriptionID: sub.ID,
		}
		if err := tx.InsertTransaction(ctx, &t); err != nil {
			return written, fmt.Errorf("insert charge %s for %s: %w", c.Date, sub.ID, err)
		}
		written++
	}

	g.logger.DebugContext(ctx, "Generated subscription charges",
		"subscription_id", sub.ID,
		"since", since.String(),
		"cutoff", cutoff.String(),
		"occurrences", len(charges),
		"written", written)

	return written, nil
}

// subscriptionsCategory finds the shared category by name or creates it.
func (g *Generator) subscriptionsCategory(ctx context.Context, tx storage.Tx) (*core.Category, error) {
	c, err := tx.FindCategoryByName(ctx, core.SubscriptionsCategory)
	if err == nil {
		if c.Type != core.CategoryExpense {
			return nil, fmt.Errorf("category %s has type %s: %w", c.ID, c.Type, core.ErrReservedCategory)
		}
		return c, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	c = &core.Category{
		ID:   g.newID(),
		Name: core.SubscriptionsCategory,
		Type: core.CategoryExpense,
	}
	if err := tx.InsertCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("create %s category: %w", core.SubscriptionsCategory, err)
	}
	g.logger.InfoContext(ctx, "Created shared category", "category_id", c.ID, "name", c.Name)
	return c, nil
}
