package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ledger/internal/amqp"
	"ledger/internal/billing"
	"ledger/internal/core"
	applog "ledger/internal/log"
	"ledger/internal/storage"
)

// RecurringProcessor keeps active subscriptions billed up to the current day.
// Each subscription remembers the cutoff of its last run, so a catch-up only
// appends the charges that fell due since then.
type RecurringProcessor struct {
	store     storage.Store
	generator *billing.Generator
	publisher Publisher
	logger    *slog.Logger
}

// NewRecurringProcessor creates a new recurring processor. publisher may be nil.
func NewRecurringProcessor(store storage.Store, publisher Publisher, logger *slog.Logger) *RecurringProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecurringProcessor{
		store:     store,
		generator: billing.NewGenerator(uuid.NewString, logger),
		publisher: publisher,
		logger:    logger,
	}
}

// ProcessDue advances every active subscription whose cursor is behind the
// calendar day of now. Each subscription commits on its own; a failure is
// logged, the rest still run, and the failures are returned together.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}
	today := core.DateOf(now)

	var subs []core.Subscription
	err := p.store.View(ctx, func(tx storage.Tx) error {
		var err error
		subs, err = tx.ListSubscriptions(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list subscriptions: %w", err)
	}

	p.logger.InfoContext(ctx, "Processing recurring subscriptions",
		"total", len(subs),
		"processing_date", today.String())

	var (
		generated int
		errs      []error
	)
	for _, sub := range subs {
		if !isBehind(sub, today) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		n, err := p.advance(ctx, sub.ID, today)
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to advance subscription",
				applog.FieldSubscriptionID, sub.ID,
				applog.FieldError, err)
			errs = append(errs, fmt.Errorf("advance %s: %w", sub.ID, err))
			continue
		}
		generated += n
	}

	p.logger.InfoContext(ctx, "Recurring processing complete",
		applog.FieldGenerated, generated,
		"failed", len(errs))

	return generated, errors.Join(errs...)
}

func isBehind(sub core.Subscription, today core.Date) bool {
	return sub.Active && (sub.GeneratedThrough.IsEmpty() || sub.GeneratedThrough.Before(today))
}

// advance re-reads the subscription inside the unit so a concurrent edit is
// never overwritten with a stale copy.
func (p *RecurringProcessor) advance(ctx context.Context, id string, today core.Date) (int, error) {
	var n int
	err := p.store.Update(ctx, func(tx storage.Tx) error {
		sub, err := tx.GetSubscription(ctx, id)
		if err != nil {
			return err
		}
		if !isBehind(*sub, today) {
			return nil
		}
		if n, err = p.generator.Generate(ctx, tx, *sub, sub.GeneratedThrough, today); err != nil {
			return err
		}
		sub.GeneratedThrough = today
		return tx.UpdateSubscription(ctx, sub)
	})
	if err != nil {
		return 0, err
	}

	if n > 0 {
		p.logger.InfoContext(ctx, "Advanced subscription",
			applog.FieldSubscriptionID, id,
			applog.FieldGenerated, n,
			"through", today.String())
		p.publish(ctx, id, n)
	}
	return n, nil
}

func (p *RecurringProcessor) publish(ctx context.Context, id string, generated int) {
	e := amqp.NewLedgerEvent(amqp.EventSubscriptionAdvanced, id)
	e.Generated = generated
	announce(ctx, p.publisher, p.logger, e)
}
