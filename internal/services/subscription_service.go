package services

import (
	"context"
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

// Publisher announces committed ledger changes. *amqp.Client satisfies it.
type Publisher interface {
	PublishLedgerEvent(ctx context.Context, e *amqp.LedgerEvent) error
}

// SubscriptionInput carries the user-editable fields of a subscription.
type SubscriptionInput struct {
	Name      string       `json:"name"`
	Note      string       `json:"note"`
	Amount    core.Money   `json:"amount"`
	Currency  string       `json:"currency"`
	StartDate core.Date    `json:"start_date"`
	Cadence   core.Cadence `json:"cadence"`
	Active    bool         `json:"active"`
	Free      bool         `json:"free"`
	TrialEnd  core.Date    `json:"trial_end"`
	AccountID string       `json:"account_id"`
}

func (in SubscriptionInput) applyTo(s core.Subscription) core.Subscription {
	s.Name = in.Name
	s.Note = in.Note
	s.Amount = in.Amount
	s.Currency = in.Currency
	s.StartDate = in.StartDate
	s.Cadence = in.Cadence
	s.Active = in.Active
	s.Free = in.Free
	s.TrialEnd = in.TrialEnd
	s.AccountID = in.AccountID
	return s
}

// SubscriptionService owns subscriptions and the entries generated for them.
// Every mutation is one store unit: a failed edit leaves the ledger as it was.
type SubscriptionService struct {
	store     storage.Store
	generator *billing.Generator
	publisher Publisher
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewSubscriptionService wires the service. publisher may be nil.
func NewSubscriptionService(store storage.Store, publisher Publisher, logger *slog.Logger) *SubscriptionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionService{
		store:     store,
		generator: billing.NewGenerator(uuid.NewString, logger),
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

func (s *SubscriptionService) today() core.Date {
	return core.DateOf(s.now())
}

// CreateSubscription stores a new subscription and, when it is active,
// backfills its charges from the anchor through today.
func (s *SubscriptionService) CreateSubscription(ctx context.Context, in SubscriptionInput) (*core.Subscription, error) {
	sub := in.applyTo(core.Subscription{
		ID:        s.newID(),
		CreatedAt: s.now().UTC(),
	})
	if err := sub.Validate(); err != nil {
		return nil, invalid(err)
	}

	today := s.today()
	var generated int
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetAccount(ctx, sub.AccountID); err != nil {
			return reference(ErrUnknownAccount, sub.AccountID, err)
		}
		if sub.Active {
			sub.GeneratedThrough = today
		}
		if err := tx.InsertSubscription(ctx, &sub); err != nil {
			return err
		}
		if !sub.Active {
			return nil
		}
		var err error
		generated, err = s.generator.Generate(ctx, tx, sub, core.Date{}, today)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	s.logger.InfoContext(ctx, "Subscription created", applog.NewFields().
		WithOperation(applog.OpCreate).
		WithSubscription(sub.ID, "", 0, generated).ToSlice()...)

	s.publish(ctx, amqp.EventSubscriptionCreated, sub.ID, Cosmetic, 0, generated)
	return &sub, nil
}

// UpdateSubscription applies an edit. A significant change wipes every entry
// the subscription generated and, if it is active, regenerates from the
// anchor; a cosmetic one only persists the fields.
func (s *SubscriptionService) UpdateSubscription(ctx context.Context, id string, in SubscriptionInput) (*core.Subscription, Change, error) {
	today := s.today()

	var (
		next               core.Subscription
		change             Change
		removed, generated int
	)
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		old, err := tx.GetSubscription(ctx, id)
		if err != nil {
			return err
		}

		next = in.applyTo(*old)
		if err := next.Validate(); err != nil {
			return invalid(err)
		}
		if next.AccountID != old.AccountID {
			if _, err := tx.GetAccount(ctx, next.AccountID); err != nil {
				return reference(ErrUnknownAccount, next.AccountID, err)
			}
		}

		change = ClassifyChange(*old, next)
		if change.Significant() {
			if removed, err = tx.DeleteTransactionsBySubscription(ctx, id); err != nil {
				return err
			}
			next.GeneratedThrough = core.Date{}
			if next.Active {
				if generated, err = s.generator.Generate(ctx, tx, next, core.Date{}, today); err != nil {
					return err
				}
				next.GeneratedThrough = today
			}
		}
		return tx.UpdateSubscription(ctx, &next)
	})
	if err != nil {
		return nil, Cosmetic, fmt.Errorf("update subscription %s: %w", id, err)
	}

	op, kind := applog.OpPatch, amqp.EventSubscriptionPatched
	if change.Significant() {
		op, kind = applog.OpRegenerate, amqp.EventSubscriptionRegenerated
	}
	s.logger.InfoContext(ctx, "Subscription updated", applog.NewFields().
		WithOperation(op).
		WithSubscription(id, change.String(), removed, generated).ToSlice()...)

	s.publish(ctx, kind, id, change, removed, generated)
	return &next, change, nil
}

// DeleteSubscription removes the subscription together with every entry it
// generated and returns how many entries went with it.
func (s *SubscriptionService) DeleteSubscription(ctx context.Context, id string) (int, error) {
	var removed int
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		var err error
		removed, err = tx.DeleteSubscription(ctx, id)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete subscription %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Subscription deleted", applog.NewFields().
		WithOperation(applog.OpDelete).
		WithSubscription(id, "", removed, 0).ToSlice()...)

	s.publish(ctx, amqp.EventSubscriptionDeleted, id, Cosmetic, removed, 0)
	return removed, nil
}

func (s *SubscriptionService) GetSubscription(ctx context.Context, id string) (*core.Subscription, error) {
	var sub *core.Subscription
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		sub, err = tx.GetSubscription(ctx, id)
		return err
	})
	return sub, err
}

func (s *SubscriptionService) ListSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	var subs []core.Subscription
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		subs, err = tx.ListSubscriptions(ctx)
		return err
	})
	return subs, err
}

// ListGeneratedTransactions returns the entries owned by a subscription, oldest first.
func (s *SubscriptionService) ListGeneratedTransactions(ctx context.Context, id string) ([]core.Transaction, error) {
	var txs []core.Transaction
	err := s.store.View(ctx, func(tx storage.Tx) error {
		if _, err := tx.GetSubscription(ctx, id); err != nil {
			return err
		}
		var err error
		txs, err = tx.ListTransactions(ctx, storage.TransactionFilter{SubscriptionID: id})
		return err
	})
	return txs, err
}

func (s *SubscriptionService) publish(ctx context.Context, kind amqp.EventKind, id string, change Change, removed, generated int) {
	e := amqp.NewLedgerEvent(kind, id)
	e.Change = change.String()
	e.Removed = removed
	e.Generated = generated
	announce(ctx, s.publisher, s.logger, e)
}
