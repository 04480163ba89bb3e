package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/budget"
	"ledger/internal/core"
	applog "ledger/internal/log"
	"ledger/internal/storage"
)

// BudgetInput describes a budget to create. At least one of CategoryID and
// AccountID must be set.
type BudgetInput struct {
	Limit      core.Money `json:"limit"`
	CategoryID string     `json:"category_id"`
	AccountID  string     `json:"account_id"`
}

// BudgetProgress pairs a budget with its month-to-date progress.
type BudgetProgress struct {
	Budget   core.Budget     `json:"budget"`
	Progress budget.Progress `json:"progress"`
}

type BudgetService struct {
	store     storage.Store
	publisher Publisher
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewBudgetService wires the service. publisher may be nil.
func NewBudgetService(store storage.Store, publisher Publisher, logger *slog.Logger) *BudgetService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BudgetService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// CreateBudget rejects budgets without a category or account scope, and
// scopes that point at nothing.
func (s *BudgetService) CreateBudget(ctx context.Context, in BudgetInput) (*core.Budget, error) {
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	in.AccountID = strings.TrimSpace(in.AccountID)
	if in.CategoryID == "" && in.AccountID == "" {
		return nil, invalid(core.ErrInvalidBudgetScope)
	}

	b := core.Budget{
		ID:        s.newID(),
		Limit:     in.Limit,
		AccountID: in.AccountID,
		CreatedAt: s.now().UTC(),
	}
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		if in.CategoryID != "" {
			c, err := tx.GetCategory(ctx, in.CategoryID)
			if err != nil {
				return reference(ErrUnknownCategory, in.CategoryID, err)
			}
			b.Category = c
		}
		if in.AccountID != "" {
			if _, err := tx.GetAccount(ctx, in.AccountID); err != nil {
				return reference(ErrUnknownAccount, in.AccountID, err)
			}
		}
		if err := b.Validate(); err != nil {
			return invalid(err)
		}
		return tx.InsertBudget(ctx, &b)
	})
	if err != nil {
		return nil, fmt.Errorf("create budget: %w", err)
	}

	s.logger.InfoContext(ctx, "Budget created",
		applog.FieldBudgetID, b.ID,
		applog.FieldAmountCents, b.Limit.Cents,
		applog.FieldAccountID, b.AccountID)
	announce(ctx, s.publisher, s.logger, amqp.NewEntityEvent(amqp.EventBudgetCreated, b.ID))
	return &b, nil
}

func (s *BudgetService) DeleteBudget(ctx context.Context, id string) error {
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		return tx.DeleteBudget(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete budget %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Budget deleted", applog.FieldBudgetID, id)
	announce(ctx, s.publisher, s.logger, amqp.NewEntityEvent(amqp.EventBudgetDeleted, id))
	return nil
}

// ListBudgets returns budgets ordered by creation time.
func (s *BudgetService) ListBudgets(ctx context.Context) ([]core.Budget, error) {
	var out []core.Budget
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		out, err = tx.ListBudgets(ctx)
		return err
	})
	return out, err
}

// Progress computes one budget's progress for the current month. A non-empty
// scope keeps only that account's transactions.
func (s *BudgetService) Progress(ctx context.Context, id, scope string) (*BudgetProgress, error) {
	now := s.now()

	var (
		b   *core.Budget
		txs []core.Transaction
	)
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		if b, err = tx.GetBudget(ctx, id); err != nil {
			return err
		}
		txs, err = tx.ListTransactions(ctx, storage.TransactionFilter{Since: budget.StartOfMonth(now)})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("budget progress %s: %w", id, err)
	}

	return &BudgetProgress{Budget: *b, Progress: budget.Compute(*b, txs, scope, now)}, nil
}

// ProgressAll computes every budget's progress against one snapshot of the
// month's transactions. Results keep the creation order of the budgets.
func (s *BudgetService) ProgressAll(ctx context.Context, scope string) ([]BudgetProgress, error) {
	now := s.now()

	var (
		budgets []core.Budget
		txs     []core.Transaction
	)
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		if budgets, err = tx.ListBudgets(ctx); err != nil {
			return err
		}
		txs, err = tx.ListTransactions(ctx, storage.TransactionFilter{Since: budget.StartOfMonth(now)})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("budget progress: %w", err)
	}

	out := make([]BudgetProgress, len(budgets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, b := range budgets {
		i, b := i, b
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = BudgetProgress{Budget: b, Progress: budget.Compute(b, txs, scope, now)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
