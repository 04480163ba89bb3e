package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"ledger/internal/amqp"
	"ledger/internal/core"
	applog "ledger/internal/log"
	"ledger/internal/storage"
)

// CategoryInput describes a category to create.
type CategoryInput struct {
	Name  string            `json:"name"`
	Type  core.CategoryType `json:"type"`
	Color string            `json:"color"`
	Icon  string            `json:"icon"`
}

// TransactionInput describes a manually recorded transaction.
type TransactionInput struct {
	Title                string               `json:"title"`
	Amount               core.Money           `json:"amount"`
	Date                 core.Date            `json:"date"`
	Type                 core.TransactionType `json:"type"`
	Currency             string               `json:"currency"`
	CategoryID           string               `json:"category_id"`
	AccountID            string               `json:"account_id"`
	DestinationAccountID string               `json:"destination_account_id"`
}

// LedgerService handles the manual side of the ledger: accounts, categories
// and hand-entered transactions.
type LedgerService struct {
	store     storage.Store
	publisher Publisher
	logger    *slog.Logger
	newID     func() string
}

// NewLedgerService wires the service. publisher may be nil.
func NewLedgerService(store storage.Store, publisher Publisher, logger *slog.Logger) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerService{store: store, publisher: publisher, logger: logger, newID: uuid.NewString}
}

func (s *LedgerService) CreateAccount(ctx context.Context, name string) (*core.Account, error) {
	a := core.Account{ID: s.newID(), Name: strings.TrimSpace(name)}
	if err := a.Validate(); err != nil {
		return nil, invalid(err)
	}
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		return tx.InsertAccount(ctx, &a)
	})
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	s.logger.InfoContext(ctx, "Account created", applog.FieldAccountID, a.ID)
	return &a, nil
}

func (s *LedgerService) ListAccounts(ctx context.Context) ([]core.Account, error) {
	var out []core.Account
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		out, err = tx.ListAccounts(ctx)
		return err
	})
	return out, err
}

// DeleteAccount removes the account with its transactions and account-scoped
// budgets. It refuses while a subscription still bills the account.
func (s *LedgerService) DeleteAccount(ctx context.Context, id string) error {
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		subs, err := tx.ListSubscriptions(ctx)
		if err != nil {
			return err
		}
		for _, sub := range subs {
			if sub.AccountID == id {
				return fmt.Errorf("%w: %s", ErrAccountInUse, sub.Name)
			}
		}
		return tx.DeleteAccount(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Account deleted", applog.FieldAccountID, id)
	announce(ctx, s.publisher, s.logger, amqp.NewEntityEvent(amqp.EventAccountDeleted, id))
	return nil
}

// CreateCategory adds a category. Names are unique so the shared
// subscriptions category always resolves to one row.
func (s *LedgerService) CreateCategory(ctx context.Context, in CategoryInput) (*core.Category, error) {
	c := core.Category{
		ID:    s.newID(),
		Name:  strings.TrimSpace(in.Name),
		Type:  in.Type,
		Color: in.Color,
		Icon:  in.Icon,
	}
	if err := c.Validate(); err != nil {
		return nil, invalid(err)
	}
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		_, err := tx.FindCategoryByName(ctx, c.Name)
		switch {
		case err == nil:
			return fmt.Errorf("%w: category %q", ErrDuplicateName, c.Name)
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}
		return tx.InsertCategory(ctx, &c)
	})
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &c, nil
}

func (s *LedgerService) ListCategories(ctx context.Context) ([]core.Category, error) {
	var out []core.Category
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		out, err = tx.ListCategories(ctx)
		return err
	})
	return out, err
}

func (in TransactionInput) applyTo(t core.Transaction) core.Transaction {
	t.Title = strings.TrimSpace(in.Title)
	t.Amount = in.Amount
	t.Date = in.Date
	t.Type = in.Type
	t.Currency = in.Currency
	t.CategoryID = in.CategoryID
	t.AccountID = in.AccountID
	t.DestinationAccountID = in.DestinationAccountID
	return t
}

// checkReferences resolves the accounts and category t points at.
func checkReferences(ctx context.Context, tx storage.Tx, t core.Transaction) error {
	if _, err := tx.GetAccount(ctx, t.AccountID); err != nil {
		return reference(ErrUnknownAccount, t.AccountID, err)
	}
	if t.DestinationAccountID != "" {
		if _, err := tx.GetAccount(ctx, t.DestinationAccountID); err != nil {
			return reference(ErrUnknownAccount, t.DestinationAccountID, err)
		}
	}
	if t.CategoryID != "" {
		if _, err := tx.GetCategory(ctx, t.CategoryID); err != nil {
			return reference(ErrUnknownCategory, t.CategoryID, err)
		}
	}
	return nil
}

// RecordTransaction stores a manual entry. Manual entries never carry a
// subscription reference.
func (s *LedgerService) RecordTransaction(ctx context.Context, in TransactionInput) (*core.Transaction, error) {
	t := in.applyTo(core.Transaction{ID: s.newID()})
	if err := t.Validate(); err != nil {
		return nil, invalid(err)
	}

	err := s.store.Update(ctx, func(tx storage.Tx) error {
		if err := checkReferences(ctx, tx, t); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, &t)
	})
	if err != nil {
		return nil, fmt.Errorf("record transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "Transaction recorded",
		"transaction_id", t.ID,
		applog.FieldAccountID, t.AccountID,
		applog.FieldAmountCents, t.Amount.Cents)
	announce(ctx, s.publisher, s.logger, amqp.NewEntityEvent(amqp.EventTransactionRecorded, t.ID))
	return &t, nil
}

// UpdateTransaction edits any entry, generated ones included. A generated
// entry keeps its subscription reference, so deleting or regenerating the
// subscription still removes it.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id string, in TransactionInput) (*core.Transaction, error) {
	var next core.Transaction
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		old, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		next = in.applyTo(*old)
		if err := next.Validate(); err != nil {
			return invalid(err)
		}
		if err := checkReferences(ctx, tx, next); err != nil {
			return err
		}
		return tx.UpdateTransaction(ctx, &next)
	})
	if err != nil {
		return nil, fmt.Errorf("update transaction %s: %w", id, err)
	}

	s.logger.DebugContext(ctx, "Transaction updated",
		"transaction_id", id,
		applog.FieldSubscriptionID, next.SubscriptionID,
		applog.FieldAmountCents, next.Amount.Cents)
	e := amqp.NewEntityEvent(amqp.EventTransactionUpdated, id)
	e.SubscriptionID = next.SubscriptionID
	announce(ctx, s.publisher, s.logger, e)
	return &next, nil
}

func (s *LedgerService) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	var out []core.Transaction
	err := s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		out, err = tx.ListTransactions(ctx, f)
		return err
	})
	return out, err
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		return tx.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	announce(ctx, s.publisher, s.logger, amqp.NewEntityEvent(amqp.EventTransactionDeleted, id))
	return nil
}
