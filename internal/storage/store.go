package storage

import (
	"context"
	"errors"
	"fmt"

	"ledger/internal/core"
)

var (
	ErrNotFound = errors.New("storage: not found")
	ErrClosed   = errors.New("storage: store is closed")
)

// StoreError wraps an I/O failure of the underlying store. Callers propagate it
// unmodified; it is never retried.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// Store runs units of work against the ledger. Everything fn does inside Update
// commits together or not at all.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// TransactionFilter narrows ListTransactions. Zero values match everything.
type TransactionFilter struct {
	AccountID      string
	SubscriptionID string
	Since          core.Date // inclusive
}

// Tx is the collaborator surface available inside a unit of work.
type Tx interface {
	InsertAccount(ctx context.Context, a *core.Account) error
	GetAccount(ctx context.Context, id string) (*core.Account, error)
	ListAccounts(ctx context.Context) ([]core.Account, error)
	// DeleteAccount removes the account with its transactions and account-scoped budgets.
	DeleteAccount(ctx context.Context, id string) error

	InsertCategory(ctx context.Context, c *core.Category) error
	GetCategory(ctx context.Context, id string) (*core.Category, error)
	FindCategoryByName(ctx context.Context, name string) (*core.Category, error)
	ListCategories(ctx context.Context) ([]core.Category, error)

	InsertSubscription(ctx context.Context, s *core.Subscription) error
	UpdateSubscription(ctx context.Context, s *core.Subscription) error
	GetSubscription(ctx context.Context, id string) (*core.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]core.Subscription, error)
	// DeleteSubscription removes the subscription and every transaction it generated,
	// returning how many transactions went with it.
	DeleteSubscription(ctx context.Context, id string) (int, error)

	InsertTransaction(ctx context.Context, t *core.Transaction) error
	GetTransaction(ctx context.Context, id string) (*core.Transaction, error)
	// UpdateTransaction rewrites the entry's fields. The subscription
	// back-reference is never changed.
	UpdateTransaction(ctx context.Context, t *core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	DeleteTransactionsBySubscription(ctx context.Context, subscriptionID string) (int, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)

	InsertBudget(ctx context.Context, b *core.Budget) error
	GetBudget(ctx context.Context, id string) (*core.Budget, error)
	ListBudgets(ctx context.Context) ([]core.Budget, error)
	DeleteBudget(ctx context.Context, id string) error
}

// Matches reports whether t passes the filter.
func (f TransactionFilter) Matches(t core.Transaction) bool {
	if f.AccountID != "" && t.AccountID != f.AccountID && t.DestinationAccountID != f.AccountID {
		return false
	}
	if f.SubscriptionID != "" && t.SubscriptionID != f.SubscriptionID {
		return false
	}
	if !f.Since.IsEmpty() && t.Date.Before(f.Since) {
		return false
	}
	return true
}
