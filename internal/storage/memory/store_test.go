package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"ledger/internal/core"
	"ledger/internal/storage"
)

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	err := s.Update(ctx, func(tx storage.Tx) error {
		if err := tx.InsertAccount(ctx, &core.Account{ID: "acc-1", Name: "Checking"}); err != nil {
			return err
		}
		if err := tx.InsertAccount(ctx, &core.Account{ID: "acc-2", Name: "Savings"}); err != nil {
			return err
		}
		if err := tx.InsertCategory(ctx, &core.Category{ID: "cat-1", Name: "Food", Type: core.CategoryExpense}); err != nil {
			return err
		}
		if err := tx.InsertSubscription(ctx, &core.Subscription{ID: "sub-1", Name: "Music", AccountID: "acc-1"}); err != nil {
			return err
		}
		txs := []core.Transaction{
			{ID: "t1", AccountID: "acc-1", SubscriptionID: "sub-1", Date: core.NewDate(2024, 1, 1)},
			{ID: "t2", AccountID: "acc-1", SubscriptionID: "sub-1", Date: core.NewDate(2024, 2, 1)},
			{ID: "t3", AccountID: "acc-1", Date: core.NewDate(2024, 1, 15)},
			{ID: "t4", AccountID: "acc-2", DestinationAccountID: "acc-1", Type: core.Transfer, Date: core.NewDate(2024, 1, 20)},
		}
		for i := range txs {
			if err := tx.InsertTransaction(ctx, &txs[i]); err != nil {
				return err
			}
		}
		if err := tx.InsertBudget(ctx, &core.Budget{ID: "b-1", AccountID: "acc-2", CreatedAt: time.Unix(1, 0)}); err != nil {
			return err
		}
		return tx.InsertBudget(ctx, &core.Budget{ID: "b-2", Category: &core.Category{ID: "cat-1"}, CreatedAt: time.Unix(2, 0)})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func countTransactions(t *testing.T, s *Store, f storage.TransactionFilter) int {
	t.Helper()
	var n int
	err := s.View(context.Background(), func(tx storage.Tx) error {
		list, err := tx.ListTransactions(context.Background(), f)
		n = len(list)
		return err
	})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	return n
}

func TestStore_UpdateRollsBackOnError(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.Update(ctx, func(tx storage.Tx) error {
		if _, err := tx.DeleteTransactionsBySubscription(ctx, "sub-1"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want %v", err, boom)
	}
	if got := countTransactions(t, s, storage.TransactionFilter{SubscriptionID: "sub-1"}); got != 2 {
		t.Errorf("generated transactions after failed unit = %d, want 2", got)
	}
}

func TestStore_DeleteSubscriptionCascades(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	var removed int
	err := s.Update(ctx, func(tx storage.Tx) error {
		var err error
		removed, err = tx.DeleteSubscription(ctx, "sub-1")
		return err
	})
	if err != nil {
		t.Fatalf("DeleteSubscription() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if got := countTransactions(t, s, storage.TransactionFilter{}); got != 2 {
		t.Errorf("remaining transactions = %d, want 2", got)
	}

	err = s.View(ctx, func(tx storage.Tx) error {
		_, err := tx.GetSubscription(ctx, "sub-1")
		return err
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetSubscription() error = %v, want ErrNotFound", err)
	}
}

func TestStore_DeleteAccountCascades(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	if err := s.Update(ctx, func(tx storage.Tx) error { return tx.DeleteAccount(ctx, "acc-2") }); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}

	if got := countTransactions(t, s, storage.TransactionFilter{}); got != 3 {
		t.Errorf("remaining transactions = %d, want 3", got)
	}
	err := s.View(ctx, func(tx storage.Tx) error {
		budgets, err := tx.ListBudgets(ctx)
		if err != nil {
			return err
		}
		if len(budgets) != 1 || budgets[0].ID != "b-2" {
			t.Errorf("budgets = %+v, want only b-2", budgets)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestStore_ListTransactionsFilter(t *testing.T) {
	s := New()
	seed(t, s)

	tests := []struct {
		name   string
		filter storage.TransactionFilter
		want   int
	}{
		{name: "no filter", filter: storage.TransactionFilter{}, want: 4},
		{name: "by account includes destination", filter: storage.TransactionFilter{AccountID: "acc-1"}, want: 4},
		{name: "by source account", filter: storage.TransactionFilter{AccountID: "acc-2"}, want: 1},
		{name: "by subscription", filter: storage.TransactionFilter{SubscriptionID: "sub-1"}, want: 2},
		{name: "since", filter: storage.TransactionFilter{Since: core.NewDate(2024, 1, 15)}, want: 3},
		{name: "unknown subscription", filter: storage.TransactionFilter{SubscriptionID: "nope"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := countTransactions(t, s, tt.filter); got != tt.want {
				t.Errorf("ListTransactions() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStore_BudgetResolvesCategory(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	err := s.View(ctx, func(tx storage.Tx) error {
		b, err := tx.GetBudget(ctx, "b-2")
		if err != nil {
			return err
		}
		if b.Category == nil || b.Category.Name != "Food" {
			t.Errorf("budget category = %+v, want Food", b.Category)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestStore_ViewIsReadOnly(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.View(ctx, func(tx storage.Tx) error {
		return tx.InsertAccount(ctx, &core.Account{ID: "x", Name: "x"})
	})
	var storeErr *storage.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("View() write error = %v, want StoreError", err)
	}
}

func TestStore_Closed(t *testing.T) {
	s := New()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(context.Background()); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("Ping() error = %v, want ErrClosed", err)
	}
	err := s.Update(context.Background(), func(storage.Tx) error { return nil })
	if !errors.Is(err, storage.ErrClosed) {
		t.Errorf("Update() error = %v, want ErrClosed", err)
	}
}

func TestStore_FindCategoryByName(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	err := s.View(ctx, func(tx storage.Tx) error {
		c, err := tx.FindCategoryByName(ctx, "Food")
		if err != nil {
			return err
		}
		if c.ID != "cat-1" {
			t.Errorf("FindCategoryByName() id = %s, want cat-1", c.ID)
		}
		_, err = tx.FindCategoryByName(ctx, "Rent")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("FindCategoryByName(missing) error = %v, want ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestStore_UpdateTransactionKeepsOwner(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	err := s.Update(ctx, func(tx storage.Tx) error {
		return tx.UpdateTransaction(ctx, &core.Transaction{
			ID: "t1", Title: "Music (family)", AccountID: "acc-2", Date: core.NewDate(2024, 1, 3),
		})
	})
	if err != nil {
		t.Fatalf("UpdateTransaction() error = %v", err)
	}

	err = s.View(ctx, func(tx storage.Tx) error {
		got, err := tx.GetTransaction(ctx, "t1")
		if err != nil {
			return err
		}
		if got.SubscriptionID != "sub-1" {
			t.Errorf("SubscriptionID = %q, want sub-1", got.SubscriptionID)
		}
		if got.Title != "Music (family)" || got.AccountID != "acc-2" {
			t.Errorf("fields not updated: %+v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	var removed int
	err = s.Update(ctx, func(tx storage.Tx) error {
		var err error
		removed, err = tx.DeleteSubscription(ctx, "sub-1")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2 including the edited entry", removed)
	}

	err = s.Update(ctx, func(tx storage.Tx) error {
		return tx.UpdateTransaction(ctx, &core.Transaction{ID: "ghost"})
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("UpdateTransaction(ghost) error = %v, want ErrNotFound", err)
	}
}
