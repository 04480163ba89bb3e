package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ledger/internal/core"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_SubscriptionRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	sub := core.Subscription{
		ID:        "sub-1",
		Name:      "Streaming",
		Note:      "family plan",
		Amount:    core.Money{Cents: 1299},
		Currency:  "EUR",
		StartDate: core.NewDate(2024, 1, 31),
		Cadence:   core.Cadence{Interval: 1, Unit: core.Month},
		Active:    true,
		TrialEnd:  core.NewDate(2024, 2, 15),
		AccountID: "acc-1",
		CreatedAt: created,
	}

	err := repo.Update(ctx, func(tx Tx) error {
		return tx.InsertSubscription(ctx, &sub)
	})
	if err != nil {
		t.Fatalf("InsertSubscription() error = %v", err)
	}

	var got *core.Subscription
	err = repo.View(ctx, func(tx Tx) error {
		var err error
		got, err = tx.GetSubscription(ctx, "sub-1")
		return err
	})
	if err != nil {
		t.Fatalf("GetSubscription() error = %v", err)
	}

	if got.Name != sub.Name || got.Amount != sub.Amount || got.Cadence != sub.Cadence {
		t.Errorf("GetSubscription() = %+v, want %+v", got, sub)
	}
	if !got.StartDate.Equal(sub.StartDate) || !got.TrialEnd.Equal(sub.TrialEnd) {
		t.Errorf("dates = %s/%s, want %s/%s", got.StartDate, got.TrialEnd, sub.StartDate, sub.TrialEnd)
	}
	if !got.GeneratedThrough.IsEmpty() {
		t.Errorf("GeneratedThrough = %s, want empty", got.GeneratedThrough)
	}
	if !got.Active || got.Free {
		t.Errorf("flags active=%v free=%v, want true/false", got.Active, got.Free)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
}

func TestSQLiteRepository_UpdateRollsBack(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.Update(ctx, func(tx Tx) error {
		if err := tx.InsertAccount(ctx, &core.Account{ID: "acc-1", Name: "Checking"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}

	err = repo.View(ctx, func(tx Tx) error {
		_, err := tx.GetAccount(ctx, "acc-1")
		return err
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetAccount() after rollback error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_DeleteSubscriptionCascades(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	err := repo.Update(ctx, func(tx Tx) error {
		if err := tx.InsertSubscription(ctx, &core.Subscription{
			ID: "sub-1", Name: "Gym", Amount: core.Money{Cents: 3000}, StartDate: core.NewDate(2024, 1, 1),
			Cadence: core.Cadence{Interval: 1, Unit: core.Month}, AccountID: "acc-1", CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		for i, d := range []core.Date{core.NewDate(2024, 1, 1), core.NewDate(2024, 2, 1), core.NewDate(2024, 3, 1)} {
			if err := tx.InsertTransaction(ctx, &core.Transaction{
				ID: "gen-" + string(rune('a'+i)), Title: "Gym", Amount: core.Money{Cents: 3000}, Date: d,
				Type: core.Expense, AccountID: "acc-1", SubscriptionID: "sub-1",
			}); err != nil {
				return err
			}
		}
		return tx.InsertTransaction(ctx, &core.Transaction{
			ID: "manual", Title: "Lunch", Amount: core.Money{Cents: 1200}, Date: core.NewDate(2024, 1, 5),
			Type: core.Expense, AccountID: "acc-1",
		})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	var removed int
	err = repo.Update(ctx, func(tx Tx) error {
		var err error
		removed, err = tx.DeleteSubscription(ctx, "sub-1")
		return err
	})
	if err != nil {
		t.Fatalf("DeleteSubscription() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	err = repo.View(ctx, func(tx Tx) error {
		list, err := tx.ListTransactions(ctx, TransactionFilter{})
		if err != nil {
			return err
		}
		if len(list) != 1 || list[0].ID != "manual" {
			t.Errorf("remaining = %+v, want only the manual entry", list)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = repo.Update(ctx, func(tx Tx) error {
		_, err := tx.DeleteSubscription(ctx, "sub-1")
		return err
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteSubscription() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_BudgetsAndCategories(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	food := core.Category{ID: "cat-1", Name: "Food", Type: core.CategoryExpense, Color: "#00ff00"}
	err := repo.Update(ctx, func(tx Tx) error {
		if err := tx.InsertAccount(ctx, &core.Account{ID: "acc-1", Name: "Checking"}); err != nil {
			return err
		}
		if err := tx.InsertCategory(ctx, &food); err != nil {
			return err
		}
		if err := tx.InsertBudget(ctx, &core.Budget{
			ID: "b-1", Limit: core.Money{Cents: 10000}, Category: &food, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}); err != nil {
			return err
		}
		return tx.InsertBudget(ctx, &core.Budget{
			ID: "b-2", Limit: core.Money{Cents: 5000}, AccountID: "acc-1", CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	err = repo.View(ctx, func(tx Tx) error {
		c, err := tx.FindCategoryByName(ctx, "Food")
		if err != nil {
			return err
		}
		if c.ID != "cat-1" || c.Color != "#00ff00" {
			t.Errorf("FindCategoryByName() = %+v", c)
		}

		budgets, err := tx.ListBudgets(ctx)
		if err != nil {
			return err
		}
		if len(budgets) != 2 {
			t.Fatalf("ListBudgets() len = %d, want 2", len(budgets))
		}
		if budgets[0].Category == nil || budgets[0].Category.Name != "Food" {
			t.Errorf("first budget category = %+v, want Food", budgets[0].Category)
		}
		if budgets[1].Category != nil || budgets[1].AccountID != "acc-1" {
			t.Errorf("second budget = %+v, want account scope only", budgets[1])
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := repo.Update(ctx, func(tx Tx) error { return tx.DeleteAccount(ctx, "acc-1") }); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}
	err = repo.View(ctx, func(tx Tx) error {
		budgets, err := tx.ListBudgets(ctx)
		if err != nil {
			return err
		}
		if len(budgets) != 1 || budgets[0].ID != "b-1" {
			t.Errorf("budgets after account delete = %+v, want only b-1", budgets)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSQLiteRepository_ListTransactionsFilter(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	seedTxs := []core.Transaction{
		{ID: "t1", Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 1, 1), Type: core.Expense, AccountID: "a"},
		{ID: "t2", Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 2, 1), Type: core.Expense, AccountID: "b"},
		{ID: "t3", Amount: core.Money{Cents: 100}, Date: core.NewDate(2024, 2, 2), Type: core.Transfer, AccountID: "b", DestinationAccountID: "a"},
	}
	err := repo.Update(ctx, func(tx Tx) error {
		for i := range seedTxs {
			if err := tx.InsertTransaction(ctx, &seedTxs[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		name   string
		filter TransactionFilter
		want   []string
	}{
		{name: "all ordered by date", filter: TransactionFilter{}, want: []string{"t1", "t2", "t3"}},
		{name: "account matches destination", filter: TransactionFilter{AccountID: "a"}, want: []string{"t1", "t3"}},
		{name: "since", filter: TransactionFilter{Since: core.NewDate(2024, 2, 1)}, want: []string{"t2", "t3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.View(ctx, func(tx Tx) error {
				list, err := tx.ListTransactions(ctx, tt.filter)
				if err != nil {
					return err
				}
				if len(list) != len(tt.want) {
					t.Fatalf("ListTransactions() len = %d, want %d", len(list), len(tt.want))
				}
				for i, id := range tt.want {
					if list[i].ID != id {
						t.Errorf("ListTransactions()[%d] = %s, want %s", i, list[i].ID, id)
					}
				}
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestSQLiteRepository_UpdateTransactionKeepsOwner(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	err := repo.Update(ctx, func(tx Tx) error {
		if err := tx.InsertAccount(ctx, &core.Account{ID: "acc-1", Name: "Checking"}); err != nil {
			return err
		}
		if err := tx.InsertSubscription(ctx, &core.Subscription{
			ID: "sub-1", Name: "Gym", Amount: core.Money{Cents: 3000}, StartDate: core.NewDate(2024, 1, 1),
			Cadence: core.Cadence{Interval: 1, Unit: core.Month}, AccountID: "acc-1", CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, &core.Transaction{
			ID: "gen-a", Title: "Gym", Amount: core.Money{Cents: 3000}, Date: core.NewDate(2024, 1, 1),
			Type: core.Expense, AccountID: "acc-1", SubscriptionID: "sub-1",
		})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	err = repo.Update(ctx, func(tx Tx) error {
		return tx.UpdateTransaction(ctx, &core.Transaction{
			ID: "gen-a", Title: "Gym (discounted)", Amount: core.Money{Cents: 2500}, Date: core.NewDate(2024, 1, 2),
			Type: core.Expense, AccountID: "acc-1",
		})
	})
	if err != nil {
		t.Fatalf("UpdateTransaction() error = %v", err)
	}

	err = repo.View(ctx, func(tx Tx) error {
		got, err := tx.GetTransaction(ctx, "gen-a")
		if err != nil {
			return err
		}
		if got.SubscriptionID != "sub-1" {
			t.Errorf("SubscriptionID = %q, want sub-1", got.SubscriptionID)
		}
		if got.Amount.Cents != 2500 || !got.Date.Equal(core.NewDate(2024, 1, 2)) {
			t.Errorf("fields not updated: %+v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = repo.Update(ctx, func(tx Tx) error {
		return tx.UpdateTransaction(ctx, &core.Transaction{
			ID: "ghost", Title: "x", Amount: core.Money{Cents: 1}, Date: core.NewDate(2024, 1, 1),
			Type: core.Expense, AccountID: "acc-1",
		})
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateTransaction(ghost) error = %v, want ErrNotFound", err)
	}
}
