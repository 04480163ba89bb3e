// Package memory is an in-process Store. Every unit of work runs against a
// private copy of the ledger which replaces the live one only when the unit
// succeeds, so a failed unit leaves nothing behind.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ledger/internal/core"
	"ledger/internal/storage"
)

type state struct {
	accounts      map[string]core.Account
	categories    map[string]core.Category
	categoryOrder []string // insertion order, for name lookups
	subscriptions map[string]core.Subscription
	transactions  map[string]core.Transaction
	budgets       map[string]budgetRow

	// owned indexes generated transactions by subscription id.
	owned map[string]map[string]struct{}
}

// budgetRow keeps the category as a reference so renames show through.
type budgetRow struct {
	budget     core.Budget
	categoryID string
}

func newState() *state {
	return &state{
		accounts:      make(map[string]core.Account),
		categories:    make(map[string]core.Category),
		subscriptions: make(map[string]core.Subscription),
		transactions:  make(map[string]core.Transaction),
		budgets:       make(map[string]budgetRow),
		owned:         make(map[string]map[string]struct{}),
	}
}

func (s *state) clone() *state {
	c := &state{
		accounts:      make(map[string]core.Account, len(s.accounts)),
		categories:    make(map[string]core.Category, len(s.categories)),
		categoryOrder: append([]string(nil), s.categoryOrder...),
		subscriptions: make(map[string]core.Subscription, len(s.subscriptions)),
		transactions:  make(map[string]core.Transaction, len(s.transactions)),
		budgets:       make(map[string]budgetRow, len(s.budgets)),
		owned:         make(map[string]map[string]struct{}, len(s.owned)),
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.subscriptions {
		c.subscriptions[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.budgets {
		c.budgets[k] = v
	}
	for sub, ids := range s.owned {
		set := make(map[string]struct{}, len(ids))
		for id := range ids {
			set[id] = struct{}{}
		}
		c.owned[sub] = set
	}
	return c
}

type Store struct {
	mu     sync.RWMutex
	state  *state
	closed bool
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) Update(_ context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrClosed
	}

	draft := s.state.clone()
	if err := fn(&memTx{st: draft}); err != nil {
		return err
	}
	s.state = draft
	return nil
}

func (s *Store) View(_ context.Context, fn func(tx storage.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return storage.ErrClosed
	}
	return fn(&memTx{st: s.state, readOnly: true})
}

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type memTx struct {
	st       *state
	readOnly bool
}

var errReadOnly = fmt.Errorf("memory: write inside a read-only view")

func (t *memTx) writable(op string) error {
	if t.readOnly {
		return &storage.StoreError{Op: op, Err: errReadOnly}
	}
	return nil
}

func (t *memTx) InsertAccount(_ context.Context, a *core.Account) error {
	if err := t.writable("insert account"); err != nil {
		return err
	}
	if _, ok := t.st.accounts[a.ID]; ok {
		return duplicate("insert account", a.ID)
	}
	t.st.accounts[a.ID] = *a
	return nil
}

func (t *memTx) GetAccount(_ context.Context, id string) (*core.Account, error) {
	a, ok := t.st.accounts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &a, nil
}

func (t *memTx) ListAccounts(context.Context) ([]core.Account, error) {
	out := make([]core.Account, 0, len(t.st.accounts))
	for _, a := range t.st.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) DeleteAccount(_ context.Context, id string) error {
	if err := t.writable("delete account"); err != nil {
		return err
	}
	if _, ok := t.st.accounts[id]; !ok {
		return storage.ErrNotFound
	}
	for txID, tx := range t.st.transactions {
		if tx.AccountID == id || tx.DestinationAccountID == id {
			t.removeTransaction(txID)
		}
	}
	for budgetID, row := range t.st.budgets {
		if row.budget.AccountID == id {
			delete(t.st.budgets, budgetID)
		}
	}
	delete(t.st.accounts, id)
	return nil
}

func (t *memTx) InsertCategory(_ context.Context, c *core.Category) error {
	if err := t.writable("insert category"); err != nil {
		return err
	}
	if _, ok := t.st.categories[c.ID]; ok {
		return duplicate("insert category", c.ID)
	}
	t.st.categories[c.ID] = *c
	t.st.categoryOrder = append(t.st.categoryOrder, c.ID)
	return nil
}

func (t *memTx) GetCategory(_ context.Context, id string) (*core.Category, error) {
	c, ok := t.st.categories[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

func (t *memTx) FindCategoryByName(_ context.Context, name string) (*core.Category, error) {
	for _, id := range t.st.categoryOrder {
		if c, ok := t.st.categories[id]; ok && c.Name == name {
			return &c, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (t *memTx) ListCategories(context.Context) ([]core.Category, error) {
	out := make([]core.Category, 0, len(t.st.categories))
	for _, c := range t.st.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) InsertSubscription(_ context.Context, s *core.Subscription) error {
	if err := t.writable("insert subscription"); err != nil {
		return err
	}
	if _, ok := t.st.subscriptions[s.ID]; ok {
		return duplicate("insert subscription", s.ID)
	}
	t.st.subscriptions[s.ID] = *s
	return nil
}

func (t *memTx) UpdateSubscription(_ context.Context, s *core.Subscription) error {
	if err := t.writable("update subscription"); err != nil {
		return err
	}
	if _, ok := t.st.subscriptions[s.ID]; !ok {
		return storage.ErrNotFound
	}
	t.st.subscriptions[s.ID] = *s
	return nil
}

func (t *memTx) GetSubscription(_ context.Context, id string) (*core.Subscription, error) {
	s, ok := t.st.subscriptions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &s, nil
}

func (t *memTx) ListSubscriptions(context.Context) ([]core.Subscription, error) {
	out := make([]core.Subscription, 0, len(t.st.subscriptions))
	for _, s := range t.st.subscriptions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) DeleteSubscription(ctx context.Context, id string) (int, error) {
	if err := t.writable("delete subscription"); err != nil {
		return 0, err
	}
	if _, ok := t.st.subscriptions[id]; !ok {
		return 0, storage.ErrNotFound
	}
	removed, err := t.DeleteTransactionsBySubscription(ctx, id)
	if err != nil {
		return 0, err
	}
	delete(t.st.subscriptions, id)
	return removed, nil
}

func (t *memTx) InsertTransaction(_ context.Context, tx *core.Transaction) error {
	if err := t.writable("insert transaction"); err != nil {
		return err
	}
	if _, ok := t.st.transactions[tx.ID]; ok {
		return duplicate("insert transaction", tx.ID)
	}
	t.st.transactions[tx.ID] = *tx
	if tx.SubscriptionID != "" {
		set, ok := t.st.owned[tx.SubscriptionID]
		if !ok {
			set = make(map[string]struct{})
			t.st.owned[tx.SubscriptionID] = set
		}
		set[tx.ID] = struct{}{}
	}
	return nil
}

func (t *memTx) GetTransaction(_ context.Context, id string) (*core.Transaction, error) {
	tx, ok := t.st.transactions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &tx, nil
}

func (t *memTx) UpdateTransaction(_ context.Context, tx *core.Transaction) error {
	if err := t.writable("update transaction"); err != nil {
		return err
	}
	old, ok := t.st.transactions[tx.ID]
	if !ok {
		return storage.ErrNotFound
	}
	next := *tx
	next.SubscriptionID = old.SubscriptionID
	t.st.transactions[tx.ID] = next
	return nil
}

func (t *memTx) DeleteTransaction(_ context.Context, id string) error {
	if err := t.writable("delete transaction"); err != nil {
		return err
	}
	if _, ok := t.st.transactions[id]; !ok {
		return storage.ErrNotFound
	}
	t.removeTransaction(id)
	return nil
}

// DeleteTransactionsBySubscription walks only the ownership index, never the
// whole ledger.
func (t *memTx) DeleteTransactionsBySubscription(_ context.Context, subscriptionID string) (int, error) {
	if err := t.writable("delete generated transactions"); err != nil {
		return 0, err
	}
	ids := t.st.owned[subscriptionID]
	for id := range ids {
		delete(t.st.transactions, id)
	}
	delete(t.st.owned, subscriptionID)
	return len(ids), nil
}

func (t *memTx) removeTransaction(id string) {
	tx, ok := t.st.transactions[id]
	if !ok {
		return
	}
	delete(t.st.transactions, id)
	if set, ok := t.st.owned[tx.SubscriptionID]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(t.st.owned, tx.SubscriptionID)
		}
	}
}

func (t *memTx) ListTransactions(_ context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	var out []core.Transaction
	if f.SubscriptionID != "" {
		for id := range t.st.owned[f.SubscriptionID] {
			if tx := t.st.transactions[id]; f.Matches(tx) {
				out = append(out, tx)
			}
		}
	} else {
		for _, tx := range t.st.transactions {
			if f.Matches(tx) {
				out = append(out, tx)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) InsertBudget(_ context.Context, b *core.Budget) error {
	if err := t.writable("insert budget"); err != nil {
		return err
	}
	if _, ok := t.st.budgets[b.ID]; ok {
		return duplicate("insert budget", b.ID)
	}
	row := budgetRow{budget: *b}
	if b.Category != nil {
		row.categoryID = b.Category.ID
	}
	row.budget.Category = nil
	t.st.budgets[b.ID] = row
	return nil
}

func (t *memTx) resolveBudget(row budgetRow) core.Budget {
	b := row.budget
	if c, ok := t.st.categories[row.categoryID]; ok {
		b.Category = &c
	}
	return b
}

func (t *memTx) GetBudget(_ context.Context, id string) (*core.Budget, error) {
	row, ok := t.st.budgets[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	b := t.resolveBudget(row)
	return &b, nil
}

func (t *memTx) ListBudgets(context.Context) ([]core.Budget, error) {
	out := make([]core.Budget, 0, len(t.st.budgets))
	for _, row := range t.st.budgets {
		out = append(out, t.resolveBudget(row))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) DeleteBudget(_ context.Context, id string) error {
	if err := t.writable("delete budget"); err != nil {
		return err
	}
	if _, ok := t.st.budgets[id]; !ok {
		return storage.ErrNotFound
	}
	delete(t.st.budgets, id)
	return nil
}

func duplicate(op, id string) error {
	return &storage.StoreError{Op: op, Err: fmt.Errorf("duplicate id %q", id)}
}
