package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/billing"
	"ledger/internal/core"
	"ledger/internal/storage"
	"ledger/internal/storage/memory"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequentialIDs(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, e *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *e)
	return p.err
}

func (p *recordingPublisher) kinds() []amqp.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []amqp.EventKind
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

var errInjected = errors.New("injected store failure")

// flakyStore fails the n-th transaction insert of every unit once armed.
type flakyStore struct {
	storage.Store
	failAfter int
	armed     bool
}

func (s *flakyStore) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.Store.Update(ctx, func(tx storage.Tx) error {
		if !s.armed {
			return fn(tx)
		}
		return fn(&flakyTx{Tx: tx, left: s.failAfter})
	})
}

type flakyTx struct {
	storage.Tx
	left int
}

func (t *flakyTx) InsertTransaction(ctx context.Context, tx *core.Transaction) error {
	if t.left <= 0 {
		return &storage.StoreError{Op: "insert transaction", Err: errInjected}
	}
	t.left--
	return t.Tx.InsertTransaction(ctx, tx)
}

func newTestSubscriptionService(store storage.Store, pub *recordingPublisher, now time.Time) *SubscriptionService {
	var p Publisher
	if pub != nil {
		p = pub
	}
	svc := NewSubscriptionService(store, p, nil)
	svc.now = fixedClock(now)
	svc.newID = sequentialIDs("sub")
	svc.generator = billing.NewGenerator(sequentialIDs("tx"), nil)
	return svc
}

func seedAccount(t *testing.T, store storage.Store, id string) {
	t.Helper()
	ctx := context.Background()
	err := store.Update(ctx, func(tx storage.Tx) error {
		return tx.InsertAccount(ctx, &core.Account{ID: id, Name: "Account " + id})
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func generatedFor(t *testing.T, store storage.Store, subID string) []core.Transaction {
	t.Helper()
	var out []core.Transaction
	err := store.View(context.Background(), func(tx storage.Tx) error {
		var err error
		out, err = tx.ListTransactions(context.Background(), storage.TransactionFilter{SubscriptionID: subID})
		return err
	})
	if err != nil {
		t.Fatalf("list generated: %v", err)
	}
	return out
}

func newMemoryStore() *memory.Store { return memory.New() }
