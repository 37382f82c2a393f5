package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/events"
	"github.com/ashmitsharp/finlens-api/internal/ledger"
	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func expense(wallet uuid.UUID, category *uuid.UUID, amount string, date time.Time) models.Transaction {
	return models.Transaction{ID: uuid.New(), WalletID: wallet, CategoryID: category, Amount: dec(amount), Kind: models.Expense, Date: date}
}

func income(wallet uuid.UUID, amount string, date time.Time) models.Transaction {
	return models.Transaction{ID: uuid.New(), WalletID: wallet, Amount: dec(amount), Kind: models.Income, Date: date}
}

// owned stamps userID on every transaction
func owned(userID uuid.UUID, txns ...models.Transaction) []models.Transaction {
	for i := range txns {
		txns[i].UserID = userID
	}
	return txns
}

// fixture is a memory store seeded with one user holding two bank wallets
type fixture struct {
	store   *ledger.MemoryStore
	userID  uuid.UUID
	main    models.Wallet
	savings models.Wallet
}

func newFixture(t *testing.T, mutate func(*ledger.Snapshot)) fixture {
	t.Helper()
	userID := uuid.New()
	f := fixture{
		store:  ledger.NewMemoryStore(),
		userID: userID,
		main: models.Wallet{
			ID: uuid.New(), UserID: userID, Name: "Main", Kind: models.WalletBank,
			Balance: dec("1000"), Currency: "IDR", Version: 1,
		},
		savings: models.Wallet{
			ID: uuid.New(), UserID: userID, Name: "Savings", Kind: models.WalletBank,
			Balance: dec("0"), Currency: "IDR", Version: 1,
		},
	}
	snap := ledger.Snapshot{Wallets: []models.Wallet{f.main, f.savings}}
	if mutate != nil {
		mutate(&snap)
	}
	f.store.Load(snap)
	return f
}

func (f fixture) wallet(t *testing.T, id uuid.UUID) models.Wallet {
	t.Helper()
	w, err := f.store.Wallet(context.Background(), f.userID, id)
	if err != nil {
		t.Fatalf("wallet %s: %v", id, err)
	}
	return w
}

func (f fixture) transactions(t *testing.T) []models.Transaction {
	t.Helper()
	txns, err := f.store.Transactions(context.Background(), f.userID, ledger.DateRange{})
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	return txns
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) published() []events.LedgerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.LedgerEvent(nil), p.events...)
}

// conflictingStore fails the first n transactions with a version conflict
type conflictingStore struct {
	*ledger.MemoryStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *conflictingStore) WithinTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	s.mu.Unlock()
	if fail {
		return ledger.ErrVersionConflict
	}
	return s.MemoryStore.WithinTx(ctx, fn)
}
