package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/google/uuid"
)

// Snapshot is the full content of a MemoryStore. It doubles as the format of
// the JSON seed file.
type Snapshot struct {
	Users                  []models.User                  `json:"users"`
	Wallets                []models.Wallet                `json:"wallets"`
	Categories             []models.Category              `json:"categories"`
	Transactions           []models.Transaction           `json:"transactions"`
	Budgets                []models.Budget                `json:"budgets"`
	Goals                  []models.Goal                  `json:"goals"`
	Debts                  []models.Debt                  `json:"debts"`
	Investments            []models.Investment            `json:"investments"`
	InvestmentTransactions []models.InvestmentTransaction `json:"investment_transactions"`
	Tags                   []models.Tag                   `json:"tags"`
}

type memData struct {
	users        map[string]models.User
	wallets      map[uuid.UUID]models.Wallet
	categories   []models.Category
	transactions []models.Transaction
	budgets      map[uuid.UUID]models.Budget
	goals        map[uuid.UUID]models.Goal
	debts        map[uuid.UUID]models.Debt
	investments  map[uuid.UUID]models.Investment
	invTxns      []models.InvestmentTransaction
	tags         []models.Tag
}

func newMemData() *memData {
	return &memData{
		users:       map[string]models.User{},
		wallets:     map[uuid.UUID]models.Wallet{},
		budgets:     map[uuid.UUID]models.Budget{},
		goals:       map[uuid.UUID]models.Goal{},
		debts:       map[uuid.UUID]models.Debt{},
		investments: map[uuid.UUID]models.Investment{},
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		users:        make(map[string]models.User, len(d.users)),
		wallets:      make(map[uuid.UUID]models.Wallet, len(d.wallets)),
		categories:   slices.Clone(d.categories),
		transactions: slices.Clone(d.transactions),
		budgets:      make(map[uuid.UUID]models.Budget, len(d.budgets)),
		goals:        make(map[uuid.UUID]models.Goal, len(d.goals)),
		debts:        make(map[uuid.UUID]models.Debt, len(d.debts)),
		investments:  make(map[uuid.UUID]models.Investment, len(d.investments)),
		invTxns:      slices.Clone(d.invTxns),
		tags:         slices.Clone(d.tags),
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.wallets {
		c.wallets[k] = v
	}
	for k, v := range d.budgets {
		c.budgets[k] = v
	}
	for k, v := range d.goals {
		c.goals[k] = v
	}
	for k, v := range d.debts {
		c.debts[k] = v
	}
	for k, v := range d.investments {
		c.investments[k] = v
	}
	return c
}

// withUser returns a shallow copy of d with u stored. Published memData
// values are never mutated so readers can use them without holding the lock.
func (d *memData) withUser(u models.User) *memData {
	c := *d
	c.users = make(map[string]models.User, len(d.users)+1)
	for k, v := range d.users {
		c.users[k] = v
	}
	c.users[u.ClerkUserID] = u
	return &c
}

// MemoryStore keeps every row in process memory. It backs the memory data
// backend and the tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data *memData
	now  func() time.Time
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData(), now: time.Now}
}

// NewMemoryStoreFromFile loads a JSON Snapshot from path
func NewMemoryStoreFromFile(path string) (*MemoryStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}

	s := NewMemoryStore()
	s.Load(snap)
	return s, nil
}

// Load replaces the content of the store with snap
func (s *MemoryStore) Load(snap Snapshot) {
	d := newMemData()
	for _, u := range snap.Users {
		d.users[u.ClerkUserID] = u
	}
	for _, w := range snap.Wallets {
		d.wallets[w.ID] = w
	}
	for _, b := range snap.Budgets {
		d.budgets[b.ID] = b
	}
	for _, g := range snap.Goals {
		d.goals[g.ID] = g
	}
	for _, x := range snap.Debts {
		d.debts[x.ID] = x
	}
	for _, i := range snap.Investments {
		d.investments[i.ID] = i
	}
	d.categories = slices.Clone(snap.Categories)
	d.transactions = slices.Clone(snap.Transactions)
	d.invTxns = slices.Clone(snap.InvestmentTransactions)
	d.tags = slices.Clone(snap.Tags)

	s.mu.Lock()
	s.data = d
	s.mu.Unlock()
}

// Snapshot returns a copy of everything in the store
func (s *MemoryStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.data
	snap := Snapshot{
		Categories:             slices.Clone(d.categories),
		Transactions:           slices.Clone(d.transactions),
		InvestmentTransactions: slices.Clone(d.invTxns),
		Tags:                   slices.Clone(d.tags),
	}
	for _, u := range d.users {
		snap.Users = append(snap.Users, u)
	}
	snap.Wallets = sortedValues(d.wallets, nil, func(w models.Wallet) time.Time { return w.CreatedAt })
	snap.Budgets = sortedValues(d.budgets, nil, func(b models.Budget) time.Time { return b.CreatedAt })
	snap.Goals = sortedValues(d.goals, nil, func(g models.Goal) time.Time { return g.CreatedAt })
	snap.Debts = sortedValues(d.debts, nil, func(x models.Debt) time.Time { return x.CreatedAt })
	snap.Investments = sortedValues(d.investments, nil, func(i models.Investment) time.Time { return i.CreatedAt })
	return snap
}

func (s *MemoryStore) read() *memData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// WithinTx runs fn against a private copy of the data and publishes the copy
// only when fn succeeds. Writers are serialized.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.data.clone()
	if err := fn(&memTx{data: work, now: s.now}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *MemoryStore) Wallets(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error) {
	return ownedValues(s.read().wallets, userID, func(w models.Wallet) uuid.UUID { return w.UserID },
		func(w models.Wallet) time.Time { return w.CreatedAt }), nil
}

func (s *MemoryStore) Categories(ctx context.Context, userID uuid.UUID) ([]models.Category, error) {
	return filterOwned(s.read().categories, func(c models.Category) bool { return c.UserID == userID }), nil
}

func (s *MemoryStore) Transactions(ctx context.Context, userID uuid.UUID, r DateRange) ([]models.Transaction, error) {
	return s.read().transactionsFor(userID, r), nil
}

func (s *MemoryStore) Budgets(ctx context.Context, userID uuid.UUID) ([]models.Budget, error) {
	return ownedValues(s.read().budgets, userID, func(b models.Budget) uuid.UUID { return b.UserID },
		func(b models.Budget) time.Time { return b.CreatedAt }), nil
}

func (s *MemoryStore) Goals(ctx context.Context, userID uuid.UUID) ([]models.Goal, error) {
	return ownedValues(s.read().goals, userID, func(g models.Goal) uuid.UUID { return g.UserID },
		func(g models.Goal) time.Time { return g.CreatedAt }), nil
}

func (s *MemoryStore) Debts(ctx context.Context, userID uuid.UUID) ([]models.Debt, error) {
	return ownedValues(s.read().debts, userID, func(d models.Debt) uuid.UUID { return d.UserID },
		func(d models.Debt) time.Time { return d.CreatedAt }), nil
}

func (s *MemoryStore) Investments(ctx context.Context, userID uuid.UUID) ([]models.Investment, error) {
	return ownedValues(s.read().investments, userID, func(i models.Investment) uuid.UUID { return i.UserID },
		func(i models.Investment) time.Time { return i.CreatedAt }), nil
}

func (s *MemoryStore) Tags(ctx context.Context, userID uuid.UUID) ([]models.Tag, error) {
	return filterOwned(s.read().tags, func(t models.Tag) bool { return t.UserID == userID }), nil
}

func (s *MemoryStore) Wallet(ctx context.Context, userID, id uuid.UUID) (models.Wallet, error) {
	return s.read().wallet(userID, id)
}

func (s *MemoryStore) Debt(ctx context.Context, userID, id uuid.UUID) (models.Debt, error) {
	return s.read().debt(userID, id)
}

func (s *MemoryStore) Goal(ctx context.Context, userID, id uuid.UUID) (models.Goal, error) {
	return s.read().goal(userID, id)
}

func (s *MemoryStore) Budget(ctx context.Context, userID, id uuid.UUID) (models.Budget, error) {
	return s.read().budget(userID, id)
}

func (s *MemoryStore) Investment(ctx context.Context, userID, id uuid.UUID) (models.Investment, error) {
	return s.read().investment(userID, id)
}

func (s *MemoryStore) UserByClerkID(ctx context.Context, clerkUserID string) (models.User, error) {
	u, ok := s.read().users[clerkUserID]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) UpsertUser(ctx context.Context, clerkUserID, email string, fullName *string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	u, ok := s.data.users[clerkUserID]
	if !ok {
		u = models.User{ID: uuid.New(), ClerkUserID: clerkUserID, CreatedAt: now}
	}
	u.Email = email
	u.FullName = fullName
	u.UpdatedAt = now
	s.data = s.data.withUser(u)
	return u, nil
}

func (s *MemoryStore) UpdateUser(ctx context.Context, clerkUserID, email string, fullName *string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.data.users[clerkUserID]
	if !ok {
		return models.User{}, ErrNotFound
	}
	u.Email = email
	u.FullName = fullName
	u.UpdatedAt = s.now()
	s.data = s.data.withUser(u)
	return u, nil
}

type memTx struct {
	data *memData
	now  func() time.Time
}

func (t *memTx) Wallet(ctx context.Context, userID, id uuid.UUID) (models.Wallet, error) {
	return t.data.wallet(userID, id)
}

func (t *memTx) Debt(ctx context.Context, userID, id uuid.UUID) (models.Debt, error) {
	return t.data.debt(userID, id)
}

func (t *memTx) Goal(ctx context.Context, userID, id uuid.UUID) (models.Goal, error) {
	return t.data.goal(userID, id)
}

func (t *memTx) Budget(ctx context.Context, userID, id uuid.UUID) (models.Budget, error) {
	return t.data.budget(userID, id)
}

func (t *memTx) Investment(ctx context.Context, userID, id uuid.UUID) (models.Investment, error) {
	return t.data.investment(userID, id)
}

func (t *memTx) Transactions(ctx context.Context, userID uuid.UUID, r DateRange) ([]models.Transaction, error) {
	return t.data.transactionsFor(userID, r), nil
}

func (t *memTx) UpdateWallet(ctx context.Context, w models.Wallet) (models.Wallet, error) {
	cur, err := t.data.wallet(w.UserID, w.ID)
	if err != nil {
		return models.Wallet{}, err
	}
	if cur.Version != w.Version {
		return models.Wallet{}, ErrVersionConflict
	}
	w.Version++
	w.UpdatedAt = t.now()
	t.data.wallets[w.ID] = w
	return w, nil
}

func (t *memTx) UpdateDebt(ctx context.Context, d models.Debt) (models.Debt, error) {
	cur, err := t.data.debt(d.UserID, d.ID)
	if err != nil {
		return models.Debt{}, err
	}
	if cur.Version != d.Version {
		return models.Debt{}, ErrVersionConflict
	}
	d.Version++
	d.UpdatedAt = t.now()
	t.data.debts[d.ID] = d
	return d, nil
}

func (t *memTx) UpdateGoal(ctx context.Context, g models.Goal) (models.Goal, error) {
	cur, err := t.data.goal(g.UserID, g.ID)
	if err != nil {
		return models.Goal{}, err
	}
	if cur.Version != g.Version {
		return models.Goal{}, ErrVersionConflict
	}
	g.Version++
	g.UpdatedAt = t.now()
	t.data.goals[g.ID] = g
	return g, nil
}

func (t *memTx) UpdateInvestment(ctx context.Context, i models.Investment) (models.Investment, error) {
	cur, err := t.data.investment(i.UserID, i.ID)
	if err != nil {
		return models.Investment{}, err
	}
	if cur.Version != i.Version {
		return models.Investment{}, ErrVersionConflict
	}
	i.Version++
	i.UpdatedAt = t.now()
	t.data.investments[i.ID] = i
	return i, nil
}

func (t *memTx) InsertTransaction(ctx context.Context, txn models.Transaction) (models.Transaction, error) {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = t.now()
	}
	txn.TagIDs = slices.Clone(txn.TagIDs)
	t.data.transactions = append(t.data.transactions, txn)
	return txn, nil
}

func (t *memTx) InsertInvestmentTransaction(ctx context.Context, it models.InvestmentTransaction) (models.InvestmentTransaction, error) {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = t.now()
	}
	t.data.invTxns = append(t.data.invTxns, it)
	return it, nil
}

func (d *memData) wallet(userID, id uuid.UUID) (models.Wallet, error) {
	w, ok := d.wallets[id]
	if !ok || w.UserID != userID {
		return models.Wallet{}, ErrNotFound
	}
	return w, nil
}

func (d *memData) debt(userID, id uuid.UUID) (models.Debt, error) {
	x, ok := d.debts[id]
	if !ok || x.UserID != userID {
		return models.Debt{}, ErrNotFound
	}
	return x, nil
}

func (d *memData) goal(userID, id uuid.UUID) (models.Goal, error) {
	g, ok := d.goals[id]
	if !ok || g.UserID != userID {
		return models.Goal{}, ErrNotFound
	}
	return g, nil
}

func (d *memData) budget(userID, id uuid.UUID) (models.Budget, error) {
	b, ok := d.budgets[id]
	if !ok || b.UserID != userID {
		return models.Budget{}, ErrNotFound
	}
	return b, nil
}

func (d *memData) investment(userID, id uuid.UUID) (models.Investment, error) {
	i, ok := d.investments[id]
	if !ok || i.UserID != userID {
		return models.Investment{}, ErrNotFound
	}
	return i, nil
}

// transactionsFor returns the user's transactions in r, newest first
func (d *memData) transactionsFor(userID uuid.UUID, r DateRange) []models.Transaction {
	out := filterOwned(d.transactions, func(t models.Transaction) bool {
		return t.UserID == userID && r.Contains(t.Date)
	})
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func filterOwned[T any](rows []T, keep func(T) bool) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func ownedValues[T any](m map[uuid.UUID]T, userID uuid.UUID, owner func(T) uuid.UUID, created func(T) time.Time) []T {
	return sortedValues(m, func(v T) bool { return owner(v) == userID }, created)
}

// sortedValues orders oldest first. Map iteration is random, so rows with
// equal timestamps fall back to the id to stay deterministic.
func sortedValues[T any](m map[uuid.UUID]T, keep func(T) bool, created func(T) time.Time) []T {
	type entry struct {
		id uuid.UUID
		v  T
	}
	entries := make([]entry, 0, len(m))
	for id, v := range m {
		if keep == nil || keep(v) {
			entries = append(entries, entry{id: id, v: v})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := created(entries[i].v), created(entries[j].v)
		if !a.Equal(b) {
			return a.Before(b)
		}
		return entries[i].id.String() < entries[j].id.String()
	})

	out := make([]T, len(entries))
	for i, e := range entries {
		out[i] = e.v
	}
	return out
}
