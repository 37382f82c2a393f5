// Package ledger is the data access boundary of the service. Every read and
// write of user-owned rows goes through a Reader or a Store.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by single entity reads when the row does not
	// exist or belongs to another user
	ErrNotFound = errors.New("ledger: not found")

	// ErrVersionConflict is returned when a compare-and-swap write lost a race
	// or the database aborted a serializable transaction
	ErrVersionConflict = errors.New("ledger: version conflict")
)

// DateRange is inclusive on both ends. A zero bound is unbounded.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range, comparing civil dates only
func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	if !r.From.IsZero() && d.Before(Day(r.From)) {
		return false
	}
	if !r.To.IsZero() && d.After(Day(r.To)) {
		return false
	}
	return true
}

// Day strips the time of day, keeping the calendar date of t in its own location
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Reader is the read-only query surface: row sets per user and single rows by id
type Reader interface {
	Wallets(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error)
	Categories(ctx context.Context, userID uuid.UUID) ([]models.Category, error)
	Transactions(ctx context.Context, userID uuid.UUID, r DateRange) ([]models.Transaction, error)
	Budgets(ctx context.Context, userID uuid.UUID) ([]models.Budget, error)
	Goals(ctx context.Context, userID uuid.UUID) ([]models.Goal, error)
	Debts(ctx context.Context, userID uuid.UUID) ([]models.Debt, error)
	Investments(ctx context.Context, userID uuid.UUID) ([]models.Investment, error)
	Tags(ctx context.Context, userID uuid.UUID) ([]models.Tag, error)

	Wallet(ctx context.Context, userID, id uuid.UUID) (models.Wallet, error)
	Debt(ctx context.Context, userID, id uuid.UUID) (models.Debt, error)
	Goal(ctx context.Context, userID, id uuid.UUID) (models.Goal, error)
	Budget(ctx context.Context, userID, id uuid.UUID) (models.Budget, error)
	Investment(ctx context.Context, userID, id uuid.UUID) (models.Investment, error)
}

// Users maps Clerk subjects to local users
type Users interface {
	UserByClerkID(ctx context.Context, clerkUserID string) (models.User, error)
	UpsertUser(ctx context.Context, clerkUserID, email string, fullName *string) (models.User, error)
	UpdateUser(ctx context.Context, clerkUserID, email string, fullName *string) (models.User, error)
}

// Tx is the write surface available inside Store.WithinTx. Reads lock the
// row until the transaction ends. Updates compare the Version of the passed
// entity with the stored one and return the entity with its new Version.
type Tx interface {
	Wallet(ctx context.Context, userID, id uuid.UUID) (models.Wallet, error)
	Debt(ctx context.Context, userID, id uuid.UUID) (models.Debt, error)
	Goal(ctx context.Context, userID, id uuid.UUID) (models.Goal, error)
	Budget(ctx context.Context, userID, id uuid.UUID) (models.Budget, error)
	Investment(ctx context.Context, userID, id uuid.UUID) (models.Investment, error)
	Transactions(ctx context.Context, userID uuid.UUID, r DateRange) ([]models.Transaction, error)

	UpdateWallet(ctx context.Context, w models.Wallet) (models.Wallet, error)
	UpdateDebt(ctx context.Context, d models.Debt) (models.Debt, error)
	UpdateGoal(ctx context.Context, g models.Goal) (models.Goal, error)
	UpdateInvestment(ctx context.Context, i models.Investment) (models.Investment, error)
	InsertTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error)
	InsertInvestmentTransaction(ctx context.Context, t models.InvestmentTransaction) (models.InvestmentTransaction, error)
}

// Store is a Reader that can also run all-or-nothing writes.
// When fn returns an error nothing it wrote is kept.
type Store interface {
	Reader
	Users
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
