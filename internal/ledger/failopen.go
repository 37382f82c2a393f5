package ledger

import (
	"context"
	"log/slog"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/google/uuid"
)

// failOpenReader turns collection read failures into empty results.
// Single entity reads keep their error so callers can tell not found apart.
type failOpenReader struct {
	next   Reader
	logger *slog.Logger
}

// FailOpen wraps r so read paths keep rendering an empty state when the
// store is unavailable. Failures are logged to logger as given, never returned.
func FailOpen(r Reader, logger *slog.Logger) Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &failOpenReader{next: r, logger: logger}
}

func collect[T any](ctx context.Context, l *slog.Logger, entity string, userID uuid.UUID, rows []T, err error) ([]T, error) {
	if err != nil {
		l.WarnContext(ctx, "Ledger read failed, serving empty result",
			"entity", entity,
			"user_id", userID,
			"error", err)
		return []T{}, nil
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

func (f *failOpenReader) Wallets(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error) {
	rows, err := f.next.Wallets(ctx, userID)
	return collect(ctx, f.logger, "wallets", userID, rows, err)
}

func (f *failOpenReader) Categories(ctx context.Context, userID uuid.UUID) ([]models.Category, error) {
	rows, err := f.next.Categories(ctx, userID)
	return collect(ctx, f.logger, "categories", userID, rows, err)
}

func (f *failOpenReader) Transactions(ctx context.Context, userID uuid.UUID, r DateRange) ([]models.Transaction, error) {
	rows, err := f.next.Transactions(ctx, userID, r)
	return collect(ctx, f.logger, "transactions", userID, rows, err)
}

func (f *failOpenReader) Budgets(ctx context.Context, userID uuid.UUID) ([]models.Budget, error) {
	rows, err := f.next.Budgets(ctx, userID)
	return collect(ctx, f.logger, "budgets", userID, rows, err)
}

func (f *failOpenReader) Goals(ctx context.Context, userID uuid.UUID) ([]models.Goal, error) {
	rows, err := f.next.Goals(ctx, userID)
	return collect(ctx, f.logger, "goals", userID, rows, err)
}

func (f *failOpenReader) Debts(ctx context.Context, userID uuid.UUID) ([]models.Debt, error) {
	rows, err := f.next.Debts(ctx, userID)
	return collect(ctx, f.logger, "debts", userID, rows, err)
}

func (f *failOpenReader) Investments(ctx context.Context, userID uuid.UUID) ([]models.Investment, error) {
	rows, err := f.next.Investments(ctx, userID)
	return collect(ctx, f.logger, "investments", userID, rows, err)
}

func (f *failOpenReader) Tags(ctx context.Context, userID uuid.UUID) ([]models.Tag, error) {
	rows, err := f.next.Tags(ctx, userID)
	return collect(ctx, f.logger, "tags", userID, rows, err)
}

func (f *failOpenReader) Wallet(ctx context.Context, userID, id uuid.UUID) (models.Wallet, error) {
	return f.next.Wallet(ctx, userID, id)
}

func (f *failOpenReader) Debt(ctx context.Context, userID, id uuid.UUID) (models.Debt, error) {
	return f.next.Debt(ctx, userID, id)
}

func (f *failOpenReader) Goal(ctx context.Context, userID, id uuid.UUID) (models.Goal, error) {
	return f.next.Goal(ctx, userID, id)
}

func (f *failOpenReader) Budget(ctx context.Context, userID, id uuid.UUID) (models.Budget, error) {
	return f.next.Budget(ctx, userID, id)
}

func (f *failOpenReader) Investment(ctx context.Context, userID, id uuid.UUID) (models.Investment, error) {
	return f.next.Investment(ctx, userID, id)
}
