package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE codes that mean the transaction lost a race and can be retried
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// querier is the part of pgxpool.Pool and pgx.Tx the queries need
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore reads and writes the ledger tables through a pgx pool
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// WithinTx runs fn in a serializable transaction. Serialization failures
// surface as ErrVersionConflict.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		return fn(&pgTx{q: tx})
	})
	return mapPgError(err)
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrVersionConflict, pgErr.Message)
		}
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

const walletColumns = `id, user_id, name, kind, balance, currency, version, created_at, updated_at`

func scanWallet(row pgx.Row) (models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Name, &w.Kind, &w.Balance, &w.Currency, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

const debtColumns = `id, user_id, direction, counterparty, principal, settled, due_date, version, created_at, updated_at`

func scanDebt(row pgx.Row) (models.Debt, error) {
	var d models.Debt
	err := row.Scan(&d.ID, &d.UserID, &d.Direction, &d.Counterparty, &d.Principal, &d.Settled, &d.DueDate, &d.Version, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

const goalColumns = `id, user_id, name, target_amount, current_amount, target_date, status, version, created_at, updated_at`

func scanGoal(row pgx.Row) (models.Goal, error) {
	var g models.Goal
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &g.TargetDate, &g.Status, &g.Version, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

const budgetColumns = `id, user_id, category_id, amount, period, wallet_id, created_at`

func scanBudget(row pgx.Row) (models.Budget, error) {
	var b models.Budget
	err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Amount, &b.Period, &b.WalletID, &b.CreatedAt)
	return b, err
}

const investmentColumns = `id, user_id, name, ticker, quantity, avg_buy_price, current_price, status, version, created_at, updated_at`

func scanInvestment(row pgx.Row) (models.Investment, error) {
	var i models.Investment
	err := row.Scan(&i.ID, &i.UserID, &i.Name, &i.Ticker, &i.Quantity, &i.AvgBuyPrice, &i.CurrentPrice, &i.Status, &i.Version, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const transactionSelect = `
	SELECT t.id, t.user_id, t.wallet_id, t.category_id, t.amount, t.kind, t.date,
	       COALESCE(t.description, ''), t.reference, t.created_at,
	       COALESCE(array_agg(tt.tag_id::text) FILTER (WHERE tt.tag_id IS NOT NULL), '{}')
	FROM transactions t
	LEFT JOIN transaction_tags tt ON tt.transaction_id = t.id
	WHERE t.user_id = $1
	  AND ($2::date IS NULL OR t.date >= $2::date)
	  AND ($3::date IS NULL OR t.date <= $3::date)
	GROUP BY t.id
	ORDER BY t.date DESC, t.created_at DESC
`

func scanTransaction(row pgx.Row) (models.Transaction, error) {
	var (
		t         models.Transaction
		reference *uuid.UUID
		tags      []string
	)
	err := row.Scan(&t.ID, &t.UserID, &t.WalletID, &t.CategoryID, &t.Amount, &t.Kind, &t.Date,
		&t.Description, &reference, &t.CreatedAt, &tags)
	if err != nil {
		return t, err
	}
	if reference != nil {
		t.Reference = *reference
	}
	for _, raw := range tags {
		id, err := uuid.Parse(raw)
		if err != nil {
			return t, fmt.Errorf("parse tag id %q: %w", raw, err)
		}
		t.TagIDs = append(t.TagIDs, id)
	}
	return t, nil
}

func dateBound(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	d := Day(t)
	return &d
}

func queryTransactions(ctx context.Context, q querier, userID uuid.UUID, r DateRange) ([]models.Transaction, error) {
	rows, err := q.Query(ctx, transactionSelect, userID, dateBound(r.From), dateBound(r.To))
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// queryAll runs sql with the user id and scans every row with scan
func queryAll[T any](ctx context.Context, q querier, entity, sql string, userID uuid.UUID, scan func(pgx.Row) (T, error)) ([]T, error) {
	rows, err := q.Query(ctx, sql, userID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", entity, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", entity, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", entity, err)
	}
	return out, nil
}

func (s *PostgresStore) Wallets(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error) {
	return queryAll(ctx, s.pool, "wallets",
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 ORDER BY created_at`, userID, scanWallet)
}

func (s *PostgresStore) Categories(ctx context.Context, userID uuid.UUID) ([]models.Category, error) {
	return queryAll(ctx, s.pool, "categories",
		`SELECT id, user_id, name, kind, COALESCE(icon, '') FROM categories WHERE user_id = $1 ORDER BY name`,
		userID, func(row pgx.Row) (models.Category, error) {
			var c models.Category
			err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Kind, &c.Icon)
			return c, err
		})
}

func (s *PostgresStore) Transactions(ctx context.Context, userID uuid.UUID, r DateRange) ([]models.Transaction, error) {
	return queryTransactions(ctx, s.pool, userID, r)
}

func (s *PostgresStore) Budgets(ctx context.Context, userID uuid.UUID) ([]models.Budget, error) {
	return queryAll(ctx, s.pool, "budgets",
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = $1 ORDER BY created_at`, userID, scanBudget)
}

func (s *PostgresStore) Goals(ctx context.Context, userID uuid.UUID) ([]models.Goal, error) {
	return queryAll(ctx, s.pool, "goals",
		`SELECT `+goalColumns+` FROM goals WHERE user_id = $1 ORDER BY created_at`, userID, scanGoal)
}

func (s *PostgresStore) Debts(ctx context.Context, userID uuid.UUID) ([]models.Debt, error) {
	return queryAll(ctx, s.pool, "debts",
		`SELECT `+debtColumns+` FROM debts WHERE user_id = $1 ORDER BY created_at`, userID, scanDebt)
}

func (s *PostgresStore) Investments(ctx context.Context, userID uuid.UUID) ([]models.Investment, error) {
	return queryAll(ctx, s.pool, "investments",
		`SELECT `+investmentColumns+` FROM investments WHERE user_id = $1 ORDER BY created_at`, userID, scanInvestment)
}

func (s *PostgresStore) Tags(ctx context.Context, userID uuid.UUID) ([]models.Tag, error) {
	return queryAll(ctx, s.pool, "tags",
		`SELECT id, user_id, name, COALESCE(color, '') FROM tags WHERE user_id = $1 ORDER BY name`,
		userID, func(row pgx.Row) (models.Tag, error) {
			var t models.Tag
			err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Color)
			return t, err
		})
}

func (s *PostgresStore) Wallet(ctx context.Context, userID, id uuid.UUID) (models.Wallet, error) {
	return getWallet(ctx, s.pool, userID, id, "")
}

func (s *PostgresStore) Debt(ctx context.Context, userID, id uuid.UUID) (models.Debt, error) {
	return getDebt(ctx, s.pool, userID, id, "")
}

func (s *PostgresStore) Goal(ctx context.Context, userID, id uuid.UUID) (models.Goal, error) {
	return getGoal(ctx, s.pool, userID, id, "")
}

func (s *PostgresStore) Budget(ctx context.Context, userID, id uuid.UUID) (models.Budget, error) {
	return getBudget(ctx, s.pool, userID, id, "")
}

func (s *PostgresStore) Investment(ctx context.Context, userID, id uuid.UUID) (models.Investment, error) {
	return getInvestment(ctx, s.pool, userID, id, "")
}

func getWallet(ctx context.Context, q querier, userID, id uuid.UUID, lock string) (models.Wallet, error) {
	w, err := scanWallet(q.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1 AND user_id = $2 `+lock, id, userID))
	return w, notFound(err)
}

func getDebt(ctx context.Context, q querier, userID, id uuid.UUID, lock string) (models.Debt, error) {
	d, err := scanDebt(q.QueryRow(ctx,
		`SELECT `+debtColumns+` FROM debts WHERE id = $1 AND user_id = $2 `+lock, id, userID))
	return d, notFound(err)
}

func getGoal(ctx context.Context, q querier, userID, id uuid.UUID, lock string) (models.Goal, error) {
	g, err := scanGoal(q.QueryRow(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = $1 AND user_id = $2 `+lock, id, userID))
	return g, notFound(err)
}

func getBudget(ctx context.Context, q querier, userID, id uuid.UUID, lock string) (models.Budget, error) {
	b, err := scanBudget(q.QueryRow(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE id = $1 AND user_id = $2 `+lock, id, userID))
	return b, notFound(err)
}

func getInvestment(ctx context.Context, q querier, userID, id uuid.UUID, lock string) (models.Investment, error) {
	i, err := scanInvestment(q.QueryRow(ctx,
		`SELECT `+investmentColumns+` FROM investments WHERE id = $1 AND user_id = $2 `+lock, id, userID))
	return i, notFound(err)
}

const userColumns = `id, clerk_user_id, email, full_name, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.ClerkUserID, &u.Email, &u.FullName, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *PostgresStore) UserByClerkID(ctx context.Context, clerkUserID string) (models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE clerk_user_id = $1`, clerkUserID))
	return u, notFound(err)
}

func (s *PostgresStore) UpsertUser(ctx context.Context, clerkUserID, email string, fullName *string) (models.User, error) {
	now := time.Now()
	u, err := scanUser(s.pool.QueryRow(ctx, `
		INSERT INTO users (id, clerk_user_id, email, full_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (clerk_user_id) DO UPDATE
		SET email = EXCLUDED.email,
		    full_name = EXCLUDED.full_name,
		    updated_at = EXCLUDED.updated_at
		RETURNING `+userColumns,
		uuid.New(), clerkUserID, email, fullName, now))
	if err != nil {
		return models.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, clerkUserID, email string, fullName *string) (models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
		UPDATE users
		SET email = $1,
		    full_name = $2,
		    updated_at = $3
		WHERE clerk_user_id = $4
		RETURNING `+userColumns,
		email, fullName, time.Now(), clerkUserID))
	return u, notFound(err)
}

// pgTx implements Tx on an open serializable transaction
type pgTx struct {
	q pgx.Tx
}

const forUpdate = "FOR UPDATE"

func (t *pgTx) Wallet(ctx context.Context, userID, id uuid.UUID) (models.Wallet, error) {
	return getWallet(ctx, t.q, userID, id, forUpdate)
}

func (t *pgTx) Debt(ctx context.Context, userID, id uuid.UUID) (models.Debt, error) {
	return getDebt(ctx, t.q, userID, id, forUpdate)
}

func (t *pgTx) Goal(ctx context.Context, userID, id uuid.UUID) (models.Goal, error) {
	return getGoal(ctx, t.q, userID, id, forUpdate)
}

func (t *pgTx) Budget(ctx context.Context, userID, id uuid.UUID) (models.Budget, error) {
	return getBudget(ctx, t.q, userID, id, forUpdate)
}

func (t *pgTx) Investment(ctx context.Context, userID, id uuid.UUID) (models.Investment, error) {
	return getInvestment(ctx, t.q, userID, id, forUpdate)
}

func (t *pgTx) Transactions(ctx context.Context, userID uuid.UUID, r DateRange) ([]models.Transaction, error) {
	return queryTransactions(ctx, t.q, userID, r)
}

// casResult turns a RETURNING scan of a versioned update into the right error
func casResult[T any](v T, err error) (T, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return v, ErrVersionConflict
	}
	return v, err
}

func (t *pgTx) UpdateWallet(ctx context.Context, w models.Wallet) (models.Wallet, error) {
	return casResult(scanWallet(t.q.QueryRow(ctx, `
		UPDATE wallets
		SET name = $1, balance = $2, version = version + 1, updated_at = now()
		WHERE id = $3 AND user_id = $4 AND version = $5
		RETURNING `+walletColumns,
		w.Name, w.Balance, w.ID, w.UserID, w.Version)))
}

func (t *pgTx) UpdateDebt(ctx context.Context, d models.Debt) (models.Debt, error) {
	return casResult(scanDebt(t.q.QueryRow(ctx, `
		UPDATE debts
		SET settled = $1, due_date = $2, version = version + 1, updated_at = now()
		WHERE id = $3 AND user_id = $4 AND version = $5
		RETURNING `+debtColumns,
		d.Settled, d.DueDate, d.ID, d.UserID, d.Version)))
}

func (t *pgTx) UpdateGoal(ctx context.Context, g models.Goal) (models.Goal, error) {
	return casResult(scanGoal(t.q.QueryRow(ctx, `
		UPDATE goals
		SET current_amount = $1, status = $2, version = version + 1, updated_at = now()
		WHERE id = $3 AND user_id = $4 AND version = $5
		RETURNING `+goalColumns,
		g.CurrentAmount, g.Status, g.ID, g.UserID, g.Version)))
}

func (t *pgTx) UpdateInvestment(ctx context.Context, i models.Investment) (models.Investment, error) {
	return casResult(scanInvestment(t.q.QueryRow(ctx, `
		UPDATE investments
		SET quantity = $1, avg_buy_price = $2, current_price = $3, status = $4,
		    version = version + 1, updated_at = now()
		WHERE id = $5 AND user_id = $6 AND version = $7
		RETURNING `+investmentColumns,
		i.Quantity, i.AvgBuyPrice, i.CurrentPrice, i.Status, i.ID, i.UserID, i.Version)))
}

func (t *pgTx) InsertTransaction(ctx context.Context, txn models.Transaction) (models.Transaction, error) {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	var reference *uuid.UUID
	if txn.Reference != uuid.Nil {
		reference = &txn.Reference
	}

	err := t.q.QueryRow(ctx, `
		INSERT INTO transactions (id, user_id, wallet_id, category_id, amount, kind, date, description, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
		RETURNING created_at`,
		txn.ID, txn.UserID, txn.WalletID, txn.CategoryID, txn.Amount, txn.Kind, Day(txn.Date), txn.Description, reference,
	).Scan(&txn.CreatedAt)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	for _, tagID := range txn.TagIDs {
		if _, err := t.q.Exec(ctx,
			`INSERT INTO transaction_tags (transaction_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			txn.ID, tagID); err != nil {
			return models.Transaction{}, fmt.Errorf("tag transaction: %w", err)
		}
	}
	return txn, nil
}

func (t *pgTx) InsertInvestmentTransaction(ctx context.Context, it models.InvestmentTransaction) (models.InvestmentTransaction, error) {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	err := t.q.QueryRow(ctx, `
		INSERT INTO investment_transactions
		    (id, user_id, investment_id, kind, quantity, price, amount, ratio, wallet_id, date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		it.ID, it.UserID, it.InvestmentID, it.Kind, it.Quantity, it.Price, it.Amount, it.Ratio, it.WalletID, Day(it.Date),
	).Scan(&it.CreatedAt)
	if err != nil {
		return models.InvestmentTransaction{}, fmt.Errorf("insert investment transaction: %w", err)
	}
	return it, nil
}
