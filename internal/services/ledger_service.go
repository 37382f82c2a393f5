package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/events"
	"github.com/ashmitsharp/finlens-api/internal/ledger"
	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventPublisher receives an event for every committed mutation
type EventPublisher interface {
	Publish(ctx context.Context, e events.LedgerEvent) error
}

// DefaultMaxRetries bounds how often a mutation is replayed after a version conflict
const DefaultMaxRetries = 3

// LedgerService runs the mutations that move money between wallets, debts,
// goals and budgets. Every operation re-reads its rows inside one store
// transaction, so balances are checked against committed state.
type LedgerService struct {
	store      ledger.Store
	publisher  EventPublisher
	logger     *slog.Logger
	maxRetries int
	now        func() time.Time
	loc        *time.Location
}

// LedgerOption configures a LedgerService
type LedgerOption func(*LedgerService)

// WithPublisher sends events after each commit. Without one events are skipped.
func WithPublisher(p EventPublisher) LedgerOption {
	return func(s *LedgerService) { s.publisher = p }
}

func WithMaxRetries(n int) LedgerOption {
	return func(s *LedgerService) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithClock overrides the time source used to date ledger rows
func WithClock(now func() time.Time) LedgerOption {
	return func(s *LedgerService) { s.now = now }
}

// WithLedgerLocation sets the time zone that decides the date of new rows
func WithLedgerLocation(loc *time.Location) LedgerOption {
	return func(s *LedgerService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(l *slog.Logger) LedgerOption {
	return func(s *LedgerService) { s.logger = l }
}

func NewLedgerService(store ledger.Store, opts ...LedgerOption) *LedgerService {
	s := &LedgerService{
		store:      store,
		logger:     slog.Default(),
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
		loc:        time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// today is the civil date in the configured zone, matching ReportService
func (s *LedgerService) today() time.Time {
	return ledger.Day(s.now().In(s.loc))
}

// mutate runs fn in a store transaction and replays it when a concurrent
// writer won the race. fn must not keep state between attempts.
func (s *LedgerService) mutate(ctx context.Context, op string, userID uuid.UUID, fn func(tx ledger.Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := s.store.WithinTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ledger.ErrVersionConflict) {
			if Classify(err) == KindInfrastructure {
				s.logger.ErrorContext(ctx, "Ledger mutation failed",
					"operation", op,
					"user_id", userID,
					"error", err)
				return fmt.Errorf("%s: %w", op, err)
			}
			return err
		}
		if attempt >= s.maxRetries {
			s.logger.WarnContext(ctx, "Ledger mutation gave up after version conflicts",
				"operation", op,
				"user_id", userID,
				"attempts", attempt)
			return fmt.Errorf("%s: %w", op, ErrConcurrentUpdate)
		}
		s.logger.InfoContext(ctx, "Retrying ledger mutation after version conflict",
			"operation", op,
			"user_id", userID,
			"attempt", attempt)
	}
}

// publish never fails the caller, the mutation is already committed
func (s *LedgerService) publish(ctx context.Context, e events.LedgerEvent) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "Event publisher not configured, skipping ledger event", "type", e.Type)
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish ledger event",
			"type", e.Type,
			"user_id", e.UserID,
			"reference", e.Reference,
			"error", err)
	}
}

// mapNotFound replaces ledger.ErrNotFound with the entity specific error
func mapNotFound(err error, notFound *Error) error {
	if errors.Is(err, ledger.ErrNotFound) {
		return notFound
	}
	return err
}

// TransferResult holds the rows a transfer wrote
type TransferResult struct {
	Reference uuid.UUID          `json:"reference"`
	From      models.Wallet      `json:"from_wallet"`
	To        models.Wallet      `json:"to_wallet"`
	Debit     models.Transaction `json:"debit"`
	Credit    models.Transaction `json:"credit"`
}

// TransferBetweenWallets moves amount from one wallet to another and records
// an expense on the source and an income on the destination
func (s *LedgerService) TransferBetweenWallets(ctx context.Context, userID, fromID, toID uuid.UUID, amount decimal.Decimal) (TransferResult, error) {
	if fromID == toID {
		return TransferResult{}, ErrSameWallet
	}
	if !amount.IsPositive() {
		return TransferResult{}, ErrNonPositiveAmount
	}

	var res TransferResult
	err := s.mutate(ctx, "transfer", userID, func(tx ledger.Tx) error {
		from, err := tx.Wallet(ctx, userID, fromID)
		if err != nil {
			return mapNotFound(err, ErrWalletNotFound)
		}
		to, err := tx.Wallet(ctx, userID, toID)
		if err != nil {
			return mapNotFound(err, ErrWalletNotFound)
		}
		if from.Currency != to.Currency {
			return ErrCurrencyMismatch
		}
		if from.Balance.LessThan(amount) {
			return ErrInsufficientBalance
		}

		ref := uuid.New()
		date := s.today()

		from.Balance = from.Balance.Sub(amount)
		if from, err = tx.UpdateWallet(ctx, from); err != nil {
			return err
		}
		to.Balance = to.Balance.Add(amount)
		if to, err = tx.UpdateWallet(ctx, to); err != nil {
			return err
		}

		debit, err := tx.InsertTransaction(ctx, models.Transaction{
			UserID:      userID,
			WalletID:    from.ID,
			Amount:      amount,
			Kind:        models.Expense,
			Date:        date,
			Description: fmt.Sprintf("Transfer to %s", to.Name),
			Reference:   ref,
		})
		if err != nil {
			return err
		}
		credit, err := tx.InsertTransaction(ctx, models.Transaction{
			UserID:      userID,
			WalletID:    to.ID,
			Amount:      amount,
			Kind:        models.Income,
			Date:        date,
			Description: fmt.Sprintf("Transfer from %s", from.Name),
			Reference:   ref,
		})
		if err != nil {
			return err
		}

		res = TransferResult{Reference: ref, From: from, To: to, Debit: debit, Credit: credit}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}

	s.logger.InfoContext(ctx, "Wallet transfer committed",
		"user_id", userID,
		"from_wallet", fromID,
		"to_wallet", toID,
		"amount", amount.String(),
		"reference", res.Reference)
	s.publish(ctx, events.NewLedgerEvent(events.WalletTransferred, userID, res.Reference, amount,
		map[string]uuid.UUID{"from_wallet": fromID, "to_wallet": toID}))
	return res, nil
}

// SettlementResult holds the rows a debt settlement wrote
type SettlementResult struct {
	Reference   uuid.UUID          `json:"reference"`
	Debt        models.Debt        `json:"debt"`
	Status      models.DebtStatus  `json:"status"`
	Outstanding decimal.Decimal    `json:"outstanding"`
	Wallet      models.Wallet      `json:"wallet"`
	Transaction models.Transaction `json:"transaction"`
}

// SettleDebt applies an installment to a debt through a wallet. Paying a
// payable takes money out of the wallet, collecting a receivable puts it in.
func (s *LedgerService) SettleDebt(ctx context.Context, userID, debtID, walletID uuid.UUID, amount decimal.Decimal) (SettlementResult, error) {
	if walletID == uuid.Nil {
		return SettlementResult{}, ErrWalletRequired
	}
	if !amount.IsPositive() {
		return SettlementResult{}, ErrNonPositiveAmount
	}
	return s.settle(ctx, userID, debtID, walletID, func(models.Debt) decimal.Decimal { return amount })
}

// MarkDebtPaid settles whatever is still outstanding on the debt
func (s *LedgerService) MarkDebtPaid(ctx context.Context, userID, debtID, walletID uuid.UUID) (SettlementResult, error) {
	if walletID == uuid.Nil {
		return SettlementResult{}, ErrWalletRequired
	}
	return s.settle(ctx, userID, debtID, walletID, models.Debt.Outstanding)
}

func (s *LedgerService) settle(ctx context.Context, userID, debtID, walletID uuid.UUID, amountFor func(models.Debt) decimal.Decimal) (SettlementResult, error) {
	var res SettlementResult
	var amount decimal.Decimal

	err := s.mutate(ctx, "settle_debt", userID, func(tx ledger.Tx) error {
		debt, err := tx.Debt(ctx, userID, debtID)
		if err != nil {
			return mapNotFound(err, ErrDebtNotFound)
		}
		wallet, err := tx.Wallet(ctx, userID, walletID)
		if err != nil {
			return mapNotFound(err, ErrWalletNotFound)
		}
		if !debt.Open() {
			return ErrDebtAlreadySettled
		}

		amount = amountFor(debt)
		if !amount.IsPositive() {
			return ErrNonPositiveAmount
		}
		if amount.GreaterThan(debt.Outstanding()) {
			return ErrSettlementExceedsOutstanding
		}

		txn := models.Transaction{
			UserID:    userID,
			WalletID:  wallet.ID,
			Amount:    amount,
			Date:      s.today(),
			Reference: uuid.New(),
		}
		switch debt.Direction {
		case models.Payable:
			if wallet.Balance.LessThan(amount) {
				return ErrInsufficientBalance
			}
			wallet.Balance = wallet.Balance.Sub(amount)
			txn.Kind = models.Expense
			txn.Description = fmt.Sprintf("Debt payment to %s", debt.Counterparty)
		default:
			wallet.Balance = wallet.Balance.Add(amount)
			txn.Kind = models.Income
			txn.Description = fmt.Sprintf("Debt collected from %s", debt.Counterparty)
		}

		debt.Settled = debt.Settled.Add(amount)
		if debt, err = tx.UpdateDebt(ctx, debt); err != nil {
			return err
		}
		if wallet, err = tx.UpdateWallet(ctx, wallet); err != nil {
			return err
		}
		if txn, err = tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}

		res = SettlementResult{
			Reference:   txn.Reference,
			Debt:        debt,
			Status:      debt.Status(),
			Outstanding: debt.Outstanding(),
			Wallet:      wallet,
			Transaction: txn,
		}
		return nil
	})
	if err != nil {
		return SettlementResult{}, err
	}

	s.logger.InfoContext(ctx, "Debt settlement committed",
		"user_id", userID,
		"debt_id", debtID,
		"wallet_id", walletID,
		"amount", amount.String(),
		"status", res.Status)
	s.publish(ctx, events.NewLedgerEvent(events.DebtSettled, userID, res.Reference, amount,
		map[string]uuid.UUID{"debt": debtID, "wallet": walletID}))
	return res, nil
}

// GoalResult is a goal after a contribution or withdrawal
type GoalResult struct {
	Goal       models.Goal `json:"goal"`
	Percentage float64     `json:"percentage"`
}

func goalResult(g models.Goal) GoalResult {
	r := GoalResult{Goal: g}
	if g.TargetAmount.IsPositive() {
		r.Percentage = min(percentOf(g.CurrentAmount, g.TargetAmount), 100)
	}
	return r
}

// applyContribution adds amount to an active goal and completes it once the
// target is reached
func applyContribution(g models.Goal, amount decimal.Decimal) (models.Goal, error) {
	if g.Status != models.GoalActive {
		return g, ErrGoalNotActive
	}
	g.CurrentAmount = g.CurrentAmount.Add(amount)
	if g.Reached() {
		g.Status = models.GoalCompleted
	}
	return g, nil
}

// ContributeToGoal adds amount to the goal's running total
func (s *LedgerService) ContributeToGoal(ctx context.Context, userID, goalID uuid.UUID, amount decimal.Decimal) (GoalResult, error) {
	if !amount.IsPositive() {
		return GoalResult{}, ErrNonPositiveAmount
	}

	var goal models.Goal
	err := s.mutate(ctx, "contribute_goal", userID, func(tx ledger.Tx) error {
		g, err := tx.Goal(ctx, userID, goalID)
		if err != nil {
			return mapNotFound(err, ErrGoalNotFound)
		}
		if g, err = applyContribution(g, amount); err != nil {
			return err
		}
		goal, err = tx.UpdateGoal(ctx, g)
		return err
	})
	if err != nil {
		return GoalResult{}, err
	}

	s.logger.InfoContext(ctx, "Goal contribution committed",
		"user_id", userID,
		"goal_id", goalID,
		"amount", amount.String(),
		"status", goal.Status)
	s.publish(ctx, events.NewLedgerEvent(events.GoalContributed, userID, uuid.New(), amount,
		map[string]uuid.UUID{"goal": goalID}))
	return goalResult(goal), nil
}

// WithdrawFromGoal takes amount back out of a goal. A completed goal that
// drops below its target becomes active again.
func (s *LedgerService) WithdrawFromGoal(ctx context.Context, userID, goalID uuid.UUID, amount decimal.Decimal) (GoalResult, error) {
	if !amount.IsPositive() {
		return GoalResult{}, ErrNonPositiveAmount
	}

	var goal models.Goal
	err := s.mutate(ctx, "withdraw_goal", userID, func(tx ledger.Tx) error {
		g, err := tx.Goal(ctx, userID, goalID)
		if err != nil {
			return mapNotFound(err, ErrGoalNotFound)
		}
		if g.Status == models.GoalCancelled {
			return ErrGoalNotActive
		}
		if amount.GreaterThan(g.CurrentAmount) {
			return ErrInsufficientGoalFunds
		}

		g.CurrentAmount = g.CurrentAmount.Sub(amount)
		if g.Status == models.GoalCompleted && !g.Reached() {
			g.Status = models.GoalActive
		}
		goal, err = tx.UpdateGoal(ctx, g)
		return err
	})
	if err != nil {
		return GoalResult{}, err
	}

	s.logger.InfoContext(ctx, "Goal withdrawal committed",
		"user_id", userID,
		"goal_id", goalID,
		"amount", amount.String(),
		"status", goal.Status)
	s.publish(ctx, events.NewLedgerEvent(events.GoalWithdrawn, userID, uuid.New(), amount,
		map[string]uuid.UUID{"goal": goalID}))
	return goalResult(goal), nil
}

// ReallocationResult holds the rows a budget to goal reallocation wrote
type ReallocationResult struct {
	Reference   uuid.UUID          `json:"reference"`
	Goal        GoalResult         `json:"goal"`
	Wallet      models.Wallet      `json:"wallet"`
	Transaction models.Transaction `json:"transaction"`
	Budget      BudgetStatus       `json:"budget"`
}

// ReallocateBudgetToGoal moves unspent budget into a goal. The money leaves
// the wallet as an expense in the budget's category, so the budget and the
// period totals both see it.
func (s *LedgerService) ReallocateBudgetToGoal(ctx context.Context, userID, budgetID, goalID, walletID uuid.UUID, amount decimal.Decimal) (ReallocationResult, error) {
	if walletID == uuid.Nil {
		return ReallocationResult{}, ErrWalletRequired
	}
	if !amount.IsPositive() {
		return ReallocationResult{}, ErrNonPositiveAmount
	}

	var res ReallocationResult
	err := s.mutate(ctx, "reallocate_budget", userID, func(tx ledger.Tx) error {
		budget, err := tx.Budget(ctx, userID, budgetID)
		if err != nil {
			return mapNotFound(err, ErrBudgetNotFound)
		}
		goal, err := tx.Goal(ctx, userID, goalID)
		if err != nil {
			return mapNotFound(err, ErrGoalNotFound)
		}
		wallet, err := tx.Wallet(ctx, userID, walletID)
		if err != nil {
			return mapNotFound(err, ErrWalletNotFound)
		}

		today := s.today()
		window := ledger.DateRange{From: PeriodStart(budget.Period, today), To: today}
		txns, err := tx.Transactions(ctx, userID, window)
		if err != nil {
			return err
		}
		if amount.GreaterThan(BudgetUtilization(budget, txns, today).Remaining) {
			return ErrExceedsBudgetLeftover
		}
		if wallet.Balance.LessThan(amount) {
			return ErrInsufficientBalance
		}
		if goal, err = applyContribution(goal, amount); err != nil {
			return err
		}

		ref := uuid.New()
		categoryID := budget.CategoryID
		txn, err := tx.InsertTransaction(ctx, models.Transaction{
			UserID:      userID,
			WalletID:    wallet.ID,
			CategoryID:  &categoryID,
			Amount:      amount,
			Kind:        models.Expense,
			Date:        today,
			Description: fmt.Sprintf("Budget leftover moved to %s", goal.Name),
			Reference:   ref,
		})
		if err != nil {
			return err
		}
		wallet.Balance = wallet.Balance.Sub(amount)
		if wallet, err = tx.UpdateWallet(ctx, wallet); err != nil {
			return err
		}
		if goal, err = tx.UpdateGoal(ctx, goal); err != nil {
			return err
		}

		res = ReallocationResult{
			Reference:   ref,
			Goal:        goalResult(goal),
			Wallet:      wallet,
			Transaction: txn,
			Budget:      BudgetUtilization(budget, append(txns, txn), today),
		}
		return nil
	})
	if err != nil {
		return ReallocationResult{}, err
	}

	s.logger.InfoContext(ctx, "Budget reallocation committed",
		"user_id", userID,
		"budget_id", budgetID,
		"goal_id", goalID,
		"wallet_id", walletID,
		"amount", amount.String())
	s.publish(ctx, events.NewLedgerEvent(events.BudgetReallocated, userID, res.Reference, amount,
		map[string]uuid.UUID{"budget": budgetID, "goal": goalID, "wallet": walletID}))
	return res, nil
}
