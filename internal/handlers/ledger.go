package handlers

import (
	"context"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/ashmitsharp/finlens-api/internal/services"
	"github.com/ashmitsharp/finlens-api/internal/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger is the write side the mutation routes drive
type Ledger interface {
	TransferBetweenWallets(ctx context.Context, userID, fromID, toID uuid.UUID, amount decimal.Decimal) (services.TransferResult, error)
	SettleDebt(ctx context.Context, userID, debtID, walletID uuid.UUID, amount decimal.Decimal) (services.SettlementResult, error)
	MarkDebtPaid(ctx context.Context, userID, debtID, walletID uuid.UUID) (services.SettlementResult, error)
	ContributeToGoal(ctx context.Context, userID, goalID uuid.UUID, amount decimal.Decimal) (services.GoalResult, error)
	WithdrawFromGoal(ctx context.Context, userID, goalID uuid.UUID, amount decimal.Decimal) (services.GoalResult, error)
	ReallocateBudgetToGoal(ctx context.Context, userID, budgetID, goalID, walletID uuid.UUID, amount decimal.Decimal) (services.ReallocationResult, error)
	RecordInvestmentTransaction(ctx context.Context, userID, investmentID uuid.UUID, in services.InvestmentTxInput) (services.InvestmentResult, error)
}

// LedgerHandler serves the balance-changing operations. Failures are
// returned to the app error handler, which renders the domain code.
type LedgerHandler struct {
	users  UserLookup
	ledger Ledger
}

func NewLedgerHandler(users UserLookup, ledger Ledger) *LedgerHandler {
	return &LedgerHandler{users: users, ledger: ledger}
}

type TransferRequest struct {
	FromWalletID uuid.UUID       `json:"from_wallet_id"`
	ToWalletID   uuid.UUID       `json:"to_wallet_id"`
	Amount       decimal.Decimal `json:"amount"`
}

type SettleDebtRequest struct {
	WalletID uuid.UUID       `json:"wallet_id"`
	Amount   decimal.Decimal `json:"amount"`
}

type MarkPaidRequest struct {
	WalletID uuid.UUID `json:"wallet_id"`
}

type GoalAmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type ReallocateRequest struct {
	GoalID   uuid.UUID       `json:"goal_id"`
	WalletID uuid.UUID       `json:"wallet_id"`
	Amount   decimal.Decimal `json:"amount"`
}

type InvestmentTxRequest struct {
	Kind     models.InvestmentTxKind `json:"kind"`
	Quantity decimal.Decimal         `json:"quantity"`
	Price    decimal.Decimal         `json:"price"`
	Amount   decimal.Decimal         `json:"amount"`
	Ratio    decimal.Decimal         `json:"ratio"`
	WalletID *uuid.UUID              `json:"wallet_id"`
	Date     string                  `json:"date"`
}

// bindMutation resolves the user and decodes the body into req
func bindMutation(c fiber.Ctx, users UserLookup, req any) (uuid.UUID, error) {
	userID, err := currentUserID(c, users)
	if err != nil {
		return uuid.Nil, err
	}
	if err := c.Bind().JSON(req); err != nil {
		return uuid.Nil, badBody()
	}
	return userID, nil
}

func respond[T any](c fiber.Ctx, data T, err error) error {
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, data)
}

// Transfer handles POST /v1/wallets/transfer
func (h *LedgerHandler) Transfer(c fiber.Ctx) error {
	var req TransferRequest
	userID, err := bindMutation(c, h.users, &req)
	if err != nil {
		return err
	}
	res, err := h.ledger.TransferBetweenWallets(c.Context(), userID, req.FromWalletID, req.ToWalletID, req.Amount)
	return respond(c, res, err)
}

// SettleDebt handles POST /v1/debts/:id/settle
func (h *LedgerHandler) SettleDebt(c fiber.Ctx) error {
	debtID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req SettleDebtRequest
	userID, err := bindMutation(c, h.users, &req)
	if err != nil {
		return err
	}
	res, err := h.ledger.SettleDebt(c.Context(), userID, debtID, req.WalletID, req.Amount)
	return respond(c, res, err)
}

// MarkDebtPaid handles POST /v1/debts/:id/mark-paid
func (h *LedgerHandler) MarkDebtPaid(c fiber.Ctx) error {
	debtID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req MarkPaidRequest
	userID, err := bindMutation(c, h.users, &req)
	if err != nil {
		return err
	}
	res, err := h.ledger.MarkDebtPaid(c.Context(), userID, debtID, req.WalletID)
	return respond(c, res, err)
}

// Contribute handles POST /v1/goals/:id/contribute
func (h *LedgerHandler) Contribute(c fiber.Ctx) error {
	goalID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req GoalAmountRequest
	userID, err := bindMutation(c, h.users, &req)
	if err != nil {
		return err
	}
	res, err := h.ledger.ContributeToGoal(c.Context(), userID, goalID, req.Amount)
	return respond(c, res, err)
}

// Withdraw handles POST /v1/goals/:id/withdraw
func (h *LedgerHandler) Withdraw(c fiber.Ctx) error {
	goalID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req GoalAmountRequest
	userID, err := bindMutation(c, h.users, &req)
	if err != nil {
		return err
	}
	res, err := h.ledger.WithdrawFromGoal(c.Context(), userID, goalID, req.Amount)
	return respond(c, res, err)
}

// Reallocate handles POST /v1/budgets/:id/reallocate
func (h *LedgerHandler) Reallocate(c fiber.Ctx) error {
	budgetID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req ReallocateRequest
	userID, err := bindMutation(c, h.users, &req)
	if err != nil {
		return err
	}
	res, err := h.ledger.ReallocateBudgetToGoal(c.Context(), userID, budgetID, req.GoalID, req.WalletID, req.Amount)
	return respond(c, res, err)
}

// RecordInvestmentTransaction handles POST /v1/investments/:id/transactions
func (h *LedgerHandler) RecordInvestmentTransaction(c fiber.Ctx) error {
	investmentID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req InvestmentTxRequest
	userID, err := bindMutation(c, h.users, &req)
	if err != nil {
		return err
	}

	in := services.InvestmentTxInput{
		Kind:     req.Kind,
		Quantity: req.Quantity,
		Price:    req.Price,
		Amount:   req.Amount,
		Ratio:    req.Ratio,
		WalletID: req.WalletID,
	}
	if req.Date != "" {
		d, err := time.Parse(time.DateOnly, req.Date)
		if err != nil {
			return utils.NewBadRequestError("Invalid date format, expected YYYY-MM-DD", req.Date)
		}
		in.Date = d
	}

	res, err := h.ledger.RecordInvestmentTransaction(c.Context(), userID, investmentID, in)
	return respond(c, res, err)
}
