package handlers

import (
	"context"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/ledger"
	"github.com/ashmitsharp/finlens-api/internal/services"
	"github.com/ashmitsharp/finlens-api/internal/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

// Reports is the read side the report routes serve
type Reports interface {
	GetDashboardSummary(ctx context.Context, userID uuid.UUID) (services.DashboardSummary, error)
	GetMonthlyReport(ctx context.Context, userID uuid.UUID, year, month int) (services.MonthlyReport, error)
	GetYearlyReport(ctx context.Context, userID uuid.UUID, year int) (services.YearlyReport, error)
	CompareMonths(ctx context.Context, userID uuid.UUID, offset int) (services.MonthComparison, error)
	GetNetWorth(ctx context.Context, userID uuid.UUID) (services.NetWorthSummary, error)
	GetBudgetsWithSpending(ctx context.Context, userID uuid.UUID) ([]services.BudgetStatus, error)
	GetBudgetAlerts(ctx context.Context, userID uuid.UUID) ([]services.BudgetAlert, error)
	GetFinancialHealth(ctx context.Context, userID uuid.UUID) (services.FinancialHealth, error)
	GetOverdueDebts(ctx context.Context, userID uuid.UUID) ([]services.OverdueDebt, error)
	GetGoalsProgress(ctx context.Context, userID uuid.UUID) ([]services.GoalProgress, error)
	GetInvestmentSummary(ctx context.Context, userID uuid.UUID) (services.InvestmentSummary, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, r ledger.DateRange, limit, offset int) (services.TransactionPage, error)
}

// ReportsHandler serves dashboards and reports
type ReportsHandler struct {
	users   UserLookup
	reports Reports
	now     func() time.Time
}

func NewReportsHandler(users UserLookup, reports Reports) *ReportsHandler {
	return &ReportsHandler{users: users, reports: reports, now: time.Now}
}

// serve resolves the user and answers with whatever fn returns
func serve[T any](c fiber.Ctx, users UserLookup, fn func(ctx context.Context, userID uuid.UUID) (T, error)) error {
	userID, err := currentUserID(c, users)
	if err != nil {
		return err
	}
	data, err := fn(c.Context(), userID)
	if err != nil {
		return err
	}
	return utils.SuccessResponse(c, data)
}

// GetDashboard handles GET /v1/dashboard
func (h *ReportsHandler) GetDashboard(c fiber.Ctx) error {
	return serve(c, h.users, h.reports.GetDashboardSummary)
}

// GetMonthlyReport handles GET /v1/reports/monthly?year=2024&month=3
// Both parameters default to the current month.
func (h *ReportsHandler) GetMonthlyReport(c fiber.Ctx) error {
	now := h.now()
	year, err := queryInt(c, "year", now.Year())
	if err != nil {
		return err
	}
	month, err := queryInt(c, "month", int(now.Month()))
	if err != nil {
		return err
	}
	return serve(c, h.users, func(ctx context.Context, userID uuid.UUID) (services.MonthlyReport, error) {
		return h.reports.GetMonthlyReport(ctx, userID, year, month)
	})
}

// GetYearlyReport handles GET /v1/reports/yearly?year=2024
func (h *ReportsHandler) GetYearlyReport(c fiber.Ctx) error {
	year, err := queryInt(c, "year", h.now().Year())
	if err != nil {
		return err
	}
	return serve(c, h.users, func(ctx context.Context, userID uuid.UUID) (services.YearlyReport, error) {
		return h.reports.GetYearlyReport(ctx, userID, year)
	})
}

// GetComparison handles GET /v1/reports/comparison?offset=1
func (h *ReportsHandler) GetComparison(c fiber.Ctx) error {
	offset, err := queryInt(c, "offset", 1)
	if err != nil {
		return err
	}
	return serve(c, h.users, func(ctx context.Context, userID uuid.UUID) (services.MonthComparison, error) {
		return h.reports.CompareMonths(ctx, userID, offset)
	})
}

func (h *ReportsHandler) GetNetWorth(c fiber.Ctx) error {
	return serve(c, h.users, h.reports.GetNetWorth)
}

func (h *ReportsHandler) GetBudgets(c fiber.Ctx) error {
	return serve(c, h.users, h.reports.GetBudgetsWithSpending)
}

func (h *ReportsHandler) GetBudgetAlerts(c fiber.Ctx) error {
	return serve(c, h.users, h.reports.GetBudgetAlerts)
}

func (h *ReportsHandler) GetHealthScore(c fiber.Ctx) error {
	return serve(c, h.users, h.reports.GetFinancialHealth)
}

func (h *ReportsHandler) GetOverdueDebts(c fiber.Ctx) error {
	return serve(c, h.users, h.reports.GetOverdueDebts)
}

func (h *ReportsHandler) GetGoals(c fiber.Ctx) error {
	return serve(c, h.users, h.reports.GetGoalsProgress)
}

func (h *ReportsHandler) GetInvestmentSummary(c fiber.Ctx) error {
	return serve(c, h.users, h.reports.GetInvestmentSummary)
}
