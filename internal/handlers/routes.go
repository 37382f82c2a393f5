package handlers

import (
	"github.com/gofiber/fiber/v3"
)

// Handlers groups everything RegisterRoutes mounts
type Handlers struct {
	Users        *UsersHandler
	Reports      *ReportsHandler
	Transactions *TransactionHandler
	Ledger       *LedgerHandler
}

// RegisterRoutes mounts the public health check and the /v1 API. Every /v1
// route except the internal webhooks runs behind auth.
func RegisterRoutes(app *fiber.App, h Handlers, auth fiber.Handler) {
	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "finlens-api",
		})
	})

	v1 := app.Group("/v1")

	v1.Get("/ping", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "pong"})
	})

	// Clerk webhooks
	internal := v1.Group("/internal")
	internal.Post("/users", h.Users.CreateUser)
	internal.Put("/users/:id", h.Users.UpdateUser)

	protected := v1.Group("", auth)
	protected.Get("/user", h.Users.GetUser)

	protected.Get("/dashboard", h.Reports.GetDashboard)
	protected.Get("/reports/monthly", h.Reports.GetMonthlyReport)
	protected.Get("/reports/yearly", h.Reports.GetYearlyReport)
	protected.Get("/reports/comparison", h.Reports.GetComparison)
	protected.Get("/net-worth", h.Reports.GetNetWorth)
	protected.Get("/budgets", h.Reports.GetBudgets)
	protected.Get("/budgets/alerts", h.Reports.GetBudgetAlerts)
	protected.Get("/health-score", h.Reports.GetHealthScore)
	protected.Get("/debts/overdue", h.Reports.GetOverdueDebts)
	protected.Get("/goals", h.Reports.GetGoals)
	protected.Get("/investments/summary", h.Reports.GetInvestmentSummary)
	protected.Get("/transactions", h.Transactions.GetTransactions)

	protected.Post("/wallets/transfer", h.Ledger.Transfer)
	protected.Post("/debts/:id/settle", h.Ledger.SettleDebt)
	protected.Post("/debts/:id/mark-paid", h.Ledger.MarkDebtPaid)
	protected.Post("/goals/:id/contribute", h.Ledger.Contribute)
	protected.Post("/goals/:id/withdraw", h.Ledger.Withdraw)
	protected.Post("/budgets/:id/reallocate", h.Ledger.Reallocate)
	protected.Post("/investments/:id/transactions", h.Ledger.RecordInvestmentTransaction)
}
