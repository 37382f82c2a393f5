package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/ledger"
	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// reportFixture is a user in late March 2024 with a few months of history
type reportFixture struct {
	fixture
	food   models.Category
	salary models.Category
	budget models.Budget
	svc    *ReportService
}

func newReportFixture(t *testing.T) reportFixture {
	t.Helper()
	rf := reportFixture{
		food:   models.Category{ID: uuid.New(), Name: "Food", Kind: models.Expense},
		salary: models.Category{ID: uuid.New(), Name: "Salary", Kind: models.Income},
	}
	due := day(2024, 3, 1)
	target := day(2024, 6, 18)

	rf.fixture = newFixture(t, func(s *ledger.Snapshot) {
		userID := s.Wallets[0].UserID
		main := s.Wallets[0].ID
		rf.food.UserID, rf.salary.UserID = userID, userID
		rf.budget = models.Budget{ID: uuid.New(), UserID: userID, CategoryID: rf.food.ID, Amount: dec("400"), Period: models.PeriodMonthly}

		s.Categories = []models.Category{rf.food, rf.salary}
		s.Budgets = []models.Budget{rf.budget}
		s.Goals = []models.Goal{
			{ID: uuid.New(), UserID: userID, Name: "Car", TargetAmount: dec("4000"), CurrentAmount: dec("1000"), TargetDate: &target, Status: models.GoalActive},
			{ID: uuid.New(), UserID: userID, Name: "Old", TargetAmount: dec("10"), CurrentAmount: dec("10"), Status: models.GoalCompleted},
		}
		s.Debts = []models.Debt{
			{ID: uuid.New(), UserID: userID, Direction: models.Receivable, Counterparty: "Andi", Principal: dec("300"), Settled: dec("0"), DueDate: &due},
			{ID: uuid.New(), UserID: userID, Direction: models.Payable, Counterparty: "Bank", Principal: dec("200"), Settled: dec("50")},
		}
		s.Investments = []models.Investment{
			{ID: uuid.New(), UserID: userID, Name: "Fund", Quantity: dec("2"), AvgBuyPrice: dec("100"), CurrentPrice: dec("150"), Status: models.InvestmentActive},
		}
		s.Transactions = owned(userID,
			models.Transaction{ID: uuid.New(), WalletID: main, CategoryID: &rf.salary.ID, Amount: dec("3000"), Kind: models.Income, Date: day(2024, 3, 1)},
			expense(main, &rf.food.ID, "350", day(2024, 3, 10)),
			expense(main, nil, "150", day(2024, 3, 12)),
			expense(main, &rf.food.ID, "600", day(2024, 2, 10)),
			expense(main, &rf.food.ID, "900", day(2024, 1, 10)),
			expense(main, nil, "1500", day(2023, 12, 10)),
			income(main, "2000", day(2023, 7, 1)),
		)
	})
	rf.svc = NewReportService(rf.store, WithReportClock(fixedClock(testNow)), WithReportLogger(quietLogger))
	return rf
}

func TestReportService_DashboardSummary(t *testing.T) {
	rf := newReportFixture(t)

	got, err := rf.svc.GetDashboardSummary(context.Background(), rf.userID)
	require.NoError(t, err)

	assert.True(t, dec("1000").Equal(got.TotalBalance))
	assert.True(t, dec("3000").Equal(got.Income))
	assert.True(t, dec("500").Equal(got.Expense))
	assert.True(t, dec("2500").Equal(got.Net))

	require.Len(t, got.RecentTransactions, 5)
	assert.True(t, dec("150").Equal(got.RecentTransactions[0].Amount))

	require.Len(t, got.GoalsProgress, 1)
	assert.Equal(t, "Car", got.GoalsProgress[0].Name)
	assert.True(t, dec("1000").Equal(got.GoalsProgress[0].MonthlyNeeded))

	require.Len(t, got.BudgetStatus, 1)
	assert.Equal(t, "Food", got.BudgetStatus[0].CategoryName)
	assert.True(t, dec("350").Equal(got.BudgetStatus[0].Spent))

	assert.Equal(t, 1, got.DebtSummary.OverdueReceivables)
	assert.True(t, dec("150").Equal(got.DebtSummary.TotalPayable))

	require.Len(t, got.TopCategories, 2)
	assert.Equal(t, "Food", got.TopCategories[0].Name)
	assert.Equal(t, 70, got.TopCategories[0].Percentage)
}

func TestReportService_MonthlyAndYearly(t *testing.T) {
	rf := newReportFixture(t)
	ctx := context.Background()

	monthly, err := rf.svc.GetMonthlyReport(ctx, rf.userID, 2024, 2)
	require.NoError(t, err)
	assert.True(t, dec("600").Equal(monthly.TotalExpense))
	assert.True(t, monthly.TotalIncome.IsZero())
	assert.Len(t, monthly.DailyData, 29)
	require.Len(t, monthly.CategoryBreakdown, 1)
	assert.Equal(t, 100, monthly.CategoryBreakdown[0].Percentage)

	_, err = rf.svc.GetMonthlyReport(ctx, rf.userID, 2024, 13)
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	yearly, err := rf.svc.GetYearlyReport(ctx, rf.userID, 2023)
	require.NoError(t, err)
	assert.True(t, dec("2000").Equal(yearly.TotalIncome))
	assert.True(t, dec("1500").Equal(yearly.TotalExpense))
	assert.True(t, dec("500").Equal(yearly.NetAmount))
	assert.True(t, dec("1500").Equal(yearly.MonthlyData[11].Expense))
}

func TestReportService_YearlyIncomePerMonth(t *testing.T) {
	f := newFixture(t, func(s *ledger.Snapshot) {
		userID := s.Wallets[0].UserID
		for m := time.January; m <= time.December; m++ {
			s.Transactions = append(s.Transactions, owned(userID, income(s.Wallets[0].ID, "100", day(2023, m, 10)))...)
		}
	})
	svc := NewReportService(f.store, WithReportClock(fixedClock(testNow)), WithReportLogger(quietLogger))

	got, err := svc.GetYearlyReport(context.Background(), f.userID, 2023)
	require.NoError(t, err)

	for i, b := range got.MonthlyData {
		assert.True(t, dec("100").Equal(b.Income), "month %d income %s", i+1, b.Income)
	}
	assert.True(t, dec("1200").Equal(got.TotalIncome))
}

func TestReportService_RecentTransactionsReachPastYears(t *testing.T) {
	f := newFixture(t, func(s *ledger.Snapshot) {
		s.Transactions = owned(s.Wallets[0].UserID,
			expense(s.Wallets[0].ID, nil, "75", day(2023, 11, 2)),
			expense(s.Wallets[0].ID, nil, "25", day(2022, 5, 9)),
		)
	})
	svc := NewReportService(f.store, WithReportClock(fixedClock(testNow)), WithReportLogger(quietLogger))

	got, err := svc.GetDashboardSummary(context.Background(), f.userID)
	require.NoError(t, err)
	require.Len(t, got.RecentTransactions, 2)
	assert.True(t, dec("75").Equal(got.RecentTransactions[0].Amount))
	assert.True(t, got.Expense.IsZero())
}

func TestReportService_CompareMonths(t *testing.T) {
	rf := newReportFixture(t)

	got, err := rf.svc.CompareMonths(context.Background(), rf.userID, 1)
	require.NoError(t, err)
	assert.Equal(t, "2024-02", got.CompareMonth)
	assert.Equal(t, -16.67, got.Expense.ChangePercent)
	assert.True(t, got.Income.IsNew)

	_, err = rf.svc.CompareMonths(context.Background(), rf.userID, 0)
	assert.ErrorIs(t, err, ErrInvalidOffset)
}

func TestReportService_NetWorthAndInvestments(t *testing.T) {
	rf := newReportFixture(t)
	ctx := context.Background()

	nw, err := rf.svc.GetNetWorth(ctx, rf.userID)
	require.NoError(t, err)
	// 1000 wallets + 300 holdings + 300 receivable - 150 payable
	assert.True(t, dec("1450").Equal(nw.NetWorth))

	inv, err := rf.svc.GetInvestmentSummary(ctx, rf.userID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, inv.GainPercent)
}

func TestReportService_BudgetsAndAlerts(t *testing.T) {
	rf := newReportFixture(t)
	ctx := context.Background()

	statuses, err := rf.svc.GetBudgetsWithSpending(ctx, rf.userID)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, 87.5, statuses[0].Percentage)

	alerts, err := rf.svc.GetBudgetAlerts(ctx, rf.userID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertWarning, alerts[0].Level)
	assert.Equal(t, rf.budget.ID, alerts[0].BudgetID)
}

func TestReportService_FinancialHealth(t *testing.T) {
	rf := newReportFixture(t)

	got, err := rf.svc.GetFinancialHealth(context.Background(), rf.userID)
	require.NoError(t, err)

	// December, January and February average (1500+900+600)/3
	assert.True(t, dec("1000").Equal(got.AverageMonthlyExpense))
	assert.True(t, dec("1000").Equal(got.AvailableFunds))
	assert.Equal(t, 1.0, got.SurvivalMonths)
	assert.Equal(t, 83.33, got.SavingsRate)
	assert.Equal(t, 100.0, got.BudgetAdherence)

	// 40 savings + 35*(1/6) survival + 25 budgets
	assert.Equal(t, 71, got.Score)
	assert.Equal(t, HealthGood, got.Status)

	require.NotEmpty(t, got.Recommendations)
	assert.Equal(t, 80, got.Recommendations[0].Priority)
}

func TestReportService_DebtsAndGoals(t *testing.T) {
	rf := newReportFixture(t)
	ctx := context.Background()

	overdue, err := rf.svc.GetOverdueDebts(ctx, rf.userID)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "Andi", overdue[0].Counterparty)
	assert.Equal(t, 19, overdue[0].DaysOverdue)

	goals, err := rf.svc.GetGoalsProgress(ctx, rf.userID)
	require.NoError(t, err)
	assert.Len(t, goals, 2)
}

func TestReportService_ListTransactions(t *testing.T) {
	rf := newReportFixture(t)
	ctx := context.Background()

	page, err := rf.svc.ListTransactions(ctx, rf.userID, ledger.DateRange{From: day(2024, 1, 1)}, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Transactions, 2)
	assert.True(t, dec("350").Equal(page.Transactions[0].Amount))

	past, err := rf.svc.ListTransactions(ctx, rf.userID, ledger.DateRange{}, 10, 50)
	require.NoError(t, err)
	assert.Equal(t, 7, past.Total)
	assert.NotNil(t, past.Transactions)
	assert.Empty(t, past.Transactions)
}

func TestReportService_LocationDecidesToday(t *testing.T) {
	rf := newReportFixture(t)
	jakarta := time.FixedZone("WIB", 7*60*60)
	// 20:00 UTC on the last day of February is already March 1 in Jakarta
	svc := NewReportService(rf.store,
		WithReportClock(fixedClock(time.Date(2024, 2, 29, 20, 0, 0, 0, time.UTC))),
		WithLocation(jakarta),
		WithReportLogger(quietLogger))

	got, err := svc.GetDashboardSummary(context.Background(), rf.userID)
	require.NoError(t, err)
	assert.True(t, dec("3000").Equal(got.Income))
}

func TestLedgerAndReports_ShareTheConfiguredDay(t *testing.T) {
	f := newFixture(t, nil)
	jakarta := time.FixedZone("WIB", 7*60*60)
	// 20:00 UTC on March 31 is already April 1 in Jakarta
	clock := fixedClock(time.Date(2024, 3, 31, 20, 0, 0, 0, time.UTC))
	ledgerSvc := NewLedgerService(f.store, WithClock(clock), WithLedgerLocation(jakarta))
	reports := NewReportService(f.store, WithReportClock(clock), WithLocation(jakarta), WithReportLogger(quietLogger))
	ctx := context.Background()

	res, err := ledgerSvc.TransferBetweenWallets(ctx, f.userID, f.main.ID, f.savings.ID, dec("100"))
	require.NoError(t, err)
	assert.Equal(t, day(2024, 4, 1), res.Debit.Date)
	assert.Equal(t, day(2024, 4, 1), res.Credit.Date)

	got, err := reports.GetDashboardSummary(ctx, f.userID)
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(got.Income))
	assert.True(t, dec("100").Equal(got.Expense))
}

// failingReader fails every read
type failingReader struct{ ledger.Reader }

var errReadFailed = errors.New("connection reset")

func (failingReader) Wallets(context.Context, uuid.UUID) ([]models.Wallet, error) {
	return nil, errReadFailed
}

func (failingReader) Transactions(context.Context, uuid.UUID, ledger.DateRange) ([]models.Transaction, error) {
	return nil, errReadFailed
}

func TestReportService_ReadFailures(t *testing.T) {
	rf := newReportFixture(t)
	broken := failingReader{Reader: rf.store}

	t.Run("errors surface without fail open", func(t *testing.T) {
		svc := NewReportService(broken, WithReportLogger(quietLogger))
		_, err := svc.GetNetWorth(context.Background(), rf.userID)
		assert.ErrorIs(t, err, errReadFailed)
	})

	t.Run("fail open serves empty collections", func(t *testing.T) {
		svc := NewReportService(ledger.FailOpen(broken, quietLogger), WithReportClock(fixedClock(testNow)), WithReportLogger(quietLogger))
		got, err := svc.GetDashboardSummary(context.Background(), rf.userID)
		require.NoError(t, err)
		assert.True(t, got.TotalBalance.IsZero())
		assert.Empty(t, got.RecentTransactions)
		assert.Len(t, got.BudgetStatus, 1)
	})
}
