package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/ledger"
	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	recentTransactionsLimit = 5
	topCategoriesLimit      = 5
)

// ReportService answers the read-only dashboard and report queries. Each
// call loads a fresh snapshot from the reader and computes everything in
// memory.
type ReportService struct {
	reader ledger.Reader
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time
}

// ReportOption configures a ReportService
type ReportOption func(*ReportService)

// WithLocation sets the time zone that decides what "today" is
func WithLocation(loc *time.Location) ReportOption {
	return func(s *ReportService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithReportClock(now func() time.Time) ReportOption {
	return func(s *ReportService) { s.now = now }
}

func WithReportLogger(l *slog.Logger) ReportOption {
	return func(s *ReportService) { s.logger = l }
}

func NewReportService(reader ledger.Reader, opts ...ReportOption) *ReportService {
	s := &ReportService{
		reader: reader,
		logger: slog.Default(),
		loc:    time.UTC,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// today is the civil date in the configured zone, expressed at UTC midnight
// like every stored transaction date
func (s *ReportService) today() time.Time {
	return ledger.Day(s.now().In(s.loc))
}

// snapshot holds the rows one report needs
type snapshot struct {
	wallets      []models.Wallet
	categories   []models.Category
	transactions []models.Transaction
	budgets      []models.Budget
	goals        []models.Goal
	debts        []models.Debt
	investments  []models.Investment
}

type loadSet struct {
	wallets, categories, budgets, goals, debts, investments bool
	transactions                                            *ledger.DateRange
}

// load fetches the requested collections concurrently
func (s *ReportService) load(ctx context.Context, userID uuid.UUID, want loadSet) (snapshot, error) {
	var snap snapshot
	g, ctx := errgroup.WithContext(ctx)

	if want.wallets {
		g.Go(func() (err error) {
			snap.wallets, err = s.reader.Wallets(ctx, userID)
			return err
		})
	}
	if want.categories {
		g.Go(func() (err error) {
			snap.categories, err = s.reader.Categories(ctx, userID)
			return err
		})
	}
	if want.transactions != nil {
		r := *want.transactions
		g.Go(func() (err error) {
			snap.transactions, err = s.reader.Transactions(ctx, userID, r)
			return err
		})
	}
	if want.budgets {
		g.Go(func() (err error) {
			snap.budgets, err = s.reader.Budgets(ctx, userID)
			return err
		})
	}
	if want.goals {
		g.Go(func() (err error) {
			snap.goals, err = s.reader.Goals(ctx, userID)
			return err
		})
	}
	if want.debts {
		g.Go(func() (err error) {
			snap.debts, err = s.reader.Debts(ctx, userID)
			return err
		})
	}
	if want.investments {
		g.Go(func() (err error) {
			snap.investments, err = s.reader.Investments(ctx, userID)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to load ledger snapshot", "user_id", userID, "error", err)
		return snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, nil
}

// budgetWindow covers the longest running budget period up to today. The
// weekly period can start in the previous year during the first week of January.
func budgetWindow(today time.Time) ledger.DateRange {
	from := PeriodStart(models.PeriodYearly, today)
	if week := PeriodStart(models.PeriodWeekly, today); week.Before(from) {
		from = week
	}
	return ledger.DateRange{From: from, To: today}
}

func monthRange(year int, month time.Month) ledger.DateRange {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return ledger.DateRange{From: start, To: start.AddDate(0, 1, -1)}
}

func filterRange(txns []models.Transaction, r ledger.DateRange) []models.Transaction {
	out := make([]models.Transaction, 0, len(txns))
	for _, t := range txns {
		if r.Contains(t.Date) {
			out = append(out, t)
		}
	}
	return out
}

// DashboardSummary is the landing page payload
type DashboardSummary struct {
	TotalBalance       decimal.Decimal      `json:"total_balance"`
	Income             decimal.Decimal      `json:"income"`
	Expense            decimal.Decimal      `json:"expense"`
	Net                decimal.Decimal      `json:"net"`
	RecentTransactions []models.Transaction `json:"recent_transactions"`
	GoalsProgress      []GoalProgress       `json:"goals_progress"`
	BudgetStatus       []BudgetStatus       `json:"budget_status"`
	DebtSummary        DebtSummary          `json:"debt_summary"`
	TopCategories      []CategorySpend      `json:"top_categories"`
}

func (s *ReportService) GetDashboardSummary(ctx context.Context, userID uuid.UUID) (DashboardSummary, error) {
	today := s.today()
	window := budgetWindow(today)
	snap, err := s.load(ctx, userID, loadSet{
		wallets: true, categories: true, budgets: true, goals: true, debts: true,
		transactions: &window,
	})
	if err != nil {
		return DashboardSummary{}, err
	}

	month := filterRange(snap.transactions, monthRange(today.Year(), today.Month()))
	totals := PeriodTotals(month)

	balance := decimal.Zero
	for _, w := range snap.wallets {
		balance = balance.Add(w.Balance)
	}

	// The budget window can be empty early in the year, so older rows fill
	// the recent list
	recent := snap.transactions
	if len(recent) < recentTransactionsLimit {
		if recent, err = s.reader.Transactions(ctx, userID, ledger.DateRange{To: today}); err != nil {
			return DashboardSummary{}, fmt.Errorf("load recent transactions: %w", err)
		}
	}
	if len(recent) > recentTransactionsLimit {
		recent = recent[:recentTransactionsLimit]
	}

	active := make([]models.Goal, 0, len(snap.goals))
	for _, g := range snap.goals {
		if g.Status == models.GoalActive {
			active = append(active, g)
		}
	}

	top := CategoryBreakdown(month, snap.categories)
	if len(top) > topCategoriesLimit {
		top = top[:topCategoriesLimit]
	}

	return DashboardSummary{
		TotalBalance:       balance,
		Income:             totals.Income,
		Expense:            totals.Expense,
		Net:                totals.Net,
		RecentTransactions: recent,
		GoalsProgress:      GoalsProgress(active, today),
		BudgetStatus:       BudgetsWithSpending(snap.budgets, snap.categories, snap.transactions, today),
		DebtSummary:        SummarizeDebts(snap.debts, today),
		TopCategories:      top,
	}, nil
}

// MonthlyReport is the income, expense and breakdown of one month
type MonthlyReport struct {
	Year              int             `json:"year"`
	Month             int             `json:"month"`
	TotalIncome       decimal.Decimal `json:"total_income"`
	TotalExpense      decimal.Decimal `json:"total_expense"`
	NetAmount         decimal.Decimal `json:"net_amount"`
	SavingsRate       float64         `json:"savings_rate"`
	CategoryBreakdown []CategorySpend `json:"category_breakdown"`
	DailyData         []DayBucket     `json:"daily_data"`
}

func (s *ReportService) GetMonthlyReport(ctx context.Context, userID uuid.UUID, year, month int) (MonthlyReport, error) {
	if month < 1 || month > 12 {
		return MonthlyReport{}, ErrInvalidPeriod
	}
	r := monthRange(year, time.Month(month))
	snap, err := s.load(ctx, userID, loadSet{categories: true, transactions: &r})
	if err != nil {
		return MonthlyReport{}, err
	}

	txns := filterRange(snap.transactions, r)
	totals := PeriodTotals(txns)
	return MonthlyReport{
		Year:              year,
		Month:             month,
		TotalIncome:       totals.Income,
		TotalExpense:      totals.Expense,
		NetAmount:         totals.Net,
		SavingsRate:       SavingsRate(totals.Income, totals.Expense),
		CategoryBreakdown: CategoryBreakdown(txns, snap.categories),
		DailyData:         DailyBuckets(txns, year, time.Month(month)),
	}, nil
}

// YearlyReport is the income and expense of one year split by month
type YearlyReport struct {
	Year         int             `json:"year"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	NetAmount    decimal.Decimal `json:"net_amount"`
	MonthlyData  [12]MonthBucket `json:"monthly_data"`
}

func (s *ReportService) GetYearlyReport(ctx context.Context, userID uuid.UUID, year int) (YearlyReport, error) {
	r := ledger.DateRange{
		From: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
	snap, err := s.load(ctx, userID, loadSet{transactions: &r})
	if err != nil {
		return YearlyReport{}, err
	}

	buckets := MonthlyBuckets(snap.transactions, year)
	rep := YearlyReport{Year: year, TotalIncome: decimal.Zero, TotalExpense: decimal.Zero, MonthlyData: buckets}
	for _, b := range buckets {
		rep.TotalIncome = rep.TotalIncome.Add(b.Income)
		rep.TotalExpense = rep.TotalExpense.Add(b.Expense)
	}
	rep.NetAmount = rep.TotalIncome.Sub(rep.TotalExpense)
	return rep, nil
}

func (s *ReportService) CompareMonths(ctx context.Context, userID uuid.UUID, offset int) (MonthComparison, error) {
	if offset < 1 || offset > 12 {
		return MonthComparison{}, ErrInvalidOffset
	}
	today := s.today()
	r := ledger.DateRange{From: monthStart(today).AddDate(0, -offset, 0), To: today}
	snap, err := s.load(ctx, userID, loadSet{transactions: &r})
	if err != nil {
		return MonthComparison{}, err
	}
	return CompareMonths(snap.transactions, today, offset)
}

func (s *ReportService) GetNetWorth(ctx context.Context, userID uuid.UUID) (NetWorthSummary, error) {
	snap, err := s.load(ctx, userID, loadSet{wallets: true, investments: true, debts: true})
	if err != nil {
		return NetWorthSummary{}, err
	}
	return NetWorth(snap.wallets, snap.investments, snap.debts), nil
}

func (s *ReportService) GetBudgetsWithSpending(ctx context.Context, userID uuid.UUID) ([]BudgetStatus, error) {
	today := s.today()
	window := budgetWindow(today)
	snap, err := s.load(ctx, userID, loadSet{budgets: true, categories: true, transactions: &window})
	if err != nil {
		return nil, err
	}
	return BudgetsWithSpending(snap.budgets, snap.categories, snap.transactions, today), nil
}

func (s *ReportService) GetBudgetAlerts(ctx context.Context, userID uuid.UUID) ([]BudgetAlert, error) {
	statuses, err := s.GetBudgetsWithSpending(ctx, userID)
	if err != nil {
		return nil, err
	}
	return EvaluateBudgetAlerts(statuses), nil
}

// FinancialHealth is the health score with the indicators behind it
type FinancialHealth struct {
	Score                 int              `json:"score"`
	Status                HealthStatus     `json:"status"`
	SurvivalMonths        float64          `json:"survival_months"`
	SavingsRate           float64          `json:"savings_rate"`
	AvailableFunds        decimal.Decimal  `json:"available_funds"`
	AverageMonthlyExpense decimal.Decimal  `json:"average_monthly_expense"`
	BudgetAdherence       float64          `json:"budget_adherence"`
	Recommendations       []Recommendation `json:"recommendations"`
}

// GetFinancialHealth scores the current month. The savings rate reads the
// current month, survival reads the trailing complete months.
func (s *ReportService) GetFinancialHealth(ctx context.Context, userID uuid.UUID) (FinancialHealth, error) {
	today := s.today()
	from := monthStart(today).AddDate(0, -TrailingExpenseMonths, 0)
	if yearly := budgetWindow(today).From; yearly.Before(from) {
		from = yearly
	}
	window := ledger.DateRange{From: from, To: today}

	snap, err := s.load(ctx, userID, loadSet{
		wallets: true, categories: true, budgets: true, debts: true,
		transactions: &window,
	})
	if err != nil {
		return FinancialHealth{}, err
	}

	month := PeriodTotals(filterRange(snap.transactions, monthRange(today.Year(), today.Month())))
	funds := AvailableFunds(snap.wallets)
	avg := AverageMonthlyExpense(snap.transactions, today, TrailingExpenseMonths)

	in := HealthInputs{
		Income:                month.Income,
		Expense:               month.Expense,
		SavingsRate:           SavingsRate(month.Income, month.Expense),
		AverageMonthlyExpense: avg,
		SurvivalMonths:        SurvivalMonths(funds, avg),
		BudgetCount:           len(snap.budgets),
		OverdueReceivables:    len(DebtAging(snap.debts, today)),
	}
	for _, st := range BudgetsWithSpending(snap.budgets, snap.categories, snap.transactions, today) {
		if st.IsOverBudget {
			name := st.CategoryName
			if name == "" {
				name = UncategorizedName
			}
			in.OverBudget = append(in.OverBudget, name)
		}
	}

	score, status := HealthScore(in)
	adherence := 100.0
	if in.BudgetCount > 0 {
		adherence = percentOf(decimal.NewFromInt(int64(in.BudgetCount-len(in.OverBudget))), decimal.NewFromInt(int64(in.BudgetCount)))
	}

	return FinancialHealth{
		Score:                 score,
		Status:                status,
		SurvivalMonths:        in.SurvivalMonths,
		SavingsRate:           in.SavingsRate,
		AvailableFunds:        funds,
		AverageMonthlyExpense: avg.Round(2),
		BudgetAdherence:       adherence,
		Recommendations:       Recommendations(in),
	}, nil
}

func (s *ReportService) GetOverdueDebts(ctx context.Context, userID uuid.UUID) ([]OverdueDebt, error) {
	snap, err := s.load(ctx, userID, loadSet{debts: true})
	if err != nil {
		return nil, err
	}
	return DebtAging(snap.debts, s.today()), nil
}

func (s *ReportService) GetGoalsProgress(ctx context.Context, userID uuid.UUID) ([]GoalProgress, error) {
	snap, err := s.load(ctx, userID, loadSet{goals: true})
	if err != nil {
		return nil, err
	}
	return GoalsProgress(snap.goals, s.today()), nil
}

func (s *ReportService) GetInvestmentSummary(ctx context.Context, userID uuid.UUID) (InvestmentSummary, error) {
	snap, err := s.load(ctx, userID, loadSet{investments: true})
	if err != nil {
		return InvestmentSummary{}, err
	}
	return InvestmentGain(snap.investments), nil
}

// TransactionPage is one page of a transaction listing, newest first
type TransactionPage struct {
	Transactions []models.Transaction `json:"transactions"`
	Total        int                  `json:"total"`
	Limit        int                  `json:"limit"`
	Offset       int                  `json:"offset"`
}

func (s *ReportService) ListTransactions(ctx context.Context, userID uuid.UUID, r ledger.DateRange, limit, offset int) (TransactionPage, error) {
	snap, err := s.load(ctx, userID, loadSet{transactions: &r})
	if err != nil {
		return TransactionPage{}, err
	}

	page := TransactionPage{Total: len(snap.transactions), Limit: limit, Offset: offset, Transactions: []models.Transaction{}}
	if offset < len(snap.transactions) {
		end := min(offset+limit, len(snap.transactions))
		page.Transactions = snap.transactions[offset:end]
	}
	return page, nil
}
