package services

import (
	"math"
	"sort"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/ledger"
	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// percentOf returns part/whole*100 rounded to two decimals, or 0 when whole is zero
func percentOf(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(hundred).Round(2).InexactFloat64()
}

// Totals is the income and expense of a set of transactions
type Totals struct {
	Income  decimal.Decimal `json:"total_income"`
	Expense decimal.Decimal `json:"total_expense"`
	Net     decimal.Decimal `json:"net_amount"`
}

// PeriodTotals sums income and expense. An empty set yields zeros.
func PeriodTotals(txns []models.Transaction) Totals {
	t := Totals{Income: decimal.Zero, Expense: decimal.Zero, Net: decimal.Zero}
	for _, txn := range txns {
		if !txn.Kind.Valid() {
			continue
		}
		if txn.Kind == models.Income {
			t.Income = t.Income.Add(txn.Amount)
		} else {
			t.Expense = t.Expense.Add(txn.Amount)
		}
		t.Net = t.Net.Add(txn.Signed())
	}
	return t
}

// CategorySpend is the expense total of one category
type CategorySpend struct {
	CategoryID uuid.UUID       `json:"category_id"`
	Name       string          `json:"name"`
	Icon       string          `json:"icon,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Count      int             `json:"count"`
	Percentage int             `json:"percentage"`
}

// UncategorizedName labels expenses without a category
const UncategorizedName = "Uncategorized"

// CategoryBreakdown groups expenses by category, largest first.
// Uncategorized expenses are grouped under uuid.Nil. Ties keep first seen order.
func CategoryBreakdown(txns []models.Transaction, categories []models.Category) []CategorySpend {
	byID := make(map[uuid.UUID]models.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	index := map[uuid.UUID]int{}
	var groups []CategorySpend
	total := decimal.Zero

	for _, txn := range txns {
		if txn.Kind != models.Expense {
			continue
		}
		id := uuid.Nil
		if txn.CategoryID != nil {
			id = *txn.CategoryID
		}

		i, ok := index[id]
		if !ok {
			g := CategorySpend{CategoryID: id, Name: UncategorizedName, Amount: decimal.Zero}
			if c, known := byID[id]; known {
				g.Name = c.Name
				g.Icon = c.Icon
			}
			groups = append(groups, g)
			i = len(groups) - 1
			index[id] = i
		}
		groups[i].Amount = groups[i].Amount.Add(txn.Amount)
		groups[i].Count++
		total = total.Add(txn.Amount)
	}

	for i := range groups {
		if total.IsPositive() {
			groups[i].Percentage = int(groups[i].Amount.Div(total).Mul(hundred).Round(0).IntPart())
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Amount.GreaterThan(groups[j].Amount)
	})
	if groups == nil {
		groups = []CategorySpend{}
	}
	return groups
}

// MonthBucket is the income and expense of one calendar month
type MonthBucket struct {
	Month   int             `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// MonthlyBuckets splits the transactions of year over its twelve months.
// Transactions from other years are ignored.
func MonthlyBuckets(txns []models.Transaction, year int) [12]MonthBucket {
	var buckets [12]MonthBucket
	for i := range buckets {
		buckets[i] = MonthBucket{Month: i + 1, Income: decimal.Zero, Expense: decimal.Zero, Net: decimal.Zero}
	}

	for _, txn := range txns {
		if txn.Date.Year() != year {
			continue
		}
		b := &buckets[txn.Date.Month()-1]
		switch txn.Kind {
		case models.Income:
			b.Income = b.Income.Add(txn.Amount)
		case models.Expense:
			b.Expense = b.Expense.Add(txn.Amount)
		}
	}
	for i := range buckets {
		buckets[i].Net = buckets[i].Income.Sub(buckets[i].Expense)
	}
	return buckets
}

// DayBucket is the income and expense of one calendar day
type DayBucket struct {
	Day     int             `json:"day"`
	Date    string          `json:"date"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// DailyBuckets returns one bucket per day of the given month
func DailyBuckets(txns []models.Transaction, year int, month time.Month) []DayBucket {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()

	buckets := make([]DayBucket, days)
	for i := range buckets {
		buckets[i] = DayBucket{
			Day:     i + 1,
			Date:    first.AddDate(0, 0, i).Format(time.DateOnly),
			Income:  decimal.Zero,
			Expense: decimal.Zero,
		}
	}

	for _, txn := range txns {
		if txn.Date.Year() != year || txn.Date.Month() != month {
			continue
		}
		b := &buckets[txn.Date.Day()-1]
		switch txn.Kind {
		case models.Income:
			b.Income = b.Income.Add(txn.Amount)
		case models.Expense:
			b.Expense = b.Expense.Add(txn.Amount)
		}
	}
	return buckets
}

// NetWorthBreakdown lists each component of the net worth
type NetWorthBreakdown struct {
	Wallets      decimal.Decimal                       `json:"wallets"`
	Investments  decimal.Decimal                       `json:"investments"`
	Receivables  decimal.Decimal                       `json:"receivables"`
	Payables     decimal.Decimal                       `json:"payables"`
	ByWalletKind map[models.WalletKind]decimal.Decimal `json:"by_wallet_kind"`
}

// NetWorthSummary is assets minus liabilities
type NetWorthSummary struct {
	NetWorth         decimal.Decimal   `json:"net_worth"`
	TotalAssets      decimal.Decimal   `json:"total_assets"`
	TotalLiabilities decimal.Decimal   `json:"total_liabilities"`
	Breakdown        NetWorthBreakdown `json:"breakdown"`
}

// NetWorth adds wallet balances, the current value of active holdings and
// outstanding receivables, then subtracts outstanding payables.
func NetWorth(wallets []models.Wallet, investments []models.Investment, debts []models.Debt) NetWorthSummary {
	b := NetWorthBreakdown{
		Wallets:      decimal.Zero,
		Investments:  decimal.Zero,
		Receivables:  decimal.Zero,
		Payables:     decimal.Zero,
		ByWalletKind: map[models.WalletKind]decimal.Decimal{},
	}

	for _, w := range wallets {
		b.Wallets = b.Wallets.Add(w.Balance)
		cur, ok := b.ByWalletKind[w.Kind]
		if !ok {
			cur = decimal.Zero
		}
		b.ByWalletKind[w.Kind] = cur.Add(w.Balance)
	}
	for _, inv := range investments {
		if inv.Status != models.InvestmentActive {
			continue
		}
		b.Investments = b.Investments.Add(inv.CurrentValue())
	}
	for _, d := range debts {
		if !d.Open() {
			continue
		}
		switch d.Direction {
		case models.Receivable:
			b.Receivables = b.Receivables.Add(d.Outstanding())
		case models.Payable:
			b.Payables = b.Payables.Add(d.Outstanding())
		}
	}

	assets := b.Wallets.Add(b.Investments).Add(b.Receivables)
	return NetWorthSummary{
		NetWorth:         assets.Sub(b.Payables),
		TotalAssets:      assets,
		TotalLiabilities: b.Payables,
		Breakdown:        b,
	}
}

// PeriodStart is where the current budget period begins for the day now.
// Weeks start on Sunday.
func PeriodStart(period models.BudgetPeriod, now time.Time) time.Time {
	today := ledger.Day(now)
	switch period {
	case models.PeriodWeekly:
		return today.AddDate(0, 0, -int(today.Weekday()))
	case models.PeriodYearly:
		return time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

// BudgetStatus is the spend to date of a budget in its current period
type BudgetStatus struct {
	models.Budget
	CategoryName string          `json:"category_name,omitempty"`
	Spent        decimal.Decimal `json:"spent"`
	Remaining    decimal.Decimal `json:"remaining"`
	Percentage   float64         `json:"percentage"`
	IsOverBudget bool            `json:"is_over_budget"`
	PeriodStart  time.Time       `json:"period_start"`
}

// BudgetUtilization sums the expenses of the budget's category, and wallet
// when scoped, from the period start through today.
func BudgetUtilization(b models.Budget, txns []models.Transaction, now time.Time) BudgetStatus {
	start := PeriodStart(b.Period, now)
	window := ledger.DateRange{From: start, To: now}

	spent := decimal.Zero
	for _, txn := range txns {
		if txn.Kind != models.Expense || !txn.InCategory(b.CategoryID) || !window.Contains(txn.Date) {
			continue
		}
		if b.WalletID != nil && txn.WalletID != *b.WalletID {
			continue
		}
		spent = spent.Add(txn.Amount)
	}

	st := BudgetStatus{
		Budget:       b,
		Spent:        spent,
		Remaining:    decimal.Max(b.Amount.Sub(spent), decimal.Zero),
		IsOverBudget: spent.GreaterThan(b.Amount),
		PeriodStart:  start,
	}
	if b.Amount.IsPositive() {
		st.Percentage = math.Min(percentOf(spent, b.Amount), 100)
	}
	return st
}

// BudgetsWithSpending runs BudgetUtilization for every budget and names its category
func BudgetsWithSpending(budgets []models.Budget, categories []models.Category, txns []models.Transaction, now time.Time) []BudgetStatus {
	names := make(map[uuid.UUID]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	out := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		st := BudgetUtilization(b, txns, now)
		st.CategoryName = names[b.CategoryID]
		out = append(out, st)
	}
	return out
}

// OverdueDebt is an open receivable past its due date
type OverdueDebt struct {
	models.Debt
	Status      models.DebtStatus `json:"status"`
	Outstanding decimal.Decimal   `json:"outstanding"`
	DaysOverdue int               `json:"days_overdue"`
}

func daysBetween(from, to time.Time) int {
	return int(ledger.Day(to).Sub(ledger.Day(from)).Hours() / 24)
}

// DebtAging lists open receivables due strictly before today, most overdue first
func DebtAging(debts []models.Debt, now time.Time) []OverdueDebt {
	today := ledger.Day(now)
	out := []OverdueDebt{}
	for _, d := range debts {
		if d.Direction != models.Receivable || !d.Open() || d.DueDate == nil {
			continue
		}
		due := ledger.Day(*d.DueDate)
		if !due.Before(today) {
			continue
		}
		out = append(out, OverdueDebt{
			Debt:        d,
			Status:      d.Status(),
			Outstanding: d.Principal.Sub(d.Settled),
			DaysOverdue: daysBetween(due, today),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DaysOverdue > out[j].DaysOverdue
	})
	return out
}

// DebtSummary totals what is still owed both ways
type DebtSummary struct {
	TotalPayable       decimal.Decimal `json:"total_payable"`
	TotalReceivable    decimal.Decimal `json:"total_receivable"`
	OpenPayables       int             `json:"open_payables"`
	OpenReceivables    int             `json:"open_receivables"`
	OverdueReceivables int             `json:"overdue_receivables"`
}

func SummarizeDebts(debts []models.Debt, now time.Time) DebtSummary {
	s := DebtSummary{TotalPayable: decimal.Zero, TotalReceivable: decimal.Zero}
	for _, d := range debts {
		if !d.Open() {
			continue
		}
		switch d.Direction {
		case models.Payable:
			s.TotalPayable = s.TotalPayable.Add(d.Outstanding())
			s.OpenPayables++
		case models.Receivable:
			s.TotalReceivable = s.TotalReceivable.Add(d.Outstanding())
			s.OpenReceivables++
		}
	}
	s.OverdueReceivables = len(DebtAging(debts, now))
	return s
}

// GoalProgress is how far a goal is from its target
type GoalProgress struct {
	models.Goal
	Percentage    float64         `json:"percentage"`
	Remaining     decimal.Decimal `json:"remaining"`
	DaysLeft      *int            `json:"days_left,omitempty"`
	MonthlyNeeded decimal.Decimal `json:"monthly_needed"`
}

// GoalsProgress computes progress for every goal. MonthlyNeeded spreads the
// remaining amount over the months left until the target date, counting a
// started month as a whole one. Past due goals need the whole remainder now.
func GoalsProgress(goals []models.Goal, now time.Time) []GoalProgress {
	today := ledger.Day(now)
	out := make([]GoalProgress, 0, len(goals))
	for _, g := range goals {
		p := GoalProgress{
			Goal:          g,
			Remaining:     decimal.Max(g.TargetAmount.Sub(g.CurrentAmount), decimal.Zero),
			MonthlyNeeded: decimal.Zero,
		}
		if g.TargetAmount.IsPositive() {
			p.Percentage = math.Min(percentOf(g.CurrentAmount, g.TargetAmount), 100)
		}

		if g.TargetDate != nil {
			days := daysBetween(today, *g.TargetDate)
			p.DaysLeft = &days
			if p.Remaining.IsPositive() && g.Status == models.GoalActive {
				months := int64(math.Ceil(float64(days) / 30))
				if months < 1 {
					months = 1
				}
				p.MonthlyNeeded = p.Remaining.Div(decimal.NewFromInt(months)).Round(2)
			}
		}
		out = append(out, p)
	}
	return out
}

// HoldingPerformance is the gain of one active holding
type HoldingPerformance struct {
	models.Investment
	Invested     decimal.Decimal `json:"invested"`
	CurrentValue decimal.Decimal `json:"current_value"`
	Gain         decimal.Decimal `json:"gain"`
	GainPercent  float64         `json:"gain_percent"`
}

// InvestmentSummary is the gain over all active holdings
type InvestmentSummary struct {
	TotalInvested decimal.Decimal      `json:"total_invested"`
	CurrentValue  decimal.Decimal      `json:"current_value"`
	Gain          decimal.Decimal      `json:"gain"`
	GainPercent   float64              `json:"gain_percent"`
	Holdings      []HoldingPerformance `json:"holdings"`
}

func InvestmentGain(investments []models.Investment) InvestmentSummary {
	s := InvestmentSummary{
		TotalInvested: decimal.Zero,
		CurrentValue:  decimal.Zero,
		Holdings:      []HoldingPerformance{},
	}
	for _, inv := range investments {
		if inv.Status != models.InvestmentActive {
			continue
		}
		invested, value := inv.Invested(), inv.CurrentValue()
		gain := value.Sub(invested)
		s.Holdings = append(s.Holdings, HoldingPerformance{
			Investment:   inv,
			Invested:     invested,
			CurrentValue: value,
			Gain:         gain,
			GainPercent:  percentOf(gain, invested),
		})
		s.TotalInvested = s.TotalInvested.Add(invested)
		s.CurrentValue = s.CurrentValue.Add(value)
	}
	s.Gain = s.CurrentValue.Sub(s.TotalInvested)
	if s.TotalInvested.IsPositive() {
		s.GainPercent = percentOf(s.Gain, s.TotalInvested)
	}
	return s
}
