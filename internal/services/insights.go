package services

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/ledger"
	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/shopspring/decimal"
)

// InfiniteSentinel stands in for an unbounded ratio: survival months with no
// spending, or growth from a zero baseline
const InfiniteSentinel = 999.0

// TrailingExpenseMonths is how many complete months feed the average expense
const TrailingExpenseMonths = 3

// SavingsRate is the share of income kept, in percent. Zero income yields 0.
func SavingsRate(income, expense decimal.Decimal) float64 {
	if !income.IsPositive() {
		return 0
	}
	return percentOf(income.Sub(expense), income)
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AverageMonthlyExpense is the mean expense of the complete calendar months
// before the month of now
func AverageMonthlyExpense(txns []models.Transaction, now time.Time, months int) decimal.Decimal {
	if months <= 0 {
		return decimal.Zero
	}
	current := monthStart(now)
	window := ledger.DateRange{
		From: current.AddDate(0, -months, 0),
		To:   current.AddDate(0, 0, -1),
	}

	total := decimal.Zero
	for _, txn := range txns {
		if txn.Kind == models.Expense && window.Contains(txn.Date) {
			total = total.Add(txn.Amount)
		}
	}
	return total.Div(decimal.NewFromInt(int64(months)))
}

// AvailableFunds sums the balances of every wallet that is not a credit line
func AvailableFunds(wallets []models.Wallet) decimal.Decimal {
	total := decimal.Zero
	for _, w := range wallets {
		if w.Liquid() {
			total = total.Add(w.Balance)
		}
	}
	return total
}

// SurvivalMonths is how long funds cover the average monthly expense.
// No spending yields InfiniteSentinel. Negative funds clamp to 0.
func SurvivalMonths(funds, avgMonthlyExpense decimal.Decimal) float64 {
	if !avgMonthlyExpense.IsPositive() {
		return InfiniteSentinel
	}
	if !funds.IsPositive() {
		return 0
	}
	months := funds.Div(avgMonthlyExpense).Round(2).InexactFloat64()
	return math.Min(months, InfiniteSentinel)
}

// HealthStatus is the band a health score falls in
type HealthStatus string

const (
	HealthExcellent HealthStatus = "excellent"
	HealthGood      HealthStatus = "good"
	HealthFair      HealthStatus = "fair"
	HealthPoor      HealthStatus = "poor"
	HealthCritical  HealthStatus = "critical"
)

// HealthBand maps a 0-100 score to its status
func HealthBand(score int) HealthStatus {
	switch {
	case score >= 80:
		return HealthExcellent
	case score >= 60:
		return HealthGood
	case score >= 40:
		return HealthFair
	case score >= 20:
		return HealthPoor
	default:
		return HealthCritical
	}
}

// HealthInputs are the indicators the score and recommendations read
type HealthInputs struct {
	Income                decimal.Decimal
	Expense               decimal.Decimal
	SavingsRate           float64
	AverageMonthlyExpense decimal.Decimal
	SurvivalMonths        float64
	BudgetCount           int
	OverBudget            []string // category names
	OverdueReceivables    int
}

// Score weights
const (
	savingsWeight  = 40.0
	survivalWeight = 35.0
	budgetWeight   = 25.0

	savingsTarget  = 50.0 // percent that earns the full savings weight
	survivalTarget = 6.0  // months that earn the full survival weight
)

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}

// HealthScore combines savings rate, survival months and budget adherence
// into 0-100. Each part grows linearly up to its target and never decreases
// when its input improves.
func HealthScore(in HealthInputs) (int, HealthStatus) {
	score := savingsWeight * clamp01(in.SavingsRate/savingsTarget)
	score += survivalWeight * clamp01(in.SurvivalMonths/survivalTarget)

	adherence := 1.0
	if in.BudgetCount > 0 {
		adherence = clamp01(float64(in.BudgetCount-len(in.OverBudget)) / float64(in.BudgetCount))
	}
	score += budgetWeight * adherence

	s := int(math.Round(score))
	return s, HealthBand(s)
}

// MetricChange compares a metric between two months
type MetricChange struct {
	Current       decimal.Decimal `json:"current"`
	Previous      decimal.Decimal `json:"previous"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent float64         `json:"change_percent"`
	IsNew         bool            `json:"is_new"`
}

// compareMetric reports growth relative to the magnitude of previous. A zero
// baseline with a non-zero current value is flagged new and reported as the
// sentinel carrying the sign of current.
func compareMetric(current, previous decimal.Decimal) MetricChange {
	m := MetricChange{Current: current, Previous: previous, Change: current.Sub(previous)}
	switch {
	case previous.IsZero() && current.IsZero():
	case previous.IsZero():
		m.IsNew = true
		m.ChangePercent = InfiniteSentinel * float64(current.Sign())
	default:
		m.ChangePercent = percentOf(m.Change, previous.Abs())
	}
	return m
}

// MonthComparison is the current month against a month offset months back
type MonthComparison struct {
	CurrentMonth string       `json:"current_month"`
	CompareMonth string       `json:"compare_month"`
	Offset       int          `json:"offset"`
	Income       MetricChange `json:"income"`
	Expense      MetricChange `json:"expense"`
	Net          MetricChange `json:"net"`
}

// CompareMonths compares the month of now against offset (1..12) months back
func CompareMonths(txns []models.Transaction, now time.Time, offset int) (MonthComparison, error) {
	if offset < 1 || offset > 12 {
		return MonthComparison{}, ErrInvalidOffset
	}

	current := monthStart(now)
	previous := current.AddDate(0, -offset, 0)

	inMonth := func(start time.Time) []models.Transaction {
		r := ledger.DateRange{From: start, To: start.AddDate(0, 1, -1)}
		var out []models.Transaction
		for _, txn := range txns {
			if r.Contains(txn.Date) {
				out = append(out, txn)
			}
		}
		return out
	}

	cur := PeriodTotals(inMonth(current))
	prev := PeriodTotals(inMonth(previous))

	return MonthComparison{
		CurrentMonth: current.Format("2006-01"),
		CompareMonth: previous.Format("2006-01"),
		Offset:       offset,
		Income:       compareMetric(cur.Income, prev.Income),
		Expense:      compareMetric(cur.Expense, prev.Expense),
		Net:          compareMetric(cur.Net, prev.Net),
	}, nil
}

// RecommendationKind is the tone of a recommendation
type RecommendationKind string

const (
	RecommendationWarning RecommendationKind = "warning"
	RecommendationTip     RecommendationKind = "tip"
	RecommendationSuccess RecommendationKind = "success"
	RecommendationInfo    RecommendationKind = "info"
)

// Recommendation is one piece of advice derived from the health inputs
type Recommendation struct {
	Kind     RecommendationKind `json:"kind"`
	Title    string             `json:"title"`
	Message  string             `json:"message"`
	Priority int                `json:"priority"`
}

type recommendationRule func(in HealthInputs) []Recommendation

var recommendationRules = []recommendationRule{
	func(in HealthInputs) []Recommendation {
		if !in.Expense.GreaterThan(in.Income) {
			return nil
		}
		return []Recommendation{{
			Kind:     RecommendationWarning,
			Title:    "Spending exceeds income",
			Message:  fmt.Sprintf("You spent %s more than you earned this month.", in.Expense.Sub(in.Income).StringFixed(2)),
			Priority: 100,
		}}
	},
	func(in HealthInputs) []Recommendation {
		if !in.Income.IsPositive() || in.SavingsRate >= 10 {
			return nil
		}
		return []Recommendation{{
			Kind:     RecommendationWarning,
			Title:    "Low savings rate",
			Message:  fmt.Sprintf("Your savings rate is %.1f%%. Aim for at least 10%% of your income.", in.SavingsRate),
			Priority: 90,
		}}
	},
	func(in HealthInputs) []Recommendation {
		out := make([]Recommendation, 0, len(in.OverBudget))
		for _, name := range in.OverBudget {
			out = append(out, Recommendation{
				Kind:     RecommendationWarning,
				Title:    "Budget exceeded",
				Message:  fmt.Sprintf("You are over budget on %s.", name),
				Priority: 85,
			})
		}
		return out
	},
	func(in HealthInputs) []Recommendation {
		if in.SurvivalMonths >= 3 {
			return nil
		}
		return []Recommendation{{
			Kind:     RecommendationTip,
			Title:    "Build an emergency fund",
			Message:  fmt.Sprintf("Your funds cover %.1f months of spending. Try to keep at least 3 months.", in.SurvivalMonths),
			Priority: 80,
		}}
	},
	func(in HealthInputs) []Recommendation {
		if in.OverdueReceivables == 0 {
			return nil
		}
		return []Recommendation{{
			Kind:     RecommendationTip,
			Title:    "Collect overdue receivables",
			Message:  fmt.Sprintf("%d receivable(s) are past their due date.", in.OverdueReceivables),
			Priority: 60,
		}}
	},
	func(in HealthInputs) []Recommendation {
		if !in.Income.IsPositive() || in.SavingsRate < 30 {
			return nil
		}
		return []Recommendation{{
			Kind:     RecommendationSuccess,
			Title:    "Great savings rate",
			Message:  fmt.Sprintf("You are saving %.1f%% of your income.", in.SavingsRate),
			Priority: 50,
		}}
	},
	func(in HealthInputs) []Recommendation {
		if !in.AverageMonthlyExpense.IsPositive() || in.SurvivalMonths < 6 {
			return nil
		}
		return []Recommendation{{
			Kind:     RecommendationSuccess,
			Title:    "Healthy emergency fund",
			Message:  "Your funds cover more than 6 months of spending.",
			Priority: 40,
		}}
	},
	func(in HealthInputs) []Recommendation {
		if in.BudgetCount > 0 {
			return nil
		}
		return []Recommendation{{
			Kind:     RecommendationInfo,
			Title:    "Set up budgets",
			Message:  "Budgets help you keep spending in check per category.",
			Priority: 30,
		}}
	},
}

// Recommendations runs every rule and orders the advice by priority, highest first
func Recommendations(in HealthInputs) []Recommendation {
	out := []Recommendation{}
	for _, rule := range recommendationRules {
		out = append(out, rule(in)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}
