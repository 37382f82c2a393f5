package services

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlertLevel is how far a budget is into its ceiling
type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"
	AlertDanger   AlertLevel = "danger"
	AlertExceeded AlertLevel = "exceeded"
)

// Alert thresholds in percent of the budget amount
const (
	warningThreshold  = 75.0
	dangerThreshold   = 90.0
	exceededThreshold = 100.0
)

// BudgetAlert flags a budget whose spend crossed a threshold
type BudgetAlert struct {
	BudgetID     uuid.UUID       `json:"budget_id"`
	CategoryID   uuid.UUID       `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Level        AlertLevel      `json:"level"`
	Percentage   float64         `json:"percentage"`
	Spent        decimal.Decimal `json:"spent"`
	Amount       decimal.Decimal `json:"amount"`
	Message      string          `json:"message"`
}

func alertLevel(pct float64) (AlertLevel, bool) {
	switch {
	case pct >= exceededThreshold:
		return AlertExceeded, true
	case pct >= dangerThreshold:
		return AlertDanger, true
	case pct >= warningThreshold:
		return AlertWarning, true
	default:
		return "", false
	}
}

// EvaluateBudgetAlerts classifies budgets at or above 75% of their amount,
// highest percentage first. Budgets below the warning threshold are left out.
func EvaluateBudgetAlerts(statuses []BudgetStatus) []BudgetAlert {
	alerts := []BudgetAlert{}
	for _, st := range statuses {
		level, ok := alertLevel(st.Percentage)
		if !ok {
			continue
		}

		name := st.CategoryName
		if name == "" {
			name = "Budget"
		}

		var msg string
		switch level {
		case AlertExceeded:
			msg = fmt.Sprintf("%s budget exceeded: %s spent of %s", name, st.Spent.StringFixed(2), st.Amount.StringFixed(2))
		case AlertDanger:
			msg = fmt.Sprintf("%s budget is almost used up (%.0f%%)", name, st.Percentage)
		default:
			msg = fmt.Sprintf("%s budget has reached %.0f%%", name, st.Percentage)
		}

		alerts = append(alerts, BudgetAlert{
			BudgetID:     st.ID,
			CategoryID:   st.CategoryID,
			CategoryName: st.CategoryName,
			Level:        level,
			Percentage:   st.Percentage,
			Spent:        st.Spent,
			Amount:       st.Amount,
			Message:      msg,
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Percentage > alerts[j].Percentage
	})
	return alerts
}
