package services

import (
	"fmt"
	"testing"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusAt(name string, pct float64) BudgetStatus {
	return BudgetStatus{
		Budget:       models.Budget{ID: uuid.New(), CategoryID: uuid.New(), Amount: dec("100")},
		CategoryName: name,
		Spent:        decimal.NewFromFloat(pct),
		Percentage:   pct,
	}
}

func TestEvaluateBudgetAlerts_Thresholds(t *testing.T) {
	tests := []struct {
		pct   float64
		level AlertLevel
		alert bool
	}{
		{74.99, "", false},
		{75, AlertWarning, true},
		{89.99, AlertWarning, true},
		{90, AlertDanger, true},
		{99.99, AlertDanger, true},
		{100, AlertExceeded, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.2f", tt.pct), func(t *testing.T) {
			got := EvaluateBudgetAlerts([]BudgetStatus{statusAt("Food", tt.pct)})
			if !tt.alert {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.level, got[0].Level)
		})
	}
}

func TestEvaluateBudgetAlerts_OrderAndMessages(t *testing.T) {
	got := EvaluateBudgetAlerts([]BudgetStatus{
		statusAt("Food", 80),
		statusAt("Rent", 100),
		statusAt("Fun", 10),
		statusAt("", 95),
	})
	require.Len(t, got, 3)

	assert.Equal(t, "Rent", got[0].CategoryName)
	assert.Contains(t, got[0].Message, "exceeded")
	assert.Contains(t, got[1].Message, "almost used up (95%)")
	assert.Equal(t, "Food budget has reached 80%", got[2].Message)

	assert.NotNil(t, EvaluateBudgetAlerts(nil))
}
