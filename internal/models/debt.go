package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DebtDirection tells who owes whom
type DebtDirection string

const (
	Payable    DebtDirection = "payable"    // the user owes the counterparty
	Receivable DebtDirection = "receivable" // the counterparty owes the user
)

// DebtStatus is derived from the settled amount, see Debt.Status
type DebtStatus string

const (
	DebtUnpaid  DebtStatus = "unpaid"
	DebtPartial DebtStatus = "partial"
	DebtPaid    DebtStatus = "paid"
)

// Debt is a payable or receivable obligation
type Debt struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Direction    DebtDirection   `json:"direction"`
	Counterparty string          `json:"counterparty"`
	Principal    decimal.Decimal `json:"principal"`
	Settled      decimal.Decimal `json:"settled"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Status is computed from settled vs principal and is the only source of truth
func (d Debt) Status() DebtStatus {
	switch {
	case d.Settled.GreaterThanOrEqual(d.Principal):
		return DebtPaid
	case d.Settled.IsPositive():
		return DebtPartial
	default:
		return DebtUnpaid
	}
}

// Outstanding is what is still owed, never negative
func (d Debt) Outstanding() decimal.Decimal {
	rest := d.Principal.Sub(d.Settled)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// Open reports whether anything is still owed
func (d Debt) Open() bool {
	return d.Status() != DebtPaid
}
