package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind decides the sign of a transaction when aggregated
type TransactionKind string

const (
	Income  TransactionKind = "income"
	Expense TransactionKind = "expense"
)

// Valid reports whether k is a known transaction kind
func (k TransactionKind) Valid() bool {
	return k == Income || k == Expense
}

// Transaction is a single ledger entry on a wallet
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	WalletID    uuid.UUID       `json:"wallet_id"`
	CategoryID  *uuid.UUID      `json:"category_id,omitempty"` // Nullable, transfers and settlements have none
	Amount      decimal.Decimal `json:"amount"`                // Always a positive magnitude, Kind carries the sign
	Kind        TransactionKind `json:"kind"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description,omitempty"`
	TagIDs      []uuid.UUID     `json:"tag_ids,omitempty"`
	Reference   uuid.UUID       `json:"reference,omitempty"` // Links rows written by the same mutation
	CreatedAt   time.Time       `json:"created_at"`
}

// Signed returns the amount with the sign implied by Kind
func (t Transaction) Signed() decimal.Decimal {
	if t.Kind == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// InCategory reports whether the transaction is tagged with the given category
func (t Transaction) InCategory(id uuid.UUID) bool {
	return t.CategoryID != nil && *t.CategoryID == id
}

// Tag is a free-form label attached to transactions
type Tag struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Color  string    `json:"color,omitempty"`
}

// Category classifies income or expense transactions
type Category struct {
	ID     uuid.UUID       `json:"id"`
	UserID uuid.UUID       `json:"user_id"`
	Name   string          `json:"name"`
	Kind   TransactionKind `json:"kind"`
	Icon   string          `json:"icon,omitempty"`
}
