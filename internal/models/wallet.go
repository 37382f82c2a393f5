package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletKind is the kind of money store a wallet represents
type WalletKind string

const (
	WalletCash           WalletKind = "cash"
	WalletBank           WalletKind = "bank"
	WalletEWallet        WalletKind = "e-wallet"
	WalletInvestmentCash WalletKind = "investment-cash"
	WalletCredit         WalletKind = "credit"
)

// Wallet is a named store of money with a running balance
type Wallet struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Name      string          `json:"name"`
	Kind      WalletKind      `json:"kind"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Liquid reports whether the wallet balance counts as available funds.
// Credit lines are borrowed money and never count.
func (w Wallet) Liquid() bool {
	return w.Kind != WalletCredit
}

// User maps a Clerk subject to the local user id
type User struct {
	ID          uuid.UUID `json:"id"`
	ClerkUserID string    `json:"clerk_user_id"`
	Email       string    `json:"email"`
	FullName    *string   `json:"full_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
