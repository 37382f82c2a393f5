package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvestmentStatus tells whether a holding is still owned
type InvestmentStatus string

const (
	InvestmentActive InvestmentStatus = "active"
	InvestmentSold   InvestmentStatus = "sold"
)

// Investment is a holding of a single security
type Investment struct {
	ID           uuid.UUID        `json:"id"`
	UserID       uuid.UUID        `json:"user_id"`
	Name         string           `json:"name"`
	Ticker       string           `json:"ticker,omitempty"`
	Quantity     decimal.Decimal  `json:"quantity"`
	AvgBuyPrice  decimal.Decimal  `json:"avg_buy_price"`
	CurrentPrice decimal.Decimal  `json:"current_price"`
	Status       InvestmentStatus `json:"status"`
	Version      int64            `json:"version"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Invested is quantity x average buy price
func (i Investment) Invested() decimal.Decimal {
	return i.Quantity.Mul(i.AvgBuyPrice)
}

// CurrentValue is quantity x current price
func (i Investment) CurrentValue() decimal.Decimal {
	return i.Quantity.Mul(i.CurrentPrice)
}

// InvestmentTxKind is the kind of event applied to a holding
type InvestmentTxKind string

const (
	InvestmentBuy        InvestmentTxKind = "buy"
	InvestmentSell       InvestmentTxKind = "sell"
	InvestmentDividend   InvestmentTxKind = "dividend"
	InvestmentStockSplit InvestmentTxKind = "stock_split"
)

// InvestmentTransaction records an event that changed a holding
type InvestmentTransaction struct {
	ID           uuid.UUID        `json:"id"`
	UserID       uuid.UUID        `json:"user_id"`
	InvestmentID uuid.UUID        `json:"investment_id"`
	Kind         InvestmentTxKind `json:"kind"`
	Quantity     decimal.Decimal  `json:"quantity"`         // buy, sell
	Price        decimal.Decimal  `json:"price"`            // buy, sell
	Amount       decimal.Decimal  `json:"amount"`           // cash moved, dividend total
	Ratio        decimal.Decimal  `json:"ratio"`            // stock_split, new shares per old share
	WalletID     *uuid.UUID       `json:"wallet_id,omitempty"`
	Date         time.Time        `json:"date"`
	CreatedAt    time.Time        `json:"created_at"`
}
