package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/events"
	"github.com/ashmitsharp/finlens-api/internal/ledger"
	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvestmentTxInput describes an event on a holding. Quantity and Price are
// used by buy and sell, Amount by dividend and Ratio by stock_split.
// WalletID, when set, moves the cash through that wallet.
type InvestmentTxInput struct {
	Kind     models.InvestmentTxKind
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Amount   decimal.Decimal
	Ratio    decimal.Decimal
	WalletID *uuid.UUID
	Date     time.Time
}

func (in InvestmentTxInput) validate() error {
	switch in.Kind {
	case models.InvestmentBuy, models.InvestmentSell:
		if !in.Quantity.IsPositive() {
			return ErrNonPositiveQuantity
		}
		if !in.Price.IsPositive() {
			return ErrNonPositiveAmount
		}
	case models.InvestmentDividend:
		if !in.Amount.IsPositive() {
			return ErrNonPositiveAmount
		}
	case models.InvestmentStockSplit:
		if !in.Ratio.IsPositive() {
			return ErrInvalidSplitRatio
		}
	default:
		return ErrInvalidInvestmentTx
	}
	return nil
}

// InvestmentResult holds the rows an investment transaction wrote
type InvestmentResult struct {
	Investment      HoldingPerformance           `json:"investment"`
	Transaction     models.InvestmentTransaction `json:"transaction"`
	Wallet          *models.Wallet               `json:"wallet,omitempty"`
	CashTransaction *models.Transaction          `json:"cash_transaction,omitempty"`
}

// applyInvestmentTx returns the holding after in and the cash that moved:
// negative when paid out of the wallet, positive when received
func applyInvestmentTx(inv models.Investment, in InvestmentTxInput) (models.Investment, decimal.Decimal, error) {
	cash := decimal.Zero

	switch in.Kind {
	case models.InvestmentBuy:
		cost := in.Quantity.Mul(in.Price)
		qty := inv.Quantity.Add(in.Quantity)
		if inv.Status == models.InvestmentSold || !inv.Quantity.IsPositive() {
			inv.AvgBuyPrice = in.Price
		} else {
			inv.AvgBuyPrice = inv.Invested().Add(cost).Div(qty)
		}
		inv.Quantity = qty
		inv.CurrentPrice = in.Price
		inv.Status = models.InvestmentActive
		cash = cost.Neg()

	case models.InvestmentSell:
		if inv.Status != models.InvestmentActive {
			return inv, cash, ErrInvestmentNotActive
		}
		if in.Quantity.GreaterThan(inv.Quantity) {
			return inv, cash, ErrInsufficientQuantity
		}
		inv.Quantity = inv.Quantity.Sub(in.Quantity)
		inv.CurrentPrice = in.Price
		if inv.Quantity.IsZero() {
			inv.Status = models.InvestmentSold
		}
		cash = in.Quantity.Mul(in.Price)

	case models.InvestmentDividend:
		if inv.Status != models.InvestmentActive {
			return inv, cash, ErrInvestmentNotActive
		}
		cash = in.Amount

	case models.InvestmentStockSplit:
		if inv.Status != models.InvestmentActive {
			return inv, cash, ErrInvestmentNotActive
		}
		inv.Quantity = inv.Quantity.Mul(in.Ratio)
		inv.AvgBuyPrice = inv.AvgBuyPrice.Div(in.Ratio)
		inv.CurrentPrice = inv.CurrentPrice.Div(in.Ratio)
	}
	return inv, cash, nil
}

// RecordInvestmentTransaction applies a buy, sell, dividend or split to a
// holding and records it. Buys take the average price weighted by quantity.
func (s *LedgerService) RecordInvestmentTransaction(ctx context.Context, userID, investmentID uuid.UUID, in InvestmentTxInput) (InvestmentResult, error) {
	if err := in.validate(); err != nil {
		return InvestmentResult{}, err
	}
	date := in.Date
	if date.IsZero() {
		date = s.today()
	}
	date = ledger.Day(date)

	var res InvestmentResult
	var cash decimal.Decimal
	err := s.mutate(ctx, "investment_transaction", userID, func(tx ledger.Tx) error {
		res = InvestmentResult{}

		inv, err := tx.Investment(ctx, userID, investmentID)
		if err != nil {
			return mapNotFound(err, ErrInvestmentNotFound)
		}
		if inv, cash, err = applyInvestmentTx(inv, in); err != nil {
			return err
		}

		if in.WalletID != nil && !cash.IsZero() {
			wallet, err := tx.Wallet(ctx, userID, *in.WalletID)
			if err != nil {
				return mapNotFound(err, ErrWalletNotFound)
			}
			if cash.IsNegative() && wallet.Balance.LessThan(cash.Abs()) {
				return ErrInsufficientBalance
			}

			label := inv.Ticker
			if label == "" {
				label = inv.Name
			}
			cashTxn := models.Transaction{
				UserID:    userID,
				WalletID:  wallet.ID,
				Amount:    cash.Abs(),
				Kind:      models.Income,
				Date:      date,
				Reference: uuid.New(),
			}
			switch in.Kind {
			case models.InvestmentBuy:
				cashTxn.Kind = models.Expense
				cashTxn.Description = fmt.Sprintf("Buy %s %s", in.Quantity.String(), label)
			case models.InvestmentSell:
				cashTxn.Description = fmt.Sprintf("Sell %s %s", in.Quantity.String(), label)
			default:
				cashTxn.Description = fmt.Sprintf("Dividend from %s", label)
			}

			wallet.Balance = wallet.Balance.Add(cash)
			if wallet, err = tx.UpdateWallet(ctx, wallet); err != nil {
				return err
			}
			if cashTxn, err = tx.InsertTransaction(ctx, cashTxn); err != nil {
				return err
			}
			res.Wallet = &wallet
			res.CashTransaction = &cashTxn
		}

		if inv, err = tx.UpdateInvestment(ctx, inv); err != nil {
			return err
		}
		record, err := tx.InsertInvestmentTransaction(ctx, models.InvestmentTransaction{
			UserID:       userID,
			InvestmentID: inv.ID,
			Kind:         in.Kind,
			Quantity:     in.Quantity,
			Price:        in.Price,
			Amount:       cash.Abs(),
			Ratio:        in.Ratio,
			WalletID:     in.WalletID,
			Date:         date,
		})
		if err != nil {
			return err
		}

		summary := InvestmentGain([]models.Investment{inv})
		if len(summary.Holdings) == 1 {
			res.Investment = summary.Holdings[0]
		} else {
			res.Investment = HoldingPerformance{Investment: inv, Invested: decimal.Zero, CurrentValue: decimal.Zero, Gain: decimal.Zero}
		}
		res.Transaction = record
		return nil
	})
	if err != nil {
		return InvestmentResult{}, err
	}

	s.logger.InfoContext(ctx, "Investment transaction committed",
		"user_id", userID,
		"investment_id", investmentID,
		"kind", in.Kind,
		"cash", cash.String())

	entities := map[string]uuid.UUID{"investment": investmentID}
	if in.WalletID != nil {
		entities["wallet"] = *in.WalletID
	}
	s.publish(ctx, events.NewLedgerEvent(events.InvestmentRecorded, userID, res.Transaction.ID, cash.Abs(), entities))
	return res, nil
}
