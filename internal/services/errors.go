package services

import (
	"errors"
)

// ErrorKind groups domain failures by how a caller should react to them
type ErrorKind int

const (
	// KindInfrastructure covers everything that is not a known domain error
	KindInfrastructure ErrorKind = iota
	KindValidation
	// KindNotFound is the state error for a missing entity
	KindNotFound
	KindState
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindState:
		return "state"
	case KindConflict:
		return "conflict"
	default:
		return "infrastructure"
	}
}

// Error is a user-facing domain failure. Message is safe to show to the user.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation errors
var (
	ErrSameWallet          = newError(KindValidation, "SAME_WALLET", "source and destination wallet must be different")
	ErrNonPositiveAmount   = newError(KindValidation, "NON_POSITIVE_AMOUNT", "amount must be greater than zero")
	ErrNonPositiveQuantity = newError(KindValidation, "NON_POSITIVE_QUANTITY", "quantity must be greater than zero")
	ErrWalletRequired      = newError(KindValidation, "WALLET_REQUIRED", "a wallet must be selected")
	ErrInvalidOffset       = newError(KindValidation, "INVALID_OFFSET", "comparison offset must be between 1 and 12 months")
	ErrInvalidPeriod       = newError(KindValidation, "INVALID_PERIOD", "month must be between 1 and 12")
	ErrInvalidSplitRatio   = newError(KindValidation, "INVALID_SPLIT_RATIO", "split ratio must be greater than zero")
	ErrInvalidInvestmentTx = newError(KindValidation, "INVALID_INVESTMENT_TRANSACTION", "investment transaction kind must be buy, sell, dividend or stock_split")
)

// Not found errors
var (
	ErrWalletNotFound     = newError(KindNotFound, "WALLET_NOT_FOUND", "wallet not found")
	ErrDebtNotFound       = newError(KindNotFound, "DEBT_NOT_FOUND", "debt not found")
	ErrGoalNotFound       = newError(KindNotFound, "GOAL_NOT_FOUND", "goal not found")
	ErrBudgetNotFound     = newError(KindNotFound, "BUDGET_NOT_FOUND", "budget not found")
	ErrInvestmentNotFound = newError(KindNotFound, "INVESTMENT_NOT_FOUND", "investment not found")
)

// State errors
var (
	ErrInsufficientBalance          = newError(KindState, "INSUFFICIENT_BALANCE", "insufficient balance")
	ErrCurrencyMismatch             = newError(KindState, "CURRENCY_MISMATCH", "wallets use different currencies")
	ErrDebtAlreadySettled           = newError(KindState, "DEBT_ALREADY_SETTLED", "debt is already settled")
	ErrSettlementExceedsOutstanding = newError(KindState, "SETTLEMENT_EXCEEDS_OUTSTANDING", "amount exceeds the outstanding debt")
	ErrGoalNotActive                = newError(KindState, "GOAL_NOT_ACTIVE", "goal is not active")
	ErrInsufficientGoalFunds        = newError(KindState, "INSUFFICIENT_GOAL_FUNDS", "amount exceeds the goal's current amount")
	ErrExceedsBudgetLeftover        = newError(KindState, "EXCEEDS_BUDGET_LEFTOVER", "amount exceeds the budget leftover for this period")
	ErrInsufficientQuantity         = newError(KindState, "INSUFFICIENT_QUANTITY", "quantity exceeds the holding")
	ErrInvestmentNotActive          = newError(KindState, "INVESTMENT_NOT_ACTIVE", "investment is already sold")
)

// Conflict errors
var (
	ErrConcurrentUpdate = newError(KindConflict, "CONCURRENT_UPDATE", "the data changed while saving, please try again")
)

// Classify returns the kind of the first domain Error in err's chain
func Classify(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInfrastructure
}

// AsDomainError returns the domain Error in err's chain, if any
func AsDomainError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
