package handlers

import (
	"github.com/ashmitsharp/finlens-api/internal/ledger"
	"github.com/ashmitsharp/finlens-api/internal/utils"
	"github.com/gofiber/fiber/v3"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// TransactionHandler handles transaction-related requests
type TransactionHandler struct {
	users   UserLookup
	reports Reports
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(users UserLookup, reports Reports) *TransactionHandler {
	return &TransactionHandler{users: users, reports: reports}
}

// GetTransactions returns transactions newest first
// GET /v1/transactions?from=2024-01-01&to=2024-01-31&limit=50&offset=0
func (h *TransactionHandler) GetTransactions(c fiber.Ctx) error {
	userID, err := currentUserID(c, h.users)
	if err != nil {
		return err
	}

	from, err := queryDate(c, "from")
	if err != nil {
		return err
	}
	to, err := queryDate(c, "to")
	if err != nil {
		return err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "to must not be before from")
	}

	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		offset = 0
	}

	page, err := h.reports.ListTransactions(c.Context(), userID, ledger.DateRange{From: from, To: to}, limit, offset)
	if err != nil {
		return err
	}
	return utils.PaginatedResponse(c, page.Transactions, page.Limit, page.Offset, page.Total)
}
