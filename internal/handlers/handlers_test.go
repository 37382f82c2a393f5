package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/ledger"
	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/ashmitsharp/finlens-api/internal/services"
	"github.com/ashmitsharp/finlens-api/internal/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClerkID = "user_2abc"

var testNow = time.Date(2024, 3, 20, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	app     *fiber.App
	store   *ledger.MemoryStore
	userID  uuid.UUID
	main    models.Wallet
	savings models.Wallet
	goal    models.Goal
}

// fakeAuth trusts the X-Test-User header in place of a Clerk token
func fakeAuth(c fiber.Ctx) error {
	if id := c.Get("X-Test-User"); id != "" {
		c.Locals("clerk_user_id", id)
	}
	return c.Next()
}

func newApp(users ledger.Users, reports Reports, ledgerSvc Ledger) *fiber.App {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := fiber.New(fiber.Config{ErrorHandler: utils.NewErrorHandler(logger, false)})

	reportsHandler := NewReportsHandler(users, reports)
	reportsHandler.now = func() time.Time { return testNow }

	RegisterRoutes(app, Handlers{
		Users:        NewUsersHandler(users),
		Reports:      reportsHandler,
		Transactions: NewTransactionHandler(users, reports),
		Ledger:       NewLedgerHandler(users, ledgerSvc),
	}, fakeAuth)
	return app
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	userID := uuid.New()
	env := testEnv{
		store:   ledger.NewMemoryStore(),
		userID:  userID,
		main:    models.Wallet{ID: uuid.New(), UserID: userID, Name: "Main", Kind: models.WalletBank, Balance: decimal.RequireFromString("1000"), Currency: "IDR", Version: 1},
		savings: models.Wallet{ID: uuid.New(), UserID: userID, Name: "Savings", Kind: models.WalletBank, Balance: decimal.Zero, Currency: "IDR", Version: 1},
		goal:    models.Goal{ID: uuid.New(), UserID: userID, Name: "Laptop", TargetAmount: decimal.RequireFromString("500"), CurrentAmount: decimal.Zero, Status: models.GoalActive, Version: 1},
	}

	txn := func(amount string, date time.Time) models.Transaction {
		return models.Transaction{ID: uuid.New(), UserID: userID, WalletID: env.main.ID, Amount: decimal.RequireFromString(amount), Kind: models.Expense, Date: date}
	}
	env.store.Load(ledger.Snapshot{
		Users:   []models.User{{ID: userID, ClerkUserID: testClerkID, Email: "budi@example.com"}},
		Wallets: []models.Wallet{env.main, env.savings},
		Goals:   []models.Goal{env.goal},
		Transactions: []models.Transaction{
			txn("10", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
			txn("20", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)),
			txn("30", time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)),
		},
	})

	clock := func() time.Time { return testNow }
	reports := services.NewReportService(env.store, services.WithReportClock(clock))
	ledgerSvc := services.NewLedgerService(env.store, services.WithClock(clock))
	env.app = newApp(env.store, reports, ledgerSvc)
	return env
}

// do sends a request as clerkID and decodes the JSON answer
func do(t *testing.T, app *fiber.App, method, path, clerkID string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(b)
		}
		reader = bytes.NewBufferString(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if clerkID != "" {
		req.Header.Set("X-Test-User", clerkID)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "data should be an object: %v", body)
	return d
}

func TestHealthAndPing(t *testing.T) {
	env := newTestEnv(t)

	status, body := do(t, env.app, "GET", "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	status, body = do(t, env.app, "GET", "/v1/ping", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "pong", body["message"])
}

func TestCurrentUserResolution(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		clerkID string
		status  int
		code    string
	}{
		{"not authenticated", "", fiber.StatusUnauthorized, "UNAUTHORIZED"},
		{"unknown user", "user_ghost", fiber.StatusNotFound, "NOT_FOUND"},
		{"known user", testClerkID, fiber.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, env.app, "GET", "/v1/net-worth", tt.clerkID, nil)
			assert.Equal(t, tt.status, status)
			if tt.code != "" {
				assert.Equal(t, false, body["success"])
				assert.Equal(t, tt.code, body["code"])
			}
		})
	}
}

func TestReportRoutes(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"dashboard", "/v1/dashboard", fiber.StatusOK, ""},
		{"monthly defaults to the current month", "/v1/reports/monthly", fiber.StatusOK, ""},
		{"monthly out of range", "/v1/reports/monthly?year=2024&month=13", fiber.StatusBadRequest, "INVALID_PERIOD"},
		{"monthly with a bad year", "/v1/reports/monthly?year=abc", fiber.StatusBadRequest, "BAD_REQUEST"},
		{"yearly", "/v1/reports/yearly?year=2024", fiber.StatusOK, ""},
		{"comparison", "/v1/reports/comparison?offset=2", fiber.StatusOK, ""},
		{"comparison offset too far", "/v1/reports/comparison?offset=13", fiber.StatusBadRequest, "INVALID_OFFSET"},
		{"budgets", "/v1/budgets", fiber.StatusOK, ""},
		{"budget alerts", "/v1/budgets/alerts", fiber.StatusOK, ""},
		{"health score", "/v1/health-score", fiber.StatusOK, ""},
		{"overdue debts", "/v1/debts/overdue", fiber.StatusOK, ""},
		{"goals", "/v1/goals", fiber.StatusOK, ""},
		{"investment summary", "/v1/investments/summary", fiber.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, env.app, "GET", tt.path, testClerkID, nil)
			assert.Equal(t, tt.status, status)
			if tt.code != "" {
				assert.Equal(t, tt.code, body["code"])
				return
			}
			assert.Equal(t, true, body["success"])
		})
	}
}

func TestGetMonthlyReport_UsesCurrentMonth(t *testing.T) {
	env := newTestEnv(t)

	status, body := do(t, env.app, "GET", "/v1/reports/monthly", testClerkID, nil)
	require.Equal(t, fiber.StatusOK, status)

	report := data(t, body)
	assert.Equal(t, float64(2024), report["year"])
	assert.Equal(t, float64(3), report["month"])
	assert.Equal(t, "60", report["total_expense"])
}

func TestGetTransactions(t *testing.T) {
	env := newTestEnv(t)

	t.Run("paginates newest first", func(t *testing.T) {
		status, body := do(t, env.app, "GET", "/v1/transactions?limit=2", testClerkID, nil)
		require.Equal(t, fiber.StatusOK, status)

		txns, ok := body["data"].([]any)
		require.True(t, ok)
		require.Len(t, txns, 2)
		assert.Equal(t, "30", txns[0].(map[string]any)["amount"])

		pagination := body["pagination"].(map[string]any)
		assert.Equal(t, float64(3), pagination["total"])
		assert.Equal(t, float64(2), pagination["pages"])
	})

	t.Run("filters by date", func(t *testing.T) {
		status, body := do(t, env.app, "GET", "/v1/transactions?from=2024-03-02&to=2024-03-06", testClerkID, nil)
		require.Equal(t, fiber.StatusOK, status)
		assert.Len(t, body["data"], 1)
	})

	t.Run("oversized limit falls back to the default", func(t *testing.T) {
		status, body := do(t, env.app, "GET", "/v1/transactions?limit=500", testClerkID, nil)
		require.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, float64(defaultPageSize), body["pagination"].(map[string]any)["limit"])
	})

	t.Run("bad date", func(t *testing.T) {
		status, _ := do(t, env.app, "GET", "/v1/transactions?from=03/01/2024", testClerkID, nil)
		assert.Equal(t, fiber.StatusBadRequest, status)
	})

	t.Run("inverted range", func(t *testing.T) {
		status, _ := do(t, env.app, "GET", "/v1/transactions?from=2024-03-10&to=2024-03-01", testClerkID, nil)
		assert.Equal(t, fiber.StatusBadRequest, status)
	})
}

func TestTransfer(t *testing.T) {
	tests := []struct {
		name   string
		body   func(env testEnv) any
		status int
		code   string
	}{
		{
			name:   "moves money",
			body:   func(env testEnv) any { return TransferRequest{FromWalletID: env.main.ID, ToWalletID: env.savings.ID, Amount: decimal.RequireFromString("600")} },
			status: fiber.StatusOK,
		},
		{
			name:   "insufficient balance",
			body:   func(env testEnv) any { return TransferRequest{FromWalletID: env.main.ID, ToWalletID: env.savings.ID, Amount: decimal.RequireFromString("1000.01")} },
			status: fiber.StatusUnprocessableEntity,
			code:   "INSUFFICIENT_BALANCE",
		},
		{
			name:   "same wallet",
			body:   func(env testEnv) any { return TransferRequest{FromWalletID: env.main.ID, ToWalletID: env.main.ID, Amount: decimal.RequireFromString("1")} },
			status: fiber.StatusBadRequest,
			code:   "SAME_WALLET",
		},
		{
			name:   "unknown wallet",
			body:   func(env testEnv) any { return TransferRequest{FromWalletID: uuid.New(), ToWalletID: env.main.ID, Amount: decimal.RequireFromString("1")} },
			status: fiber.StatusNotFound,
			code:   "WALLET_NOT_FOUND",
		},
		{
			name:   "malformed body",
			body:   func(testEnv) any { return `{"amount":` },
			status: fiber.StatusBadRequest,
			code:   "BAD_REQUEST",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			status, body := do(t, env.app, "POST", "/v1/wallets/transfer", testClerkID, tt.body(env))
			require.Equal(t, tt.status, status, "body: %v", body)

			if tt.code != "" {
				assert.Equal(t, false, body["success"])
				assert.Equal(t, tt.code, body["code"])
				assert.NotEmpty(t, body["error"])
				return
			}
			res := data(t, body)
			assert.Equal(t, "400", res["from_wallet"].(map[string]any)["balance"])
			assert.Equal(t, "600", res["to_wallet"].(map[string]any)["balance"])

			from, err := env.store.Wallet(context.Background(), env.userID, env.main.ID)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString("400").Equal(from.Balance))
		})
	}
}

func TestGoalMutations(t *testing.T) {
	env := newTestEnv(t)
	base := "/v1/goals/" + env.goal.ID.String()

	status, body := do(t, env.app, "POST", base+"/contribute", testClerkID, `{"amount": "500"}`)
	require.Equal(t, fiber.StatusOK, status, "body: %v", body)
	goal := data(t, body)["goal"].(map[string]any)
	assert.Equal(t, string(models.GoalCompleted), goal["status"])

	status, body = do(t, env.app, "POST", base+"/withdraw", testClerkID, `{"amount": 100}`)
	require.Equal(t, fiber.StatusOK, status, "body: %v", body)
	goal = data(t, body)["goal"].(map[string]any)
	assert.Equal(t, string(models.GoalActive), goal["status"])

	status, body = do(t, env.app, "POST", base+"/withdraw", testClerkID, `{"amount": 1000}`)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, false, body["success"])

	status, body = do(t, env.app, "POST", "/v1/goals/not-a-uuid/contribute", testClerkID, `{"amount": 1}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", body["code"])
}

func TestMutationRoutes_UnknownEntities(t *testing.T) {
	env := newTestEnv(t)
	missing := uuid.New().String()

	tests := []struct {
		path string
		body string
		code string
	}{
		{"/v1/debts/" + missing + "/settle", `{"wallet_id":"` + env.main.ID.String() + `","amount":"1"}`, "DEBT_NOT_FOUND"},
		{"/v1/debts/" + missing + "/mark-paid", `{"wallet_id":"` + env.main.ID.String() + `"}`, "DEBT_NOT_FOUND"},
		{"/v1/budgets/" + missing + "/reallocate", `{"goal_id":"` + env.goal.ID.String() + `","wallet_id":"` + env.main.ID.String() + `","amount":"1"}`, "BUDGET_NOT_FOUND"},
		{"/v1/investments/" + missing + "/transactions", `{"kind":"dividend","amount":"5"}`, "INVESTMENT_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, body := do(t, env.app, "POST", tt.path, testClerkID, tt.body)
			assert.Equal(t, fiber.StatusNotFound, status)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestRecordInvestmentTransaction_BadDate(t *testing.T) {
	env := newTestEnv(t)
	path := "/v1/investments/" + uuid.New().String() + "/transactions"

	status, body := do(t, env.app, "POST", path, testClerkID, `{"kind":"dividend","amount":"5","date":"20/03/2024"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", body["code"])
}

func TestUsersWebhooks(t *testing.T) {
	env := newTestEnv(t)

	status, body := do(t, env.app, "POST", "/v1/internal/users", "", CreateUserRequest{ClerkUserID: "user_new", Email: "new@example.com"})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "user_new", body["clerk_user_id"])

	status, _ = do(t, env.app, "POST", "/v1/internal/users", "", CreateUserRequest{ClerkUserID: "user_new"})
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body = do(t, env.app, "PUT", "/v1/internal/users/user_new", "", UpdateUserRequest{Email: "renamed@example.com"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "renamed@example.com", body["email"])

	status, body = do(t, env.app, "PUT", "/v1/internal/users/user_missing", "", UpdateUserRequest{Email: "x@example.com"})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "User not found", body["error"])

	status, body = do(t, env.app, "GET", "/v1/user", "user_new", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "renamed@example.com", body["email"])
}

// MockReports is a Reports whose calls can be overridden per test
type MockReports struct {
	Reports
	GetNetWorthFunc func(ctx context.Context, userID uuid.UUID) (services.NetWorthSummary, error)
}

func (m *MockReports) GetNetWorth(ctx context.Context, userID uuid.UUID) (services.NetWorthSummary, error) {
	if m.GetNetWorthFunc != nil {
		return m.GetNetWorthFunc(ctx, userID)
	}
	return services.NetWorthSummary{}, nil
}

func TestReportRoutes_InternalErrorHidesDetails(t *testing.T) {
	env := newTestEnv(t)
	mock := &MockReports{
		GetNetWorthFunc: func(context.Context, uuid.UUID) (services.NetWorthSummary, error) {
			return services.NetWorthSummary{}, errors.New("pq: connection refused")
		},
	}
	app := newApp(env.store, mock, nil)

	status, body := do(t, app, "GET", "/v1/net-worth", testClerkID, nil)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
	assert.Equal(t, "An internal error occurred", body["error"])
	assert.NotContains(t, body, "details")
}
