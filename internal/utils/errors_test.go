package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/ashmitsharp/finlens-api/internal/services"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", services.ErrSameWallet, fiber.StatusBadRequest, "SAME_WALLET"},
		{"not found", services.ErrDebtNotFound, fiber.StatusNotFound, "DEBT_NOT_FOUND"},
		{"state", services.ErrInsufficientBalance, fiber.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"},
		{"wrapped conflict", fmt.Errorf("transfer: %w", services.ErrConcurrentUpdate), fiber.StatusConflict, "CONCURRENT_UPDATE"},
		{"infrastructure", errors.New("connection refused"), fiber.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromDomainError(tt.err)
			assert.Equal(t, tt.status, got.StatusCode)
			assert.Equal(t, tt.code, got.Code)
		})
	}
}

func serveError(t *testing.T, handler fiber.ErrorHandler, err error) (int, map[string]any) {
	t.Helper()
	app := fiber.New(fiber.Config{ErrorHandler: handler})
	app.Get("/", func(c fiber.Ctx) error { return err })

	resp, rerr := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, rerr)
	defer resp.Body.Close()

	body, rerr := io.ReadAll(resp.Body)
	require.NoError(t, rerr)
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return resp.StatusCode, out
}

func TestErrorHandler(t *testing.T) {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("domain error", func(t *testing.T) {
		status, body := serveError(t, NewErrorHandler(quiet, false), services.ErrInsufficientBalance)
		assert.Equal(t, fiber.StatusUnprocessableEntity, status)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "INSUFFICIENT_BALANCE", body["code"])
		assert.Equal(t, "insufficient balance", body["error"])
	})

	t.Run("api error", func(t *testing.T) {
		status, body := serveError(t, NewErrorHandler(quiet, false), NewBadRequestError("Invalid request body", "amount"))
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "amount", body["details"])
	})

	t.Run("fiber error", func(t *testing.T) {
		status, body := serveError(t, NewErrorHandler(quiet, false), fiber.ErrMethodNotAllowed)
		assert.Equal(t, fiber.StatusMethodNotAllowed, status)
		assert.Equal(t, "HTTP_ERROR", body["code"])
	})

	t.Run("internal details hidden", func(t *testing.T) {
		status, body := serveError(t, NewErrorHandler(quiet, false), errors.New("pq: relation does not exist"))
		assert.Equal(t, fiber.StatusInternalServerError, status)
		assert.Equal(t, "An internal error occurred", body["error"])
		assert.NotContains(t, body, "details")
	})

	t.Run("internal details exposed in development", func(t *testing.T) {
		_, body := serveError(t, NewErrorHandler(quiet, true), errors.New("pq: relation does not exist"))
		assert.Equal(t, "pq: relation does not exist", body["details"])
	})
}
