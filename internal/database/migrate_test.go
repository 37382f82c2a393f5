package database

import (
	"io"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	src, err := iofs.New(migrationsFS, "migrations")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, _, err := src.ReadUp(first)
	require.NoError(t, err)
	defer up.Close()
	body, err := io.ReadAll(up)
	require.NoError(t, err)

	for _, table := range []string{"users", "wallets", "transactions", "budgets", "goals", "debts", "investments", "investment_transactions", "transaction_tags"} {
		assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS "+table+" (", "missing table %s", table)
	}

	down, _, err := src.ReadDown(first)
	require.NoError(t, err)
	defer down.Close()
	downBody, err := io.ReadAll(down)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(downBody), "DROP TABLE"))
}

func TestConnect_EmptyURL(t *testing.T) {
	_, err := Connect(t.Context(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database url is empty")
}
