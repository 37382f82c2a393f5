package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seed = `{
  "users": [{"id": "6f1c2a52-0d5e-4a51-8d44-5e0d1f4a9b11", "clerk_user_id": "user_cli", "email": "cli@example.com"}],
  "wallets": [{"id": "0b8f5c1e-6a4d-4c1b-9a6e-2f0d3c4b5a61", "user_id": "6f1c2a52-0d5e-4a51-8d44-5e0d1f4a9b11", "name": "Main", "kind": "bank", "balance": "500", "currency": "IDR", "version": 1}],
  "transactions": [
    {"id": "1c2d3e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f", "user_id": "6f1c2a52-0d5e-4a51-8d44-5e0d1f4a9b11", "wallet_id": "0b8f5c1e-6a4d-4c1b-9a6e-2f0d3c4b5a61", "amount": "1000", "kind": "income", "date": "2024-05-01T00:00:00Z"},
    {"id": "2c2d3e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f", "user_id": "6f1c2a52-0d5e-4a51-8d44-5e0d1f4a9b11", "wallet_id": "0b8f5c1e-6a4d-4c1b-9a6e-2f0d3c4b5a61", "amount": "250", "kind": "expense", "date": "2024-05-03T00:00:00Z"}
  ]
}`

func memoryEnv(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("MEMORY_SEED_FILE", path)
	t.Setenv("LOG_LEVEL", "error")
}

// run parses args into cmd's flags and executes it
func run(t *testing.T, cmd subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.SetFlags(fs)
	require.NoError(t, fs.Parse(args))
	return cmd.Execute(context.Background(), fs)
}

func TestReportCmd(t *testing.T) {
	memoryEnv(t)

	t.Run("monthly", func(t *testing.T) {
		var out bytes.Buffer
		status := run(t, &reportCmd{out: &out}, "-user", "user_cli", "-year", "2024", "-month", "5")
		require.Equal(t, subcommands.ExitSuccess, status)

		var report map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &report))
		assert.Equal(t, "1000", report["total_income"])
		assert.Equal(t, "250", report["total_expense"])
	})

	t.Run("yearly", func(t *testing.T) {
		var out bytes.Buffer
		status := run(t, &reportCmd{out: &out}, "-user", "user_cli", "-period", "yearly", "-year", "2024")
		require.Equal(t, subcommands.ExitSuccess, status)
		assert.Contains(t, out.String(), `"monthly_data"`)
	})

	t.Run("invalid month", func(t *testing.T) {
		status := run(t, &reportCmd{out: &bytes.Buffer{}}, "-user", "user_cli", "-month", "13")
		assert.Equal(t, subcommands.ExitFailure, status)
	})

	t.Run("unknown period", func(t *testing.T) {
		status := run(t, &reportCmd{out: &bytes.Buffer{}}, "-user", "user_cli", "-period", "weekly")
		assert.Equal(t, subcommands.ExitUsageError, status)
	})

	t.Run("unknown user", func(t *testing.T) {
		status := run(t, &reportCmd{out: &bytes.Buffer{}}, "-user", "user_nobody")
		assert.Equal(t, subcommands.ExitFailure, status)
	})

	t.Run("missing user", func(t *testing.T) {
		status := run(t, &reportCmd{out: &bytes.Buffer{}})
		assert.Equal(t, subcommands.ExitFailure, status)
	})
}

func TestHealthCmd(t *testing.T) {
	memoryEnv(t)

	var out bytes.Buffer
	status := run(t, &healthCmd{out: &out}, "-user", "user_cli")
	require.Equal(t, subcommands.ExitSuccess, status)

	var health map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &health))
	assert.Contains(t, health, "score")
	assert.Contains(t, health, "status")
}

func TestMigrateCmd_Usage(t *testing.T) {
	memoryEnv(t)

	assert.Equal(t, subcommands.ExitUsageError, run(t, &migrateCmd{}, "sideways"))
	assert.Equal(t, subcommands.ExitUsageError, run(t, &migrateCmd{}, "down", "zero"))
	assert.Equal(t, subcommands.ExitFailure, run(t, &migrateCmd{}, "up"))
}
