package backend

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ashmitsharp/finlens-api/internal/config"
	"github.com/ashmitsharp/finlens-api/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestOpen_Memory(t *testing.T) {
	t.Run("empty store", func(t *testing.T) {
		res, err := Open(context.Background(), &config.Config{DataBackend: config.BackendMemory}, Options{Events: true}, quiet)
		require.NoError(t, err)
		defer res.Cleanup()

		assert.IsType(t, &ledger.MemoryStore{}, res.Store)
		assert.Nil(t, res.Pool)
		assert.Nil(t, res.Publisher)
	})

	t.Run("seeded from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "seed.json")
		seed := `{"users":[{"id":"6f1c2a52-0d5e-4a51-8d44-5e0d1f4a9b11","clerk_user_id":"user_seed","email":"seed@example.com"}]}`
		require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

		res, err := Open(context.Background(), &config.Config{DataBackend: config.BackendMemory, MemorySeedFile: path}, Options{}, quiet)
		require.NoError(t, err)

		user, err := res.Store.UserByClerkID(context.Background(), "user_seed")
		require.NoError(t, err)
		assert.Equal(t, "seed@example.com", user.Email)
	})

	t.Run("missing seed file", func(t *testing.T) {
		_, err := Open(context.Background(), &config.Config{DataBackend: config.BackendMemory, MemorySeedFile: "/nonexistent/seed.json"}, Options{}, quiet)
		assert.Error(t, err)
	})
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{DataBackend: "sheets"}, Options{}, quiet)
	assert.ErrorContains(t, err, "unsupported data backend")

	_, err = Open(context.Background(), &config.Config{DataBackend: config.BackendPostgres}, Options{}, quiet)
	assert.ErrorContains(t, err, "database url is empty")
}
