// Package backend opens the ledger store and event publisher a process
// runs against
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashmitsharp/finlens-api/internal/config"
	"github.com/ashmitsharp/finlens-api/internal/database"
	"github.com/ashmitsharp/finlens-api/internal/events"
	"github.com/ashmitsharp/finlens-api/internal/ledger"
	"github.com/ashmitsharp/finlens-api/internal/logging"
	"github.com/ashmitsharp/finlens-api/internal/services"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Result is an opened backend. Pool is nil for the memory backend and
// Publisher is nil when no broker is configured.
type Result struct {
	Store     ledger.Store
	Pool      *pgxpool.Pool
	Publisher services.EventPublisher
	Cleanup   func()
}

// Options controls what Open sets up besides the store
type Options struct {
	Migrate bool // apply pending migrations on the postgres backend
	Events  bool // connect the AMQP publisher when AMQP_URL is set
}

// Open creates the store selected by cfg.DataBackend
func Open(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	amqpLog := logging.WithComponent(logger, logging.ComponentAMQP)
	logger = logging.WithComponent(logger, logging.ComponentStorage)

	var res *Result
	var err error
	switch cfg.DataBackend {
	case config.BackendPostgres:
		res, err = openPostgres(ctx, cfg, opts, logger)
	case config.BackendMemory:
		res, err = openMemory(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported data backend: %s", cfg.DataBackend)
	}
	if err != nil {
		return nil, err
	}

	if opts.Events && cfg.AMQPURL != "" {
		client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, events.WithClientLogger(amqpLog))
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without ledger events", "error", err)
		} else {
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange)
			res.Publisher = client
			storeCleanup := res.Cleanup
			res.Cleanup = func() {
				if err := client.Close(); err != nil {
					logger.Warn("Failed to close AMQP client", "error", err)
				}
				storeCleanup()
			}
		}
	}
	return res, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger) (*Result, error) {
	pool, err := database.Connect(ctx, database.Options{
		URL:               cfg.DatabaseURL,
		MaxConnections:    cfg.DBMaxConnections,
		ConnectionTimeout: cfg.DBConnectionTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if opts.Migrate {
		if err := database.RunMigrations(pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	logger.Info("Initialized postgres backend", "max_connections", cfg.DBMaxConnections, "migrated", opts.Migrate)
	return &Result{
		Store:   ledger.NewPostgresStore(pool),
		Pool:    pool,
		Cleanup: pool.Close,
	}, nil
}

func openMemory(cfg *config.Config, logger *slog.Logger) (*Result, error) {
	store := ledger.NewMemoryStore()
	if cfg.MemorySeedFile != "" {
		seeded, err := ledger.NewMemoryStoreFromFile(cfg.MemorySeedFile)
		if err != nil {
			return nil, err
		}
		store = seeded
	}

	logger.Info("Initialized memory backend", "seed_file", cfg.MemorySeedFile)
	return &Result{Store: store, Cleanup: func() {}}, nil
}
