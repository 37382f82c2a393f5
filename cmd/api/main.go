package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashmitsharp/finlens-api/internal/backend"
	"github.com/ashmitsharp/finlens-api/internal/config"
	"github.com/ashmitsharp/finlens-api/internal/handlers"
	"github.com/ashmitsharp/finlens-api/internal/ledger"
	"github.com/ashmitsharp/finlens-api/internal/logging"
	"github.com/ashmitsharp/finlens-api/internal/middleware"
	"github.com/ashmitsharp/finlens-api/internal/services"
	"github.com/ashmitsharp/finlens-api/internal/utils"
	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Environment: cfg.Environment})
	slog.SetDefault(logger)
	appLog := logging.WithComponent(logger, logging.ComponentApp)
	if envErr != nil {
		appLog.Info(".env file not found, using system environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, err := backend.Open(ctx, cfg, backend.Options{Migrate: true, Events: true}, logger)
	if err != nil {
		appLog.Error("Failed to open data backend", "backend", cfg.DataBackend, "error", err)
		os.Exit(1)
	}
	defer be.Cleanup()

	ledgerOpts := []services.LedgerOption{
		services.WithMaxRetries(cfg.MutationMaxRetries),
		services.WithLedgerLocation(cfg.Location()),
		services.WithLogger(logging.WithComponent(logger, logging.ComponentLedger)),
	}
	if be.Publisher != nil {
		ledgerOpts = append(ledgerOpts, services.WithPublisher(be.Publisher))
	}
	ledgerService := services.NewLedgerService(be.Store, ledgerOpts...)

	reportsLog := logging.WithComponent(logger, logging.ComponentReports)
	reportService := services.NewReportService(
		ledger.FailOpen(be.Store, reportsLog),
		services.WithLocation(cfg.Location()),
		services.WithReportLogger(reportsLog),
	)

	app := fiber.New(fiber.Config{
		AppName:      "finlens API v1.0",
		ErrorHandler: utils.NewErrorHandler(logging.WithComponent(logger, logging.ComponentHTTP), !cfg.IsProduction()),
	})

	// Apply global middleware
	app.Use(recoverer.New())
	app.Use(requestid.New())
	if cfg.RequestLogging {
		app.Use(middleware.RequestLogger(logging.WithComponent(logger, logging.ComponentHTTP)))
	}
	app.Use(middleware.CORS(cfg.AllowedOrigins))

	auth := middleware.ClerkAuth(middleware.ClerkVerifier(cfg.ClerkSecretKey))
	handlers.RegisterRoutes(app, handlers.Handlers{
		Users:        handlers.NewUsersHandler(be.Store),
		Reports:      handlers.NewReportsHandler(be.Store, reportService),
		Transactions: handlers.NewTransactionHandler(be.Store, reportService),
		Ledger:       handlers.NewLedgerHandler(be.Store, ledgerService),
	}, auth)

	go func() {
		<-ctx.Done()
		appLog.Info("Shutdown signal received", "timeout", cfg.ShutdownTimeout.String())
		if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
			appLog.Error("Server shutdown error", "error", err)
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	appLog.Info("finlens API starting",
		"addr", addr,
		"environment", cfg.Environment,
		"backend", cfg.DataBackend,
		"events_enabled", be.Publisher != nil)
	if err := app.Listen(addr); err != nil {
		appLog.Error("Server failed", "error", err)
		be.Cleanup()
		os.Exit(1)
	}
	appLog.Info("Server stopped")
}
