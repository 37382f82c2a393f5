package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ashmitsharp/finlens-api/internal/backend"
	"github.com/ashmitsharp/finlens-api/internal/config"
	"github.com/ashmitsharp/finlens-api/internal/logging"
	"github.com/ashmitsharp/finlens-api/internal/services"
	"github.com/google/subcommands"
	"github.com/google/uuid"
)

// session is an opened backend plus the user a report runs for
type session struct {
	reports *services.ReportService
	userID  uuid.UUID
	cleanup func()
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(logging.Config{Level: cfg.LogLevel, Environment: cfg.Environment, Output: os.Stderr})
}

// openSession loads the configuration and resolves clerkUserID
func openSession(ctx context.Context, clerkUserID string) (*session, error) {
	if clerkUserID == "" {
		return nil, fmt.Errorf("-user is required")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	be, err := backend.Open(ctx, cfg, backend.Options{}, logger)
	if err != nil {
		return nil, err
	}

	user, err := be.Store.UserByClerkID(ctx, clerkUserID)
	if err != nil {
		be.Cleanup()
		return nil, fmt.Errorf("find user %s: %w", clerkUserID, err)
	}

	reports := services.NewReportService(be.Store,
		services.WithLocation(cfg.Location()),
		services.WithReportLogger(logging.WithComponent(logger, logging.ComponentReports)))
	return &session{reports: reports, userID: user.ID, cleanup: be.Cleanup}, nil
}

func writeJSON(w io.Writer, v any) subcommands.ExitStatus {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: encode output: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
