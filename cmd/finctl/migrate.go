package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/ashmitsharp/finlens-api/internal/backend"
	"github.com/ashmitsharp/finlens-api/internal/config"
	"github.com/ashmitsharp/finlens-api/internal/database"
	"github.com/google/subcommands"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply, roll back or inspect schema migrations" }
func (*migrateCmd) Usage() string {
	return `finctl migrate up | down [n] | version

  Runs the embedded migrations against DATABASE_URL.
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (c *migrateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	action := f.Arg(0)

	steps := 1
	if action == "down" && f.NArg() > 1 {
		n, err := strconv.Atoi(f.Arg(1))
		if err != nil || n < 1 {
			fmt.Fprintf(os.Stderr, "Error: invalid step count %q\n", f.Arg(1))
			return subcommands.ExitUsageError
		}
		steps = n
	}
	if action != "up" && action != "down" && action != "version" {
		fmt.Fprintf(os.Stderr, "Error: unknown migrate action %q\n", action)
		return subcommands.ExitUsageError
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if cfg.DataBackend != config.BackendPostgres {
		fmt.Fprintln(os.Stderr, "Error: migrations need DATA_BACKEND=postgres")
		return subcommands.ExitFailure
	}

	be, err := backend.Open(ctx, cfg, backend.Options{}, newLogger(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer be.Cleanup()

	switch action {
	case "up":
		err = database.RunMigrations(be.Pool)
	case "down":
		err = database.MigrateDown(be.Pool, steps)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: migrate %s: %v\n", action, err)
		return subcommands.ExitFailure
	}

	version, dirty, err := database.MigrationVersion(be.Pool)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: read migration version: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("schema version %d (dirty=%t)\n", version, dirty)
	return subcommands.ExitSuccess
}
