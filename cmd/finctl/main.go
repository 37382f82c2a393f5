// Command finctl is the operator CLI for the finlens ledger
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&migrateCmd{}, "database")
	commander.Register(&reportCmd{out: os.Stdout}, "reports")
	commander.Register(&healthCmd{out: os.Stdout}, "reports")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
