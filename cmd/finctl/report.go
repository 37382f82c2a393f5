package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
)

// reportCmd prints a monthly or yearly report as JSON
type reportCmd struct {
	out    io.Writer
	user   string
	period string
	year   int
	month  int
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "print a monthly or yearly report as JSON" }
func (*reportCmd) Usage() string {
	return `finctl report -user <clerk id> [-period monthly|yearly] [-year y] [-month m]

  Prints the income, expense and category report of a user.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	now := time.Now()
	f.StringVar(&c.user, "user", "", "Clerk user id to report on")
	f.StringVar(&c.period, "period", "monthly", "Report period (monthly, yearly)")
	f.IntVar(&c.year, "year", now.Year(), "Report year")
	f.IntVar(&c.month, "month", int(now.Month()), "Report month, monthly only")
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.period != "monthly" && c.period != "yearly" {
		fmt.Fprintf(os.Stderr, "Error: unknown period %q\n", c.period)
		return subcommands.ExitUsageError
	}

	s, err := openSession(ctx, c.user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer s.cleanup()

	var report any
	if c.period == "yearly" {
		report, err = s.reports.GetYearlyReport(ctx, s.userID, c.year)
	} else {
		report, err = s.reports.GetMonthlyReport(ctx, s.userID, c.year, c.month)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return writeJSON(c.out, report)
}

// healthCmd prints the financial health score as JSON
type healthCmd struct {
	out  io.Writer
	user string
}

func (*healthCmd) Name() string     { return "health" }
func (*healthCmd) Synopsis() string { return "print the financial health score of a user" }
func (*healthCmd) Usage() string {
	return `finctl health -user <clerk id>
`
}

func (c *healthCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "Clerk user id to score")
}

func (c *healthCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := openSession(ctx, c.user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer s.cleanup()

	health, err := s.reports.GetFinancialHealth(ctx, s.userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return writeJSON(c.out, health)
}
