package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/gridrank/internal/leaguegen"
	"github.com/okian/gridrank/pkg/logger"
)

const defaultRunTimeout = 10 * time.Minute

const usage = `gridrank league generator
=========================

Generates a synthetic league file and, with -url, rates every season on a
running server started with GRIDRANK_LEAGUE_FILE pointing at that file.

Usage:
  go run ./cmd/leaguegen [options]

Examples:
  # Write a 16 team, 3 season league
  go run ./cmd/leaguegen -seasons 3 -out league.yaml

  # Rate it on a local server and verify the leaderboard
  go run ./cmd/leaguegen -seasons 3 -out league.yaml -url http://localhost:9080

Options:
`

func main() {
	var (
		seasons   = flag.Int("seasons", leaguegen.DefaultSeasons, "Number of seasons")
		confs     = flag.Int("conferences", leaguegen.DefaultConferences, "Number of conferences")
		divisions = flag.Int("divisions", leaguegen.DefaultDivisionsPerConference, "Divisions per conference")
		teams     = flag.Int("teams", leaguegen.DefaultTeamsPerDivision, "Teams per division")
		weeks     = flag.Int("weeks", 0, "Weeks per season (0 for a round robin capped at 13)")
		live      = flag.Int("live", 0, "Games left in progress in the final week")
		assistant = flag.Float64("assistant-rate", leaguegen.DefaultAssistantRate, "Chance a side has a second play caller")
		deleted   = flag.Float64("deleted-rate", 0, "Chance an assistant's account is deleted")
		turnover  = flag.Float64("turnover", leaguegen.DefaultCoachTurnover, "Chance a team changes head coach between seasons")
		seed      = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed")
		out       = flag.String("out", "", "Output league file (default: league_TIMESTAMP.yaml)")
		baseURL   = flag.String("url", "", "Base URL of a running server to rate the league on")
		timeout   = flag.Duration("timeout", leaguegen.DefaultTimeout, "HTTP request timeout")
		verbose   = flag.Bool("verbose", false, "Log every season run")
		format    = flag.String("log-format", "text", "Log format: text or json")
	)
	flag.Usage = func() {
		_, _ = os.Stderr.WriteString(usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*format)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	cfg := leaguegen.Config{
		Seasons:                *seasons,
		Conferences:            *confs,
		DivisionsPerConference: *divisions,
		TeamsPerDivision:       *teams,
		Weeks:                  *weeks,
		LiveGames:              *live,
		AssistantRate:          *assistant,
		DeletedRate:            *deleted,
		CoachTurnover:          *turnover,
		Seed:                   *seed,
		OutputFile:             *out,
		BaseURL:                *baseURL,
		Timeout:                *timeout,
		Verbose:                *verbose,
	}
	if err := leaguegen.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "league generation failed", logger.Error(err))
		os.Exit(1)
	}
}
