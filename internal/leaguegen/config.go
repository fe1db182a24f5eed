// Package leaguegen builds synthetic league documents and drives a running
// server through a full metrics cycle against them.
package leaguegen

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidOptions is returned when a Config cannot produce a league.
var ErrInvalidOptions = errors.New("leaguegen: invalid options")

// Defaults used when a Config field is left zero by the CLI.
const (
	DefaultSeasons                = 2
	DefaultConferences            = 2
	DefaultDivisionsPerConference = 2
	DefaultTeamsPerDivision       = 4
	DefaultAssistantRate          = 0.3
	DefaultCoachTurnover          = 0.2
	DefaultTimeout                = 30 * time.Second
	maxRegularSeasonWeeks         = 13
)

// Config holds the league shape and run settings.
type Config struct {
	Seasons                int
	Conferences            int
	DivisionsPerConference int
	TeamsPerDivision       int
	// Weeks per season. Zero schedules a full round robin capped at 13 weeks.
	Weeks int
	// LiveGames leaves this many games of the final week in progress.
	LiveGames int
	// AssistantRate is the chance a side has a second play caller.
	AssistantRate float64
	// DeletedRate is the chance an assistant's account is gone.
	DeletedRate float64
	// CoachTurnover is the chance a team changes head coach between seasons.
	CoachTurnover float64
	Seed          uint64

	OutputFile string
	BaseURL    string
	Timeout    time.Duration
	Verbose    bool
}

// Teams is the number of teams the league will hold.
func (c Config) Teams() int {
	return c.Conferences * c.DivisionsPerConference * c.TeamsPerDivision
}

// WeeksPerSeason resolves the zero default.
func (c Config) WeeksPerSeason() int {
	if c.Weeks > 0 {
		return c.Weeks
	}
	n := c.Teams()
	rounds := n - 1
	if n%2 != 0 {
		rounds = n
	}
	return min(rounds, maxRegularSeasonWeeks)
}

// Validate reports the first field that cannot produce a league.
func (c Config) Validate() error {
	switch {
	case c.Seasons < 1:
		return fmt.Errorf("%w: seasons %d", ErrInvalidOptions, c.Seasons)
	case c.Conferences < 1, c.DivisionsPerConference < 1, c.TeamsPerDivision < 1:
		return fmt.Errorf("%w: conferences, divisions and teams per division must be positive", ErrInvalidOptions)
	case c.Teams() < 2:
		return fmt.Errorf("%w: a league needs at least two teams", ErrInvalidOptions)
	case c.Weeks < 0:
		return fmt.Errorf("%w: weeks %d", ErrInvalidOptions, c.Weeks)
	case c.LiveGames < 0 || c.LiveGames > c.Teams()/2:
		return fmt.Errorf("%w: live games %d", ErrInvalidOptions, c.LiveGames)
	case !isRate(c.AssistantRate), !isRate(c.DeletedRate), !isRate(c.CoachTurnover):
		return fmt.Errorf("%w: rates must lie in [0, 1]", ErrInvalidOptions)
	}
	return nil
}

func isRate(f float64) bool { return f >= 0 && f <= 1 }

// Stats holds run statistics.
type Stats struct {
	Teams        int
	Coaches      int
	Games        int
	LiveGames    int
	SeasonsRun   int
	RatedGames   int
	SkippedGames int
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
}
