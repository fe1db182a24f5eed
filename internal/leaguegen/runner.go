package leaguegen

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/gridrank/internal/adapters/league"
	"github.com/okian/gridrank/internal/domain/model"
	"github.com/okian/gridrank/pkg/logger"
)

const (
	directoryPermission = 0o750
	// meanTolerance bounds drift of the average team rating from the default.
	meanTolerance = 1e-6
)

type runReport struct {
	RunID   string `json:"run_id"`
	Season  int    `json:"season"`
	Weeks   []int  `json:"weeks"`
	Games   int    `json:"games"`
	Skipped int    `json:"skipped"`
}

type teamEntry struct {
	Rank int     `json:"rank"`
	ID   string  `json:"id"`
	Elo  float64 `json:"elo"`
}

type teamsResponse struct {
	Teams []teamEntry `json:"teams"`
}

// Run generates a league, writes it out and, when a base URL is set, asks
// the server to rate every season and checks the resulting leaderboard.
// The server must have been started on the same league file.
func Run(ctx context.Context, cfg Config) error {
	log := logger.Get().Named("leaguegen")
	stats := &Stats{StartTime: time.Now()}

	l, err := Generate(cfg)
	if err != nil {
		return err
	}
	countLeague(l, stats)
	log.Info(ctx, "league generated",
		logger.Any("seed", cfg.Seed),
		logger.Int("teams", stats.Teams),
		logger.Int("coaches", stats.Coaches),
		logger.Int("games", stats.Games),
		logger.Int("liveGames", stats.LiveGames))

	path, err := writeLeague(cfg.OutputFile, l)
	if err != nil {
		return err
	}
	log.Info(ctx, "league written", logger.String("file", path))

	if cfg.BaseURL != "" {
		if err := drive(ctx, cfg, l, stats, log); err != nil {
			return err
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "final statistics",
		logger.Int("seasonsRun", stats.SeasonsRun),
		logger.Int("ratedGames", stats.RatedGames),
		logger.Int("skippedGames", stats.SkippedGames),
		logger.Duration("duration", stats.Duration))
	return nil
}

func countLeague(l model.League, stats *Stats) {
	stats.Teams = len(l.Teams)
	stats.Coaches = len(l.Coaches)
	for _, s := range l.Seasons {
		for _, w := range s.Weeks {
			for _, g := range w.Games {
				stats.Games++
				if g.Live {
					stats.LiveGames++
				}
			}
		}
	}
}

func writeLeague(path string, l model.League) (string, error) {
	if path == "" {
		path = "league_" + time.Now().Format("20060102_150405") + ".yaml"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return "", fmt.Errorf("create directory: %w", err)
		}
	}
	if err := league.Save(path, l); err != nil {
		return "", err
	}
	return path, nil
}

// drive rates every season in order and verifies the team leaderboard.
func drive(ctx context.Context, cfg Config, l model.League, stats *Stats, log logger.Logger) error {
	c := newClient(cfg.BaseURL, cfg.Timeout)
	if err := c.do(ctx, http.MethodGet, "/healthz", http.StatusOK, nil); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	for _, s := range l.Seasons {
		var rep runReport
		if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/calc-metrics/%d", s.Number), http.StatusOK, &rep); err != nil {
			return fmt.Errorf("rate season %d: %w", s.Number, err)
		}
		stats.SeasonsRun++
		stats.RatedGames += rep.Games
		stats.SkippedGames += rep.Skipped
		if cfg.Verbose {
			log.Info(ctx, "season rated",
				logger.Int("season", rep.Season),
				logger.String("runID", rep.RunID),
				logger.Int("games", rep.Games),
				logger.Int("skipped", rep.Skipped))
		}
	}

	var board teamsResponse
	path := fmt.Sprintf("/metrics?limit=%d", len(l.Teams))
	if err := c.do(ctx, http.MethodGet, path, http.StatusOK, &board); err != nil {
		return fmt.Errorf("fetch leaderboard: %w", err)
	}
	if err := verifyBoard(board.Teams, len(l.Teams)); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}
	log.Info(ctx, "leaderboard verified",
		logger.String("leader", board.Teams[0].ID),
		logger.Float64("leaderElo", board.Teams[0].Elo))
	return nil
}

// verifyBoard checks the leaderboard holds every team, is sorted and keeps
// the league mean at the default rating.
func verifyBoard(board []teamEntry, teams int) error {
	if len(board) != teams {
		return fmt.Errorf("leaderboard has %d teams, league has %d", len(board), teams)
	}
	sum := 0.0
	for i, e := range board {
		sum += e.Elo
		if i > 0 && e.Elo > board[i-1].Elo {
			return fmt.Errorf("leaderboard not sorted at rank %d", e.Rank)
		}
	}
	mean := sum / float64(teams)
	if math.Abs(mean-model.DefaultRating) > meanTolerance*model.DefaultRating {
		return fmt.Errorf("mean team rating %.6f drifted from %.0f", mean, model.DefaultRating)
	}
	return nil
}
