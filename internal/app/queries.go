package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/okian/gridrank/internal/adapters/repository"
	"github.com/okian/gridrank/internal/domain/model"
	"github.com/okian/gridrank/internal/domain/standings"
	"github.com/okian/gridrank/internal/domain/types"
	"github.com/okian/gridrank/pkg/logger"
	"github.com/okian/gridrank/pkg/metrics"
)

// Standings compiles the season's division tables from its games.
func (s *Service) Standings(ctx context.Context, seasonNo int) (standings.Standings, error) {
	start := time.Now()
	defer func() { metrics.RecordStandingsLatency(msSince(start)) }()

	season, err := s.store.Season(ctx, seasonNo)
	if err != nil {
		return standings.Standings{}, err
	}
	conferences, err := s.store.Conferences(ctx)
	if err != nil {
		return standings.Standings{}, err
	}
	teams, err := s.store.Teams(ctx)
	if err != nil {
		return standings.Standings{}, err
	}
	out := standings.Compile(season, conferences, teams,
		standings.WithRegularSeasonWeeks(s.regularSeasonWeeks))
	if len(out.Unassigned) > 0 {
		s.logger.Warn(ctx, "teams without a division left out of standings",
			logger.Int("season", seasonNo), logger.Any("teams", out.Unassigned))
	}
	return out, nil
}

// Leaderboard returns the best limit entities of kind by latest rating. A
// limit of zero returns everything. Team entries carry their latest wPN and
// coach entries their win-loss records.
func (s *Service) Leaderboard(ctx context.Context, kind model.EntityKind, limit int) ([]types.Entry, error) {
	if limit < 0 {
		return nil, repository.ErrInvalidLimit
	}
	board, err := s.board(ctx, kind)
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(board) {
		board = board[:limit]
	}
	return board, nil
}

// board returns the full leaderboard, from the cache when possible.
func (s *Service) board(ctx context.Context, kind model.EntityKind) ([]types.Entry, error) {
	idx, err := s.index(kind)
	if err != nil {
		return nil, err
	}
	if cached, ok, err := s.cache.Leaderboard(ctx, kind); err == nil && ok {
		return cached, nil
	}

	board := []types.Entry{}
	if n := idx.Count(); n > 0 {
		if board, err = idx.TopN(n); err != nil {
			return nil, err
		}
	}
	switch kind {
	case model.KindTeam:
		err = s.attachWPN(ctx, board)
	case model.KindCoach:
		err = s.attachRecords(ctx, board)
	}
	if err != nil {
		return nil, err
	}
	if err := s.cache.StoreLeaderboard(ctx, kind, board); err != nil {
		s.logger.Warn(ctx, "leaderboard cache write failed", logger.Error(err))
	}
	return board, nil
}

func (s *Service) attachWPN(ctx context.Context, board []types.Entry) error {
	for i := range board {
		sc, err := s.store.LatestWPN(ctx, board[i].ID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		score := sc.Score
		board[i].WPN = &score
	}
	return nil
}

func (s *Service) attachRecords(ctx context.Context, board []types.Entry) error {
	records, err := s.coachRecords(ctx)
	if err != nil {
		return err
	}
	for i := range board {
		rec := records[board[i].ID]
		board[i].Record = &rec
	}
	return nil
}

// coachRecords tallies every coach's record over all completed games.
func (s *Service) coachRecords(ctx context.Context) (map[string]types.CoachRecords, error) {
	seasons, err := s.store.Seasons(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]types.CoachRecords)
	for _, season := range seasons {
		for _, g := range season.Games() {
			for _, side := range []model.Side{g.Home, g.Away} {
				for _, c := range side.Coaches {
					rec := out[c.Coach]
					rec.AddGame(g, c.Coach)
					out[c.Coach] = rec
				}
			}
		}
	}
	return out, nil
}

// Rank returns one entity's leaderboard entry.
func (s *Service) Rank(_ context.Context, kind model.EntityKind, id string) (types.Entry, error) {
	idx, err := s.index(kind)
	if err != nil {
		return types.Entry{}, err
	}
	return idx.Rank(id)
}

// Timeline returns an entity's snapshots in order.
func (s *Service) Timeline(ctx context.Context, ref model.EntityRef) ([]model.Snapshot, error) {
	if _, err := s.index(ref.Kind); err != nil {
		return nil, err
	}
	return s.store.Timeline(ctx, ref)
}

// WPN returns the season's scores, best first.
func (s *Service) WPN(ctx context.Context, seasonNo int) ([]model.WPNScore, error) {
	scores, err := s.store.WPN(ctx, seasonNo)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Team < scores[j].Team
	})
	return scores, nil
}

// Ranges returns, for every season and week, the lowest and highest rating
// recorded by entities of kind. Seasons without snapshots report the
// default rating for both bounds.
func (s *Service) Ranges(ctx context.Context, kind model.EntityKind) ([]types.Range, error) {
	if _, err := s.index(kind); err != nil {
		return nil, err
	}
	seasons, err := s.store.Seasons(ctx)
	if err != nil {
		return nil, err
	}
	var out []types.Range
	slots := make(map[model.Position]int)
	for _, season := range seasons {
		pre := model.PreseasonOf(season.Number)
		slots[pre] = len(out)
		out = append(out, types.Range{Season: season.Number, Preseason: true,
			Min: model.DefaultRating, Max: model.DefaultRating})
		for _, w := range season.SortedWeeks() {
			slots[model.WeekOf(season.Number, w.Number)] = len(out)
			out = append(out, types.Range{Season: season.Number, Week: w.Number,
				Min: model.DefaultRating, Max: model.DefaultRating})
		}
	}

	ids, err := s.store.Refs(ctx, kind)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		timeline, err := s.store.Timeline(ctx, model.EntityRef{Kind: kind, ID: id})
		if err != nil {
			return nil, fmt.Errorf("ranges %s %s: %w", kind, id, err)
		}
		for _, snap := range timeline {
			i, ok := slots[snap.Position()]
			if !ok {
				continue
			}
			if snap.NewRating < out[i].Min {
				out[i].Min = snap.NewRating
			}
			if snap.NewRating > out[i].Max {
				out[i].Max = snap.NewRating
			}
		}
	}
	return out, nil
}

// Seasons lists every season with its weeks.
func (s *Service) Seasons(ctx context.Context) ([]model.Season, error) {
	return s.store.Seasons(ctx)
}

// Conferences lists the league structure.
func (s *Service) Conferences(ctx context.Context) ([]model.Conference, error) {
	return s.store.Conferences(ctx)
}

// Games returns a season's games, or one week's when weekNo is set. Live
// games are included.
func (s *Service) Games(ctx context.Context, seasonNo int, weekNo *int) ([]model.Game, error) {
	if weekNo != nil {
		w, err := s.store.Week(ctx, seasonNo, *weekNo)
		if err != nil {
			return nil, err
		}
		return withWeek(w), nil
	}
	season, err := s.store.Season(ctx, seasonNo)
	if err != nil {
		return nil, err
	}
	out := []model.Game{}
	for _, w := range season.SortedWeeks() {
		out = append(out, withWeek(w)...)
	}
	return out, nil
}

func withWeek(w model.Week) []model.Game {
	out := make([]model.Game, len(w.Games))
	for i, g := range w.Games {
		g.Week = w.Number
		out[i] = g
	}
	return out
}
