package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/gridrank/internal/adapters/repository"
	"github.com/okian/gridrank/internal/domain/model"
	"github.com/okian/gridrank/pkg/logger"
)

const (
	sideHome = "home"
	sideAway = "away"
)

// ImportLeague replaces every league table with l in one transaction.
func (s *Store) ImportLeague(ctx context.Context, l model.League) (err error) {
	defer observe("import_league", time.Now())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	exec := func(query string, args ...any) error {
		if _, err := tx.ExecContext(ctx, s.rebind(query), args...); err != nil {
			return fmt.Errorf("sqlstore: import: %w", err)
		}
		return nil
	}

	for _, table := range leagueTables {
		if err = exec(`DELETE FROM ` + table); err != nil {
			return err
		}
	}
	for ci, c := range l.Conferences {
		if err = exec(`INSERT INTO conferences (id, name, ord) VALUES (?, ?, ?)`, c.ID, c.Name, ci); err != nil {
			return err
		}
		for di, d := range c.Divisions {
			if err = exec(`INSERT INTO divisions (id, conference_id, name, ord) VALUES (?, ?, ?, ?)`,
				d.ID, c.ID, d.Name, di); err != nil {
				return err
			}
		}
	}
	for ti, t := range l.Teams {
		if err = exec(`INSERT INTO teams (id, name, abbreviation, ord) VALUES (?, ?, ?, ?)`,
			t.ID, t.Name, t.Abbreviation, ti); err != nil {
			return err
		}
		for si, div := range t.Divisions {
			if err = exec(`INSERT INTO team_divisions (team_id, season, division_id) VALUES (?, ?, ?)`,
				t.ID, si+1, div); err != nil {
				return err
			}
		}
	}
	for ci, c := range l.Coaches {
		if err = exec(`INSERT INTO coaches (id, username, ord) VALUES (?, ?, ?)`, c.ID, c.Username, ci); err != nil {
			return err
		}
	}
	seen := make(map[string]struct{})
	for _, season := range l.Seasons {
		if err = exec(`INSERT INTO seasons (number) VALUES (?)`, season.Number); err != nil {
			return err
		}
		for wi, w := range season.Weeks {
			if err = exec(`INSERT INTO weeks (season, number, name, ord) VALUES (?, ?, ?, ?)`,
				season.Number, w.Number, w.Name, wi); err != nil {
				return err
			}
			for gi, g := range w.Games {
				if _, dup := seen[g.ID]; dup {
					s.log.Warn(ctx, "game listed twice, keeping the first",
						logger.String("game", g.ID), logger.Int("season", season.Number), logger.Int("week", w.Number))
					continue
				}
				seen[g.ID] = struct{}{}
				if err = s.insertGame(exec, season.Number, w.Number, gi, g); err != nil {
					return err
				}
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	s.log.Info(ctx, "league imported",
		logger.Int("teams", len(l.Teams)), logger.Int("seasons", len(l.Seasons)))
	return nil
}

func (s *Store) insertGame(exec func(string, ...any) error, season, week, ord int, g model.Game) error {
	hq, err := json.Marshal(quarters(g.Home.Quarters))
	if err != nil {
		return fmt.Errorf("sqlstore: encode quarters: %w", err)
	}
	aq, err := json.Marshal(quarters(g.Away.Quarters))
	if err != nil {
		return fmt.Errorf("sqlstore: encode quarters: %w", err)
	}
	if err := exec(`INSERT INTO games (id, season, week, ord, home_team, home_score, home_quarters,
		away_team, away_score, away_quarters, length_seconds, live)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, season, week, ord, g.Home.Team, g.Home.Score, string(hq),
		g.Away.Team, g.Away.Score, string(aq), g.LengthSeconds, boolInt(g.Live)); err != nil {
		return err
	}
	for side, shares := range map[string][]model.CoachShare{sideHome: g.Home.Coaches, sideAway: g.Away.Coaches} {
		for i, c := range shares {
			if err := exec(`INSERT INTO game_coaches (game_id, side, ord, coach, plays) VALUES (?, ?, ?, ?, ?)`,
				g.ID, side, i, c.Coach, c.Plays); err != nil {
				return err
			}
		}
	}
	return nil
}

func quarters(q []int) []int {
	if q == nil {
		return []int{}
	}
	return q
}

// Teams implements repository.LeagueReader.
func (s *Store) Teams(ctx context.Context) ([]model.Team, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, abbreviation FROM teams ORDER BY ord`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: teams: %w", err)
	}
	var teams []model.Team
	index := map[string]int{}
	for rows.Next() {
		var t model.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Abbreviation); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlstore: teams: %w", err)
		}
		index[t.ID] = len(teams)
		teams = append(teams, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: teams: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT team_id, season, division_id FROM team_divisions ORDER BY team_id, season`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: team divisions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id, div string
			season  int
		)
		if err := rows.Scan(&id, &season, &div); err != nil {
			return nil, fmt.Errorf("sqlstore: team divisions: %w", err)
		}
		i, ok := index[id]
		if !ok || season < 1 {
			continue
		}
		for len(teams[i].Divisions) < season {
			teams[i].Divisions = append(teams[i].Divisions, "")
		}
		teams[i].Divisions[season-1] = div
	}
	return teams, rows.Err()
}

// Coaches implements repository.LeagueReader.
func (s *Store) Coaches(ctx context.Context) ([]model.Coach, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, username FROM coaches ORDER BY ord`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: coaches: %w", err)
	}
	defer rows.Close()
	var out []model.Coach
	for rows.Next() {
		var c model.Coach
		if err := rows.Scan(&c.ID, &c.Username); err != nil {
			return nil, fmt.Errorf("sqlstore: coaches: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Conferences implements repository.LeagueReader.
func (s *Store) Conferences(ctx context.Context) ([]model.Conference, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT c.id, c.name, d.id, d.name
		FROM conferences c LEFT JOIN divisions d ON d.conference_id = c.id
		ORDER BY c.ord, d.ord`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: conferences: %w", err)
	}
	defer rows.Close()
	var out []model.Conference
	for rows.Next() {
		var (
			cid, cname string
			did, dname sql.NullString
		)
		if err := rows.Scan(&cid, &cname, &did, &dname); err != nil {
			return nil, fmt.Errorf("sqlstore: conferences: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].ID != cid {
			out = append(out, model.Conference{ID: cid, Name: cname, Divisions: []model.Division{}})
		}
		if did.Valid {
			c := &out[len(out)-1]
			c.Divisions = append(c.Divisions, model.Division{ID: did.String, Name: dname.String})
		}
	}
	return out, rows.Err()
}

// Seasons implements repository.LeagueReader.
func (s *Store) Seasons(ctx context.Context) ([]model.Season, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT number FROM seasons ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: seasons: %w", err)
	}
	var numbers []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlstore: seasons: %w", err)
		}
		numbers = append(numbers, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: seasons: %w", err)
	}
	out := make([]model.Season, 0, len(numbers))
	for _, n := range numbers {
		season, err := s.loadSeason(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, season)
	}
	return out, nil
}

// Season implements repository.LeagueReader.
func (s *Store) Season(ctx context.Context, seasonNo int) (model.Season, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT number FROM seasons WHERE number = ?`), seasonNo).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Season{}, fmt.Errorf("%w: %d", repository.ErrSeasonNotFound, seasonNo)
	}
	if err != nil {
		return model.Season{}, fmt.Errorf("sqlstore: season %d: %w", seasonNo, err)
	}
	return s.loadSeason(ctx, seasonNo)
}

// Week implements repository.LeagueReader.
func (s *Store) Week(ctx context.Context, seasonNo, weekNo int) (model.Week, error) {
	season, err := s.Season(ctx, seasonNo)
	if err != nil {
		return model.Week{}, err
	}
	w, ok := season.Week(weekNo)
	if !ok {
		return model.Week{}, fmt.Errorf("%w: season %d week %d", repository.ErrWeekNotFound, seasonNo, weekNo)
	}
	return w, nil
}

// GamesByTeamAndSeason implements repository.LeagueReader.
func (s *Store) GamesByTeamAndSeason(ctx context.Context, team string, seasonNo int) ([]model.Game, error) {
	season, err := s.Season(ctx, seasonNo)
	if err != nil {
		return nil, err
	}
	var out []model.Game
	for _, g := range season.Games() {
		if g.Involves(team) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *Store) loadSeason(ctx context.Context, seasonNo int) (model.Season, error) {
	defer observe("load_season", time.Now())
	season := model.Season{Number: seasonNo}
	weekIndex := map[int]int{}

	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT number, name FROM weeks WHERE season = ? ORDER BY ord`), seasonNo)
	if err != nil {
		return model.Season{}, fmt.Errorf("sqlstore: weeks: %w", err)
	}
	for rows.Next() {
		var w model.Week
		if err := rows.Scan(&w.Number, &w.Name); err != nil {
			rows.Close()
			return model.Season{}, fmt.Errorf("sqlstore: weeks: %w", err)
		}
		w.Games = []model.Game{}
		weekIndex[w.Number] = len(season.Weeks)
		season.Weeks = append(season.Weeks, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return model.Season{}, fmt.Errorf("sqlstore: weeks: %w", err)
	}

	shares, err := s.loadCoachShares(ctx, seasonNo)
	if err != nil {
		return model.Season{}, err
	}

	rows, err = s.db.QueryContext(ctx, s.rebind(`SELECT id, week, home_team, home_score, home_quarters,
		away_team, away_score, away_quarters, length_seconds, live
		FROM games WHERE season = ? ORDER BY week, ord`), seasonNo)
	if err != nil {
		return model.Season{}, fmt.Errorf("sqlstore: games: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			g      model.Game
			hq, aq string
			live   int
		)
		if err := rows.Scan(&g.ID, &g.Week, &g.Home.Team, &g.Home.Score, &hq,
			&g.Away.Team, &g.Away.Score, &aq, &g.LengthSeconds, &live); err != nil {
			return model.Season{}, fmt.Errorf("sqlstore: games: %w", err)
		}
		g.Live = live != 0
		if err := decodeQuarters(hq, &g.Home.Quarters); err != nil {
			return model.Season{}, err
		}
		if err := decodeQuarters(aq, &g.Away.Quarters); err != nil {
			return model.Season{}, err
		}
		g.Home.Coaches = shares[g.ID+"/"+sideHome]
		g.Away.Coaches = shares[g.ID+"/"+sideAway]
		wi, ok := weekIndex[g.Week]
		if !ok {
			continue
		}
		season.Weeks[wi].Games = append(season.Weeks[wi].Games, g)
	}
	return season, rows.Err()
}

func (s *Store) loadCoachShares(ctx context.Context, seasonNo int) (map[string][]model.CoachShare, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT gc.game_id, gc.side, gc.coach, gc.plays
		FROM game_coaches gc JOIN games g ON g.id = gc.game_id
		WHERE g.season = ? ORDER BY gc.game_id, gc.side, gc.ord`), seasonNo)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: game coaches: %w", err)
	}
	defer rows.Close()
	out := map[string][]model.CoachShare{}
	for rows.Next() {
		var (
			gameID, side string
			c            model.CoachShare
		)
		if err := rows.Scan(&gameID, &side, &c.Coach, &c.Plays); err != nil {
			return nil, fmt.Errorf("sqlstore: game coaches: %w", err)
		}
		key := gameID + "/" + side
		out[key] = append(out[key], c)
	}
	return out, rows.Err()
}

func decodeQuarters(raw string, into *[]int) error {
	var q []int
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return fmt.Errorf("sqlstore: decode quarters: %w", err)
	}
	if len(q) > 0 {
		*into = q
	}
	return nil
}
