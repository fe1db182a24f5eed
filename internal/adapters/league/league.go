// Package league reads and writes the YAML league file and serves it as an
// in-memory repository.LeagueReader.
package league

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/okian/gridrank/internal/adapters/repository"
	"github.com/okian/gridrank/internal/domain/model"
)

// Reader is an immutable league loaded into memory.
type Reader struct {
	league  model.League
	seasons map[int]int
}

var _ repository.LeagueReader = (*Reader)(nil)

// New validates l and indexes it. Game weeks are filled in from their week.
func New(l model.League) (*Reader, error) {
	r := &Reader{seasons: make(map[int]int, len(l.Seasons))}
	l.Seasons = append([]model.Season(nil), l.Seasons...)
	for si := range l.Seasons {
		s := &l.Seasons[si]
		if _, dup := r.seasons[s.Number]; dup {
			return nil, fmt.Errorf("%w: season %d listed twice", ErrInvalidLeague, s.Number)
		}
		r.seasons[s.Number] = si
		weeks := make(map[int]struct{}, len(s.Weeks))
		for wi := range s.Weeks {
			w := &s.Weeks[wi]
			if w.Number < 1 {
				return nil, fmt.Errorf("%w: season %d has week %d, weeks start at 1", ErrInvalidLeague, s.Number, w.Number)
			}
			if _, dup := weeks[w.Number]; dup {
				return nil, fmt.Errorf("%w: season %d week %d listed twice", ErrInvalidLeague, s.Number, w.Number)
			}
			weeks[w.Number] = struct{}{}
			for gi := range w.Games {
				w.Games[gi].Week = w.Number
			}
		}
	}
	sort.SliceStable(l.Seasons, func(i, j int) bool { return l.Seasons[i].Number < l.Seasons[j].Number })
	for i, s := range l.Seasons {
		r.seasons[s.Number] = i
	}
	r.league = l
	return r, nil
}

// Decode reads a YAML league document.
func Decode(in io.Reader) (*Reader, error) {
	var l model.League
	dec := yaml.NewDecoder(in)
	dec.KnownFields(true)
	if err := dec.Decode(&l); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: parse yaml: %w", ErrInvalidLeague, err)
	}
	return New(l)
}

// Load reads the league file at path.
func Load(path string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("league: read %q: %w", path, err)
	}
	return Decode(bytes.NewReader(data))
}

// Encode writes l as YAML.
func Encode(out io.Writer, l model.League) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(l); err != nil {
		return fmt.Errorf("league: encode yaml: %w", err)
	}
	return enc.Close()
}

// Save writes l to path.
func Save(path string, l model.League) error {
	var buf bytes.Buffer
	if err := Encode(&buf, l); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // league file is not secret
		return fmt.Errorf("league: write %q: %w", path, err)
	}
	return nil
}

// League returns the underlying document.
func (r *Reader) League() model.League { return r.league }

// Teams implements repository.LeagueReader.
func (r *Reader) Teams(context.Context) ([]model.Team, error) {
	return append([]model.Team(nil), r.league.Teams...), nil
}

// Coaches implements repository.LeagueReader.
func (r *Reader) Coaches(context.Context) ([]model.Coach, error) {
	return append([]model.Coach(nil), r.league.Coaches...), nil
}

// Conferences implements repository.LeagueReader.
func (r *Reader) Conferences(context.Context) ([]model.Conference, error) {
	return append([]model.Conference(nil), r.league.Conferences...), nil
}

// Seasons implements repository.LeagueReader.
func (r *Reader) Seasons(context.Context) ([]model.Season, error) {
	return append([]model.Season(nil), r.league.Seasons...), nil
}

// Season implements repository.LeagueReader.
func (r *Reader) Season(_ context.Context, seasonNo int) (model.Season, error) {
	i, ok := r.seasons[seasonNo]
	if !ok {
		return model.Season{}, fmt.Errorf("%w: %d", repository.ErrSeasonNotFound, seasonNo)
	}
	return r.league.Seasons[i], nil
}

// Week implements repository.LeagueReader.
func (r *Reader) Week(ctx context.Context, seasonNo, weekNo int) (model.Week, error) {
	s, err := r.Season(ctx, seasonNo)
	if err != nil {
		return model.Week{}, err
	}
	w, ok := s.Week(weekNo)
	if !ok {
		return model.Week{}, fmt.Errorf("%w: season %d week %d", repository.ErrWeekNotFound, seasonNo, weekNo)
	}
	return w, nil
}

// GamesByTeamAndSeason implements repository.LeagueReader.
func (r *Reader) GamesByTeamAndSeason(ctx context.Context, team string, seasonNo int) ([]model.Game, error) {
	s, err := r.Season(ctx, seasonNo)
	if err != nil {
		return nil, err
	}
	var out []model.Game
	for _, g := range s.Games() {
		if g.Involves(team) {
			out = append(out, g)
		}
	}
	return out, nil
}
