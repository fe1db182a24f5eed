// Package wpn computes Park-Newman win values: a team is credited for each
// win and for the wins of the teams it beat, decayed geometrically per hop.
// Losses propagate the same way with a negative sign.
package wpn

import (
	"math"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/okian/gridrank/internal/domain/model"
)

// Scoring constants.
const (
	// BaseA is the decay applied per hop.
	BaseA = 0.2
	// Floor stops propagation once |a| falls below it.
	Floor = 0.0001
	// Places is the rounding applied at every level.
	Places = 4
	// exactDigits covers the full binary expansion of any value large enough
	// to round away from zero at Places.
	exactDigits = 80
)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithMoVInfluence weights wins by margin. Zero disables margin weighting.
func WithMoVInfluence(influence float64) Option {
	return func(s *Scorer) {
		if influence > 0 {
			s.movInfluence = influence
		}
	}
}

// WithMedianMoV sets the median margin used to normalise margin weighting.
func WithMedianMoV(median float64) Option {
	return func(s *Scorer) {
		s.medianMoV = median
	}
}

// WithMaxWeek only counts games in weeks numbered below maxWeek.
// Zero counts the whole season.
func WithMaxWeek(maxWeek int) Option {
	return func(s *Scorer) {
		if maxWeek > 0 {
			s.maxWeek = maxWeek
		}
	}
}

type edge struct {
	opp    int
	result model.Result
	mov    int
}

type memoKey struct {
	team int
	a    float64
}

// Scorer holds one season's result graph. It is immutable after New and
// safe for concurrent use.
type Scorer struct {
	season        int
	maxWeek       int
	movInfluence  float64
	medianMoV     float64
	movMultiplier float64

	index map[string]int
	edges [][]edge
}

// New builds the result graph of season's completed games.
func New(season model.Season, opts ...Option) *Scorer {
	s := &Scorer{season: season.Number, index: make(map[string]int)}
	for _, opt := range opts {
		opt(s)
	}
	if s.movInfluence > 0 && s.medianMoV > 0 {
		s.movMultiplier = s.movInfluence / math.Log(s.medianMoV+1)
	} else {
		s.movInfluence = 0
	}

	for _, g := range season.Games() {
		if s.maxWeek > 0 && g.Week >= s.maxWeek {
			continue
		}
		home, away := s.node(g.Home.Team), s.node(g.Away.Team)
		mov := g.MarginOfVictory()
		s.edges[home] = append(s.edges[home], edge{opp: away, result: g.ResultFor(g.Home.Team), mov: mov})
		s.edges[away] = append(s.edges[away], edge{opp: home, result: g.ResultFor(g.Away.Team), mov: mov})
	}
	return s
}

func (s *Scorer) node(team string) int {
	if i, ok := s.index[team]; ok {
		return i
	}
	i := len(s.edges)
	s.index[team] = i
	s.edges = append(s.edges, nil)
	return i
}

// Score computes team's wPN. Teams without games score zero.
func (s *Scorer) Score(team string) model.WPNScore {
	out := model.WPNScore{Team: team, Season: s.season}
	i, ok := s.index[team]
	if !ok {
		return out
	}
	memo := make(map[memoKey]float64)
	out.Wins = s.calc(i, 1, memo)
	out.Losses = s.calc(i, -1, memo)
	out.Score = Round(out.Wins + out.Losses)
	return out
}

// ScoreAll scores teams in order.
func (s *Scorer) ScoreAll(teams []string) []model.WPNScore {
	out := make([]model.WPNScore, 0, len(teams))
	for _, t := range teams {
		out = append(out, s.Score(t))
	}
	return out
}

// Modifier is the margin adjustment added per unit of a.
func (s *Scorer) Modifier(mov int) float64 {
	return -s.movInfluence + math.Log(float64(mov)+1)*s.movMultiplier
}

// calc is the signed score of team: wins when a > 0, losses when a < 0.
func (s *Scorer) calc(team int, a float64, memo map[memoKey]float64) float64 {
	if math.Abs(a) < Floor {
		return 0
	}
	key := memoKey{team: team, a: a}
	if v, ok := memo[key]; ok {
		return v
	}

	want := model.Win
	if a < 0 {
		want = model.Loss
	}
	newA := Round(a * BaseA)

	var score float64
	for _, e := range s.edges[team] {
		if e.result != want {
			continue
		}
		gameScore := a
		if s.movInfluence > 0 {
			gameScore += a * s.Modifier(e.mov)
		}
		gameScore += s.calc(e.opp, newA, memo)
		score += gameScore
	}

	v := Round(score)
	memo[key] = v
	return v
}

// Round rounds x to Places decimal places, half away from zero. It rounds
// the exact binary value of x, not its shortest decimal form, so 0.00015
// (stored just below the halfway point) rounds down.
func Round(x float64) float64 {
	exact := new(big.Float).SetFloat64(x).Text('f', exactDigits)
	return decimal.RequireFromString(exact).Round(Places).InexactFloat64()
}

// MedianMoV is the median margin of victory over the completed games.
func MedianMoV(games []model.Game) float64 {
	movs := make([]int, 0, len(games))
	for _, g := range games {
		if g.Live {
			continue
		}
		movs = append(movs, g.MarginOfVictory())
	}
	if len(movs) == 0 {
		return 0
	}
	sort.Ints(movs)
	half := len(movs) / 2
	if len(movs)%2 == 1 {
		return float64(movs[half])
	}
	return float64(movs[half-1]+movs[half]) / 2
}
