package elo

import (
	"github.com/okian/gridrank/internal/domain/model"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithK overrides the K factor.
func WithK(k float64) Option {
	return func(e *Engine) {
		if k > 0 {
			e.k = k
		}
	}
}

// Engine turns a finished game and pre-game ratings into rating changes.
// It holds no state and is safe for concurrent use.
type Engine struct {
	k float64
}

// NewEngine creates an engine with the default K factor.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{k: DefaultK}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Outcome is the rating result of one game. AwayDelta is always -HomeDelta.
type Outcome struct {
	HomeRating float64
	AwayRating float64
	HomeDelta  float64
	AwayDelta  float64
}

// Delta returns the home side's rating change given both pre-game ratings.
func (e *Engine) Delta(g model.Game, homeRating, awayRating float64) float64 {
	mins := Minutes(g.LengthSeconds)
	homeScore, awayScore := g.Home.Score, g.Away.Score

	var winnerEloDiff float64
	switch {
	case homeScore > awayScore:
		winnerEloDiff = homeRating - awayRating
	case awayScore > homeScore:
		winnerEloDiff = awayRating - homeRating
	}

	actual := WinProbability(homeScore, awayScore, homeRating, awayRating, mins)
	expected := WinProbability(0, 0, homeRating, awayRating, 0)
	movMult := MoVMultiplier(homeScore-awayScore, winnerEloDiff)

	return Deweight(mins) * movMult * e.k * (actual - expected)
}

// Team computes the outcome of a team game. Live games report ok=false.
func (e *Engine) Team(g model.Game, homeRating, awayRating float64) (Outcome, bool) {
	if g.Live {
		return Outcome{}, false
	}
	d := e.Delta(g, homeRating, awayRating)
	return Outcome{
		HomeRating: homeRating,
		AwayRating: awayRating,
		HomeDelta:  d,
		AwayDelta:  -d,
	}, true
}
