package elo

import (
	"github.com/okian/gridrank/internal/domain/model"
)

// CoachLookup returns a coach's rating before the game being scored.
type CoachLookup func(coach string) float64

// CoachUpdate is one coach's share of a game result.
type CoachUpdate struct {
	Coach          string
	Team           string
	Share          float64
	PriorRating    float64
	OpponentRating float64
	Delta          float64
}

// NewRating is the coach's rating after the game.
func (u CoachUpdate) NewRating() float64 { return u.PriorRating + u.Delta }

// Shares splits a side's credit by plays called. A side whose coaches
// called no plays splits evenly.
func Shares(side model.Side) []float64 {
	out := make([]float64, len(side.Coaches))
	if len(out) == 0 {
		return out
	}
	total := side.TotalPlays()
	for i, c := range side.Coaches {
		if total > 0 {
			out[i] = float64(c.Plays) / float64(total)
		} else {
			out[i] = 1 / float64(len(out))
		}
	}
	return out
}

// coachRating resolves a rating, pinning the unknown coach at the default.
func coachRating(coach string, lookup CoachLookup) float64 {
	if coach == model.UnknownCoach || lookup == nil {
		return model.DefaultRating
	}
	return lookup(coach)
}

// SideRating is the play-weighted average of the side's coach ratings.
func SideRating(side model.Side, lookup CoachLookup) float64 {
	if len(side.Coaches) == 0 {
		return model.DefaultRating
	}
	var rating float64
	for i, share := range Shares(side) {
		rating += coachRating(side.Coaches[i].Coach, lookup) * share
	}
	return rating
}

// Coaches computes every coach's update for g. Each coach receives the
// side's delta scaled by their play share, applied to their own rating.
// The unknown coach is rated but never updated. Live games report ok=false.
func (e *Engine) Coaches(g model.Game, lookup CoachLookup) ([]CoachUpdate, bool) {
	if g.Live {
		return nil, false
	}
	homeRating := SideRating(g.Home, lookup)
	awayRating := SideRating(g.Away, lookup)
	homeDelta := e.Delta(g, homeRating, awayRating)

	updates := make([]CoachUpdate, 0, len(g.Home.Coaches)+len(g.Away.Coaches))
	add := func(side model.Side, delta, oppRating float64) {
		for i, share := range Shares(side) {
			coach := side.Coaches[i].Coach
			if coach == model.UnknownCoach {
				continue
			}
			updates = append(updates, CoachUpdate{
				Coach:          coach,
				Team:           side.Team,
				Share:          share,
				PriorRating:    coachRating(coach, lookup),
				OpponentRating: oppRating,
				Delta:          delta * share,
			})
		}
	}
	add(g.Home, homeDelta, awayRating)
	add(g.Away, -homeDelta, homeRating)
	return updates, true
}
