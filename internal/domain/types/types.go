// Package types contains common types used across the application
package types

import "github.com/okian/gridrank/internal/domain/model"

// Entry represents a leaderboard entry
type Entry struct {
	Rank   int           `json:"rank"`
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Elo    float64       `json:"elo"`
	WPN    *float64      `json:"wpn,omitempty"`
	Record *CoachRecords `json:"record,omitempty"`
}

// Range is the spread of ratings across all entities after one week, or
// after the preseason pass when Preseason is set.
type Range struct {
	Season    int     `json:"season"`
	Week      int     `json:"week"`
	Preseason bool    `json:"preseason,omitempty"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
}

// Record counts wins, losses and ties.
type Record struct {
	W int `json:"w"`
	L int `json:"l"`
	T int `json:"t"`
}

// Add counts one result.
func (r *Record) Add(res model.Result) {
	switch res {
	case model.Win:
		r.W++
	case model.Loss:
		r.L++
	default:
		r.T++
	}
}

// CoachRecords holds a coach's record in games where they called most of
// their side's plays (Primary) and in every game they took part in (All).
type CoachRecords struct {
	Primary Record `json:"primary"`
	All     Record `json:"all"`
}

// AddGame counts g for coach. Games the coach did not take part in are ignored.
func (c *CoachRecords) AddGame(g model.Game, coach string) {
	for _, side := range []model.Side{g.Home, g.Away} {
		for _, share := range side.Coaches {
			if share.Coach != coach {
				continue
			}
			res := g.ResultFor(side.Team)
			c.All.Add(res)
			if 2*share.Plays > side.TotalPlays() {
				c.Primary.Add(res)
			}
			return
		}
	}
}
