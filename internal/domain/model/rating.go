package model

import (
	"time"
)

// DefaultRating is the rating of an entity with no history.
const DefaultRating = 1500.0

// EntityKind distinguishes rated entities.
type EntityKind string

// Entity kinds.
const (
	KindTeam  EntityKind = "team"
	KindCoach EntityKind = "coach"
)

// EntityRef identifies a rated entity.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

// TeamRef builds a team reference.
func TeamRef(id string) EntityRef { return EntityRef{Kind: KindTeam, ID: id} }

// CoachRef builds a coach reference.
func CoachRef(id string) EntityRef { return EntityRef{Kind: KindCoach, ID: id} }

func (r EntityRef) String() string { return string(r.Kind) + ":" + r.ID }

// Position is a point on a rating timeline. The preseason position of a
// season sorts before every week of that season.
type Position struct {
	Season    int  `json:"season"`
	Week      int  `json:"week"`
	Preseason bool `json:"preseason"`
}

// PreseasonOf returns the preseason position of season.
func PreseasonOf(season int) Position {
	return Position{Season: season, Preseason: true}
}

// WeekOf returns the position of week in season.
func WeekOf(season, week int) Position {
	return Position{Season: season, Week: week}
}

// Before reports whether p sorts strictly before o.
func (p Position) Before(o Position) bool {
	if p.Season != o.Season {
		return p.Season < o.Season
	}
	if p.Preseason != o.Preseason {
		return p.Preseason
	}
	return p.Week < o.Week
}

// Snapshot is one entry of an entity's rating timeline.
type Snapshot struct {
	Entity         EntityRef `json:"entity"`
	Season         int       `json:"season"`
	Week           int       `json:"week"`
	Preseason      bool      `json:"preseason"`
	Games          []string  `json:"games,omitempty"`
	OpponentRating float64   `json:"opponent_rating"`
	PriorRating    float64   `json:"prior_rating"`
	NewRating      float64   `json:"new_rating"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Position returns the snapshot's place on the timeline.
func (s Snapshot) Position() Position {
	return Position{Season: s.Season, Week: s.Week, Preseason: s.Preseason}
}

// Delta is the rating change recorded by the snapshot.
func (s Snapshot) Delta() float64 {
	return s.NewRating - s.PriorRating
}

// WPNScore is a team's Park-Newman score for one season.
type WPNScore struct {
	Team   string  `json:"team"`
	Season int     `json:"season"`
	Score  float64 `json:"score"`
	Wins   float64 `json:"wins"`
	Losses float64 `json:"losses"`
}
