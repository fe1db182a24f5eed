// Package model contains domain models passed between layers.
package model

import (
	"sort"
)

// UnknownCoach is the identity given to coaches whose account no longer exists.
// It always rates at DefaultRating and never accumulates history.
const UnknownCoach = "[deleted]"

// Team is a league member. Divisions holds one division id per season,
// index 0 being season 1.
type Team struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Abbreviation string   `json:"abbreviation,omitempty" yaml:"abbreviation,omitempty"`
	Divisions    []string `json:"divisions" yaml:"divisions"`
}

// DivisionFor returns the team's division for seasonNo, or "" when unassigned.
func (t Team) DivisionFor(seasonNo int) string {
	if seasonNo < 1 || seasonNo > len(t.Divisions) {
		return ""
	}
	return t.Divisions[seasonNo-1]
}

// Coach is a person calling plays for a team.
type Coach struct {
	ID       string `json:"id" yaml:"id"`
	Username string `json:"username" yaml:"username"`
}

// Division groups teams inside a conference.
type Division struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Conference groups divisions.
type Conference struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Divisions []Division `json:"divisions" yaml:"divisions"`
}

// CoachShare credits a coach with the plays they called for one side.
type CoachShare struct {
	Coach string `json:"coach" yaml:"coach"`
	Plays int    `json:"plays" yaml:"plays"`
}

// Side is one team's half of a game.
type Side struct {
	Team     string       `json:"team" yaml:"team"`
	Score    int          `json:"score" yaml:"score"`
	Quarters []int        `json:"quarters,omitempty" yaml:"quarters,omitempty"`
	Coaches  []CoachShare `json:"coaches,omitempty" yaml:"coaches,omitempty"`
}

// TotalPlays sums the plays of every coach on the side.
func (s Side) TotalPlays() int {
	total := 0
	for _, c := range s.Coaches {
		total += c.Plays
	}
	return total
}

// Result of a game from one team's point of view.
type Result int

// Results.
const (
	Loss Result = -1
	Tie  Result = 0
	Win  Result = 1
)

func (r Result) String() string {
	switch r {
	case Win:
		return "W"
	case Loss:
		return "L"
	default:
		return "T"
	}
}

// Game is a single matchup. Week is filled in from the enclosing week.
type Game struct {
	ID            string `json:"id" yaml:"id"`
	Week          int    `json:"week" yaml:"-"`
	Home          Side   `json:"home" yaml:"home"`
	Away          Side   `json:"away" yaml:"away"`
	LengthSeconds int    `json:"length_seconds" yaml:"length_seconds"`
	Live          bool   `json:"live" yaml:"live,omitempty"`
}

// Margin is the home score minus the away score.
func (g Game) Margin() int {
	return g.Home.Score - g.Away.Score
}

// MarginOfVictory is the absolute point differential.
func (g Game) MarginOfVictory() int {
	m := g.Margin()
	if m < 0 {
		return -m
	}
	return m
}

// Involves reports whether team played in the game.
func (g Game) Involves(team string) bool {
	return g.Home.Team == team || g.Away.Team == team
}

// SideOf returns team's side and the opposing side.
func (g Game) SideOf(team string) (us, them Side, ok bool) {
	switch team {
	case g.Home.Team:
		return g.Home, g.Away, true
	case g.Away.Team:
		return g.Away, g.Home, true
	}
	return Side{}, Side{}, false
}

// ResultFor returns the game result from team's perspective.
func (g Game) ResultFor(team string) Result {
	us, them, ok := g.SideOf(team)
	if !ok {
		return Tie
	}
	switch {
	case us.Score > them.Score:
		return Win
	case us.Score < them.Score:
		return Loss
	default:
		return Tie
	}
}

// Week is a numbered round of games.
type Week struct {
	Number int    `json:"number" yaml:"number"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Games  []Game `json:"games" yaml:"games"`
}

// Season is an ordered list of weeks.
type Season struct {
	Number int    `json:"number" yaml:"number"`
	Weeks  []Week `json:"weeks" yaml:"weeks"`
}

// Week returns the week numbered n.
func (s Season) Week(n int) (Week, bool) {
	for _, w := range s.Weeks {
		if w.Number == n {
			return w, true
		}
	}
	return Week{}, false
}

// SortedWeeks returns the weeks in ascending number order without touching s.
func (s Season) SortedWeeks() []Week {
	out := make([]Week, len(s.Weeks))
	copy(out, s.Weeks)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Games returns every completed game of the season in week order, with Week
// set. A game id listed more than once is returned at its first listing only.
func (s Season) Games() []Game {
	var out []Game
	seen := make(map[string]struct{})
	for _, w := range s.SortedWeeks() {
		for _, g := range w.Completed() {
			if _, dup := seen[g.ID]; dup {
				continue
			}
			seen[g.ID] = struct{}{}
			out = append(out, g)
		}
	}
	return out
}

// Completed returns the non-live games of the week, with Week set.
func (w Week) Completed() []Game {
	out := make([]Game, 0, len(w.Games))
	for _, g := range w.Games {
		if g.Live {
			continue
		}
		g.Week = w.Number
		out = append(out, g)
	}
	return out
}

// League is the full league document.
type League struct {
	Conferences []Conference `json:"conferences" yaml:"conferences"`
	Teams       []Team       `json:"teams" yaml:"teams"`
	Coaches     []Coach      `json:"coaches" yaml:"coaches"`
	Seasons     []Season     `json:"seasons" yaml:"seasons"`
}
