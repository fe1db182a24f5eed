// Package standings compiles conference and division tables from a season's
// completed games.
package standings

import (
	"sort"
	"strings"

	"github.com/okian/gridrank/internal/domain/model"
)

// DefaultRegularSeasonWeeks is the last week counted.
const DefaultRegularSeasonWeeks = 13

// StreakNone marks a team that has not played.
const StreakNone = "N/A"

// Option applies a configuration option to Compile.
type Option func(*compiler)

// WithRegularSeasonWeeks counts games up to and including week n.
func WithRegularSeasonWeeks(n int) Option {
	return func(c *compiler) {
		if n > 0 {
			c.lastWeek = n
		}
	}
}

// Tally is a win-loss-tie record with points.
type Tally struct {
	Wins          int `json:"wins"`
	Losses        int `json:"losses"`
	Ties          int `json:"ties"`
	PointsFor     int `json:"pf"`
	PointsAgainst int `json:"pa"`
}

// Margin is wins minus losses.
func (t Tally) Margin() int { return t.Wins - t.Losses }

// PointDiff is points for minus points against.
func (t Tally) PointDiff() int { return t.PointsFor - t.PointsAgainst }

func (t *Tally) add(res model.Result, pf, pa int) {
	switch res {
	case model.Win:
		t.Wins++
	case model.Loss:
		t.Losses++
	default:
		t.Ties++
	}
	t.PointsFor += pf
	t.PointsAgainst += pa
}

// Streak is the current run of identical results.
type Streak struct {
	Type   string `json:"type"`
	Length int    `json:"length"`
}

// Entry is one team's line in a division table.
type Entry struct {
	Team         string `json:"team"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation,omitempty"`
	Overall      Tally  `json:"overall"`
	Conference   Tally  `json:"conference"`
	Division     Tally  `json:"division"`
	Streak       Streak `json:"streak"`
}

// DivisionTable is a sorted division.
type DivisionTable struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Teams []Entry `json:"teams"`
}

// ConferenceTable groups division tables.
type ConferenceTable struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Divisions []DivisionTable `json:"divisions"`
}

// Standings is the compiled result for one season.
type Standings struct {
	Season      int               `json:"season"`
	Conferences []ConferenceTable `json:"conferences"`
	// Unassigned lists teams left out for lack of a division this season.
	Unassigned []string `json:"unassigned,omitempty"`
}

// IsConferenceGame applies the league's scheduling convention: the first
// season opened with four conference weeks, later seasons reserve weeks
// 1, 2, 5 and 8 for non-conference games.
func IsConferenceGame(seasonNo, week int) bool {
	if seasonNo == 1 {
		return week < 5
	}
	switch week {
	case 1, 2, 5, 8:
		return false
	}
	return true
}

type compiler struct {
	lastWeek int
	season   int
	// results holds each team's games in week order as (opponent, margin).
	results map[string][]matchup
}

type matchup struct {
	opp    string
	margin int
}

// Compile builds the standings of season. It reads its inputs only.
func Compile(season model.Season, conferences []model.Conference, teams []model.Team, opts ...Option) Standings {
	c := &compiler{lastWeek: DefaultRegularSeasonWeeks, season: season.Number, results: make(map[string][]matchup)}
	for _, opt := range opts {
		opt(c)
	}

	divisionOf := make(map[string]string, len(teams))
	entries := make(map[string]*Entry, len(teams))
	known := make(map[string]bool)
	for _, conf := range conferences {
		for _, d := range conf.Divisions {
			known[d.ID] = true
		}
	}

	out := Standings{Season: season.Number}
	for _, t := range teams {
		div := t.DivisionFor(season.Number)
		if div == "" || !known[div] {
			out.Unassigned = append(out.Unassigned, t.ID)
			continue
		}
		divisionOf[t.ID] = div
		entries[t.ID] = &Entry{
			Team: t.ID, Name: t.Name, Abbreviation: t.Abbreviation,
			Streak: Streak{Type: StreakNone},
		}
	}
	sort.Strings(out.Unassigned)

	for _, g := range season.Games() {
		// Tie-breakers see the whole season; tallies stop at the last regular week.
		c.results[g.Home.Team] = append(c.results[g.Home.Team], matchup{opp: g.Away.Team, margin: g.Margin()})
		c.results[g.Away.Team] = append(c.results[g.Away.Team], matchup{opp: g.Home.Team, margin: -g.Margin()})
		if g.Week > c.lastWeek {
			continue
		}
		conf := IsConferenceGame(season.Number, g.Week)
		homeDiv, awayDiv := divisionOf[g.Home.Team], divisionOf[g.Away.Team]
		div := homeDiv != "" && homeDiv == awayDiv

		for _, side := range []model.Side{g.Home, g.Away} {
			e, ok := entries[side.Team]
			if !ok {
				continue
			}
			us, them, _ := g.SideOf(side.Team)
			res := g.ResultFor(side.Team)
			e.Overall.add(res, us.Score, them.Score)
			if conf {
				e.Conference.add(res, us.Score, them.Score)
			}
			if div {
				e.Division.add(res, us.Score, them.Score)
			}
			if e.Streak.Type == res.String() {
				e.Streak.Length++
			} else {
				e.Streak = Streak{Type: res.String(), Length: 1}
			}
		}
	}

	for _, conf := range conferences {
		ct := ConferenceTable{ID: conf.ID, Name: conf.Name, Divisions: make([]DivisionTable, 0, len(conf.Divisions))}
		for _, d := range conf.Divisions {
			dt := DivisionTable{ID: d.ID, Name: d.Name, Teams: []Entry{}}
			for _, t := range teams {
				if divisionOf[t.ID] == d.ID {
					dt.Teams = append(dt.Teams, *entries[t.ID])
				}
			}
			c.sortDivision(dt.Teams)
			ct.Divisions = append(ct.Divisions, dt)
		}
		sort.SliceStable(ct.Divisions, func(i, j int) bool {
			return divisionLess(ct.Divisions[i].Name, ct.Divisions[j].Name)
		})
		out.Conferences = append(out.Conferences, ct)
	}
	sort.SliceStable(out.Conferences, func(i, j int) bool {
		return out.Conferences[i].Name < out.Conferences[j].Name
	})
	return out
}

// sortDivision orders teams by the tie-break cascade. Teams are first put in
// id order so the result does not depend on input order.
func (c *compiler) sortDivision(teams []Entry) {
	sort.SliceStable(teams, func(i, j int) bool { return teams[i].Team < teams[j].Team })
	sort.SliceStable(teams, func(i, j int) bool { return c.compare(teams[i], teams[j]) < 0 })
}

// compare is negative when a ranks above b and zero when every criterion ties.
func (c *compiler) compare(a, b Entry) float64 {
	if a.Conference.Wins != b.Conference.Wins {
		return float64(b.Conference.Wins - a.Conference.Wins)
	}
	if a.Conference.Margin() != b.Conference.Margin() {
		return float64(b.Conference.Margin() - a.Conference.Margin())
	}
	if h2h := c.headToHead(a.Team, b.Team); h2h != 0 {
		return float64(h2h)
	}
	if a.Division.Wins != b.Division.Wins {
		return float64(b.Division.Wins - a.Division.Wins)
	}
	if a.Division.Margin() != b.Division.Margin() {
		return float64(b.Division.Margin() - a.Division.Margin())
	}
	if common := c.commonOpponents(a.Team, b.Team); common != 0 {
		return common
	}
	if a.Conference.PointDiff() != b.Conference.PointDiff() {
		return float64(b.Conference.PointDiff() - a.Conference.PointDiff())
	}
	return float64(b.Division.PointDiff() - a.Division.PointDiff())
}

// headToHead is -1 when team won every meeting with opp, 1 when opp did, and
// 0 when they never met, split the meetings or tied one.
func (c *compiler) headToHead(team, opp string) int {
	var won, lost int
	for _, m := range c.results[team] {
		if m.opp != opp {
			continue
		}
		switch {
		case m.margin > 0:
			won++
		case m.margin < 0:
			lost++
		default:
			return 0
		}
	}
	switch {
	case won > 0 && lost == 0:
		return -1
	case lost > 0 && won == 0:
		return 1
	}
	return 0
}

// commonOpponents compares win percentages (ties count half) against the
// third parties both teams played. Positive means opp did better.
func (c *compiler) commonOpponents(team, opp string) float64 {
	oppFaced := make(map[string]bool)
	for _, m := range c.results[opp] {
		oppFaced[m.opp] = true
	}
	shared := make(map[string]bool)
	var teamRec, oppRec [3]int
	for _, m := range c.results[team] {
		if !oppFaced[m.opp] {
			continue
		}
		shared[m.opp] = true
		countMargin(&teamRec, m.margin)
	}
	if len(shared) == 0 {
		return 0
	}
	for _, m := range c.results[opp] {
		if shared[m.opp] {
			countMargin(&oppRec, m.margin)
		}
	}
	return pct(oppRec) - pct(teamRec)
}

func countMargin(rec *[3]int, margin int) {
	switch {
	case margin > 0:
		rec[0]++
	case margin < 0:
		rec[1]++
	default:
		rec[2]++
	}
}

func pct(rec [3]int) float64 {
	total := rec[0] + rec[1] + rec[2]
	if total == 0 {
		return 0
	}
	return (float64(rec[0]) + float64(rec[2])/2) / float64(total)
}

// divisionRank puts EAST and NORTH first and WEST and SOUTH last.
func divisionRank(name string) int {
	switch strings.ToUpper(name) {
	case "EAST", "NORTH":
		return 0
	case "WEST", "SOUTH":
		return 2
	}
	return 1
}

func divisionLess(a, b string) bool {
	ra, rb := divisionRank(a), divisionRank(b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}
