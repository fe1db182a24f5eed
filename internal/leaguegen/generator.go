package leaguegen

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/gridrank/internal/domain/elo"
	"github.com/okian/gridrank/internal/domain/model"
)

// Scoring model constants. A side scores touchdowns and field goals drawn
// from Poisson distributions whose means shift with the strength gap.
const (
	touchdownMean   = 2.6
	fieldGoalMean   = 1.4
	strengthSpread  = 0.45
	headCoachPlays  = 45
	assistantPlays  = 12
	playsJitter     = 10
	seedStream      = 0x9e3779b97f4a7c15
	divisionsCycled = 4
)

var divisionNames = [divisionsCycled]string{"East", "West", "North", "South"}

// generator carries the random source and the evolving coach assignments.
type generator struct {
	cfg      Config
	rng      *rand.Rand
	ns       uuid.UUID
	strength map[string]float64
	head     map[string]string
	pool     []string
}

// Generate builds a league from cfg. The same Config always yields the
// same league.
func Generate(cfg Config) (model.League, error) {
	if err := cfg.Validate(); err != nil {
		return model.League{}, err
	}
	g := &generator{
		cfg:      cfg,
		rng:      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^seedStream)),
		ns:       uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "gridrank/%d", cfg.Seed)),
		strength: make(map[string]float64),
		head:     make(map[string]string),
	}

	var l model.League
	l.Conferences, l.Teams = g.structure()
	l.Coaches = g.coaches(l.Teams)
	for s := 1; s <= cfg.Seasons; s++ {
		if s > 1 {
			g.turnover(l.Teams)
		}
		l.Seasons = append(l.Seasons, g.season(s, l.Teams))
	}
	return l, nil
}

func (g *generator) structure() ([]model.Conference, []model.Team) {
	var (
		confs []model.Conference
		teams []model.Team
	)
	for c := 1; c <= g.cfg.Conferences; c++ {
		conf := model.Conference{ID: fmt.Sprintf("c%d", c), Name: fmt.Sprintf("Conference %d", c)}
		for d := 1; d <= g.cfg.DivisionsPerConference; d++ {
			div := model.Division{
				ID:   fmt.Sprintf("c%dd%d", c, d),
				Name: divisionNames[(d-1)%divisionsCycled],
			}
			if d > divisionsCycled {
				div.Name = fmt.Sprintf("%s %d", div.Name, (d-1)/divisionsCycled+1)
			}
			conf.Divisions = append(conf.Divisions, div)
			for t := 1; t <= g.cfg.TeamsPerDivision; t++ {
				n := len(teams) + 1
				team := model.Team{
					ID:           fmt.Sprintf("t%02d", n),
					Name:         fmt.Sprintf("Team %02d", n),
					Abbreviation: fmt.Sprintf("T%02d", n),
					Divisions:    make([]string, g.cfg.Seasons),
				}
				for s := range team.Divisions {
					team.Divisions[s] = div.ID
				}
				g.strength[team.ID] = g.rng.NormFloat64()
				teams = append(teams, team)
			}
		}
		confs = append(confs, conf)
	}
	return confs, teams
}

// coaches creates one head coach per team plus a free pool half as large.
func (g *generator) coaches(teams []model.Team) []model.Coach {
	total := len(teams) + (len(teams)+1)/2
	out := make([]model.Coach, 0, total)
	for i := 1; i <= total; i++ {
		c := model.Coach{ID: fmt.Sprintf("coach%02d", i), Username: fmt.Sprintf("coach%02d", i)}
		out = append(out, c)
		if i <= len(teams) {
			g.head[teams[i-1].ID] = c.ID
			continue
		}
		g.pool = append(g.pool, c.ID)
	}
	return out
}

// turnover swaps some head coaches with the free pool.
func (g *generator) turnover(teams []model.Team) {
	for _, t := range teams {
		if len(g.pool) == 0 || g.rng.Float64() >= g.cfg.CoachTurnover {
			continue
		}
		i := g.rng.IntN(len(g.pool))
		g.head[t.ID], g.pool[i] = g.pool[i], g.head[t.ID]
	}
}

func (g *generator) season(n int, teams []model.Team) model.Season {
	rounds := schedule(teams)
	weeks := g.cfg.WeeksPerSeason()
	s := model.Season{Number: n}
	for w := 1; w <= weeks; w++ {
		pairs := rounds[(w-1)%len(rounds)]
		week := model.Week{Number: w, Name: fmt.Sprintf("Week %d", w)}
		for i, p := range pairs {
			home, away := p[0], p[1]
			if w%2 == 0 {
				home, away = away, home
			}
			week.Games = append(week.Games, g.game(n, w, i, home, away))
		}
		s.Weeks = append(s.Weeks, week)
	}
	if n == g.cfg.Seasons {
		last := &s.Weeks[len(s.Weeks)-1]
		for i := 0; i < g.cfg.LiveGames && i < len(last.Games); i++ {
			g.goLive(&last.Games[i])
		}
	}
	return s
}

func (g *generator) game(season, week, slot int, home, away string) model.Game {
	gap := (g.strength[home] - g.strength[away]) * strengthSpread
	h := g.side(home, gap, "")
	var homeAssistant string
	if len(h.Coaches) > 1 {
		homeAssistant = h.Coaches[1].Coach
	}
	return model.Game{
		ID:            uuid.NewSHA1(g.ns, fmt.Appendf(nil, "%d/%d/%d", season, week, slot)).String(),
		Home:          h,
		Away:          g.side(away, -gap, homeAssistant),
		LengthSeconds: int(elo.RegulationMinutes * 60),
	}
}

// side scores one team. A pool coach never assists both sides of a game, so
// avoid names the other side's assistant.
func (g *generator) side(team string, edge float64, avoid string) model.Side {
	td := g.poisson(math.Max(touchdownMean*(1+edge), 0.2))
	fg := g.poisson(fieldGoalMean)
	s := model.Side{Team: team, Score: td*7 + fg*3}
	s.Coaches = []model.CoachShare{{Coach: g.head[team], Plays: headCoachPlays + g.rng.IntN(playsJitter)}}
	if g.rng.Float64() < g.cfg.AssistantRate {
		assistant := model.UnknownCoach
		if len(g.pool) > 0 && g.rng.Float64() >= g.cfg.DeletedRate {
			assistant = g.pool[g.rng.IntN(len(g.pool))]
		}
		if assistant == avoid && assistant != model.UnknownCoach {
			return s
		}
		s.Coaches = append(s.Coaches, model.CoachShare{Coach: assistant, Plays: assistantPlays + g.rng.IntN(playsJitter)})
	}
	return s
}

// goLive rewinds a finished game to halftime.
func (g *generator) goLive(gm *model.Game) {
	gm.Live = true
	gm.LengthSeconds /= 2
	gm.Home.Score /= 2
	gm.Away.Score /= 2
}

// poisson samples by multiplying uniforms until they fall below e^-lambda.
func (g *generator) poisson(lambda float64) int {
	limit := math.Exp(-lambda)
	p := 1.0
	k := 0
	for p > limit {
		k++
		p *= g.rng.Float64()
	}
	return k - 1
}

// schedule returns a single round robin using the circle method. Each round
// lists (home, away) pairs. With an odd team count one team sits out per round.
func schedule(teams []model.Team) [][][2]string {
	ids := make([]string, 0, len(teams)+1)
	for _, t := range teams {
		ids = append(ids, t.ID)
	}
	if len(ids)%2 != 0 {
		ids = append(ids, "")
	}
	n := len(ids)
	rounds := make([][][2]string, 0, n-1)
	for r := 0; r < n-1; r++ {
		var round [][2]string
		for i := 0; i < n/2; i++ {
			home, away := ids[i], ids[n-1-i]
			if home == "" || away == "" {
				continue
			}
			round = append(round, [2]string{home, away})
		}
		rounds = append(rounds, round)
		last := ids[n-1]
		copy(ids[2:], ids[1:n-1])
		ids[1] = last
	}
	return rounds
}
