package api

import (
	"net/http"

	"github.com/okian/gridrank/internal/domain/model"
)

// LeagueHandler serves the schedule, structure, standings and wPN views.
type LeagueHandler struct {
	deps LeagueDependencies
}

// NewLeagueHandler creates a new league handler.
func NewLeagueHandler(deps LeagueDependencies) *LeagueHandler {
	return &LeagueHandler{deps: deps}
}

type seasonSummary struct {
	Number int   `json:"number"`
	Weeks  []int `json:"weeks"`
}

type gamesResponse struct {
	Season int          `json:"season"`
	Week   *int         `json:"week,omitempty"`
	Games  []model.Game `json:"games"`
}

type wpnResponse struct {
	Season int              `json:"season"`
	Scores []model.WPNScore `json:"scores"`
}

// HandleSeasons serves GET /seasons.
func (h *LeagueHandler) HandleSeasons(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_seasons"
	seasons, err := h.deps.Seasons(r.Context())
	if err != nil {
		fail(w, op, err)
		return
	}
	out := make([]seasonSummary, 0, len(seasons))
	for _, s := range seasons {
		sum := seasonSummary{Number: s.Number, Weeks: []int{}}
		for _, wk := range s.SortedWeeks() {
			sum.Weeks = append(sum.Weeks, wk.Number)
		}
		out = append(out, sum)
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleConferences serves GET /conferences.
func (h *LeagueHandler) HandleConferences(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_conferences"
	confs, err := h.deps.Conferences(r.Context())
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, confs)
}

// HandleGames serves GET /games/{season}[/{week}].
func (h *LeagueHandler) HandleGames(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_games"
	season, err := pathInt(r, "season")
	if err != nil {
		fail(w, op, err)
		return
	}
	week, err := optionalPathInt(r, "week")
	if err != nil {
		fail(w, op, err)
		return
	}
	games, err := h.deps.Games(r.Context(), season, week)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, gamesResponse{Season: season, Week: week, Games: games})
}

// HandleStandings serves GET /standings[/{season}]. The current season is
// used when none is given.
func (h *LeagueHandler) HandleStandings(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_standings"
	season, err := optionalPathInt(r, "season")
	if err != nil {
		fail(w, op, err)
		return
	}
	n := h.deps.CurrentSeason()
	if season != nil {
		n = *season
	}
	out, err := h.deps.Standings(r.Context(), n)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleWPN serves GET /wpn/{season}.
func (h *LeagueHandler) HandleWPN(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_wpn"
	season, err := pathInt(r, "season")
	if err != nil {
		fail(w, op, err)
		return
	}
	scores, err := h.deps.WPN(r.Context(), season)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, wpnResponse{Season: season, Scores: scores})
}
