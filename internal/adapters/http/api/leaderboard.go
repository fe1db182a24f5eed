package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/gridrank/internal/domain/model"
	"github.com/okian/gridrank/internal/domain/types"
)

// Sheet headers.
var (
	teamSheetHeader  = []string{"Team Name", "Elo", "wP-N"}
	coachSheetHeader = []string{"Username", "Elo", "Primary W", "Primary L", "Primary T", "All W", "All L", "All T"}
)

// LeaderboardHandler handles leaderboard requests
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

type teamsResponse struct {
	Teams  []Entry       `json:"teams"`
	Ranges []types.Range `json:"ranges"`
	TookMS float64       `json:"took_ms"`
}

type coachesResponse struct {
	Coaches []Entry       `json:"coaches"`
	Ranges  []types.Range `json:"ranges"`
	TookMS  float64       `json:"took_ms"`
}

// HandleTeams handles GET /metrics?limit=N requests
func (h *LeaderboardHandler) HandleTeams(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_team_metrics"
	start := time.Now()
	entries, ranges, err := h.board(r, model.KindTeam, true)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, teamsResponse{Teams: entries, Ranges: ranges, TookMS: tookMS(start)})
}

// HandleCoaches handles GET /coach-metrics?limit=N requests
func (h *LeaderboardHandler) HandleCoaches(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_coach_metrics"
	start := time.Now()
	entries, ranges, err := h.board(r, model.KindCoach, true)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, coachesResponse{Coaches: entries, Ranges: ranges, TookMS: tookMS(start)})
}

// HandleTeamSheet handles GET /metrics/sheets as CSV.
func (h *LeaderboardHandler) HandleTeamSheet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_team_sheet"
	entries, _, err := h.board(r, model.KindTeam, false)
	if err != nil {
		fail(w, op, err)
		return
	}
	rows := [][]string{teamSheetHeader}
	for _, e := range entries {
		wpn := ""
		if e.WPN != nil {
			wpn = formatFloat(*e.WPN)
		}
		rows = append(rows, []string{e.Name, formatFloat(e.Elo), wpn})
	}
	writeCSV(w, rows)
}

// HandleCoachSheet handles GET /coach-metrics/sheets as CSV.
func (h *LeaderboardHandler) HandleCoachSheet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_coach_sheet"
	entries, _, err := h.board(r, model.KindCoach, false)
	if err != nil {
		fail(w, op, err)
		return
	}
	rows := [][]string{coachSheetHeader}
	for _, e := range entries {
		var rec types.CoachRecords
		if e.Record != nil {
			rec = *e.Record
		}
		rows = append(rows, []string{
			e.Name, formatFloat(e.Elo),
			strconv.Itoa(rec.Primary.W), strconv.Itoa(rec.Primary.L), strconv.Itoa(rec.Primary.T),
			strconv.Itoa(rec.All.W), strconv.Itoa(rec.All.L), strconv.Itoa(rec.All.T),
		})
	}
	writeCSV(w, rows)
}

// board reads ?limit and fetches the leaderboard, plus ranges when asked.
func (h *LeaderboardHandler) board(r *http.Request, kind model.EntityKind, withRanges bool) ([]Entry, []types.Range, error) {
	limit, err := h.limit(r)
	if err != nil {
		return nil, nil, err
	}
	entries, err := h.deps.Leaderboard(r.Context(), kind, limit)
	if err != nil {
		return nil, nil, err
	}
	if !withRanges {
		return entries, nil, nil
	}
	ranges, err := h.deps.Ranges(r.Context(), kind)
	if err != nil {
		return nil, nil, err
	}
	return entries, ranges, nil
}

// limit parses ?limit. Absent means the configured maximum.
func (h *LeaderboardHandler) limit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return h.maxLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: limit %q must be a positive integer", ErrBadRequest, raw)
	}
	if n > h.maxLimit {
		return 0, fmt.Errorf("%w: limit %d above %d", ErrLimitExceeded, n, h.maxLimit)
	}
	return n, nil
}

func writeCSV(w http.ResponseWriter, rows [][]string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	// Status is already sent, a failed write only truncates the body.
	_ = csv.NewWriter(w).WriteAll(rows)
}

func tookMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
