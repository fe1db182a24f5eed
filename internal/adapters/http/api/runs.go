package api

import (
	"net/http"
)

// RunHandler triggers metrics runs and season resets.
type RunHandler struct {
	deps RunDependencies
}

// NewRunHandler creates a new run handler.
func NewRunHandler(deps RunDependencies) *RunHandler {
	return &RunHandler{deps: deps}
}

// HandleCalc serves POST /calc-metrics/{season}[/{week}]. Without a week the
// whole season is recomputed, preseason anchors included.
func (h *RunHandler) HandleCalc(w http.ResponseWriter, r *http.Request) {
	const op = "api.calc_metrics"
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
	report, err := h.deps.Update(r.Context(), season, week)
	if err != nil {
		fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleReset serves DELETE /metrics/{season}.
func (h *RunHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	const op = "api.reset_season"
	season, err := pathInt(r, "season")
	if err != nil {
		fail(w, op, err)
		return
	}
	if err := h.deps.ResetSeason(r.Context(), season); err != nil {
		fail(w, op, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
