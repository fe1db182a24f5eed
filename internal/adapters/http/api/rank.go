package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/gridrank/internal/domain/model"
)

// RankHandler handles rank and rating history requests.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

type timelineResponse struct {
	ID        string           `json:"id"`
	Kind      model.EntityKind `json:"kind"`
	Snapshots []model.Snapshot `json:"snapshots"`
}

// HandleRank serves GET /{teams|coaches}/{id}/rank.
func (h *RankHandler) HandleRank(kind model.EntityKind) http.HandlerFunc {
	op := "api.get_" + string(kind) + "_rank"
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := h.deps.Rank(r.Context(), kind, chi.URLParam(r, "id"))
		if err != nil {
			fail(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

// HandleTimeline serves GET /{teams|coaches}/{id}/ratings.
func (h *RankHandler) HandleTimeline(kind model.EntityKind) http.HandlerFunc {
	op := "api.get_" + string(kind) + "_ratings"
	return func(w http.ResponseWriter, r *http.Request) {
		ref := model.EntityRef{Kind: kind, ID: chi.URLParam(r, "id")}
		snaps, err := h.deps.Timeline(r.Context(), ref)
		if err != nil {
			fail(w, op, err)
			return
		}
		if len(snaps) == 0 {
			fail(w, op, errNoRatings)
			return
		}
		writeJSON(w, http.StatusOK, timelineResponse{ID: ref.ID, Kind: kind, Snapshots: snaps})
	}
}
