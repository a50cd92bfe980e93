package handlers

import (
	"net/http"

	"controlhub/internal/engine/stats"
)

type StatsHandler struct {
	stats *stats.Service
}

func NewStatsHandler(statsSvc *stats.Service) *StatsHandler {
	return &StatsHandler{stats: statsSvc}
}

func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}

	overview, err := h.stats.Overview(r.Context(), claims.UserID)
	if err != nil {
		writeFailure(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, overview)
}
