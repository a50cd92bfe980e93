package handlers

import (
	"net/http"
	"strconv"

	"controlhub/internal/platform/audit"
)

type AuditHandler struct {
	logger *audit.Logger
}

func NewAuditHandler(logger *audit.Logger) *AuditHandler {
	return &AuditHandler{logger: logger}
}

// List returns the latest audit entries, newest first. Admin only.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 100
	}

	logs, err := h.logger.List(r.Context(), limit)
	if err != nil {
		writeFailure(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
