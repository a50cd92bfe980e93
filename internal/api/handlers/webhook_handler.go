package handlers

import (
	"net/http"

	"github.com/rs/zerolog/hlog"

	"controlhub/internal/engine/ingest"
	"controlhub/internal/platform/models"
)

type WebhookHandler struct {
	ingest *ingest.Service
}

func NewWebhookHandler(ingestSvc *ingest.Service) *WebhookHandler {
	return &WebhookHandler{ingest: ingestSvc}
}

type WebhookResponse struct {
	Success bool                  `json:"success"`
	Data    *models.AutomationRun `json:"data"`
}

// N8n records one execution report. The caller is already authenticated by
// the shared secret middleware.
func (h *WebhookHandler) N8n(w http.ResponseWriter, r *http.Request) {
	var payload ingest.Payload
	if !decodeBody(w, r, &payload) {
		return
	}

	run, err := h.ingest.Ingest(r.Context(), &payload)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).
			Str("automation_id", payload.AutomationID).
			Str("user_id", payload.UserID).
			Str("execution_id", payload.ExecutionID).
			Msg("webhook not ingested")
		writeFailure(w, r, err, "Automation not found")
		return
	}

	writeJSON(w, http.StatusOK, WebhookResponse{Success: true, Data: run})
}
