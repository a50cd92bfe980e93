package handlers

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/hlog"

	apiContext "controlhub/internal/api/context"
	"controlhub/internal/api/middleware"
	"controlhub/internal/engine/actions"
	"controlhub/internal/engine/automations"
	"controlhub/internal/pkg/errors"
	"controlhub/internal/platform/models"
	"controlhub/internal/platform/repositories"
)

// ListCacheControl lets the browser reuse the automations list briefly.
const ListCacheControl = "private, max-age=60"

type AutomationHandler struct {
	automations *automations.Service
	actions     *actions.Service
}

func NewAutomationHandler(automationSvc *automations.Service, actionSvc *actions.Service) *AutomationHandler {
	return &AutomationHandler{automations: automationSvc, actions: actionSvc}
}

func (h *AutomationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := repositories.AutomationFilter{
		Status:   models.AutomationStatus(q.Get("status")),
		ClientID: q.Get("client_id"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid status filter",
			map[string]string{"status": "must be one of: Running Stopped Error Stalled"})
		return
	}

	list, err := h.automations.List(r.Context(), claims.UserID, filter)
	if err != nil {
		writeFailure(w, r, err, "")
		return
	}

	w.Header().Set("Cache-Control", ListCacheControl)
	writeJSON(w, http.StatusOK, list)
}

func (h *AutomationHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}

	automation, err := h.automations.Get(r.Context(), apiContext.Param(r.Context(), "id"), claims.UserID)
	if err != nil {
		writeFailure(w, r, err, "Automation not found")
		return
	}
	writeJSON(w, http.StatusOK, automation)
}

func (h *AutomationHandler) Runs(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	runs, err := h.automations.Runs(r.Context(), apiContext.Param(r.Context(), "id"), claims.UserID, limit, offset)
	if err != nil {
		writeFailure(w, r, err, "Automation not found")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *AutomationHandler) Run(w http.ResponseWriter, r *http.Request) {
	h.perform(w, r, actions.Run)
}

func (h *AutomationHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.perform(w, r, actions.Stop)
}

func (h *AutomationHandler) Restart(w http.ResponseWriter, r *http.Request) {
	h.perform(w, r, actions.Restart)
}

func (h *AutomationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.perform(w, r, actions.Delete)
}

func (h *AutomationHandler) perform(w http.ResponseWriter, r *http.Request, action actions.Action) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}

	automation, err := h.actions.Perform(r.Context(), action, actions.Request{
		AutomationID: apiContext.Param(r.Context(), "id"),
		UserID:       claims.UserID,
		IPAddress:    middleware.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})

	var upstream *actions.UpstreamError
	switch {
	case err == nil:
	case stderrors.Is(err, actions.ErrNoWebhook):
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput,
			"Automation has no webhook configured for "+string(action), nil)
		return
	case stderrors.As(err, &upstream):
		hlog.FromRequest(r).Error().Err(err).Str("action", string(action)).Msg("automation trigger failed")
		errors.WriteError(w, http.StatusBadGateway, errors.ErrCodeUpstream, "Automation webhook call failed", nil)
		return
	default:
		writeFailure(w, r, err, "Automation not found")
		return
	}

	if automation == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, automation)
}
