package handlers

import (
	"net/http"

	"controlhub/internal/platform/repositories"
)

type ClientHandler struct {
	clientRepo *repositories.ClientRepository
}

func NewClientHandler(clientRepo *repositories.ClientRepository) *ClientHandler {
	return &ClientHandler{clientRepo: clientRepo}
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clientRepo.List(r.Context())
	if err != nil {
		writeFailure(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, clients)
}
