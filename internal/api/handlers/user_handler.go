package handlers

import (
	"net/http"
	"strings"
	"time"

	"controlhub/internal/pkg/validator"
	"controlhub/internal/platform/repositories"
)

type UserHandler struct {
	userRepo *repositories.UserRepository
}

func NewUserHandler(userRepo *repositories.UserRepository) *UserHandler {
	return &UserHandler{userRepo: userRepo}
}

type UpdateProfileRequest struct {
	FullName  string `json:"full_name" validate:"max=120"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url,max=2048"`
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}

	user, err := h.userRepo.GetByID(r.Context(), claims.UserID)
	if err != nil {
		writeFailure(w, r, err, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := sessionClaims(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.AvatarURL = strings.TrimSpace(req.AvatarURL)

	if err := validator.Struct(&req); err != nil {
		writeFailure(w, r, err, "")
		return
	}

	ctx := r.Context()
	if err := h.userRepo.UpdateProfile(ctx, claims.UserID, req.FullName, req.AvatarURL, time.Now().Unix()); err != nil {
		writeFailure(w, r, err, "User not found")
		return
	}

	user, err := h.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		writeFailure(w, r, err, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
