package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"

	"controlhub/internal/api/middleware"
	"controlhub/internal/pkg/errors"
	"controlhub/internal/pkg/validator"
	"controlhub/internal/platform/auth"
	"controlhub/internal/platform/models"
	"controlhub/internal/platform/repositories"
)

type AuthHandler struct {
	userRepo     *repositories.UserRepository
	tokenSvc     *auth.TokenService
	cookieSecure bool
}

func NewAuthHandler(userRepo *repositories.UserRepository, tokenSvc *auth.TokenService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		userRepo:     userRepo,
		tokenSvc:     tokenSvc,
		cookieSecure: cookieSecure,
	}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresAt   int64        `json:"expires_at"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := validator.Struct(&req); err != nil {
		writeFailure(w, r, err, "")
		return
	}

	user, err := h.userRepo.GetByEmail(r.Context(), req.Email)
	if err != nil && !errors.IsNotFound(err) {
		writeFailure(w, r, err, "")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		hlog.FromRequest(r).Info().Str("email", req.Email).Msg("login failed")
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid email or password", nil)
		return
	}

	token, err := h.tokenSvc.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		writeFailure(w, r, err, "")
		return
	}
	expiresAt := time.Now().Add(h.tokenSvc.TTL())

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, LoginResponse{
		User:        user,
		AccessToken: token,
		ExpiresAt:   expiresAt.Unix(),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
