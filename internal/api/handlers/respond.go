package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	apiContext "controlhub/internal/api/context"
	"controlhub/internal/pkg/errors"
	"controlhub/internal/pkg/validator"
	"controlhub/internal/platform/auth"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", err.Error())
		return false
	}
	return true
}

// writeFailure maps service errors onto the error envelope. Unexpected
// errors are logged and answered with a generic 500.
func writeFailure(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var verr *validator.ValidationError
	switch {
	case stderrors.As(err, &verr):
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Validation failed", verr.Fields)
	case errors.IsNotFound(err):
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, notFound, nil)
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Internal server error", nil)
	}
}

// sessionClaims returns the caller's claims or writes a 401.
func sessionClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := apiContext.ClaimsFrom(r.Context())
	if !ok {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing session", nil)
	}
	return claims, ok
}
