package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"controlhub/internal/pkg/errors"
)

// SharedSecret guards the n8n webhook. The Authorization header must carry
// secret either raw or as "Bearer <secret>". An empty secret rejects all.
func SharedSecret(secret string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimSpace(r.Header.Get("Authorization"))
			if len(got) > 7 && strings.EqualFold(got[:7], "Bearer ") {
				got = strings.TrimSpace(got[7:])
			}

			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				hlog.FromRequest(r).Warn().Str("remote_ip", ClientIP(r)).Msg("webhook rejected: bad shared secret")
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid webhook secret", nil)
				return
			}

			next(w, r)
		}
	}
}
