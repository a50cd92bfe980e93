package context

import (
	"context"

	"github.com/julienschmidt/httprouter"

	"controlhub/internal/platform/auth"
)

type Key string

const (
	Claims Key = "claims"
	Params Key = "params"
)

// ClaimsFrom returns the session claims set by the auth middleware.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(Claims).(*auth.Claims)
	return claims, ok && claims != nil
}

// Param returns a named route parameter, or "" when absent.
func Param(ctx context.Context, name string) string {
	ps, _ := ctx.Value(Params).(httprouter.Params)
	return ps.ByName(name)
}
