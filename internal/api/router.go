package api

import (
	"context"
	"net/http"

	"github.com/go-chi/cors"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	apiContext "controlhub/internal/api/context"
	"controlhub/internal/api/handlers"
	"controlhub/internal/api/middleware"
	"controlhub/internal/pkg/errors"
	"controlhub/internal/platform/config"
	"controlhub/internal/platform/metrics"
	"controlhub/internal/platform/models"
)

type Dependencies struct {
	AuthHandler       *handlers.AuthHandler
	UserHandler       *handlers.UserHandler
	AutomationHandler *handlers.AutomationHandler
	ClientHandler     *handlers.ClientHandler
	StatsHandler      *handlers.StatsHandler
	WebhookHandler    *handlers.WebhookHandler
	AuditHandler      *handlers.AuditHandler
	HealthHandler     *handlers.HealthHandler
	MetricsHandler    *handlers.MetricsHandler
	AuthMiddleware    *middleware.AuthMiddleware
	RateLimiter       *middleware.RateLimiter
	Metrics           *metrics.Metrics
	Logger            zerolog.Logger
	WebhookSecret     string
	RateLimits        config.RateLimitConfig
	CORS              config.CORSConfig
}

type middlewareFunc = func(http.HandlerFunc) http.HandlerFunc

func NewRouter(deps *Dependencies) http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Route not found", nil)
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusMethodNotAllowed, errors.ErrCodeInvalidInput, "Method not allowed", nil)
	})

	handle := func(method, path string, handler http.HandlerFunc, middlewares ...middlewareFunc) {
		mws := append([]middlewareFunc{middleware.Observe(deps.Metrics, method, path)}, middlewares...)
		router.Handle(method, path, chain(handler, mws...))
	}

	authMid := deps.AuthMiddleware.Handle
	limiter := deps.RateLimiter

	// Ops
	handle(http.MethodGet, "/healthz", deps.HealthHandler.Check)
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	// n8n ingestion
	handle(http.MethodPost, "/api/webhooks/n8n", deps.WebhookHandler.N8n,
		limiter.Limit("webhook", deps.RateLimits.WebhookPerMinute), middleware.SharedSecret(deps.WebhookSecret))

	// Sessions
	handle(http.MethodPost, "/api/auth/login", deps.AuthHandler.Login,
		limiter.Limit("login", deps.RateLimits.LoginPerMinute))
	handle(http.MethodPost, "/api/auth/logout", deps.AuthHandler.Logout)

	// Automations
	handle(http.MethodGet, "/api/automations", deps.AutomationHandler.List, authMid)
	handle(http.MethodGet, "/api/automations/:id", deps.AutomationHandler.Get, authMid)
	handle(http.MethodDelete, "/api/automations/:id", deps.AutomationHandler.Delete, authMid)
	handle(http.MethodGet, "/api/automations/:id/runs", deps.AutomationHandler.Runs, authMid)
	handle(http.MethodPost, "/api/automations/:id/run", deps.AutomationHandler.Run, authMid)
	handle(http.MethodPost, "/api/automations/:id/stop", deps.AutomationHandler.Stop, authMid)
	handle(http.MethodPost, "/api/automations/:id/restart", deps.AutomationHandler.Restart, authMid)

	handle(http.MethodGet, "/api/clients", deps.ClientHandler.List, authMid)
	handle(http.MethodGet, "/api/stats", deps.StatsHandler.Overview, authMid)

	// Profile
	handle(http.MethodGet, "/api/users/profile", deps.UserHandler.GetProfile, authMid)
	handle(http.MethodPut, "/api/users/profile", deps.UserHandler.UpdateProfile, authMid)

	handle(http.MethodGet, "/api/audit", deps.AuditHandler.List, authMid, middleware.RequireRole(models.RoleAdmin))

	var h http.Handler = router
	if len(deps.CORS.AllowedOrigins) > 0 {
		h = cors.Handler(cors.Options{
			AllowedOrigins:   deps.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		})(h)
	}
	return middleware.AccessLog(deps.Logger, h)
}

// chain applies middlewares so the first listed runs outermost.
func chain(handler http.HandlerFunc, middlewares ...middlewareFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// wrap exposes httprouter params through the request context.
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
