package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Moeed-ul-Hassan/pair-drop/internal/audit"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/config"
	apperrors "github.com/Moeed-ul-Hassan/pair-drop/internal/errors"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/handler"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/httputil"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/metrics"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/middleware"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/service"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/telemetry"
	"github.com/Moeed-ul-Hassan/pair-drop/internal/ws"
)

const (
	scopeAPI    = "api"
	scopeCreate = "create_session"
)

type RouterOptions struct {
	Config       *config.Config
	Sessions     *service.SessionService
	Hub          *ws.Hub
	Store        handler.Pinger
	Limiter      middleware.Limiter
	IsProduction bool
}

// NewRouter wires every HTTP route. /ws sits outside the request timeout
// since the connection outlives the upgrade request.
func NewRouter(opts RouterOptions) http.Handler {
	cfg := opts.Config
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         int((10 * time.Minute).Seconds()),
	}))

	healthHandler := handler.NewHealthHandler(opts.Store)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Method(http.MethodGet, "/ws", ws.NewHandler(opts.Hub, cfg.AllowedOrigins))

	bodyLimit := middleware.NewBodyLimitMiddleware(middleware.DefaultMaxBodySize)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(opts.IsProduction)
	createLimit := middleware.NewRateLimitMiddleware(opts.Limiter, scopeCreate, cfg.CreateRateLimitPerMin)
	sessionHandler := handler.NewSessionHandler(opts.Sessions, createLimit.Handler)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(bodyLimit.Handler)
		r.Use(securityHeaders.Handler)
		r.Use(httprate.Limit(
			cfg.APIRateLimitPerMin,
			time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(apiLimitExceeded),
		))

		r.Mount("/sessions", sessionHandler.Routes())
	})

	return telemetry.Middleware(config.ServiceName, "/ws", "/health", "/ready", "/metrics")(r)
}

func apiLimitExceeded(w http.ResponseWriter, r *http.Request) {
	metrics.RateLimited.WithLabelValues(scopeAPI).Inc()
	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventRateLimitExceed,
		Details: map[string]interface{}{"scope": scopeAPI},
	})
	httputil.WriteError(w, apperrors.RateLimitExceeded())
}
