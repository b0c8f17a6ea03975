package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sharetaxi/sharetaxi/internal/config"
	"github.com/sharetaxi/sharetaxi/internal/handler"
	"github.com/sharetaxi/sharetaxi/internal/metrics"
	"github.com/sharetaxi/sharetaxi/internal/middleware"
	"github.com/sharetaxi/sharetaxi/internal/web"
)

// routes bundles what setupRouter wires together.
type routes struct {
	base     *handler.Handler
	health   *handler.HealthHandler
	metrics  *handler.MetricsHandler
	auth     *handler.AuthHandler
	chat     *handler.ChatHandler
	account  *handler.AccountHandler
	resolver middleware.SessionResolver
	limiter  middleware.IPRateLimiter
	origin   middleware.OriginChecker
	recorder metrics.Recorder
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(rt routes, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger, "/healthz", "/readyz", "/metrics", "/static/"))
	r.Use(middleware.Recoverer(logger, http.HandlerFunc(rt.base.InternalError)))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment: cfg.IsDevelopment(),
		StaticPrefix:  "/static/",
		StaticMaxAge:  3600,
	}))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))
	r.Use(middleware.SameOrigin(rt.origin, logger))

	// Ops endpoints
	r.Get("/healthz", rt.health.Healthz)
	r.Get("/readyz", rt.health.Readyz)
	r.Get("/metrics", rt.metrics.Metrics)
	r.Handle("/static/*", http.StripPrefix("/static/", web.Static()))

	// Public pages; a session is attached when present
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalSession(rt.resolver))
		r.Get("/", rt.base.Home)
		r.Get("/login", rt.auth.LoginPage)
	})

	loginLimit := middleware.RateLimitIP(middleware.RateLimitConfig{
		Logger:  logger,
		Limiter: rt.limiter,
		Enabled: cfg.RateLimitLoginEnabled,
		RPS:     cfg.RateLimitLoginRPS,
		Burst:   cfg.RateLimitLoginBurst,
	})
	r.With(loginLimit).Post("/login/otp", rt.auth.SendOTP)
	r.With(loginLimit).Post("/login/verify", rt.auth.VerifyOTP)
	r.Post("/logout", rt.auth.Logout)
	r.Get("/demo", rt.auth.Demo)

	// Everything below requires a session
	guard := middleware.RequireSession(middleware.GuardConfig{
		Resolver:   rt.resolver,
		RedirectTo: handler.LoginPath,
		Logger:     logger,
		Metrics:    rt.recorder,
	})

	r.Route("/analytics", func(r chi.Router) {
		r.Use(guard)
		r.Get("/", rt.account.Analytics)
	})

	r.Route("/profile", func(r chi.Router) {
		r.Use(guard)
		r.Get("/", rt.account.Profile)
	})

	r.Route("/settings", func(r chi.Router) {
		r.Use(guard)
		r.Get("/", rt.account.Settings)
		r.Post("/", rt.account.UpdateSettings)
	})

	r.Route("/chat", func(r chi.Router) {
		r.Use(guard)
		r.Get("/", rt.chat.List)
		r.Route("/{conversationID}", func(r chi.Router) {
			r.Get("/", rt.chat.Show)
			r.Get("/messages", rt.chat.Messages)
			r.Post("/messages", rt.chat.Send)
			r.Get("/ws", rt.chat.Stream)
		})
	})

	// 404 and 405 handlers
	r.NotFound(rt.base.NotFound)
	r.MethodNotAllowed(rt.base.MethodNotAllowed)

	return r
}
