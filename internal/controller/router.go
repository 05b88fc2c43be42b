package controller

import (
	"time"

	"github.com/cassiomorais/billingbridge/internal/billing"
	"github.com/cassiomorais/billingbridge/internal/infrastructure/config"
	"github.com/cassiomorais/billingbridge/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/billingbridge/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Redis          Pinger
	Registry       *billing.Registry
	Handlers       HandlerFactory
	AppURLs        map[string]AppURLs
	Metrics        *observability.Metrics
	CORSConfig     config.CORSConfig
	JWTSecret      string
	RateLimit      int
	BodyLimit      int64
	RequestTimeout time.Duration
}

func NewRouter(deps RouterDeps) *chi.Mux {
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(deps.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.SecurityHeaders())
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Redis)
	webhookH := NewWebhookController(deps.Registry, deps.Handlers, deps.BodyLimit)
	billingH := NewBillingController(deps.Registry, deps.AppURLs)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	// Provider callbacks authenticate by signature, not by token.
	r.Post("/webhooks/{app}", webhookH.Receive)

	r.Route("/api/v1/apps/{app}", func(r chi.Router) {
		if deps.RateLimit > 0 {
			r.Use(customMW.RateLimit(deps.RateLimit))
		}
		if deps.JWTSecret != "" {
			r.Use(customMW.RequireAuth(deps.JWTSecret))
			r.Use(customMW.RequireAppAccess)
		}

		r.Get("/products", billingH.ListProducts)
		r.Post("/checkout-sessions", billingH.CreateCheckoutSession)
		r.Post("/portal-sessions", billingH.CreatePortalSession)
		r.Get("/connection", billingH.Connection)
	})

	return r
}
