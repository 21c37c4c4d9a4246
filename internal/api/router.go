// Package api provides the HTTP API for TransitGrid.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/transitgrid/transitgrid/internal/api/handler"
	"github.com/transitgrid/transitgrid/internal/api/middleware"
	"github.com/transitgrid/transitgrid/internal/graph"
	"github.com/transitgrid/transitgrid/internal/pipeline"
	"github.com/transitgrid/transitgrid/internal/risk"
	"github.com/transitgrid/transitgrid/internal/search"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version      string
	BuildTime    string
	Logger       zerolog.Logger
	ServiceName  string
	Metrics      *middleware.Metrics
	SearchSvc    *search.Service
	RiskEngine   *risk.Engine
	GraphStore   *graph.Store
	Orchestrator *pipeline.Orchestrator
	ReadyChecks  []handler.ReadyCheck
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "transitgrid-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.ReadyChecks...)
	searchHandler := handler.NewSearchHandler(cfg.SearchSvc)
	graphHandler := handler.NewGraphHandler(cfg.GraphStore)
	riskHandler := handler.NewRiskHandler(cfg.RiskEngine)
	adminHandler := handler.NewAdminHandler(cfg.Orchestrator, cfg.GraphStore)

	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min
	adminRateLimit := middleware.RateLimitByIP(middleware.AdminRateLimit)         // 6 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public, no rate limit: probed by the platform)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		// Route search - expensive compute, strict rate limiting
		r.With(expensiveRateLimit).Post("/routes:search", searchHandler.Search)

		// Graph diagnostics
		r.With(standardRateLimit).Get("/graph/diagnostics", graphHandler.Diagnostics)

		// Risk assessment
		r.Route("/risk", func(r chi.Router) {
			r.Use(expensiveRateLimit)
			r.Post("/route", riskHandler.AssessRoute)
			r.Post("/segment", riskHandler.AssessSegment)
		})

		// Admin endpoints - internal operations
		r.Route("/admin", func(r chi.Router) {
			r.Use(adminRateLimit)
			r.Post("/rebuild", adminHandler.Rebuild)
		})
	})

	return r
}
