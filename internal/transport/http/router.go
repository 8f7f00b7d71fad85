// Package http wires the public REST and WebSocket surface.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"netra-apex/backend/internal/audit"
)

// RouterConfig carries everything the router mounts.
type RouterConfig struct {
	Service     string
	Version     string
	Environment string

	Auth   Authenticator
	Tokens TokenValidator
	Runs   RunCoordinator
	Gate   ContentValidator
	Audit  audit.AuditLogger

	// EventStream serves GET /ws/agent-events. It authenticates its own
	// upgrade requests, so it mounts outside the auth middleware.
	EventStream http.Handler

	HealthChecks map[string]HealthCheck

	Log *zap.Logger
}

// NewRouter builds the chi router with the full middleware stack.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	authH := &authHandler{auth: cfg.Auth, log: log}
	agentH := &agentHandler{runs: cfg.Runs, gate: cfg.Gate, log: log}
	rootH := &rootHandler{
		service:     cfg.Service,
		version:     cfg.Version,
		environment: cfg.Environment,
		startedAt:   time.Now().UTC(),
		checks:      cfg.HealthChecks,
		log:         log,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(ClientIPMiddleware)
	r.Use(RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Public surface.
	r.Get("/", rootH.root)
	r.Get("/health", rootH.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authH.register)
		r.Post("/login", authH.login)
		r.Post("/dev_login", authH.devLogin)
		r.Post("/refresh", authH.refresh)

		// Verify and logout need the caller's identity.
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.Tokens))
			r.Use(AuditMiddleware(cfg.Audit))
			r.Get("/verify", authH.verify)
			r.Post("/logout", authH.logout)
		})
	})

	// Authenticated surface.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens))
		r.Use(AuditMiddleware(cfg.Audit))

		r.Route("/agents/runs", func(r chi.Router) {
			r.Post("/", agentH.startRun)
			r.Get("/", agentH.listRuns)
			r.Get("/{runID}", agentH.getRun)
			r.Post("/{runID}/events", agentH.recordEvent)
			r.Post("/{runID}/complete", agentH.completeRun)
			r.Post("/{runID}/fail", agentH.failRun)
		})
		r.Post("/quality/validate", agentH.validateContent)
	})

	if cfg.EventStream != nil {
		r.Handle("/ws/agent-events", cfg.EventStream)
	}

	return otelhttp.NewHandler(r, cfg.Service)
}
