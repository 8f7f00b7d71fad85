package http

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

type rootHandler struct {
	service     string
	version     string
	environment string
	startedAt   time.Time
	checks      map[string]HealthCheck
	log         *zap.Logger
}

// root describes the API surface for clients poking the base URL.
func (h *rootHandler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": h.service,
		"version": h.version,
		"endpoints": map[string]string{
			"health":          "GET /health",
			"register":        "POST /auth/register",
			"login":           "POST /auth/login",
			"verify":          "GET /auth/verify",
			"refresh":         "POST /auth/refresh",
			"logout":          "POST /auth/logout",
			"dev_login":       "POST /auth/dev_login",
			"agent_runs":      "POST /agents/runs",
			"agent_events_ws": "GET /ws/agent-events",
			"quality_gate":    "POST /quality/validate",
			"metrics":         "GET /metrics",
		},
	})
}

// health reports service status plus the state of each dependency check.
// Any failing check flips the status to degraded but keeps the 200 so load
// balancers distinguish degraded from down.
func (h *rootHandler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	checks := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Warn("health check failed", zap.String("check", name), zap.Error(err))
			checks[name] = "error"
			status = "degraded"
		} else {
			checks[name] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         status,
		"service":        h.service,
		"version":        h.version,
		"environment":    h.environment,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"checks":         checks,
	})
}
