package healthhandler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"hrportal/internal/domain/auth"
	"hrportal/internal/platform/metrics"
	"hrportal/internal/requestctx"
	"hrportal/internal/transport/http/api"
	"hrportal/internal/transport/http/middleware"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Checks  map[string]Pinger
	Metrics *metrics.Collector
	Perms   middleware.PermissionStore
	Timeout time.Duration
}

func NewHandler(checks map[string]Pinger, collector *metrics.Collector, perms middleware.PermissionStore) *Handler {
	return &Handler{Checks: checks, Metrics: collector, Perms: perms, Timeout: 2 * time.Second}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Get("/readyz", h.handleReady)
	if h.Metrics != nil {
		r.With(middleware.RequirePermission(auth.PermSystemMetrics, h.Perms)).Get("/metrics", h.handleMetrics)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	api.Success(w, map[string]string{"status": "ok"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	status := make(map[string]string, len(h.Checks))
	ready := true
	for name, check := range h.Checks {
		if err := check.Ping(ctx); err != nil {
			requestctx.Logger(r.Context()).Warn().Err(err).Str("dependency", name).Msg("readiness check failed")
			status[name] = "unavailable"
			ready = false
			continue
		}
		status[name] = "ok"
	}
	if !ready {
		api.FailWithDetails(w, http.StatusServiceUnavailable, "not_ready", "dependencies not ready", status, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, status, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
}
