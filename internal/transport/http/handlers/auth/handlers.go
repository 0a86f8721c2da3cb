package authhandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"hrportal/internal/domain/auth"
	"hrportal/internal/requestctx"
	"hrportal/internal/transport/http/api"
	"hrportal/internal/transport/http/middleware"
	"hrportal/internal/transport/http/shared"
)

type Handler struct {
	Service *auth.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *auth.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/refresh", h.HandleRefresh)
		r.With(middleware.RequirePermission(auth.PermTokensIssue, h.Perms)).Post("/tokens", h.HandleIssue)
	})
}

type issueRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

// HandleRefresh re-issues the caller's token from the stored user, so role
// and employee changes take effect.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	token, err := h.Service.IssueToken(r.Context(), user.UserID)
	if err != nil {
		requestctx.Logger(r.Context()).Warn().Err(err).Str("userId", user.UserID).Msg("token refresh failed")
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "user is no longer active", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"token": token, "expiresIn": int(h.Service.TTL.Seconds())}, middleware.GetRequestID(r.Context()))
}

// HandleIssue lets a platform operator mint a token for any active user.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var payload issueRequest
	if !shared.DecodeAndValidate(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}
	token, err := h.Service.IssueToken(r.Context(), payload.UserID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "active user not found", middleware.GetRequestID(r.Context()))
		return
	}
	requestctx.Logger(r.Context()).Info().Str("issuer", user.UserID).Str("userId", payload.UserID).Msg("token issued")
	api.Success(w, map[string]any{"token": token, "expiresIn": int(h.Service.TTL.Seconds())}, middleware.GetRequestID(r.Context()))
}
