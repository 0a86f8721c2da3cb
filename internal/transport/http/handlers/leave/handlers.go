package leavehandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"hrportal/internal/domain/audit"
	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/leave"
	"hrportal/internal/platform/jobs"
	"hrportal/internal/platform/metrics"
	"hrportal/internal/requestctx"
	"hrportal/internal/transport/http/api"
	"hrportal/internal/transport/http/middleware"
	"hrportal/internal/transport/http/shared"
)

// EmployeeNames resolves display names for rendered statements.
type EmployeeNames interface {
	EmployeeName(ctx context.Context, orgID, employeeID string) string
}

type Handler struct {
	Service   *leave.Service
	Perms     middleware.PermissionStore
	Employees EmployeeNames
	Audit     *audit.Service
	Jobs      *jobs.Service
	Metrics   *metrics.Collector
}

func NewHandler(service *leave.Service, perms middleware.PermissionStore, employees EmployeeNames, auditSvc *audit.Service, jobsSvc *jobs.Service, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Perms: perms, Employees: employees, Audit: auditSvc, Jobs: jobsSvc, Metrics: collector}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermLeaveRead, h.Perms)
	write := middleware.RequirePermission(auth.PermLeaveWrite, h.Perms)
	admin := middleware.RequirePermission(auth.PermLeaveAdmin, h.Perms)

	r.Route("/leave-policies", func(r chi.Router) {
		r.With(read).Get("/", h.handleListPolicies)
		r.With(admin).Post("/", h.handleCreatePolicy)
		r.With(read).Get("/{policyID}", h.handleGetPolicy)
		r.With(admin).Patch("/{policyID}", h.handleUpdatePolicy)
		r.With(admin).Delete("/{policyID}", h.handleDeletePolicy)
	})
	r.Route("/leave-requests", func(r chi.Router) {
		r.With(read).Get("/", h.handleListRequests)
		r.With(write).Post("/", h.handleCreateRequest)
		r.With(read).Get("/{requestID}", h.handleGetRequest)
		r.With(write).Patch("/{requestID}", h.handleReviewRequest)
	})
	r.Route("/leave-balances/{employeeID}", func(r chi.Router) {
		r.With(read).Get("/", h.handleListBalances)
		r.With(read).Get("/statement", h.handleStatement)
		r.With(admin).Post("/initialize", h.handleInitializeBalances)
		r.With(admin).Post("/adjust", h.handleAdjustBalance)
		r.With(admin).Post("/carry-forward", h.handleCarryForward)
	})
	r.Route("/comp-off-grants", func(r chi.Router) {
		r.With(read).Get("/", h.handleListGrants)
		r.With(admin).Post("/", h.handleCreateGrant)
		r.With(admin).Post("/{grantID}/apply", h.handleApplyGrant)
	})
	r.With(admin).Post("/leave-accruals/run", h.handleRunAccrual)
	r.With(middleware.RequirePermission(auth.PermAttendanceRead, h.Perms)).Get("/attendance/{employeeID}", h.handleListAttendance)
}

// currentUser writes a 401 and returns false when the request is anonymous.
func currentUser(w http.ResponseWriter, r *http.Request) (auth.UserContext, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
	}
	return user, ok
}

// pathID reads a UUID route parameter. Malformed ids can never match a row,
// so they are reported as not found.
func pathID(w http.ResponseWriter, r *http.Request, param, label string) (string, bool) {
	raw := chi.URLParam(r, param)
	if _, err := uuid.Parse(raw); err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", label+" not found", middleware.GetRequestID(r.Context()))
		return "", false
	}
	return raw, true
}

func (h *Handler) hasPermission(r *http.Request, user auth.UserContext, permission string) bool {
	ok, err := h.Perms.HasPermission(r.Context(), user.RoleName, permission)
	if err != nil {
		requestctx.Logger(r.Context()).Warn().Err(err).Str("permission", permission).Msg("permission check failed")
		return false
	}
	return ok
}

// employeeScope resolves the employee path parameter and checks the caller may
// see that employee's ledger: admins see everyone, employees only themselves.
func (h *Handler) employeeScope(w http.ResponseWriter, r *http.Request, user auth.UserContext) (string, bool) {
	employeeID, ok := pathID(w, r, "employeeID", "employee")
	if !ok {
		return "", false
	}
	if employeeID != user.EmployeeID && !h.hasPermission(r, user, auth.PermLeaveAdmin) {
		api.Fail(w, http.StatusForbidden, "forbidden", "employees may only access their own leave records", middleware.GetRequestID(r.Context()))
		return "", false
	}
	return employeeID, true
}

// writeError maps domain errors onto the response envelope. Anything that is
// not a leave error is logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	reqID := middleware.GetRequestID(r.Context())
	message := err.Error()
	var le *leave.Error
	if errors.As(err, &le) {
		message = le.Message
	}
	switch {
	case errors.Is(err, leave.ErrValidation):
		api.Fail(w, http.StatusBadRequest, "validation_error", message, reqID)
	case errors.Is(err, leave.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", message, reqID)
	case errors.Is(err, leave.ErrConflict):
		api.Fail(w, http.StatusConflict, "conflict", message, reqID)
	default:
		requestctx.Logger(r.Context()).Error().Err(err).Str("op", op).Msg("leave operation failed")
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", reqID)
	}
}

func (h *Handler) audit(r *http.Request, user auth.UserContext, action, entityType, entityID string, before, after any) {
	if h.Audit == nil {
		return
	}
	err := h.Audit.Record(r.Context(), user.OrganizationID, user.UserID, action, entityType, entityID,
		middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, after)
	if err != nil {
		requestctx.Logger(r.Context()).Warn().Err(err).Str("action", action).Msg("audit record failed")
	}
}
