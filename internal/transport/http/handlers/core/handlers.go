package corehandler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/core"
	"hrportal/internal/requestctx"
	"hrportal/internal/transport/http/api"
	"hrportal/internal/transport/http/middleware"
	"hrportal/internal/transport/http/shared"
)

type Handler struct {
	Service *core.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *core.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.handleMe)
	r.Route("/employees", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)).Get("/", h.handleListEmployees)
		r.With(middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)).Get("/{employeeID}", h.handleGetEmployee)
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var emp *core.Employee
	if user.EmployeeID != "" {
		found, err := h.Service.GetEmployee(r.Context(), user.OrganizationID, user.EmployeeID)
		switch {
		case err == nil:
			emp = &found
		case !errors.Is(err, core.ErrNotFound):
			requestctx.Logger(r.Context()).Warn().Err(err).Msg("employee lookup failed")
		}
	}

	api.Success(w, map[string]any{
		"user": map[string]string{
			"id":             user.UserID,
			"organizationId": user.OrganizationID,
			"employeeId":     user.EmployeeID,
			"role":           user.RoleName,
		},
		"employee": emp,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	page := shared.ParsePagination(r, 100, 500)
	employees, total, err := h.Service.ListEmployees(r.Context(), user.OrganizationID, page.Limit, page.Offset)
	if err != nil {
		requestctx.Logger(r.Context()).Error().Err(err).Msg("employee list failed")
		api.Fail(w, http.StatusInternalServerError, "employee_list_failed", "failed to list employees", middleware.GetRequestID(r.Context()))
		return
	}

	filtered := make([]core.Employee, 0, len(employees))
	for _, emp := range employees {
		core.FilterEmployeeFields(&emp, user)
		filtered = append(filtered, emp)
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, filtered, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	employeeID := chi.URLParam(r, "employeeID")
	if _, err := uuid.Parse(employeeID); err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", middleware.GetRequestID(r.Context()))
		return
	}
	emp, err := h.Service.GetEmployee(r.Context(), user.OrganizationID, employeeID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "employee not found", middleware.GetRequestID(r.Context()))
			return
		}
		requestctx.Logger(r.Context()).Error().Err(err).Msg("employee lookup failed")
		api.Fail(w, http.StatusInternalServerError, "employee_lookup_failed", "failed to load employee", middleware.GetRequestID(r.Context()))
		return
	}

	core.FilterEmployeeFields(&emp, user)
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}
