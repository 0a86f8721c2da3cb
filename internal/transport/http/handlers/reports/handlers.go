package reportshandler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/reports"
	"hrportal/internal/requestctx"
	"hrportal/internal/transport/http/api"
	"hrportal/internal/transport/http/middleware"
	"hrportal/internal/transport/http/shared"
)

type Handler struct {
	Service *reports.Service
	Perms   middleware.PermissionStore
	Now     func() time.Time
}

func NewHandler(service *reports.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms, Now: func() time.Time { return time.Now().UTC() }}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermReportsRead, h.Perms))
		r.Get("/leave-utilization", h.handleLeaveUtilization)
		r.Get("/job-runs", h.handleListJobRuns)
		r.Get("/job-runs/{runID}", h.handleGetJobRun)
	})
}

func (h *Handler) handleLeaveUtilization(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	reqID := middleware.GetRequestID(r.Context())

	v := shared.NewValidator()
	year, err := shared.QueryInt(r, "year", h.Now().Year())
	if err != nil {
		v.Add("year", "must be a number")
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "json"
	}
	v.Enum("format", format, []string{"json", "csv"}, "must be json or csv")
	if v.Reject(w, reqID) {
		return
	}

	report, err := h.Service.LeaveUtilization(r.Context(), user.OrganizationID, year)
	if err != nil {
		requestctx.Logger(r.Context()).Error().Err(err).Int("year", year).Msg("leave utilization report failed")
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to build leave utilization report", reqID)
		return
	}
	if format == "json" {
		api.Success(w, report, reqID)
		return
	}

	logger := requestctx.Logger(r.Context())
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=leave-utilization-%d.csv", year))
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"code", "display_name", "employees", "opening", "accrued", "used", "adjustment", "current", "utilization_pct"}); err != nil {
		logger.Warn().Err(err).Msg("utilization export header failed")
	}
	for _, p := range report.Policies {
		row := []string{
			p.Code, p.DisplayName, strconv.Itoa(p.Employees),
			p.Opening.StringFixed(2), p.Accrued.StringFixed(2), p.Used.StringFixed(2),
			p.Adjustment.StringFixed(2), p.Current.StringFixed(2), p.UtilizationPct.StringFixed(2),
		}
		if err := writer.Write(row); err != nil {
			logger.Warn().Err(err).Msg("utilization export row failed")
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		logger.Warn().Err(err).Msg("utilization export flush failed")
	}
}

func (h *Handler) handleListJobRuns(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()

	v := shared.NewValidator()
	filter := reports.JobRunFilter{
		JobType: strings.TrimSpace(query.Get("jobType")),
		Status:  strings.TrimSpace(query.Get("status")),
	}
	if raw := strings.TrimSpace(query.Get("startedFrom")); raw != "" {
		if from, ok := v.Date("startedFrom", raw); ok {
			filter.StartedFrom = &from
		}
	}
	if raw := strings.TrimSpace(query.Get("startedTo")); raw != "" {
		if to, ok := v.Date("startedTo", raw); ok {
			filter.StartedTo = &to
		}
	}
	if v.Reject(w, reqID) {
		return
	}

	page := shared.ParsePagination(r, 50, 200)
	res, err := h.Service.ListJobRuns(r.Context(), user.OrganizationID, filter, page.Limit, page.Offset)
	if err != nil {
		requestctx.Logger(r.Context()).Error().Err(err).Msg("list job runs failed")
		api.Fail(w, http.StatusInternalServerError, "job_runs_failed", "failed to list job runs", reqID)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(res.Total))
	api.Success(w, res, reqID)
}

func (h *Handler) handleGetJobRun(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	runID := chi.URLParam(r, "runID")
	if _, err := uuid.Parse(runID); err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "job run not found", reqID)
		return
	}

	run, err := h.Service.JobRun(r.Context(), user.OrganizationID, runID)
	if errors.Is(err, reports.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "job run not found", reqID)
		return
	}
	if err != nil {
		requestctx.Logger(r.Context()).Error().Err(err).Str("runId", runID).Msg("get job run failed")
		api.Fail(w, http.StatusInternalServerError, "job_run_failed", "failed to load job run", reqID)
		return
	}
	api.Success(w, run, reqID)
}
