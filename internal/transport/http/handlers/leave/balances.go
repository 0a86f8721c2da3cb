package leavehandler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hrportal/internal/domain/audit"
	"hrportal/internal/domain/leave"
	"hrportal/internal/platform/jobs"
	"hrportal/internal/requestctx"
	"hrportal/internal/transport/http/api"
	"hrportal/internal/transport/http/middleware"
	"hrportal/internal/transport/http/shared"
)

type initializePayload struct {
	Year int `json:"year" validate:"required,gte=1900,lte=9999"`
}

type adjustPayload struct {
	PolicyID string          `json:"policyId" validate:"required,uuid"`
	Amount   decimal.Decimal `json:"amount"`
	Notes    string          `json:"notes" validate:"required,max=500"`
	Year     int             `json:"year" validate:"required,gte=1900,lte=9999"`
}

type carryForwardPayload struct {
	FromYear int `json:"fromYear" validate:"required,gte=1900,lte=9998"`
}

type accrualPayload struct {
	Year  int `json:"year" validate:"required,gte=1900,lte=9999"`
	Month int `json:"month" validate:"required,gte=1,lte=12"`
}

func (h *Handler) now() time.Time {
	if h.Service != nil && h.Service.Now != nil {
		return h.Service.Now()
	}
	return time.Now().UTC()
}

func (h *Handler) handleListBalances(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	employeeID, ok := h.employeeScope(w, r, user)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	year, err := shared.QueryInt(r, "year", h.now().Year())
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "validation_error", "year must be a number", reqID)
		return
	}

	balances, err := h.Service.ListBalances(r.Context(), user.OrganizationID, employeeID, year)
	if err != nil {
		writeError(w, r, err, "list balances")
		return
	}
	if balances == nil {
		balances = []leave.Balance{}
	}
	api.Success(w, balances, reqID)
}

func (h *Handler) handleInitializeBalances(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	employeeID, ok := pathID(w, r, "employeeID", "employee")
	if !ok {
		return
	}
	var payload initializePayload
	if !shared.DecodeAndValidate(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}

	result, err := h.Service.InitializeBalances(r.Context(), user.OrganizationID, employeeID, payload.Year, user.UserID)
	if err != nil {
		writeError(w, r, err, "initialize balances")
		return
	}
	if len(result.Created) > 0 {
		h.audit(r, user, audit.ActionBalancesInit, "employee", employeeID, nil, result.Created)
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	employeeID, ok := pathID(w, r, "employeeID", "employee")
	if !ok {
		return
	}
	var payload adjustPayload
	if !shared.DecodeAndValidate(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}

	balance, entry, err := h.Service.AdjustBalance(r.Context(), user.OrganizationID, leave.AdjustInput{
		EmployeeID: employeeID,
		PolicyID:   payload.PolicyID,
		Year:       payload.Year,
		Amount:     payload.Amount,
		Notes:      strings.TrimSpace(payload.Notes),
	}, user.UserID)
	if err != nil {
		writeError(w, r, err, "adjust balance")
		return
	}
	h.audit(r, user, audit.ActionBalanceAdjust, "leave_balance", balance.ID, nil, entry)
	api.Success(w, map[string]any{"balance": balance, "transaction": entry}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCarryForward(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	employeeID, ok := pathID(w, r, "employeeID", "employee")
	if !ok {
		return
	}
	var payload carryForwardPayload
	if !shared.DecodeAndValidate(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}

	results, err := h.Service.CarryForward(r.Context(), user.OrganizationID, employeeID, payload.FromYear, user.UserID)
	if err != nil {
		writeError(w, r, err, "carry forward")
		return
	}
	if results == nil {
		results = []leave.CarryForwardResult{}
	}
	h.audit(r, user, audit.ActionCarryForward, "employee", employeeID, nil, results)
	api.Success(w, results, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	employeeID, ok := h.employeeScope(w, r, user)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()

	v := shared.NewValidator()
	policyID := strings.TrimSpace(query.Get("policyId"))
	v.Required("policyId", policyID, "is required")
	if policyID != "" && !isUUID(policyID) {
		v.Add("policyId", "must be a UUID")
	}
	format := strings.ToLower(strings.TrimSpace(query.Get("format")))
	if format == "" {
		format = "json"
	}
	v.Enum("format", format, []string{"json", "pdf"}, "must be json or pdf")
	year, err := shared.QueryInt(r, "year", h.now().Year())
	if err != nil {
		v.Add("year", "must be a number")
	}
	if v.Reject(w, reqID) {
		return
	}

	st, err := h.Service.Statement(r.Context(), user.OrganizationID, employeeID, policyID, year)
	if err != nil {
		writeError(w, r, err, "balance statement")
		return
	}
	if format == "json" {
		api.Success(w, st, reqID)
		return
	}

	name := employeeID
	if h.Employees != nil {
		if n := h.Employees.EmployeeName(r.Context(), user.OrganizationID, employeeID); n != "" {
			name = n
		}
	}
	pdf, err := leave.RenderStatementPDF(st, name)
	if err != nil {
		requestctx.Logger(r.Context()).Error().Err(err).Msg("render statement pdf failed")
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to render statement", reqID)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="leave-statement-%s-%d.pdf"`, strings.ToLower(st.Policy.Code), year))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		requestctx.Logger(r.Context()).Warn().Err(err).Msg("write statement pdf failed")
	}
}

func (h *Handler) handleRunAccrual(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var payload accrualPayload
	if !shared.DecodeAndValidate(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}

	run := func(ctx context.Context) (any, error) {
		return h.Service.RunMonthlyAccrual(ctx, user.OrganizationID, payload.Year, payload.Month, user.UserID)
	}
	var (
		summary any
		err     error
	)
	if h.Jobs != nil {
		summary, err = h.Jobs.RunNow(r.Context(), jobs.JobLeaveAccrual, user.OrganizationID, run)
	} else {
		summary, err = run(r.Context())
	}
	if err != nil {
		writeError(w, r, err, "run accrual")
		return
	}
	h.audit(r, user, audit.ActionAccrualRun, "organization", user.OrganizationID, nil, summary)
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListAttendance(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	employeeID, ok := h.employeeScope(w, r, user)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())

	now := h.now()
	from := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
	v := shared.NewValidator()
	if raw := r.URL.Query().Get("from"); raw != "" {
		if parsed, ok := v.Date("from", raw); ok {
			from = parsed
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if parsed, ok := v.Date("to", raw); ok {
			to = parsed
		}
	}
	v.DateOrder("from", from, "to", to)
	if v.Reject(w, reqID) {
		return
	}

	records, err := h.Service.ListAttendance(r.Context(), user.OrganizationID, employeeID, from, to)
	if err != nil {
		writeError(w, r, err, "list attendance")
		return
	}
	if records == nil {
		records = []leave.AttendanceRecord{}
	}
	api.Success(w, records, reqID)
}
