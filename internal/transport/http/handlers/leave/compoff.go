package leavehandler

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"hrportal/internal/domain/audit"
	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/leave"
	"hrportal/internal/transport/http/api"
	"hrportal/internal/transport/http/middleware"
	"hrportal/internal/transport/http/shared"
)

type grantPayload struct {
	EmployeeID  string          `json:"employeeId" validate:"required,uuid"`
	WorkDate    string          `json:"workDate" validate:"required"`
	HoursWorked decimal.Decimal `json:"hoursWorked"`
	DaysGranted decimal.Decimal `json:"daysGranted"`
	Source      string          `json:"source" validate:"max=50"`
	Reason      string          `json:"reason" validate:"max=500"`
}

func (h *Handler) handleListGrants(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	employeeID := strings.TrimSpace(r.URL.Query().Get("employeeId"))
	if !h.hasPermission(r, user, auth.PermLeaveAdmin) {
		if user.EmployeeID == "" {
			api.Success(w, []leave.CompOffGrant{}, reqID)
			return
		}
		employeeID = user.EmployeeID
	} else if employeeID != "" && !isUUID(employeeID) {
		api.Fail(w, http.StatusBadRequest, "validation_error", "employeeId must be a UUID", reqID)
		return
	}

	grants, err := h.Service.ListGrants(r.Context(), user.OrganizationID, employeeID)
	if err != nil {
		writeError(w, r, err, "list comp-off grants")
		return
	}
	if grants == nil {
		grants = []leave.CompOffGrant{}
	}
	api.Success(w, grants, reqID)
}

func (h *Handler) handleCreateGrant(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	var payload grantPayload
	if !shared.DecodeAndValidate(w, r, &payload, reqID) {
		return
	}
	v := shared.NewValidator()
	workDate, _ := v.Date("workDate", payload.WorkDate)
	if !payload.HoursWorked.IsPositive() {
		v.Add("hoursWorked", "must be greater than 0")
	}
	if !payload.DaysGranted.IsPositive() {
		v.Add("daysGranted", "must be greater than 0")
	}
	if v.Reject(w, reqID) {
		return
	}

	grant, err := h.Service.CreateGrant(r.Context(), user.OrganizationID, leave.GrantInput{
		EmployeeID:  payload.EmployeeID,
		WorkDate:    workDate,
		HoursWorked: payload.HoursWorked,
		DaysGranted: payload.DaysGranted,
		Source:      strings.TrimSpace(payload.Source),
		Reason:      strings.TrimSpace(payload.Reason),
	}, user.UserID)
	if err != nil {
		writeError(w, r, err, "create comp-off grant")
		return
	}
	h.audit(r, user, audit.ActionGrantCreate, "comp_off_grant", grant.ID, nil, grant)
	api.Created(w, grant, reqID)
}

func (h *Handler) handleApplyGrant(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	grantID, ok := pathID(w, r, "grantID", "comp-off grant")
	if !ok {
		return
	}

	result, err := h.Service.ApplyGrant(r.Context(), user.OrganizationID, grantID, user.UserID)
	if err != nil {
		writeError(w, r, err, "apply comp-off grant")
		return
	}
	h.audit(r, user, audit.ActionGrantApply, "comp_off_grant", grantID, nil, result)
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}
