package leavehandler

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"hrportal/internal/domain/audit"
	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/leave"
	"hrportal/internal/transport/http/api"
	"hrportal/internal/transport/http/middleware"
	"hrportal/internal/transport/http/shared"
)

type requestPayload struct {
	EmployeeID     string `json:"employeeId" validate:"omitempty,uuid"`
	PolicyID       string `json:"policyId" validate:"omitempty,uuid"`
	LeaveType      string `json:"leaveType" validate:"omitempty,max=50"`
	StartDate      string `json:"startDate" validate:"required"`
	EndDate        string `json:"endDate" validate:"required"`
	Reason         string `json:"reason" validate:"max=1000"`
	IsHalfDay      bool   `json:"isHalfDay"`
	HalfDaySession string `json:"halfDaySession" validate:"omitempty,oneof=first_half second_half"`
}

type reviewPayload struct {
	Status      string `json:"status" validate:"required,oneof=approved rejected cancelled"`
	ReviewNotes string `json:"reviewNotes" validate:"max=1000"`
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	var payload requestPayload
	if !shared.DecodeAndValidate(w, r, &payload, reqID) {
		return
	}

	v := shared.NewValidator()
	start, _ := v.Date("startDate", payload.StartDate)
	end, _ := v.Date("endDate", payload.EndDate)
	v.DateOrder("startDate", start, "endDate", end)
	if v.Reject(w, reqID) {
		return
	}

	// Admins may file on behalf of another employee.
	employeeID := user.EmployeeID
	if payload.EmployeeID != "" && payload.EmployeeID != user.EmployeeID {
		if !h.hasPermission(r, user, auth.PermLeaveAdmin) {
			api.Fail(w, http.StatusForbidden, "forbidden", "cannot create leave for another employee", reqID)
			return
		}
		employeeID = payload.EmployeeID
	}
	if employeeID == "" {
		api.Fail(w, http.StatusBadRequest, "validation_error", "employeeId is required", reqID)
		return
	}

	req, err := h.Service.CreateRequest(r.Context(), user.OrganizationID, employeeID, leave.RequestInput{
		PolicyID:       payload.PolicyID,
		LeaveType:      strings.TrimSpace(payload.LeaveType),
		StartDate:      start,
		EndDate:        end,
		Reason:         strings.TrimSpace(payload.Reason),
		IsHalfDay:      payload.IsHalfDay,
		HalfDaySession: payload.HalfDaySession,
	})
	if err != nil {
		writeError(w, r, err, "create leave request")
		return
	}
	h.audit(r, user, audit.ActionRequestCreate, "leave_request", req.ID, nil, req)
	api.Created(w, req, reqID)
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	year, err := shared.QueryInt(r, "year", 0)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "validation_error", "year must be a number", reqID)
		return
	}
	page := shared.ParsePagination(r, 50, 200)
	filter := leave.RequestFilter{
		OrganizationID: user.OrganizationID,
		EmployeeID:     strings.TrimSpace(r.URL.Query().Get("employeeId")),
		Status:         strings.TrimSpace(r.URL.Query().Get("status")),
		Year:           year,
		Limit:          page.Limit,
		Offset:         page.Offset,
	}
	if !h.hasPermission(r, user, auth.PermLeaveApprove) {
		if user.EmployeeID == "" {
			api.Success(w, leave.RequestListResult{Items: []leave.LeaveRequest{}}, reqID)
			return
		}
		filter.EmployeeID = user.EmployeeID
	} else if filter.EmployeeID != "" && !isUUID(filter.EmployeeID) {
		api.Fail(w, http.StatusBadRequest, "validation_error", "employeeId must be a UUID", reqID)
		return
	}

	res, err := h.Service.ListRequests(r.Context(), filter)
	if err != nil {
		writeError(w, r, err, "list leave requests")
		return
	}
	api.Success(w, res, reqID)
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "requestID", "leave request")
	if !ok {
		return
	}
	req, err := h.Service.GetRequest(r.Context(), user.OrganizationID, requestID)
	if err != nil {
		writeError(w, r, err, "get leave request")
		return
	}
	if req.EmployeeID != user.EmployeeID && !h.hasPermission(r, user, auth.PermLeaveApprove) {
		api.Fail(w, http.StatusNotFound, "not_found", "leave request "+requestID+" not found", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleReviewRequest(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	requestID, ok := pathID(w, r, "requestID", "leave request")
	if !ok {
		return
	}
	reqID := middleware.GetRequestID(r.Context())
	var payload reviewPayload
	if !shared.DecodeAndValidate(w, r, &payload, reqID) {
		return
	}
	notes := strings.TrimSpace(payload.ReviewNotes)

	canApprove := h.hasPermission(r, user, auth.PermLeaveApprove)
	if payload.Status != leave.StatusCancelled && !canApprove {
		api.Fail(w, http.StatusForbidden, "forbidden", "only administrators can approve or reject leave", reqID)
		return
	}

	before, err := h.Service.GetRequest(r.Context(), user.OrganizationID, requestID)
	if err != nil {
		writeError(w, r, err, "get leave request")
		return
	}

	switch payload.Status {
	case leave.StatusApproved:
		h.approve(w, r, user, before, notes)
		return
	case leave.StatusRejected:
		req, err := h.Service.RejectRequest(r.Context(), user.OrganizationID, requestID, user.UserID, notes)
		if err != nil {
			writeError(w, r, err, "reject leave request")
			return
		}
		h.audit(r, user, audit.ActionRequestReview, "leave_request", req.ID, before, req)
		api.Success(w, req, reqID)
	default:
		req, err := h.Service.CancelRequest(r.Context(), user.OrganizationID, requestID, user.UserID, user.EmployeeID, canApprove, notes)
		if err != nil {
			writeError(w, r, err, "cancel leave request")
			return
		}
		h.audit(r, user, audit.ActionRequestReview, "leave_request", req.ID, before, req)
		api.Success(w, req, reqID)
	}
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request, user auth.UserContext, before leave.LeaveRequest, notes string) {
	reqID := middleware.GetRequestID(r.Context())
	result, err := h.Service.ApproveRequest(r.Context(), user.OrganizationID, before.ID, user.UserID, notes)
	if err != nil {
		writeError(w, r, err, "approve leave request")
		return
	}
	if h.Metrics != nil {
		h.Metrics.RecordApproval(string(result.Outcome))
	}

	switch result.Outcome {
	case leave.OutcomeAutoRejected:
		h.audit(r, user, audit.ActionRequestReview, "leave_request", before.ID, before, result.Request)
		api.FailWithDetails(w, http.StatusBadRequest, "leave_auto_rejected", result.Reason,
			map[string]any{"request": result.Request}, reqID)
	case leave.OutcomeRevertedToPending:
		api.FailWithDetails(w, http.StatusNotFound, "leave_balance_missing", result.Reason,
			map[string]any{"request": result.Request}, reqID)
	default:
		h.audit(r, user, audit.ActionRequestReview, "leave_request", before.ID, before, result)
		api.Success(w, result, reqID)
	}
}

// isUUID reports whether an optional query filter is a well-formed id.
func isUUID(raw string) bool {
	_, err := uuid.Parse(raw)
	return err == nil
}
