package leavehandler

import (
	"net/http"

	"hrportal/internal/domain/audit"
	"hrportal/internal/domain/leave"
	"hrportal/internal/transport/http/api"
	"hrportal/internal/transport/http/middleware"
	"hrportal/internal/transport/http/shared"
)

func (h *Handler) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	policies, err := h.Service.ListPolicies(r.Context(), user.OrganizationID)
	if err != nil {
		writeError(w, r, err, "list policies")
		return
	}
	if policies == nil {
		policies = []leave.LeavePolicy{}
	}
	api.Success(w, policies, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "policyID", "leave policy")
	if !ok {
		return
	}
	policy, err := h.Service.GetPolicy(r.Context(), user.OrganizationID, policyID)
	if err != nil {
		writeError(w, r, err, "get policy")
		return
	}
	api.Success(w, policy, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var payload leave.PolicyInput
	if !shared.DecodeAndValidate(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}

	policy, err := h.Service.CreatePolicy(r.Context(), user.OrganizationID, payload)
	if err != nil {
		writeError(w, r, err, "create policy")
		return
	}
	h.audit(r, user, audit.ActionPolicyCreate, "leave_policy", policy.ID, nil, policy)
	api.Created(w, policy, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "policyID", "leave policy")
	if !ok {
		return
	}
	var payload leave.PolicyPatch
	if !shared.DecodeAndValidate(w, r, &payload, middleware.GetRequestID(r.Context())) {
		return
	}

	before, err := h.Service.GetPolicy(r.Context(), user.OrganizationID, policyID)
	if err != nil {
		writeError(w, r, err, "get policy")
		return
	}
	policy, err := h.Service.UpdatePolicy(r.Context(), user.OrganizationID, policyID, payload)
	if err != nil {
		writeError(w, r, err, "update policy")
		return
	}
	h.audit(r, user, audit.ActionPolicyUpdate, "leave_policy", policy.ID, before, policy)
	api.Success(w, policy, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	policyID, ok := pathID(w, r, "policyID", "leave policy")
	if !ok {
		return
	}
	before, err := h.Service.GetPolicy(r.Context(), user.OrganizationID, policyID)
	if err != nil {
		writeError(w, r, err, "get policy")
		return
	}
	if err := h.Service.DeletePolicy(r.Context(), user.OrganizationID, policyID); err != nil {
		writeError(w, r, err, "delete policy")
		return
	}
	h.audit(r, user, audit.ActionPolicyDelete, "leave_policy", policyID, before, nil)
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}
