package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hrportal/internal/domain/notifications"
	"hrportal/internal/platform/events"
	"hrportal/internal/requestctx"
)

const crossYearMessage = "leave requests cannot span multiple years; please submit one request per year"

type RequestInput struct {
	PolicyID       string
	LeaveType      string
	StartDate      time.Time
	EndDate        time.Time
	Reason         string
	IsHalfDay      bool
	HalfDaySession string
}

type ApprovalOutcome string

const (
	OutcomeApproved          ApprovalOutcome = "approved"
	OutcomeRevertedToPending ApprovalOutcome = "reverted_to_pending"
	OutcomeAutoRejected      ApprovalOutcome = "auto_rejected"
)

// ApprovalResult describes what an approval attempt did. Only OutcomeApproved
// is a success; the other outcomes carry the reason the request was not approved.
type ApprovalResult struct {
	Outcome     ApprovalOutcome    `json:"outcome"`
	Reason      string             `json:"reason,omitempty"`
	Request     LeaveRequest       `json:"request"`
	Balance     *Balance           `json:"balance,omitempty"`
	Transaction *Transaction       `json:"transaction,omitempty"`
	Attendance  []AttendanceRecord `json:"attendance,omitempty"`
}

// Err maps a failed outcome to its domain error.
func (r ApprovalResult) Err() error {
	switch r.Outcome {
	case OutcomeAutoRejected:
		return &Error{Kind: ErrValidation, Message: r.Reason}
	case OutcomeRevertedToPending:
		return &Error{Kind: ErrNotFound, Message: r.Reason}
	default:
		return nil
	}
}

func (s *Service) CreateRequest(ctx context.Context, orgID, employeeID string, in RequestInput) (LeaveRequest, error) {
	start, end := DateOnly(in.StartDate), DateOnly(in.EndDate)
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return LeaveRequest{}, validationError("startDate and endDate are required")
	}
	if end.Before(start) {
		return LeaveRequest{}, validationError("endDate must be on or after startDate")
	}
	if SpansYears(start, end) {
		return LeaveRequest{}, validationError(crossYearMessage)
	}
	if in.IsHalfDay {
		if !start.Equal(end) {
			return LeaveRequest{}, validationError("half-day leave must start and end on the same date")
		}
		if in.HalfDaySession != SessionFirstHalf && in.HalfDaySession != SessionSecondHalf {
			return LeaveRequest{}, validationError("halfDaySession must be first_half or second_half")
		}
	} else {
		in.HalfDaySession = ""
	}
	days, err := CalculateRequestDays(start, end, in.IsHalfDay)
	if err != nil {
		return LeaveRequest{}, validationError("%s", err.Error())
	}

	leaveType := in.LeaveType
	if in.PolicyID != "" {
		policy, err := s.GetPolicy(ctx, orgID, in.PolicyID)
		if err != nil {
			return LeaveRequest{}, err
		}
		if !policy.IsActive {
			return LeaveRequest{}, validationError("leave policy %s is not active", policy.Code)
		}
		leaveType = policy.Code
	} else if leaveType == "" {
		return LeaveRequest{}, validationError("policyId or leaveType is required")
	}

	if err := s.ensureEmployee(ctx, orgID, employeeID); err != nil {
		return LeaveRequest{}, err
	}

	req := LeaveRequest{
		ID:             uuid.NewString(),
		EmployeeID:     employeeID,
		OrganizationID: orgID,
		PolicyID:       in.PolicyID,
		LeaveType:      leaveType,
		StartDate:      start,
		EndDate:        end,
		TotalDays:      days,
		IsHalfDay:      in.IsHalfDay,
		HalfDaySession: in.HalfDaySession,
		Reason:         in.Reason,
		Status:         StatusPending,
		CreatedAt:      s.now(),
	}
	if err := s.Repo.CreateRequest(ctx, req); err != nil {
		return LeaveRequest{}, fmt.Errorf("create leave request: %w", err)
	}

	s.notifyAdmins(ctx, orgID, notifications.TypeLeaveSubmitted, "Leave request submitted",
		fmt.Sprintf("%s leave requested from %s to %s (%s days)", leaveType,
			start.Format(time.DateOnly), end.Format(time.DateOnly), days.String()))
	s.publish(ctx, events.TypeRequestCreated, orgID, req.ID, req)
	return req, nil
}

func (s *Service) GetRequest(ctx context.Context, orgID, requestID string) (LeaveRequest, error) {
	req, err := s.Repo.GetRequest(ctx, orgID, requestID)
	if errors.Is(err, ErrNotFound) {
		return LeaveRequest{}, notFoundError("leave request %s not found", requestID)
	}
	return req, err
}

func (s *Service) ListRequests(ctx context.Context, filter RequestFilter) (RequestListResult, error) {
	if filter.Status != "" && !contains(RequestStatuses, filter.Status) {
		return RequestListResult{}, validationError("unknown status %q", filter.Status)
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	res, err := s.Repo.ListRequests(ctx, filter)
	if err != nil {
		return RequestListResult{}, err
	}
	if res.Items == nil {
		res.Items = []LeaveRequest{}
	}
	return res, nil
}

// errRevertedToPending aborts the approval transaction so nothing it wrote survives.
var errRevertedToPending = errors.New("approval reverted to pending")

// ApproveRequest runs the approval as one transaction. A non-nil error means
// the attempt failed outright; a failed outcome is reported through the result
// and its Err method.
func (s *Service) ApproveRequest(ctx context.Context, orgID, requestID, actor, notes string) (ApprovalResult, error) {
	now := s.now()
	var result ApprovalResult

	err := s.Repo.WithTx(ctx, func(repo Repository) error {
		req, err := repo.GetRequestForUpdate(ctx, orgID, requestID)
		if errors.Is(err, ErrNotFound) {
			return notFoundError("leave request %s not found", requestID)
		}
		if err != nil {
			return err
		}
		if req.Terminal() {
			return conflictError("leave request is already %s", req.Status)
		}

		if SpansYears(req.StartDate, req.EndDate) {
			req.Status = StatusRejected
			req.ReviewNotes = "auto-rejected: " + crossYearMessage
			req.ReviewedBy = actor
			req.ReviewedAt = &now
			if err := repo.UpdateRequestReview(ctx, req); err != nil {
				return err
			}
			result = ApprovalResult{Outcome: OutcomeAutoRejected, Reason: crossYearMessage, Request: req}
			return nil
		}

		if req.PolicyID != "" {
			deduction, err := applyLeaveDeduction(ctx, repo, req, actor, now)
			var missing *balanceMissingError
			if errors.As(err, &missing) {
				result = ApprovalResult{Outcome: OutcomeRevertedToPending, Reason: missing.Error(), Request: req}
				return errRevertedToPending
			}
			if err != nil {
				return err
			}
			result.Balance = &deduction.Balance
			result.Transaction = &deduction.Transaction
			result.Attendance = deduction.Attendance
		} else {
			// Manual leave has no ledger effect but still marks attendance.
			rows, err := markLeaveDays(ctx, repo, req, now)
			if err != nil {
				return err
			}
			result.Attendance = rows
		}

		req.Status = StatusApproved
		req.ReviewedBy = actor
		req.ReviewNotes = notes
		req.ReviewedAt = &now
		if err := repo.UpdateRequestReview(ctx, req); err != nil {
			return err
		}
		result.Outcome = OutcomeApproved
		result.Request = req
		return nil
	})
	if errors.Is(err, errRevertedToPending) {
		requestctx.Logger(ctx).Info().Str("requestId", requestID).Str("reason", result.Reason).Msg("leave approval reverted to pending")
		return result, nil
	}
	if err != nil {
		return ApprovalResult{}, err
	}

	req := result.Request
	switch result.Outcome {
	case OutcomeApproved:
		s.notifyEmployee(ctx, orgID, req.EmployeeID, notifications.TypeLeaveApproved, "Leave approved",
			fmt.Sprintf("Your %s leave from %s to %s was approved", req.LeaveType,
				req.StartDate.Format(time.DateOnly), req.EndDate.Format(time.DateOnly)))
		if result.Balance != nil {
			s.publish(ctx, events.TypeBalanceChanged, orgID, result.Balance.ID, result.Balance)
		}
	case OutcomeAutoRejected:
		s.notifyEmployee(ctx, orgID, req.EmployeeID, notifications.TypeLeaveRejected, "Leave rejected", req.ReviewNotes)
	}
	s.publish(ctx, events.TypeRequestReviewed, orgID, req.ID, req)
	return result, nil
}

func (s *Service) RejectRequest(ctx context.Context, orgID, requestID, actor, notes string) (LeaveRequest, error) {
	req, err := s.transition(ctx, orgID, requestID, StatusRejected, actor, notes, nil)
	if err != nil {
		return LeaveRequest{}, err
	}
	body := fmt.Sprintf("Your %s leave from %s to %s was rejected", req.LeaveType,
		req.StartDate.Format(time.DateOnly), req.EndDate.Format(time.DateOnly))
	if notes != "" {
		body += ": " + notes
	}
	s.notifyEmployee(ctx, orgID, req.EmployeeID, notifications.TypeLeaveRejected, "Leave rejected", body)
	s.publish(ctx, events.TypeRequestReviewed, orgID, req.ID, req)
	return req, nil
}

// CancelRequest withdraws a pending request. Non-admin callers may only cancel
// requests that belong to callerEmployeeID.
func (s *Service) CancelRequest(ctx context.Context, orgID, requestID, actor, callerEmployeeID string, isAdmin bool, notes string) (LeaveRequest, error) {
	guard := func(req LeaveRequest) error {
		if !isAdmin && req.EmployeeID != callerEmployeeID {
			return notFoundError("leave request %s not found", requestID)
		}
		return nil
	}
	req, err := s.transition(ctx, orgID, requestID, StatusCancelled, actor, notes, guard)
	if err != nil {
		return LeaveRequest{}, err
	}
	if isAdmin {
		s.notifyEmployee(ctx, orgID, req.EmployeeID, notifications.TypeLeaveCancelled, "Leave cancelled",
			fmt.Sprintf("Your %s leave from %s was cancelled by an administrator", req.LeaveType, req.StartDate.Format(time.DateOnly)))
	} else {
		s.notifyAdmins(ctx, orgID, notifications.TypeLeaveCancelled, "Leave request withdrawn",
			fmt.Sprintf("%s leave from %s was withdrawn", req.LeaveType, req.StartDate.Format(time.DateOnly)))
	}
	s.publish(ctx, events.TypeRequestReviewed, orgID, req.ID, req)
	return req, nil
}

func (s *Service) transition(ctx context.Context, orgID, requestID, status, actor, notes string, guard func(LeaveRequest) error) (LeaveRequest, error) {
	var out LeaveRequest
	err := s.Repo.WithTx(ctx, func(repo Repository) error {
		req, err := repo.GetRequestForUpdate(ctx, orgID, requestID)
		if errors.Is(err, ErrNotFound) {
			return notFoundError("leave request %s not found", requestID)
		}
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(req); err != nil {
				return err
			}
		}
		if req.Terminal() {
			return conflictError("leave request is already %s", req.Status)
		}
		now := s.now()
		req.Status = status
		req.ReviewedBy = actor
		req.ReviewNotes = notes
		req.ReviewedAt = &now
		if err := repo.UpdateRequestReview(ctx, req); err != nil {
			return err
		}
		out = req
		return nil
	})
	return out, err
}

func (s *Service) notifyAdmins(ctx context.Context, orgID, ntype, title, body string) {
	if s.Directory == nil {
		return
	}
	admins, err := s.Directory.OrgAdminUserIDs(ctx, orgID)
	if err != nil {
		requestctx.Logger(ctx).Warn().Err(err).Msg("list org admins failed")
		return
	}
	for _, userID := range admins {
		s.notify(ctx, orgID, userID, ntype, title, body)
	}
}
