package leave

import (
	"context"
	"fmt"
	"time"
)

const requestColumns = `id, employee_id, organization_id, COALESCE(policy_id::text, ''), leave_type, start_date, end_date,
    total_days, is_half_day, COALESCE(half_day_session, ''), reason, status, COALESCE(reviewed_by, ''),
    COALESCE(review_notes, ''), reviewed_at, created_at`

func scanRequest(row rowScanner) (LeaveRequest, error) {
	var r LeaveRequest
	var reviewedAt *time.Time
	err := row.Scan(&r.ID, &r.EmployeeID, &r.OrganizationID, &r.PolicyID, &r.LeaveType, &r.StartDate, &r.EndDate,
		&r.TotalDays, &r.IsHalfDay, &r.HalfDaySession, &r.Reason, &r.Status, &r.ReviewedBy,
		&r.ReviewNotes, &reviewedAt, &r.CreatedAt)
	r.ReviewedAt = reviewedAt
	return r, err
}

func (s *Store) CreateRequest(ctx context.Context, r LeaveRequest) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO leave_requests (id, employee_id, organization_id, policy_id, leave_type, start_date, end_date,
      total_days, is_half_day, half_day_session, reason, status, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
  `, r.ID, r.EmployeeID, r.OrganizationID, nullIfEmpty(r.PolicyID), r.LeaveType, r.StartDate, r.EndDate,
		r.TotalDays, r.IsHalfDay, nullIfEmpty(r.HalfDaySession), r.Reason, r.Status, r.CreatedAt)
	return err
}

func (s *Store) GetRequest(ctx context.Context, orgID, requestID string) (LeaveRequest, error) {
	return s.getRequest(ctx, orgID, requestID, "")
}

func (s *Store) GetRequestForUpdate(ctx context.Context, orgID, requestID string) (LeaveRequest, error) {
	return s.getRequest(ctx, orgID, requestID, "FOR UPDATE")
}

func (s *Store) getRequest(ctx context.Context, orgID, requestID, lock string) (LeaveRequest, error) {
	r, err := scanRequest(s.DB.QueryRow(ctx, fmt.Sprintf(`
    SELECT %s
    FROM leave_requests
    WHERE organization_id = $1 AND id = $2
    %s
  `, requestColumns, lock), orgID, requestID))
	return r, mapNoRows(err)
}

func (s *Store) UpdateRequestReview(ctx context.Context, r LeaveRequest) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE leave_requests
    SET status = $1, reviewed_by = $2, review_notes = $3, reviewed_at = $4
    WHERE organization_id = $5 AND id = $6
  `, r.Status, nullIfEmpty(r.ReviewedBy), nullIfEmpty(r.ReviewNotes), r.ReviewedAt, r.OrganizationID, r.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListRequests(ctx context.Context, filter RequestFilter) (RequestListResult, error) {
	where := " WHERE organization_id = $1"
	args := []any{filter.OrganizationID}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		where += fmt.Sprintf(" AND employee_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Year > 0 {
		args = append(args, filter.Year)
		where += fmt.Sprintf(" AND EXTRACT(YEAR FROM start_date) = $%d", len(args))
	}

	result := RequestListResult{Items: make([]LeaveRequest, 0)}
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM leave_requests"+where, args...).Scan(&result.Total); err != nil {
		return result, err
	}

	query := "SELECT " + requestColumns + " FROM leave_requests" + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return result, err
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return result, err
		}
		result.Items = append(result.Items, r)
	}
	return result, rows.Err()
}
