package sqlite

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"hrportal/internal/domain/leave"
)

const requestColumns = `id, employee_id, organization_id, COALESCE(policy_id, ''), leave_type, start_date, end_date,
	total_days, is_half_day, COALESCE(half_day_session, ''), reason, status, COALESCE(reviewed_by, ''),
	COALESCE(review_notes, ''), reviewed_at, created_at`

func scanRequest(row scanner) (leave.LeaveRequest, error) {
	var (
		r                   leave.LeaveRequest
		start, end, created string
		reviewedAt          sql.NullString
	)
	err := row.Scan(&r.ID, &r.EmployeeID, &r.OrganizationID, &r.PolicyID, &r.LeaveType, &start, &end,
		&r.TotalDays, &r.IsHalfDay, &r.HalfDaySession, &r.Reason, &r.Status, &r.ReviewedBy,
		&r.ReviewNotes, &reviewedAt, &created)
	r.StartDate = parseDay(start)
	r.EndDate = parseDay(end)
	r.ReviewedAt = parseNullTS(reviewedAt)
	r.CreatedAt = parseTS(created)
	return r, err
}

func (s *Store) CreateRequest(ctx context.Context, r leave.LeaveRequest) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO leave_requests (id, employee_id, organization_id, policy_id, leave_type, start_date, end_date,
			total_days, is_half_day, half_day_session, reason, status, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
	`, r.ID, r.EmployeeID, r.OrganizationID, nullString(r.PolicyID), r.LeaveType, day(r.StartDate), day(r.EndDate),
		r.TotalDays, r.IsHalfDay, nullString(r.HalfDaySession), r.Reason, r.Status, ts(r.CreatedAt))
	return err
}

func (s *Store) GetRequest(ctx context.Context, orgID, requestID string) (leave.LeaveRequest, error) {
	r, err := scanRequest(s.q.QueryRowContext(ctx, `
		SELECT `+requestColumns+` FROM leave_requests WHERE organization_id = ? AND id = ?
	`, orgID, requestID))
	return r, mapNoRows(err)
}

func (s *Store) GetRequestForUpdate(ctx context.Context, orgID, requestID string) (leave.LeaveRequest, error) {
	return s.GetRequest(ctx, orgID, requestID)
}

func (s *Store) UpdateRequestReview(ctx context.Context, r leave.LeaveRequest) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE leave_requests
		SET status = ?, reviewed_by = ?, review_notes = ?, reviewed_at = ?
		WHERE organization_id = ? AND id = ?
	`, r.Status, nullString(r.ReviewedBy), nullString(r.ReviewNotes), nullTS(r.ReviewedAt), r.OrganizationID, r.ID)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return leave.ErrNotFound
	}
	return nil
}

func (s *Store) ListRequests(ctx context.Context, filter leave.RequestFilter) (leave.RequestListResult, error) {
	where := " WHERE organization_id = ?"
	args := []any{filter.OrganizationID}
	if filter.EmployeeID != "" {
		where += " AND employee_id = ?"
		args = append(args, filter.EmployeeID)
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Year > 0 {
		where += " AND substr(start_date, 1, 4) = ?"
		args = append(args, strconv.Itoa(filter.Year))
	}

	result := leave.RequestListResult{Items: make([]leave.LeaveRequest, 0)}
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(1) FROM leave_requests"+where, args...).Scan(&result.Total); err != nil {
		return result, err
	}

	rows, err := s.q.QueryContext(ctx, "SELECT "+requestColumns+" FROM leave_requests"+where+
		" ORDER BY created_at DESC LIMIT ? OFFSET ?", append(args, filter.Limit, filter.Offset)...)
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

const grantColumns = `id, employee_id, organization_id, work_date, hours_worked, days_granted, source,
	COALESCE(reason, ''), granted_by, is_applied, applied_at, created_at`

func scanGrant(row scanner) (leave.CompOffGrant, error) {
	var (
		g                 leave.CompOffGrant
		workDate, created string
		appliedAt         sql.NullString
	)
	err := row.Scan(&g.ID, &g.EmployeeID, &g.OrganizationID, &workDate, &g.HoursWorked, &g.DaysGranted, &g.Source,
		&g.Reason, &g.GrantedBy, &g.IsApplied, &appliedAt, &created)
	g.WorkDate = parseDay(workDate)
	g.AppliedAt = parseNullTS(appliedAt)
	g.CreatedAt = parseTS(created)
	return g, err
}

func (s *Store) CreateGrant(ctx context.Context, g leave.CompOffGrant) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO comp_off_grants (id, employee_id, organization_id, work_date, hours_worked, days_granted, source,
			reason, granted_by, is_applied, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,0,?)
	`, g.ID, g.EmployeeID, g.OrganizationID, day(g.WorkDate), g.HoursWorked, g.DaysGranted, g.Source,
		nullString(g.Reason), g.GrantedBy, ts(g.CreatedAt))
	return err
}

func (s *Store) GetGrantForUpdate(ctx context.Context, orgID, grantID string) (leave.CompOffGrant, error) {
	g, err := scanGrant(s.q.QueryRowContext(ctx, `
		SELECT `+grantColumns+` FROM comp_off_grants WHERE organization_id = ? AND id = ?
	`, orgID, grantID))
	return g, mapNoRows(err)
}

func (s *Store) MarkGrantApplied(ctx context.Context, grantID string, appliedAt time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE comp_off_grants SET is_applied = 1, applied_at = ? WHERE id = ? AND is_applied = 0
	`, ts(appliedAt), grantID)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return leave.ErrConflict
	}
	return nil
}

func (s *Store) ListGrants(ctx context.Context, orgID, employeeID string) ([]leave.CompOffGrant, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+grantColumns+` FROM comp_off_grants
		WHERE organization_id = ? AND (? = '' OR employee_id = ?)
		ORDER BY work_date DESC, created_at DESC
	`, orgID, employeeID, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grants := make([]leave.CompOffGrant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (s *Store) UpsertAttendance(ctx context.Context, rec leave.AttendanceRecord) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO attendance_records (employee_id, organization_id, date, status, notes, updated_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT (employee_id, date) DO UPDATE
			SET status = excluded.status, notes = excluded.notes, updated_at = excluded.updated_at
	`, rec.EmployeeID, rec.OrganizationID, day(rec.Date), rec.Status, rec.Notes, ts(rec.UpdatedAt))
	return err
}

func (s *Store) ListAttendance(ctx context.Context, orgID, employeeID string, from, to time.Time) ([]leave.AttendanceRecord, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT employee_id, organization_id, date, status, notes, updated_at
		FROM attendance_records
		WHERE organization_id = ? AND employee_id = ? AND date BETWEEN ? AND ?
		ORDER BY date
	`, orgID, employeeID, day(from), day(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]leave.AttendanceRecord, 0)
	for rows.Next() {
		var (
			rec             leave.AttendanceRecord
			date, updatedAt string
		)
		if err := rows.Scan(&rec.EmployeeID, &rec.OrganizationID, &date, &rec.Status, &rec.Notes, &updatedAt); err != nil {
			return nil, err
		}
		rec.Date = parseDay(date)
		rec.UpdatedAt = parseTS(updatedAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) ClaimAccrualRun(ctx context.Context, run leave.AccrualRun) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO leave_accrual_runs (organization_id, policy_id, year, month, employees_credited, created_at)
		VALUES (?,?,?,?,0,?)
		ON CONFLICT (organization_id, policy_id, year, month) DO NOTHING
	`, run.OrganizationID, run.PolicyID, run.Year, run.Month, ts(run.CreatedAt))
	if err != nil {
		return false, err
	}
	return rowsAffected(res) == 1, nil
}

func (s *Store) SetAccrualRunCount(ctx context.Context, run leave.AccrualRun) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE leave_accrual_runs SET employees_credited = ?
		WHERE organization_id = ? AND policy_id = ? AND year = ? AND month = ?
	`, run.EmployeesCredited, run.OrganizationID, run.PolicyID, run.Year, run.Month)
	return err
}
