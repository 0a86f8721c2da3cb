package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"hrportal/internal/domain/reports"
)

// PolicyUsage sums balances in Go; the ledger columns are TEXT here.
func (s *Store) PolicyUsage(ctx context.Context, orgID string, year int) ([]reports.PolicyUsage, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT p.id, p.code, p.display_name, b.opening_balance, b.accrued, b.used, b.adjustment, b.current_balance
		FROM leave_policies p
		LEFT JOIN leave_balances b ON b.policy_id = p.id AND b.year = ?
		WHERE p.organization_id = ? AND p.is_active = 1
		ORDER BY p.code, b.id
	`, year, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reports.PolicyUsage
	for rows.Next() {
		var (
			id, code, name                              string
			opening, accrued, used, adjustment, current decimal.NullDecimal
		)
		if err := rows.Scan(&id, &code, &name, &opening, &accrued, &used, &adjustment, &current); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].PolicyID != id {
			out = append(out, reports.PolicyUsage{PolicyID: id, Code: code, DisplayName: name})
		}
		if !current.Valid {
			continue
		}
		u := &out[len(out)-1]
		u.Employees++
		u.Opening = u.Opening.Add(opening.Decimal)
		u.Accrued = u.Accrued.Add(accrued.Decimal)
		u.Used = u.Used.Add(used.Decimal)
		u.Adjustment = u.Adjustment.Add(adjustment.Decimal)
		u.Current = u.Current.Add(current.Decimal)
	}
	return out, rows.Err()
}

func (s *Store) RequestSummary(ctx context.Context, orgID string, year int) ([]reports.RequestSummary, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT status, total_days
		FROM leave_requests
		WHERE organization_id = ? AND substr(start_date, 1, 4) = ?
		ORDER BY status
	`, orgID, strconv.Itoa(year))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reports.RequestSummary
	for rows.Next() {
		var (
			status string
			days   decimal.Decimal
		)
		if err := rows.Scan(&status, &days); err != nil {
			return nil, err
		}
		if len(out) == 0 || out[len(out)-1].Status != status {
			out = append(out, reports.RequestSummary{Status: status})
		}
		rs := &out[len(out)-1]
		rs.Count++
		rs.Days = rs.Days.Add(days)
	}
	return out, rows.Err()
}

func jobRunsWhere(orgID string, filter reports.JobRunFilter) (string, []any) {
	where := " FROM job_runs WHERE organization_id = ?"
	args := []any{orgID}
	if value := strings.TrimSpace(filter.JobType); value != "" {
		where += " AND job_type = ?"
		args = append(args, value)
	}
	if value := strings.TrimSpace(filter.Status); value != "" {
		where += " AND status = ?"
		args = append(args, value)
	}
	if filter.StartedFrom != nil && !filter.StartedFrom.IsZero() {
		where += " AND started_at >= ?"
		args = append(args, ts(*filter.StartedFrom))
	}
	if filter.StartedTo != nil && !filter.StartedTo.IsZero() {
		where += " AND started_at <= ?"
		args = append(args, ts(*filter.StartedTo))
	}
	return where, args
}

const jobRunColumns = "SELECT id, job_type, status, COALESCE(details_json, '{}'), started_at, completed_at"

func (s *Store) CountJobRuns(ctx context.Context, orgID string, filter reports.JobRunFilter) (int, error) {
	where, args := jobRunsWhere(orgID, filter)
	var total int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(1)"+where, args...).Scan(&total)
	return total, err
}

func (s *Store) ListJobRuns(ctx context.Context, orgID string, filter reports.JobRunFilter, limit, offset int) ([]reports.JobRun, error) {
	where, args := jobRunsWhere(orgID, filter)
	rows, err := s.q.QueryContext(ctx, jobRunColumns+where+" ORDER BY started_at DESC LIMIT ? OFFSET ?",
		append(args, limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []reports.JobRun{}
	for rows.Next() {
		run, err := scanJobRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *Store) JobRunByID(ctx context.Context, orgID, runID string) (reports.JobRun, error) {
	run, err := scanJobRun(s.q.QueryRowContext(ctx, jobRunColumns+" FROM job_runs WHERE organization_id = ? AND id = ?", orgID, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return reports.JobRun{}, reports.ErrNotFound
	}
	return run, err
}

func scanJobRun(row scanner) (reports.JobRun, error) {
	var (
		run                reports.JobRun
		details, startedAt string
		completedAt        sql.NullString
	)
	if err := row.Scan(&run.ID, &run.JobType, &run.Status, &details, &startedAt, &completedAt); err != nil {
		return reports.JobRun{}, err
	}
	run.Details = []byte(details)
	if details == "" {
		run.Details = []byte(`{}`)
	}
	run.StartedAt = parseTS(startedAt)
	run.CompletedAt = parseNullTS(completedAt)
	return run, nil
}
