package reports

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"hrportal/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) PolicyUsage(ctx context.Context, orgID string, year int) ([]PolicyUsage, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT p.id, p.code, p.display_name, COUNT(b.id),
      COALESCE(SUM(b.opening_balance), 0), COALESCE(SUM(b.accrued), 0), COALESCE(SUM(b.used), 0),
      COALESCE(SUM(b.adjustment), 0), COALESCE(SUM(b.current_balance), 0)
    FROM leave_policies p
    LEFT JOIN leave_balances b ON b.policy_id = p.id AND b.year = $2
    WHERE p.organization_id = $1 AND p.is_active
    GROUP BY p.id, p.code, p.display_name
    ORDER BY p.code
  `, orgID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PolicyUsage
	for rows.Next() {
		var u PolicyUsage
		if err := rows.Scan(&u.PolicyID, &u.Code, &u.DisplayName, &u.Employees,
			&u.Opening, &u.Accrued, &u.Used, &u.Adjustment, &u.Current); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) RequestSummary(ctx context.Context, orgID string, year int) ([]RequestSummary, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT status, COUNT(1), COALESCE(SUM(total_days), 0)
    FROM leave_requests
    WHERE organization_id = $1 AND EXTRACT(YEAR FROM start_date) = $2
    GROUP BY status
    ORDER BY status
  `, orgID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RequestSummary
	for rows.Next() {
		var rs RequestSummary
		if err := rows.Scan(&rs.Status, &rs.Count, &rs.Days); err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

func (s *Store) ListJobRuns(ctx context.Context, orgID string, filter JobRunFilter, limit, offset int) ([]JobRun, error) {
	query, args := buildJobRunsBaseQuery(orgID, filter)
	query += " ORDER BY started_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []JobRun
	for rows.Next() {
		run, err := scanJobRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) CountJobRuns(ctx context.Context, orgID string, filter JobRunFilter) (int, error) {
	query, args := buildJobRunsBaseQuery(orgID, filter)
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM ("+query+") job_runs", args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) JobRunByID(ctx context.Context, orgID, runID string) (JobRun, error) {
	run, err := scanJobRun(s.DB.QueryRow(ctx, `
    SELECT id, job_type, status, COALESCE(details_json, '{}'::jsonb), started_at, completed_at
    FROM job_runs
    WHERE organization_id = $1 AND id = $2
  `, orgID, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return JobRun{}, ErrNotFound
	}
	return run, err
}

func scanJobRun(row pgx.Row) (JobRun, error) {
	var (
		run        JobRun
		detailsRaw []byte
	)
	if err := row.Scan(&run.ID, &run.JobType, &run.Status, &detailsRaw, &run.StartedAt, &run.CompletedAt); err != nil {
		return JobRun{}, err
	}
	run.Details = decodeDetails(detailsRaw)
	return run, nil
}

func buildJobRunsBaseQuery(orgID string, filter JobRunFilter) (string, []any) {
	query := `
    SELECT id, job_type, status, COALESCE(details_json, '{}'::jsonb), started_at, completed_at
    FROM job_runs
    WHERE organization_id = $1
  `
	args := []any{orgID}

	if value := strings.TrimSpace(filter.JobType); value != "" {
		query += " AND job_type = $" + strconv.Itoa(len(args)+1)
		args = append(args, value)
	}
	if value := strings.TrimSpace(filter.Status); value != "" {
		query += " AND status = $" + strconv.Itoa(len(args)+1)
		args = append(args, value)
	}
	if filter.StartedFrom != nil && !filter.StartedFrom.IsZero() {
		query += " AND started_at >= $" + strconv.Itoa(len(args)+1)
		args = append(args, *filter.StartedFrom)
	}
	if filter.StartedTo != nil && !filter.StartedTo.IsZero() {
		query += " AND started_at <= $" + strconv.Itoa(len(args)+1)
		args = append(args, *filter.StartedTo)
	}
	return query, args
}

// decodeDetails passes well-formed JSON through and replaces anything else
// with an empty object.
func decodeDetails(raw []byte) json.RawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(raw)
}
