package leave

import (
	"context"
	"time"
)

const grantColumns = `id, employee_id, organization_id, work_date, hours_worked, days_granted, source,
    COALESCE(reason, ''), granted_by, is_applied, applied_at, created_at`

func scanGrant(row rowScanner) (CompOffGrant, error) {
	var g CompOffGrant
	var appliedAt *time.Time
	err := row.Scan(&g.ID, &g.EmployeeID, &g.OrganizationID, &g.WorkDate, &g.HoursWorked, &g.DaysGranted, &g.Source,
		&g.Reason, &g.GrantedBy, &g.IsApplied, &appliedAt, &g.CreatedAt)
	g.AppliedAt = appliedAt
	return g, err
}

func (s *Store) CreateGrant(ctx context.Context, g CompOffGrant) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO comp_off_grants (id, employee_id, organization_id, work_date, hours_worked, days_granted, source,
      reason, granted_by, is_applied, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,false,$10)
  `, g.ID, g.EmployeeID, g.OrganizationID, g.WorkDate, g.HoursWorked, g.DaysGranted, g.Source,
		nullIfEmpty(g.Reason), g.GrantedBy, g.CreatedAt)
	return err
}

func (s *Store) GetGrantForUpdate(ctx context.Context, orgID, grantID string) (CompOffGrant, error) {
	g, err := scanGrant(s.DB.QueryRow(ctx, `
    SELECT `+grantColumns+`
    FROM comp_off_grants
    WHERE organization_id = $1 AND id = $2
    FOR UPDATE
  `, orgID, grantID))
	return g, mapNoRows(err)
}

// MarkGrantApplied only flips unapplied grants; an already-applied grant reports ErrConflict.
func (s *Store) MarkGrantApplied(ctx context.Context, grantID string, appliedAt time.Time) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE comp_off_grants SET is_applied = true, applied_at = $1
    WHERE id = $2 AND NOT is_applied
  `, appliedAt, grantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *Store) ListGrants(ctx context.Context, orgID, employeeID string) ([]CompOffGrant, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+grantColumns+`
    FROM comp_off_grants
    WHERE organization_id = $1 AND ($2 = '' OR employee_id::text = $2)
    ORDER BY work_date DESC, created_at DESC
  `, orgID, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grants := make([]CompOffGrant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
