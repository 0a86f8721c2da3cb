package leave

import "context"

const policyColumns = `id, organization_id, code, display_name, annual_quota, accrual_method,
    carry_forward_type, carry_forward_limit, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (LeavePolicy, error) {
	var p LeavePolicy
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Code, &p.DisplayName, &p.AnnualQuota, &p.AccrualMethod,
		&p.CarryForwardType, &p.CarryForwardLimit, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) CreatePolicy(ctx context.Context, p LeavePolicy) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO leave_policies (id, organization_id, code, display_name, annual_quota, accrual_method,
      carry_forward_type, carry_forward_limit, is_active, created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
  `, p.ID, p.OrganizationID, p.Code, p.DisplayName, p.AnnualQuota, p.AccrualMethod,
		p.CarryForwardType, p.CarryForwardLimit, p.IsActive, p.CreatedAt, p.UpdatedAt)
	return mapUniqueViolation(err)
}

func (s *Store) UpdatePolicy(ctx context.Context, p LeavePolicy) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE leave_policies
    SET code = $1, display_name = $2, annual_quota = $3, accrual_method = $4,
        carry_forward_type = $5, carry_forward_limit = $6, is_active = $7, updated_at = $8
    WHERE organization_id = $9 AND id = $10
  `, p.Code, p.DisplayName, p.AnnualQuota, p.AccrualMethod,
		p.CarryForwardType, p.CarryForwardLimit, p.IsActive, p.UpdatedAt, p.OrganizationID, p.ID)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeletePolicy(ctx context.Context, orgID, policyID string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM leave_policies WHERE organization_id = $1 AND id = $2", orgID, policyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, orgID, policyID string) (LeavePolicy, error) {
	p, err := scanPolicy(s.DB.QueryRow(ctx, `
    SELECT `+policyColumns+`
    FROM leave_policies
    WHERE organization_id = $1 AND id = $2
  `, orgID, policyID))
	return p, mapNoRows(err)
}

func (s *Store) ListPolicies(ctx context.Context, orgID string) ([]LeavePolicy, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+policyColumns+`
    FROM leave_policies
    WHERE organization_id = $1
    ORDER BY code, created_at
  `, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	policies := make([]LeavePolicy, 0)
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func (s *Store) CountActivePolicies(ctx context.Context, orgID, code, excludeID string) (int, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM leave_policies
    WHERE organization_id = $1 AND code = $2 AND is_active AND ($3 = '' OR id::text <> $3)
  `, orgID, code, excludeID).Scan(&count)
	return count, err
}

func (s *Store) PolicyInUse(ctx context.Context, orgID, policyID string) (bool, error) {
	var inUse bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (SELECT 1 FROM leave_balances WHERE organization_id = $1 AND policy_id = $2)
  `, orgID, policyID).Scan(&inUse)
	return inUse, err
}
