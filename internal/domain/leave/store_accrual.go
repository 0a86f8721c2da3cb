package leave

import "context"

func (s *Store) ClaimAccrualRun(ctx context.Context, run AccrualRun) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    INSERT INTO leave_accrual_runs (organization_id, policy_id, year, month, employees_credited, created_at)
    VALUES ($1,$2,$3,$4,0,$5)
    ON CONFLICT (organization_id, policy_id, year, month) DO NOTHING
  `, run.OrganizationID, run.PolicyID, run.Year, run.Month, run.CreatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) SetAccrualRunCount(ctx context.Context, run AccrualRun) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE leave_accrual_runs SET employees_credited = $1
    WHERE organization_id = $2 AND policy_id = $3 AND year = $4 AND month = $5
  `, run.EmployeesCredited, run.OrganizationID, run.PolicyID, run.Year, run.Month)
	return err
}
