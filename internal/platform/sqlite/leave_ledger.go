package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"hrportal/internal/domain/leave"
)

const policyColumns = `id, organization_id, code, display_name, annual_quota, accrual_method,
	carry_forward_type, carry_forward_limit, is_active, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row scanner) (leave.LeavePolicy, error) {
	var (
		p                    leave.LeavePolicy
		createdAt, updatedAt string
	)
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Code, &p.DisplayName, &p.AnnualQuota, &p.AccrualMethod,
		&p.CarryForwardType, &p.CarryForwardLimit, &p.IsActive, &createdAt, &updatedAt)
	p.CreatedAt = parseTS(createdAt)
	p.UpdatedAt = parseTS(updatedAt)
	return p, err
}

func (s *Store) CreatePolicy(ctx context.Context, p leave.LeavePolicy) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO leave_policies (id, organization_id, code, display_name, annual_quota, accrual_method,
			carry_forward_type, carry_forward_limit, is_active, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
	`, p.ID, p.OrganizationID, p.Code, p.DisplayName, p.AnnualQuota, p.AccrualMethod,
		p.CarryForwardType, p.CarryForwardLimit, p.IsActive, ts(p.CreatedAt), ts(p.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: duplicate active policy code", leave.ErrConflict)
	}
	return err
}

func (s *Store) UpdatePolicy(ctx context.Context, p leave.LeavePolicy) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE leave_policies
		SET code = ?, display_name = ?, annual_quota = ?, accrual_method = ?,
			carry_forward_type = ?, carry_forward_limit = ?, is_active = ?, updated_at = ?
		WHERE organization_id = ? AND id = ?
	`, p.Code, p.DisplayName, p.AnnualQuota, p.AccrualMethod,
		p.CarryForwardType, p.CarryForwardLimit, p.IsActive, ts(p.UpdatedAt), p.OrganizationID, p.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: duplicate active policy code", leave.ErrConflict)
	}
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return leave.ErrNotFound
	}
	return nil
}

func (s *Store) DeletePolicy(ctx context.Context, orgID, policyID string) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM leave_policies WHERE organization_id = ? AND id = ?", orgID, policyID)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return leave.ErrNotFound
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, orgID, policyID string) (leave.LeavePolicy, error) {
	p, err := scanPolicy(s.q.QueryRowContext(ctx, `
		SELECT `+policyColumns+` FROM leave_policies WHERE organization_id = ? AND id = ?
	`, orgID, policyID))
	return p, mapNoRows(err)
}

func (s *Store) ListPolicies(ctx context.Context, orgID string) ([]leave.LeavePolicy, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+policyColumns+` FROM leave_policies WHERE organization_id = ? ORDER BY code, created_at
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	policies := make([]leave.LeavePolicy, 0)
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
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM leave_policies
		WHERE organization_id = ? AND code = ? AND is_active = 1 AND id <> ?
	`, orgID, code, excludeID).Scan(&count)
	return count, err
}

func (s *Store) PolicyInUse(ctx context.Context, orgID, policyID string) (bool, error) {
	var inUse bool
	err := s.q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM leave_balances WHERE organization_id = ? AND policy_id = ?)
	`, orgID, policyID).Scan(&inUse)
	return inUse, err
}

const balanceColumns = `id, employee_id, policy_id, organization_id, year, opening_balance, accrued, used,
	adjustment, current_balance, updated_at`

func scanBalance(row scanner) (leave.Balance, error) {
	var (
		b         leave.Balance
		updatedAt string
	)
	err := row.Scan(&b.ID, &b.EmployeeID, &b.PolicyID, &b.OrganizationID, &b.Year, &b.OpeningBalance, &b.Accrued,
		&b.Used, &b.Adjustment, &b.CurrentBalance, &updatedAt)
	b.UpdatedAt = parseTS(updatedAt)
	return b, err
}

func (s *Store) GetBalance(ctx context.Context, employeeID, policyID string, year int) (leave.Balance, error) {
	b, err := scanBalance(s.q.QueryRowContext(ctx, `
		SELECT `+balanceColumns+` FROM leave_balances WHERE employee_id = ? AND policy_id = ? AND year = ?
	`, employeeID, policyID, year))
	return b, mapNoRows(err)
}

// GetBalanceForUpdate needs no row lock here; transactions are already serialized.
func (s *Store) GetBalanceForUpdate(ctx context.Context, employeeID, policyID string, year int) (leave.Balance, error) {
	return s.GetBalance(ctx, employeeID, policyID, year)
}

func (s *Store) InsertBalance(ctx context.Context, b leave.Balance) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO leave_balances (id, employee_id, policy_id, organization_id, year, opening_balance, accrued,
			used, adjustment, current_balance, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (employee_id, policy_id, year) DO NOTHING
	`, b.ID, b.EmployeeID, b.PolicyID, b.OrganizationID, b.Year, b.OpeningBalance, b.Accrued,
		b.Used, b.Adjustment, b.CurrentBalance, ts(b.UpdatedAt))
	if err != nil {
		return false, err
	}
	return rowsAffected(res) == 1, nil
}

func (s *Store) UpdateBalance(ctx context.Context, b leave.Balance) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE leave_balances
		SET opening_balance = ?, accrued = ?, used = ?, adjustment = ?, current_balance = ?, updated_at = ?
		WHERE id = ?
	`, b.OpeningBalance, b.Accrued, b.Used, b.Adjustment, b.CurrentBalance, ts(b.UpdatedAt), b.ID)
	if err != nil {
		return err
	}
	if rowsAffected(res) == 0 {
		return leave.ErrNotFound
	}
	return nil
}

func (s *Store) ListBalances(ctx context.Context, orgID, employeeID string, year int) ([]leave.Balance, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+balanceColumns+` FROM leave_balances
		WHERE organization_id = ? AND employee_id = ? AND (? = 0 OR year = ?)
		ORDER BY year DESC, policy_id
	`, orgID, employeeID, year, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := make([]leave.Balance, 0)
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (s *Store) InsertTransaction(ctx context.Context, t leave.Transaction) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO leave_transactions (id, employee_id, balance_id, policy_id, organization_id, transaction_type,
			amount, balance_after, reference_id, notes, created_by, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
	`, t.ID, t.EmployeeID, t.BalanceID, t.PolicyID, t.OrganizationID, t.TransactionType,
		t.Amount, t.BalanceAfter, nullString(t.ReferenceID), t.Notes, t.CreatedBy, ts(t.CreatedAt))
	return err
}

func (s *Store) ListTransactions(ctx context.Context, orgID, balanceID string) ([]leave.Transaction, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, employee_id, balance_id, policy_id, organization_id, transaction_type, amount, balance_after,
			reference_id, notes, created_by, created_at
		FROM leave_transactions
		WHERE organization_id = ? AND balance_id = ?
		ORDER BY seq
	`, orgID, balanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]leave.Transaction, 0)
	for rows.Next() {
		var (
			t         leave.Transaction
			reference sql.NullString
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.EmployeeID, &t.BalanceID, &t.PolicyID, &t.OrganizationID, &t.TransactionType,
			&t.Amount, &t.BalanceAfter, &reference, &t.Notes, &t.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		t.ReferenceID = reference.String
		t.CreatedAt = parseTS(createdAt)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
