package leave

import (
	"context"
	"fmt"
)

const balanceColumns = `id, employee_id, policy_id, organization_id, year, opening_balance, accrued,
    used, adjustment, current_balance, updated_at`

func scanBalance(row rowScanner) (Balance, error) {
	var b Balance
	err := row.Scan(&b.ID, &b.EmployeeID, &b.PolicyID, &b.OrganizationID, &b.Year, &b.OpeningBalance, &b.Accrued,
		&b.Used, &b.Adjustment, &b.CurrentBalance, &b.UpdatedAt)
	return b, err
}

func (s *Store) GetBalance(ctx context.Context, employeeID, policyID string, year int) (Balance, error) {
	return s.getBalance(ctx, employeeID, policyID, year, "")
}

func (s *Store) GetBalanceForUpdate(ctx context.Context, employeeID, policyID string, year int) (Balance, error) {
	return s.getBalance(ctx, employeeID, policyID, year, "FOR UPDATE")
}

func (s *Store) getBalance(ctx context.Context, employeeID, policyID string, year int, lock string) (Balance, error) {
	b, err := scanBalance(s.DB.QueryRow(ctx, fmt.Sprintf(`
    SELECT %s
    FROM leave_balances
    WHERE employee_id = $1 AND policy_id = $2 AND year = $3
    %s
  `, balanceColumns, lock), employeeID, policyID, year))
	return b, mapNoRows(err)
}

func (s *Store) InsertBalance(ctx context.Context, b Balance) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    INSERT INTO leave_balances (id, employee_id, policy_id, organization_id, year, opening_balance, accrued,
      used, adjustment, current_balance, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
    ON CONFLICT (employee_id, policy_id, year) DO NOTHING
  `, b.ID, b.EmployeeID, b.PolicyID, b.OrganizationID, b.Year, b.OpeningBalance, b.Accrued,
		b.Used, b.Adjustment, b.CurrentBalance, b.UpdatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) UpdateBalance(ctx context.Context, b Balance) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE leave_balances
    SET opening_balance = $1, accrued = $2, used = $3, adjustment = $4, current_balance = $5, updated_at = $6
    WHERE id = $7
  `, b.OpeningBalance, b.Accrued, b.Used, b.Adjustment, b.CurrentBalance, b.UpdatedAt, b.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListBalances(ctx context.Context, orgID, employeeID string, year int) ([]Balance, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+balanceColumns+`
    FROM leave_balances
    WHERE organization_id = $1 AND employee_id = $2 AND ($3 = 0 OR year = $3)
    ORDER BY year DESC, policy_id
  `, orgID, employeeID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := make([]Balance, 0)
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

func (s *Store) InsertTransaction(ctx context.Context, t Transaction) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO leave_transactions (id, employee_id, balance_id, policy_id, organization_id, transaction_type,
      amount, balance_after, reference_id, notes, created_by, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
  `, t.ID, t.EmployeeID, t.BalanceID, t.PolicyID, t.OrganizationID, t.TransactionType,
		t.Amount, t.BalanceAfter, nullIfEmpty(t.ReferenceID), t.Notes, t.CreatedBy, t.CreatedAt)
	return err
}

func (s *Store) ListTransactions(ctx context.Context, orgID, balanceID string) ([]Transaction, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, employee_id, balance_id, policy_id, organization_id, transaction_type, amount, balance_after,
      COALESCE(reference_id::text, ''), notes, created_by, created_at
    FROM leave_transactions
    WHERE organization_id = $1 AND balance_id = $2
    ORDER BY seq
  `, orgID, balanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]Transaction, 0)
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.EmployeeID, &t.BalanceID, &t.PolicyID, &t.OrganizationID, &t.TransactionType,
			&t.Amount, &t.BalanceAfter, &t.ReferenceID, &t.Notes, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
