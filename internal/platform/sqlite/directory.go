package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/core"
)

const employeeColumns = `id, organization_id, COALESCE(user_id, ''), full_name, COALESCE(email, ''), status, created_at`

func scanEmployee(row scanner) (core.Employee, error) {
	var (
		e         core.Employee
		createdAt string
	)
	err := row.Scan(&e.ID, &e.OrganizationID, &e.UserID, &e.FullName, &e.Email, &e.Status, &createdAt)
	e.CreatedAt = parseTS(createdAt)
	return e, err
}

func (s *Store) ListOrganizationIDs(ctx context.Context) ([]string, error) {
	return s.collectIDs(ctx, "SELECT id FROM organizations ORDER BY created_at")
}

func (s *Store) GetEmployee(ctx context.Context, orgID, employeeID string) (core.Employee, error) {
	e, err := scanEmployee(s.q.QueryRowContext(ctx, `
		SELECT `+employeeColumns+` FROM employees WHERE organization_id = ? AND id = ?
	`, orgID, employeeID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Employee{}, core.ErrNotFound
	}
	return e, err
}

func (s *Store) ListEmployees(ctx context.Context, orgID string, limit, offset int) ([]core.Employee, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+employeeColumns+` FROM employees
		WHERE organization_id = ?
		ORDER BY full_name
		LIMIT ? OFFSET ?
	`, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []core.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) EmployeeCount(ctx context.Context, orgID string) (int, error) {
	var total int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(1) FROM employees WHERE organization_id = ?", orgID).Scan(&total)
	return total, err
}

func (s *Store) EmployeeInOrg(ctx context.Context, orgID, employeeID string) (bool, error) {
	var count int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(1) FROM employees WHERE organization_id = ? AND id = ?",
		orgID, employeeID).Scan(&count)
	return count > 0, err
}

func (s *Store) UserIDForEmployee(ctx context.Context, orgID, employeeID string) (string, error) {
	var userID string
	err := s.q.QueryRowContext(ctx, "SELECT COALESCE(user_id, '') FROM employees WHERE organization_id = ? AND id = ?",
		orgID, employeeID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	return userID, err
}

func (s *Store) OrgAdminUserIDs(ctx context.Context, orgID string) ([]string, error) {
	return s.collectIDs(ctx, `
		SELECT id FROM users WHERE organization_id = ? AND role = ? AND status = 'active' ORDER BY created_at
	`, orgID, auth.RoleOrgAdmin)
}

func (s *Store) ActiveEmployeeIDs(ctx context.Context, orgID string) ([]string, error) {
	return s.collectIDs(ctx, `
		SELECT id FROM employees WHERE organization_id = ? AND status = ? ORDER BY created_at
	`, orgID, core.EmployeeActive)
}

func (s *Store) FindActiveUser(ctx context.Context, userID string) (auth.User, error) {
	var u auth.User
	err := s.q.QueryRowContext(ctx, `
		SELECT u.id, u.organization_id, u.email, u.role, COALESCE(e.id, '')
		FROM users u
		LEFT JOIN employees e ON e.user_id = u.id AND e.status = 'active'
		WHERE u.id = ? AND u.status = 'active'
	`, userID).Scan(&u.ID, &u.OrganizationID, &u.Email, &u.RoleName, &u.EmployeeID)
	return u, err
}

func (s *Store) collectIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
