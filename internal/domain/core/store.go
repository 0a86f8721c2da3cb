package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"hrportal/internal/domain/auth"
	"hrportal/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const employeeColumns = `id, organization_id, COALESCE(user_id::text, ''), full_name, COALESCE(email, ''), status, created_at`

func scanEmployee(row pgx.Row) (Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.OrganizationID, &e.UserID, &e.FullName, &e.Email, &e.Status, &e.CreatedAt)
	return e, err
}

func (s *Store) ListOrganizationIDs(ctx context.Context) ([]string, error) {
	return s.collectIDs(ctx, "SELECT id FROM organizations ORDER BY created_at")
}

func (s *Store) GetEmployee(ctx context.Context, orgID, employeeID string) (Employee, error) {
	e, err := scanEmployee(s.DB.QueryRow(ctx, `
    SELECT `+employeeColumns+`
    FROM employees
    WHERE organization_id = $1 AND id::text = $2
  `, orgID, employeeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrNotFound
	}
	return e, err
}

func (s *Store) ListEmployees(ctx context.Context, orgID string, limit, offset int) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+employeeColumns+`
    FROM employees
    WHERE organization_id = $1
    ORDER BY full_name
    LIMIT $2 OFFSET $3
  `, orgID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Employee{}
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
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM employees WHERE organization_id = $1", orgID).Scan(&total)
	return total, err
}

func (s *Store) EmployeeInOrg(ctx context.Context, orgID, employeeID string) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM employees
    WHERE organization_id = $1 AND id::text = $2
  `, orgID, employeeID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) UserIDForEmployee(ctx context.Context, orgID, employeeID string) (string, error) {
	var userID string
	err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(user_id::text, '')
    FROM employees
    WHERE organization_id = $1 AND id::text = $2
  `, orgID, employeeID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return userID, err
}

func (s *Store) OrgAdminUserIDs(ctx context.Context, orgID string) ([]string, error) {
	return s.collectIDs(ctx, `
    SELECT id::text
    FROM users
    WHERE organization_id = $1 AND role = $2 AND status = 'active'
    ORDER BY created_at
  `, orgID, auth.RoleOrgAdmin)
}

func (s *Store) ActiveEmployeeIDs(ctx context.Context, orgID string) ([]string, error) {
	return s.collectIDs(ctx, `
    SELECT id::text
    FROM employees
    WHERE organization_id = $1 AND status = $2
    ORDER BY created_at
  `, orgID, EmployeeActive)
}

func (s *Store) collectIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.DB.Query(ctx, query, args...)
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
