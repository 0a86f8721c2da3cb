package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"hrportal/internal/domain/core"
)

func (s *Store) EnsureOrganization(ctx context.Context, name string) (string, error) {
	return s.ensure(ctx, "SELECT id FROM organizations WHERE name = ?", []any{name},
		"INSERT INTO organizations (id, name, created_at) VALUES (?, ?, ?)", func(id string) []any {
			return []any{id, name, ts(time.Now())}
		})
}

func (s *Store) EnsureUser(ctx context.Context, orgID, email, role string) (string, error) {
	return s.ensure(ctx, "SELECT id FROM users WHERE organization_id = ? AND email = ?", []any{orgID, email},
		"INSERT INTO users (id, organization_id, email, role, status, created_at) VALUES (?, ?, ?, ?, 'active', ?)", func(id string) []any {
			return []any{id, orgID, email, role, ts(time.Now())}
		})
}

func (s *Store) EnsureEmployee(ctx context.Context, orgID, userID, fullName, email string) (string, error) {
	return s.ensure(ctx, "SELECT id FROM employees WHERE organization_id = ? AND user_id = ?", []any{orgID, userID},
		"INSERT INTO employees (id, organization_id, user_id, full_name, email, status, created_at) VALUES (?, ?, ?, ?, ?, 'active', ?)", func(id string) []any {
			return []any{id, orgID, userID, fullName, email, ts(time.Now())}
		})
}

// CreateEmployee inserts an employee row as given; an empty ID is generated.
func (s *Store) CreateEmployee(ctx context.Context, e core.Employee) (core.Employee, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Status == "" {
		e.Status = core.EmployeeActive
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO employees (id, organization_id, user_id, full_name, email, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.OrganizationID, nullString(e.UserID), e.FullName, nullString(e.Email), e.Status, ts(e.CreatedAt))
	return e, err
}

func (s *Store) ensure(ctx context.Context, lookup string, lookupArgs []any, insert string, insertArgs func(id string) []any) (string, error) {
	var id string
	err := s.q.QueryRowContext(ctx, lookup, lookupArgs...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	id = uuid.NewString()
	if _, err := s.q.ExecContext(ctx, insert, insertArgs(id)...); err != nil {
		return "", err
	}
	return id, nil
}
