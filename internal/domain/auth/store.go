package auth

import (
	"context"

	"hrportal/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) FindActiveUser(ctx context.Context, userID string) (User, error) {
	var out User
	err := s.DB.QueryRow(ctx, `
    SELECT u.id, u.organization_id, u.email, u.role, COALESCE(e.id::text, '')
    FROM users u
    LEFT JOIN employees e ON e.user_id = u.id AND e.status = 'active'
    WHERE u.id = $1 AND u.status = 'active'
  `, userID).Scan(&out.ID, &out.OrganizationID, &out.Email, &out.RoleName, &out.EmployeeID)
	return out, err
}
