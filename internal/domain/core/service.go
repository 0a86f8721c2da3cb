package core

import (
	"context"
	"errors"
)

// Service is the employee directory. It satisfies the leave service's
// Directory collaborator.
type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) OrganizationIDs(ctx context.Context) ([]string, error) {
	return s.store.ListOrganizationIDs(ctx)
}

func (s *Service) GetEmployee(ctx context.Context, orgID, employeeID string) (Employee, error) {
	return s.store.GetEmployee(ctx, orgID, employeeID)
}

func (s *Service) ListEmployees(ctx context.Context, orgID string, limit, offset int) ([]Employee, int, error) {
	total, err := s.store.EmployeeCount(ctx, orgID)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.store.ListEmployees(ctx, orgID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) EmployeeInOrg(ctx context.Context, orgID, employeeID string) (bool, error) {
	return s.store.EmployeeInOrg(ctx, orgID, employeeID)
}

func (s *Service) UserIDForEmployee(ctx context.Context, orgID, employeeID string) (string, error) {
	userID, err := s.store.UserIDForEmployee(ctx, orgID, employeeID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return userID, err
}

func (s *Service) OrgAdminUserIDs(ctx context.Context, orgID string) ([]string, error) {
	return s.store.OrgAdminUserIDs(ctx, orgID)
}

func (s *Service) ActiveEmployeeIDs(ctx context.Context, orgID string) ([]string, error) {
	return s.store.ActiveEmployeeIDs(ctx, orgID)
}

// EmployeeName returns the display name, or "" when the employee is unknown.
func (s *Service) EmployeeName(ctx context.Context, orgID, employeeID string) string {
	emp, err := s.store.GetEmployee(ctx, orgID, employeeID)
	if err != nil {
		return ""
	}
	return emp.FullName
}
