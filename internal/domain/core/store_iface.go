package core

import "context"

// StoreAPI is the directory persistence contract. Lookups return ErrNotFound for missing rows.
type StoreAPI interface {
	ListOrganizationIDs(ctx context.Context) ([]string, error)
	GetEmployee(ctx context.Context, orgID, employeeID string) (Employee, error)
	ListEmployees(ctx context.Context, orgID string, limit, offset int) ([]Employee, error)
	EmployeeCount(ctx context.Context, orgID string) (int, error)
	EmployeeInOrg(ctx context.Context, orgID, employeeID string) (bool, error)
	UserIDForEmployee(ctx context.Context, orgID, employeeID string) (string, error)
	OrgAdminUserIDs(ctx context.Context, orgID string) ([]string, error)
	ActiveEmployeeIDs(ctx context.Context, orgID string) ([]string, error)
}
