package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/leave"
	"hrportal/internal/platform/querier"
)

// Seeder creates directory rows when they are missing and returns their ids.
type Seeder interface {
	EnsureOrganization(ctx context.Context, name string) (string, error)
	EnsureUser(ctx context.Context, orgID, email, role string) (string, error)
	EnsureEmployee(ctx context.Context, orgID, userID, fullName, email string) (string, error)
}

type SeedResult struct {
	OrganizationID string
	AdminUserID    string
	EmployeeID     string
}

// DefaultPolicies is the leave catalogue a new organization starts with.
var DefaultPolicies = []leave.PolicyInput{
	{Code: leave.CodeCasual, DisplayName: "Casual Leave", AnnualQuota: 12, AccrualMethod: leave.AccrualYearly, CarryForwardType: leave.CarryForwardNone},
	{Code: leave.CodePrivilege, DisplayName: "Privilege Leave", AnnualQuota: 18, AccrualMethod: leave.AccrualMonthly, CarryForwardType: leave.CarryForwardLimited, CarryForwardLimit: 30},
	{Code: leave.CodeSick, DisplayName: "Sick Leave", AnnualQuota: 8, AccrualMethod: leave.AccrualYearly, CarryForwardType: leave.CarryForwardNone},
	{Code: leave.CodeCompOff, DisplayName: "Compensatory Off", AnnualQuota: 0, AccrualMethod: leave.AccrualNone, CarryForwardType: leave.CarryForwardUnlimited},
}

// Seed ensures a default organization with an org admin who is also an
// employee, and the default leave policies when the organization has none.
func Seed(ctx context.Context, seeder Seeder, leaveSvc *leave.Service, orgName, adminEmail string) (SeedResult, error) {
	var res SeedResult
	orgID, err := seeder.EnsureOrganization(ctx, orgName)
	if err != nil {
		return res, err
	}
	res.OrganizationID = orgID

	if strings.TrimSpace(adminEmail) != "" {
		if res.AdminUserID, err = seeder.EnsureUser(ctx, orgID, adminEmail, auth.RoleOrgAdmin); err != nil {
			return res, err
		}
		if res.EmployeeID, err = seeder.EnsureEmployee(ctx, orgID, res.AdminUserID, "Administrator", adminEmail); err != nil {
			return res, err
		}
	}

	if leaveSvc == nil {
		return res, nil
	}
	existing, err := leaveSvc.Repo.ListPolicies(ctx, orgID)
	if err != nil {
		return res, err
	}
	if len(existing) > 0 {
		return res, nil
	}
	for _, p := range DefaultPolicies {
		if _, err := leaveSvc.CreatePolicy(ctx, orgID, p); err != nil {
			return res, err
		}
	}
	return res, nil
}

type PgSeeder struct {
	DB querier.Querier
}

func (s PgSeeder) EnsureOrganization(ctx context.Context, name string) (string, error) {
	return s.ensure(ctx,
		"SELECT id::text FROM organizations WHERE name = $1", []any{name},
		"INSERT INTO organizations (id, name, created_at) VALUES ($1, $2, $3)", func(id string) []any {
			return []any{id, name, time.Now().UTC()}
		})
}

func (s PgSeeder) EnsureUser(ctx context.Context, orgID, email, role string) (string, error) {
	return s.ensure(ctx,
		"SELECT id::text FROM users WHERE organization_id = $1 AND email = $2", []any{orgID, email},
		"INSERT INTO users (id, organization_id, email, role, status, created_at) VALUES ($1, $2, $3, $4, 'active', $5)", func(id string) []any {
			return []any{id, orgID, email, role, time.Now().UTC()}
		})
}

func (s PgSeeder) EnsureEmployee(ctx context.Context, orgID, userID, fullName, email string) (string, error) {
	return s.ensure(ctx,
		"SELECT id::text FROM employees WHERE organization_id = $1 AND user_id::text = $2", []any{orgID, userID},
		"INSERT INTO employees (id, organization_id, user_id, full_name, email, status, created_at) VALUES ($1, $2, $3, $4, $5, 'active', $6)", func(id string) []any {
			return []any{id, orgID, userID, fullName, email, time.Now().UTC()}
		})
}

func (s PgSeeder) ensure(ctx context.Context, lookup string, lookupArgs []any, insert string, insertArgs func(id string) []any) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, lookup, lookupArgs...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	id = uuid.NewString()
	if _, err := s.DB.Exec(ctx, insert, insertArgs(id)...); err != nil {
		return "", err
	}
	return id, nil
}
