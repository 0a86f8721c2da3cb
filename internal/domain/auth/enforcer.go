package auth

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const rbacModel = `
[request_definition]
r = sub, perm

[policy_definition]
p = sub, perm

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.perm == p.perm
`

// Enforcer answers role → permission questions from the in-process policy table.
type Enforcer struct {
	e *casbin.Enforcer
}

func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	for role, perms := range RolePermissions {
		for _, perm := range perms {
			if _, err := e.AddPolicy(role, perm); err != nil {
				return nil, fmt.Errorf("add policy %s/%s: %w", role, perm, err)
			}
		}
	}
	if _, err := e.AddGroupingPolicy(RoleSuperAdmin, RoleOrgAdmin); err != nil {
		return nil, fmt.Errorf("add role inheritance: %w", err)
	}
	return &Enforcer{e: e}, nil
}

func (e *Enforcer) HasPermission(_ context.Context, role, permission string) (bool, error) {
	if role == "" || permission == "" {
		return false, nil
	}
	return e.e.Enforce(role, permission)
}
