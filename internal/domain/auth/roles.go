package auth

const (
	RoleSuperAdmin = "super_admin"
	RoleOrgAdmin   = "org_admin"
	RoleEmployee   = "employee"
)

var Roles = []string{RoleSuperAdmin, RoleOrgAdmin, RoleEmployee}

func IsAdmin(role string) bool {
	return role == RoleOrgAdmin || role == RoleSuperAdmin
}

func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}
