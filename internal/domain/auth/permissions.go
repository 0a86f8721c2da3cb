package auth

const (
	PermLeaveRead         = "leave.read"
	PermLeaveWrite        = "leave.write"
	PermLeaveApprove      = "leave.approve"
	PermLeaveAdmin        = "leave.admin"
	PermAttendanceRead    = "attendance.read"
	PermEmployeesRead     = "employees.read"
	PermNotificationsRead = "notifications.read"
	PermAuditRead         = "audit.read"
	PermReportsRead       = "reports.read"
	PermSystemMetrics     = "system.metrics"
	PermTokensIssue       = "auth.tokens.issue"
)

var DefaultPermissions = []string{
	PermLeaveRead,
	PermLeaveWrite,
	PermLeaveApprove,
	PermLeaveAdmin,
	PermAttendanceRead,
	PermEmployeesRead,
	PermNotificationsRead,
	PermAuditRead,
	PermReportsRead,
	PermSystemMetrics,
	PermTokensIssue,
}

// RolePermissions lists direct grants. super_admin additionally inherits
// everything org_admin holds (see NewEnforcer).
var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermLeaveRead,
		PermLeaveWrite,
		PermAttendanceRead,
		PermEmployeesRead,
		PermNotificationsRead,
	},
	RoleOrgAdmin: {
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermLeaveAdmin,
		PermAttendanceRead,
		PermEmployeesRead,
		PermNotificationsRead,
		PermAuditRead,
		PermReportsRead,
	},
	RoleSuperAdmin: {
		PermSystemMetrics,
		PermTokensIssue,
	},
}
