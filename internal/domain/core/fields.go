package core

import "hrportal/internal/domain/auth"

// FilterEmployeeFields strips contact details the caller may not see.
// Admins and the employee themself see everything.
func FilterEmployeeFields(emp *Employee, user auth.UserContext) {
	if user.IsAdmin() || (user.EmployeeID != "" && user.EmployeeID == emp.ID) {
		return
	}
	emp.Email = ""
	emp.UserID = ""
}
