package auth

// UserContext is the acting identity attached to every authenticated request.
type UserContext struct {
	UserID         string
	OrganizationID string
	EmployeeID     string
	RoleName       string
}

func (u UserContext) IsAdmin() bool {
	return IsAdmin(u.RoleName)
}

type User struct {
	ID             string
	OrganizationID string
	Email          string
	RoleName       string
	EmployeeID     string
}
