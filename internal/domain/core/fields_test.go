package core

import (
	"testing"

	"hrportal/internal/domain/auth"
)

func sampleEmployee() *Employee {
	return &Employee{
		ID:       "emp-1",
		UserID:   "user-1",
		FullName: "Asha Rao",
		Email:    "asha@example.com",
	}
}

func TestFilterEmployeeFieldsAdmin(t *testing.T) {
	emp := sampleEmployee()
	user := auth.UserContext{RoleName: auth.RoleOrgAdmin, EmployeeID: "emp-9"}

	FilterEmployeeFields(emp, user)

	if emp.Email == "" || emp.UserID == "" {
		t.Fatal("admin should retain contact fields")
	}
}

func TestFilterEmployeeFieldsSelf(t *testing.T) {
	emp := sampleEmployee()
	user := auth.UserContext{RoleName: auth.RoleEmployee, EmployeeID: "emp-1"}

	FilterEmployeeFields(emp, user)

	if emp.Email == "" {
		t.Fatal("employee should see their own email")
	}
}

func TestFilterEmployeeFieldsOtherEmployee(t *testing.T) {
	emp := sampleEmployee()
	user := auth.UserContext{RoleName: auth.RoleEmployee, EmployeeID: "emp-2"}

	FilterEmployeeFields(emp, user)

	if emp.Email != "" || emp.UserID != "" {
		t.Fatal("colleague should not see contact fields")
	}
	if emp.FullName == "" {
		t.Fatal("name stays visible")
	}
}

func TestFilterEmployeeFieldsNoEmployeeLink(t *testing.T) {
	emp := sampleEmployee()
	emp.ID = ""
	user := auth.UserContext{RoleName: auth.RoleEmployee}

	FilterEmployeeFields(emp, user)

	if emp.Email != "" {
		t.Fatal("unlinked user must not match an empty employee id")
	}
}
