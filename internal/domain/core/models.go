package core

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

const (
	EmployeeActive   = "active"
	EmployeeInactive = "inactive"
)

type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Employee struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	UserID         string    `json:"userId,omitempty"`
	FullName       string    `json:"fullName"`
	Email          string    `json:"email,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
}
