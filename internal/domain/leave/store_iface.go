package leave

import (
	"context"
	"time"
)

// Stores return ErrNotFound (unwrapped) for missing rows.

type PolicyStore interface {
	CreatePolicy(ctx context.Context, p LeavePolicy) error
	UpdatePolicy(ctx context.Context, p LeavePolicy) error
	DeletePolicy(ctx context.Context, orgID, policyID string) error
	GetPolicy(ctx context.Context, orgID, policyID string) (LeavePolicy, error)
	ListPolicies(ctx context.Context, orgID string) ([]LeavePolicy, error)
	CountActivePolicies(ctx context.Context, orgID, code, excludeID string) (int, error)
	PolicyInUse(ctx context.Context, orgID, policyID string) (bool, error)
}

type BalanceStore interface {
	GetBalance(ctx context.Context, employeeID, policyID string, year int) (Balance, error)
	// GetBalanceForUpdate locks the row until the surrounding transaction ends.
	GetBalanceForUpdate(ctx context.Context, employeeID, policyID string, year int) (Balance, error)
	// InsertBalance reports false when a row for (employee, policy, year) already exists.
	InsertBalance(ctx context.Context, b Balance) (bool, error)
	UpdateBalance(ctx context.Context, b Balance) error
	ListBalances(ctx context.Context, orgID, employeeID string, year int) ([]Balance, error)
}

type TransactionStore interface {
	InsertTransaction(ctx context.Context, t Transaction) error
	ListTransactions(ctx context.Context, orgID, balanceID string) ([]Transaction, error)
}

type RequestStore interface {
	CreateRequest(ctx context.Context, r LeaveRequest) error
	GetRequest(ctx context.Context, orgID, requestID string) (LeaveRequest, error)
	GetRequestForUpdate(ctx context.Context, orgID, requestID string) (LeaveRequest, error)
	UpdateRequestReview(ctx context.Context, r LeaveRequest) error
	ListRequests(ctx context.Context, filter RequestFilter) (RequestListResult, error)
}

type GrantStore interface {
	CreateGrant(ctx context.Context, g CompOffGrant) error
	GetGrantForUpdate(ctx context.Context, orgID, grantID string) (CompOffGrant, error)
	MarkGrantApplied(ctx context.Context, grantID string, appliedAt time.Time) error
	ListGrants(ctx context.Context, orgID, employeeID string) ([]CompOffGrant, error)
}

type AttendanceStore interface {
	UpsertAttendance(ctx context.Context, rec AttendanceRecord) error
	ListAttendance(ctx context.Context, orgID, employeeID string, from, to time.Time) ([]AttendanceRecord, error)
}

type AccrualRunStore interface {
	// ClaimAccrualRun reports false when the (org, policy, year, month) run already exists.
	ClaimAccrualRun(ctx context.Context, run AccrualRun) (bool, error)
	SetAccrualRunCount(ctx context.Context, run AccrualRun) error
}

type Repository interface {
	PolicyStore
	BalanceStore
	TransactionStore
	RequestStore
	GrantStore
	AttendanceStore
	AccrualRunStore
	// WithTx runs fn against a transaction-scoped Repository, committing when
	// fn returns nil. Calling WithTx on a transaction-scoped Repository reuses it.
	WithTx(ctx context.Context, fn func(Repository) error) error
}

// Directory is the employee directory collaborator.
type Directory interface {
	EmployeeInOrg(ctx context.Context, orgID, employeeID string) (bool, error)
	UserIDForEmployee(ctx context.Context, orgID, employeeID string) (string, error)
	OrgAdminUserIDs(ctx context.Context, orgID string) ([]string, error)
	ActiveEmployeeIDs(ctx context.Context, orgID string) ([]string, error)
}

// Notifier delivers best-effort user notifications.
type Notifier interface {
	Create(ctx context.Context, orgID, userID, ntype, title, body string) error
}
