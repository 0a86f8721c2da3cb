package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CodeCasual    = "CL"
	CodePrivilege = "PL"
	CodeSick      = "SL"
	CodeCompOff   = "COMP_OFF"
)

var PolicyCodes = []string{CodeCasual, CodePrivilege, CodeSick, CodeCompOff}

const (
	AccrualYearly  = "yearly"
	AccrualMonthly = "monthly"
	AccrualNone    = "none"
)

var AccrualMethods = []string{AccrualYearly, AccrualMonthly, AccrualNone}

const (
	CarryForwardNone      = "none"
	CarryForwardLimited   = "limited"
	CarryForwardUnlimited = "unlimited"
)

var CarryForwardTypes = []string{CarryForwardNone, CarryForwardLimited, CarryForwardUnlimited}

const (
	TxAccrual    = "accrual"
	TxAdjustment = "adjustment"
	TxRequest    = "request"
)

const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

var RequestStatuses = []string{StatusPending, StatusApproved, StatusRejected, StatusCancelled}

const (
	SessionFirstHalf  = "first_half"
	SessionSecondHalf = "second_half"
)

const AttendanceLeave = "leave"

type LeavePolicy struct {
	ID                string    `json:"id"`
	OrganizationID    string    `json:"organizationId"`
	Code              string    `json:"code"`
	DisplayName       string    `json:"displayName"`
	AnnualQuota       int       `json:"annualQuota"`
	AccrualMethod     string    `json:"accrualMethod"`
	CarryForwardType  string    `json:"carryForwardType"`
	CarryForwardLimit int       `json:"carryForwardLimit"`
	IsActive          bool      `json:"isActive"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type Balance struct {
	ID             string          `json:"id"`
	EmployeeID     string          `json:"employeeId"`
	PolicyID       string          `json:"policyId"`
	OrganizationID string          `json:"organizationId"`
	Year           int             `json:"year"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	Accrued        decimal.Decimal `json:"accrued"`
	Used           decimal.Decimal `json:"used"`
	Adjustment     decimal.Decimal `json:"adjustment"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Consistent reports whether current == opening + accrued + adjustment - used.
func (b Balance) Consistent() bool {
	return b.CurrentBalance.Equal(b.OpeningBalance.Add(b.Accrued).Add(b.Adjustment).Sub(b.Used))
}

type Transaction struct {
	ID              string          `json:"id"`
	EmployeeID      string          `json:"employeeId"`
	BalanceID       string          `json:"balanceId"`
	PolicyID        string          `json:"policyId"`
	OrganizationID  string          `json:"organizationId"`
	TransactionType string          `json:"transactionType"`
	Amount          decimal.Decimal `json:"amount"`
	BalanceAfter    decimal.Decimal `json:"balanceAfter"`
	ReferenceID     string          `json:"referenceId,omitempty"`
	Notes           string          `json:"notes"`
	CreatedBy       string          `json:"createdBy"`
	CreatedAt       time.Time       `json:"createdAt"`
}

type LeaveRequest struct {
	ID             string          `json:"id"`
	EmployeeID     string          `json:"employeeId"`
	OrganizationID string          `json:"organizationId"`
	PolicyID       string          `json:"policyId,omitempty"`
	LeaveType      string          `json:"leaveType"`
	StartDate      time.Time       `json:"startDate"`
	EndDate        time.Time       `json:"endDate"`
	TotalDays      decimal.Decimal `json:"totalDays"`
	IsHalfDay      bool            `json:"isHalfDay"`
	HalfDaySession string          `json:"halfDaySession,omitempty"`
	Reason         string          `json:"reason"`
	Status         string          `json:"status"`
	ReviewedBy     string          `json:"reviewedBy,omitempty"`
	ReviewNotes    string          `json:"reviewNotes,omitempty"`
	ReviewedAt     *time.Time      `json:"reviewedAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func (r LeaveRequest) Terminal() bool {
	return r.Status != StatusPending
}

type CompOffGrant struct {
	ID             string          `json:"id"`
	EmployeeID     string          `json:"employeeId"`
	OrganizationID string          `json:"organizationId"`
	WorkDate       time.Time       `json:"workDate"`
	HoursWorked    decimal.Decimal `json:"hoursWorked"`
	DaysGranted    decimal.Decimal `json:"daysGranted"`
	Source         string          `json:"source"`
	Reason         string          `json:"reason,omitempty"`
	GrantedBy      string          `json:"grantedBy"`
	IsApplied      bool            `json:"isApplied"`
	AppliedAt      *time.Time      `json:"appliedAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type AttendanceRecord struct {
	EmployeeID     string    `json:"employeeId"`
	OrganizationID string    `json:"organizationId"`
	Date           time.Time `json:"date"`
	Status         string    `json:"status"`
	Notes          string    `json:"notes,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type AccrualRun struct {
	OrganizationID    string
	PolicyID          string
	Year              int
	Month             int
	EmployeesCredited int
	CreatedAt         time.Time
}

type RequestFilter struct {
	OrganizationID string
	EmployeeID     string
	Status         string
	Year           int
	Limit          int
	Offset         int
}

type RequestListResult struct {
	Items []LeaveRequest `json:"items"`
	Total int            `json:"total"`
}
