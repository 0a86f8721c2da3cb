package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Everything in this file mutates balances and must run inside Repository.WithTx.

type posting struct {
	Type      string
	Amount    decimal.Decimal
	Reference string
	Notes     string
	Actor     string
}

// post applies one entry to b, persists it and appends the matching transaction.
func post(ctx context.Context, repo Repository, b Balance, p posting, now time.Time) (Balance, Transaction, error) {
	switch p.Type {
	case TxAccrual:
		b.Accrued = b.Accrued.Add(p.Amount)
	case TxAdjustment:
		b.Adjustment = b.Adjustment.Add(p.Amount)
	case TxRequest:
		b.Used = b.Used.Sub(p.Amount)
	default:
		return b, Transaction{}, fmt.Errorf("unknown transaction type %q", p.Type)
	}
	b.CurrentBalance = b.CurrentBalance.Add(p.Amount)
	b.UpdatedAt = now

	if err := repo.UpdateBalance(ctx, b); err != nil {
		return b, Transaction{}, fmt.Errorf("update balance %s: %w", b.ID, err)
	}
	tx := Transaction{
		ID:              uuid.NewString(),
		EmployeeID:      b.EmployeeID,
		BalanceID:       b.ID,
		PolicyID:        b.PolicyID,
		OrganizationID:  b.OrganizationID,
		TransactionType: p.Type,
		Amount:          p.Amount,
		BalanceAfter:    b.CurrentBalance,
		ReferenceID:     p.Reference,
		Notes:           p.Notes,
		CreatedBy:       p.Actor,
		CreatedAt:       now,
	}
	if err := repo.InsertTransaction(ctx, tx); err != nil {
		return b, Transaction{}, fmt.Errorf("append transaction: %w", err)
	}
	return b, tx, nil
}

// getOrCreateBalance returns the locked balance for (employee, policy, year),
// creating it when absent. With creditQuota set, a new balance for a yearly
// policy is credited the annual quota through an accrual transaction.
func getOrCreateBalance(ctx context.Context, repo Repository, policy LeavePolicy, employeeID string, year int, creditQuota bool, actor string, now time.Time) (Balance, bool, error) {
	b, err := repo.GetBalanceForUpdate(ctx, employeeID, policy.ID, year)
	if err == nil {
		return b, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Balance{}, false, err
	}

	fresh := Balance{
		ID:             uuid.NewString(),
		EmployeeID:     employeeID,
		PolicyID:       policy.ID,
		OrganizationID: policy.OrganizationID,
		Year:           year,
		UpdatedAt:      now,
	}
	inserted, err := repo.InsertBalance(ctx, fresh)
	if err != nil {
		return Balance{}, false, fmt.Errorf("insert balance: %w", err)
	}
	if !inserted {
		b, err := repo.GetBalanceForUpdate(ctx, employeeID, policy.ID, year)
		return b, false, err
	}

	if creditQuota && policy.AccrualMethod == AccrualYearly && policy.AnnualQuota > 0 {
		fresh, _, err = post(ctx, repo, fresh, posting{
			Type:   TxAccrual,
			Amount: decimal.NewFromInt(int64(policy.AnnualQuota)),
			Notes:  "annual quota",
			Actor:  actor,
		}, now)
		if err != nil {
			return Balance{}, false, err
		}
	}
	return fresh, true, nil
}

type balanceMissingError struct {
	Year int
}

func (e *balanceMissingError) Error() string {
	return fmt.Sprintf("no leave balance record found for year %d", e.Year)
}

func (e *balanceMissingError) Unwrap() error {
	return ErrNotFound
}

type Deduction struct {
	Balance     Balance            `json:"balance"`
	Transaction Transaction        `json:"transaction"`
	Attendance  []AttendanceRecord `json:"attendance"`
}

// applyLeaveDeduction debits an approved request from its year's balance and
// marks every covered date as leave. It never creates a balance.
func applyLeaveDeduction(ctx context.Context, repo Repository, req LeaveRequest, actor string, now time.Time) (Deduction, error) {
	year := req.StartDate.Year()
	b, err := repo.GetBalanceForUpdate(ctx, req.EmployeeID, req.PolicyID, year)
	if errors.Is(err, ErrNotFound) {
		return Deduction{}, &balanceMissingError{Year: year}
	}
	if err != nil {
		return Deduction{}, err
	}

	days := req.TotalDays
	if !days.IsPositive() {
		days = decimal.NewFromInt(1)
	}
	b, tx, err := post(ctx, repo, b, posting{
		Type:      TxRequest,
		Amount:    days.Neg(),
		Reference: req.ID,
		Notes:     fmt.Sprintf("%s leave %s to %s", req.LeaveType, req.StartDate.Format(time.DateOnly), req.EndDate.Format(time.DateOnly)),
		Actor:     actor,
	}, now)
	if err != nil {
		return Deduction{}, err
	}

	rows, err := markLeaveDays(ctx, repo, req, now)
	if err != nil {
		return Deduction{}, err
	}
	return Deduction{Balance: b, Transaction: tx, Attendance: rows}, nil
}

// markLeaveDays upserts one leave attendance row per date the request covers.
func markLeaveDays(ctx context.Context, repo Repository, req LeaveRequest, now time.Time) ([]AttendanceRecord, error) {
	var rows []AttendanceRecord
	for _, d := range DaysBetween(req.StartDate, req.EndDate) {
		rec := AttendanceRecord{
			EmployeeID:     req.EmployeeID,
			OrganizationID: req.OrganizationID,
			Date:           d,
			Status:         AttendanceLeave,
			Notes:          "leave request " + req.ID,
			UpdatedAt:      now,
		}
		if err := repo.UpsertAttendance(ctx, rec); err != nil {
			return nil, fmt.Errorf("upsert attendance %s: %w", d.Format(time.DateOnly), err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}
