package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"hrportal/internal/domain/auth"
	"hrportal/internal/domain/core"
	"hrportal/internal/domain/leave"
	"hrportal/internal/domain/notifications"
	"hrportal/internal/platform/sqlite"
)

var fixedNow = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ctx        context.Context
	store      *sqlite.Store
	svc        *leave.Service
	orgID      string
	adminID    string
	employeeID string
	userID     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	orgID, err := store.EnsureOrganization(ctx, "Acme")
	require.NoError(t, err)
	adminID, err := store.EnsureUser(ctx, orgID, "admin@acme.test", auth.RoleOrgAdmin)
	require.NoError(t, err)
	userID, err := store.EnsureUser(ctx, orgID, "jane@acme.test", auth.RoleEmployee)
	require.NoError(t, err)
	employeeID, err := store.EnsureEmployee(ctx, orgID, userID, "Jane Doe", "jane@acme.test")
	require.NoError(t, err)

	svc := leave.NewService(store, core.NewService(store), notifications.New(store, nil), nil, nil)
	svc.Now = func() time.Time { return fixedNow }

	return &fixture{
		ctx:        ctx,
		store:      store,
		svc:        svc,
		orgID:      orgID,
		adminID:    adminID,
		employeeID: employeeID,
		userID:     userID,
	}
}

func (f *fixture) policy(t *testing.T, in leave.PolicyInput) leave.LeavePolicy {
	t.Helper()
	p, err := f.svc.CreatePolicy(f.ctx, f.orgID, in)
	require.NoError(t, err)
	return p
}

func (f *fixture) casualPolicy(t *testing.T) leave.LeavePolicy {
	return f.policy(t, leave.PolicyInput{
		Code:             leave.CodeCasual,
		DisplayName:      "Casual Leave",
		AnnualQuota:      12,
		AccrualMethod:    leave.AccrualYearly,
		CarryForwardType: leave.CarryForwardNone,
	})
}

func (f *fixture) compOffPolicy(t *testing.T) leave.LeavePolicy {
	return f.policy(t, leave.PolicyInput{
		Code:             leave.CodeCompOff,
		DisplayName:      "Comp Off",
		AccrualMethod:    leave.AccrualNone,
		CarryForwardType: leave.CarryForwardUnlimited,
	})
}

func (f *fixture) balance(t *testing.T, policyID string, year int) leave.Balance {
	t.Helper()
	b, err := f.store.GetBalance(f.ctx, f.employeeID, policyID, year)
	require.NoError(t, err)
	return b
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// requireAuditTrail checks opening + Σ amount == current and that every
// entry snapshots the running balance.
func requireAuditTrail(t *testing.T, f *fixture, b leave.Balance) {
	t.Helper()
	require.True(t, b.Consistent(), "balance identity broken: %+v", b)
	txs, err := f.store.ListTransactions(f.ctx, f.orgID, b.ID)
	require.NoError(t, err)
	running := b.OpeningBalance
	for _, tx := range txs {
		running = running.Add(tx.Amount)
		assert.True(t, tx.BalanceAfter.Equal(running), "balanceAfter %s, running %s", tx.BalanceAfter, running)
	}
	assert.True(t, running.Equal(b.CurrentBalance), "sum %s, current %s", running, b.CurrentBalance)
}

func TestInitializeBalancesIsIdempotent(t *testing.T) {
	f := newFixture(t)
	casual := f.casualPolicy(t)
	f.policy(t, leave.PolicyInput{
		Code:              leave.CodePrivilege,
		DisplayName:       "Privilege Leave",
		AnnualQuota:       18,
		AccrualMethod:     leave.AccrualMonthly,
		CarryForwardType:  leave.CarryForwardLimited,
		CarryForwardLimit: 30,
	})

	first, err := f.svc.InitializeBalances(f.ctx, f.orgID, f.employeeID, 2026, f.adminID)
	require.NoError(t, err)
	assert.Len(t, first.Created, 2)
	assert.Empty(t, first.Skipped)

	second, err := f.svc.InitializeBalances(f.ctx, f.orgID, f.employeeID, 2026, f.adminID)
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Len(t, second.Skipped, 2)

	b := f.balance(t, casual.ID, 2026)
	assert.True(t, b.Accrued.Equal(dec("12")))
	assert.True(t, b.CurrentBalance.Equal(dec("12")))
	txs, err := f.store.ListTransactions(f.ctx, f.orgID, b.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, leave.TxAccrual, txs[0].TransactionType)
	assert.Equal(t, "annual quota", txs[0].Notes)
	requireAuditTrail(t, f, b)
}

func TestInitializeBalancesUnknownEmployee(t *testing.T) {
	f := newFixture(t)
	f.casualPolicy(t)

	_, err := f.svc.InitializeBalances(f.ctx, f.orgID, "missing", 2026, f.adminID)
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

func TestApproveHappyPath(t *testing.T) {
	f := newFixture(t)
	casual := f.casualPolicy(t)
	_, err := f.svc.InitializeBalances(f.ctx, f.orgID, f.employeeID, 2026, f.adminID)
	require.NoError(t, err)

	req, err := f.svc.CreateRequest(f.ctx, f.orgID, f.employeeID, leave.RequestInput{
		PolicyID:  casual.ID,
		StartDate: date(2026, time.March, 2),
		EndDate:   date(2026, time.March, 4),
		Reason:    "family trip",
	})
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, req.Status)
	assert.Equal(t, leave.CodeCasual, req.LeaveType)
	assert.True(t, req.TotalDays.Equal(dec("3")))

	adminInbox, err := f.store.ListNotifications(f.ctx, f.orgID, f.adminID, 10, 0)
	require.NoError(t, err)
	require.Len(t, adminInbox, 1)
	assert.Equal(t, notifications.TypeLeaveSubmitted, adminInbox[0].Type)

	result, err := f.svc.ApproveRequest(f.ctx, f.orgID, req.ID, f.adminID, "enjoy")
	require.NoError(t, err)
	require.NoError(t, result.Err())
	assert.Equal(t, leave.OutcomeApproved, result.Outcome)
	assert.Equal(t, leave.StatusApproved, result.Request.Status)
	assert.Equal(t, f.adminID, result.Request.ReviewedBy)
	require.NotNil(t, result.Transaction)
	assert.True(t, result.Transaction.Amount.Equal(dec("-3")))
	assert.Equal(t, req.ID, result.Transaction.ReferenceID)
	assert.Len(t, result.Attendance, 3)

	b := f.balance(t, casual.ID, 2026)
	assert.True(t, b.Used.Equal(dec("3")))
	assert.True(t, b.CurrentBalance.Equal(dec("9")))
	requireAuditTrail(t, f, b)

	rows, err := f.svc.ListAttendance(f.ctx, f.orgID, f.employeeID, date(2026, time.March, 1), date(2026, time.March, 31))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, leave.AttendanceLeave, row.Status)
	}

	inbox, err := f.store.ListNotifications(f.ctx, f.orgID, f.userID, 10, 0)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, notifications.TypeLeaveApproved, inbox[0].Type)
}

func TestApproveTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	casual := f.casualPolicy(t)
	_, err := f.svc.InitializeBalances(f.ctx, f.orgID, f.employeeID, 2026, f.adminID)
	require.NoError(t, err)
	req, err := f.svc.CreateRequest(f.ctx, f.orgID, f.employeeID, leave.RequestInput{
		PolicyID:  casual.ID,
		StartDate: date(2026, time.April, 1),
		EndDate:   date(2026, time.April, 1),
	})
	require.NoError(t, err)

	_, err = f.svc.ApproveRequest(f.ctx, f.orgID, req.ID, f.adminID, "")
	require.NoError(t, err)
	_, err = f.svc.ApproveRequest(f.ctx, f.orgID, req.ID, f.adminID, "")
	assert.ErrorIs(t, err, leave.ErrConflict)

	b := f.balance(t, casual.ID, 2026)
	assert.True(t, b.CurrentBalance.Equal(dec("11")), "second approval must not deduct again")
}

func TestApproveWithoutBalanceStaysPending(t *testing.T) {
	f := newFixture(t)
	casual := f.casualPolicy(t)
	req, err := f.svc.CreateRequest(f.ctx, f.orgID, f.employeeID, leave.RequestInput{
		PolicyID:  casual.ID,
		StartDate: date(2026, time.May, 4),
		EndDate:   date(2026, time.May, 5),
	})
	require.NoError(t, err)

	result, err := f.svc.ApproveRequest(f.ctx, f.orgID, req.ID, f.adminID, "")
	require.NoError(t, err)
	assert.Equal(t, leave.OutcomeRevertedToPending, result.Outcome)
	assert.Equal(t, "no leave balance record found for year 2026", result.Reason)
	assert.ErrorIs(t, result.Err(), leave.ErrNotFound)

	stored, err := f.svc.GetRequest(f.ctx, f.orgID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, stored.Status)
	assert.Empty(t, stored.ReviewedBy)

	_, err = f.store.GetBalance(f.ctx, f.employeeID, casual.ID, 2026)
	assert.ErrorIs(t, err, leave.ErrNotFound)
	rows, err := f.svc.ListAttendance(f.ctx, f.orgID, f.employeeID, date(2026, time.May, 1), date(2026, time.May, 31))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCreateRejectsCrossYearSpan(t *testing.T) {
	f := newFixture(t)
	casual := f.casualPolicy(t)

	_, err := f.svc.CreateRequest(f.ctx, f.orgID, f.employeeID, leave.RequestInput{
		PolicyID:  casual.ID,
		StartDate: date(2026, time.December, 30),
		EndDate:   date(2027, time.January, 2),
	})
	require.ErrorIs(t, err, leave.ErrValidation)
	assert.Equal(t, "leave requests cannot span multiple years; please submit one request per year", err.Error())
}

func TestApproveAutoRejectsLegacyCrossYearRequest(t *testing.T) {
	f := newFixture(t)
	casual := f.casualPolicy(t)
	_, err := f.svc.InitializeBalances(f.ctx, f.orgID, f.employeeID, 2026, f.adminID)
	require.NoError(t, err)

	legacy := leave.LeaveRequest{
		ID:             "legacy-1",
		EmployeeID:     f.employeeID,
		OrganizationID: f.orgID,
		PolicyID:       casual.ID,
		LeaveType:      leave.CodeCasual,
		StartDate:      date(2026, time.December, 30),
		EndDate:        date(2027, time.January, 2),
		TotalDays:      dec("4"),
		Status:         leave.StatusPending,
		CreatedAt:      fixedNow,
	}
	require.NoError(t, f.store.CreateRequest(f.ctx, legacy))

	result, err := f.svc.ApproveRequest(f.ctx, f.orgID, legacy.ID, f.adminID, "")
	require.NoError(t, err)
	assert.Equal(t, leave.OutcomeAutoRejected, result.Outcome)
	assert.ErrorIs(t, result.Err(), leave.ErrValidation)

	stored, err := f.svc.GetRequest(f.ctx, f.orgID, legacy.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, stored.Status)
	assert.Contains(t, stored.ReviewNotes, "cannot span multiple years")

	b := f.balance(t, casual.ID, 2026)
	assert.True(t, b.CurrentBalance.Equal(dec("12")))
}

func TestCreateRequestValidation(t *testing.T) {
	f := newFixture(t)
	casual := f.casualPolicy(t)

	cases := []struct {
		name string
		in   leave.RequestInput
	}{
		{"end before start", leave.RequestInput{PolicyID: casual.ID, StartDate: date(2026, 3, 5), EndDate: date(2026, 3, 4)}},
		{"half day over two days", leave.RequestInput{PolicyID: casual.ID, StartDate: date(2026, 3, 5), EndDate: date(2026, 3, 6), IsHalfDay: true, HalfDaySession: leave.SessionFirstHalf}},
		{"half day without session", leave.RequestInput{PolicyID: casual.ID, StartDate: date(2026, 3, 5), EndDate: date(2026, 3, 5), IsHalfDay: true}},
		{"no policy or type", leave.RequestInput{StartDate: date(2026, 3, 5), EndDate: date(2026, 3, 5)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateRequest(f.ctx, f.orgID, f.employeeID, tc.in)
			assert.ErrorIs(t, err, leave.ErrValidation)
		})
	}

	half, err := f.svc.CreateRequest(f.ctx, f.orgID, f.employeeID, leave.RequestInput{
		PolicyID:       casual.ID,
		StartDate:      date(2026, 3, 5),
		EndDate:        date(2026, 3, 5),
		IsHalfDay:      true,
		HalfDaySession: leave.SessionSecondHalf,
	})
	require.NoError(t, err)
	assert.True(t, half.TotalDays.Equal(dec("0.5")))
}

func TestApproveManualLeaveHasNoLedgerEffect(t *testing.T) {
	f := newFixture(t)
	req, err := f.svc.CreateRequest(f.ctx, f.orgID, f.employeeID, leave.RequestInput{
		LeaveType: "UNPAID",
		StartDate: date(2026, time.June, 1),
		EndDate:   date(2026, time.June, 2),
	})
	require.NoError(t, err)

	result, err := f.svc.ApproveRequest(f.ctx, f.orgID, req.ID, f.adminID, "")
	require.NoError(t, err)
	assert.Equal(t, leave.OutcomeApproved, result.Outcome)
	assert.Nil(t, result.Balance)
	assert.Nil(t, result.Transaction)
	assert.Len(t, result.Attendance, 2)

	rows, err := f.svc.ListAttendance(f.ctx, f.orgID, f.employeeID, date(2026, time.June, 1), date(2026, time.June, 30))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, leave.AttendanceLeave, row.Status)
	}
}

func TestCancelRequestOwnership(t *testing.T) {
	f := newFixture(t)
	casual := f.casualPolicy(t)
	req, err := f.svc.CreateRequest(f.ctx, f.orgID, f.employeeID, leave.RequestInput{
		PolicyID:  casual.ID,
		StartDate: date(2026, time.July, 1),
		EndDate:   date(2026, time.July, 1),
	})
	require.NoError(t, err)

	_, err = f.svc.CancelRequest(f.ctx, f.orgID, req.ID, "someone", "other-employee", false, "")
	assert.ErrorIs(t, err, leave.ErrNotFound)

	cancelled, err := f.svc.CancelRequest(f.ctx, f.orgID, req.ID, f.userID, f.employeeID, false, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusCancelled, cancelled.Status)

	_, err = f.svc.RejectRequest(f.ctx, f.orgID, req.ID, f.adminID, "")
	assert.ErrorIs(t, err, leave.ErrConflict)
}

func TestListRequestsFilters(t *testing.T) {
	f := newFixture(t)
	casual := f.casualPolicy(t)
	for _, d := range []int{2, 9, 16} {
		_, err := f.svc.CreateRequest(f.ctx, f.orgID, f.employeeID, leave.RequestInput{
			PolicyID:  casual.ID,
			StartDate: date(2026, time.February, d),
			EndDate:   date(2026, time.February, d),
		})
		require.NoError(t, err)
	}

	page, err := f.svc.ListRequests(f.ctx, leave.RequestFilter{OrganizationID: f.orgID, EmployeeID: f.employeeID, Year: 2026, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Len(t, page.Items, 2)

	none, err := f.svc.ListRequests(f.ctx, leave.RequestFilter{OrganizationID: f.orgID, Status: leave.StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, 0, none.Total)
	assert.NotNil(t, none.Items)

	_, err = f.svc.ListRequests(f.ctx, leave.RequestFilter{OrganizationID: f.orgID, Status: "archived"})
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestAdjustBalance(t *testing.T) {
	f := newFixture(t)
	casual := f.casualPolicy(t)

	_, _, err := f.svc.AdjustBalance(f.ctx, f.orgID, leave.AdjustInput{
		EmployeeID: f.employeeID, PolicyID: casual.ID, Year: 2026, Amount: dec("2"),
	}, f.adminID)
	require.ErrorIs(t, err, leave.ErrNotFound)

	_, err = f.svc.InitializeBalances(f.ctx, f.orgID, f.employeeID, 2026, f.adminID)
	require.NoError(t, err)

	_, _, err = f.svc.AdjustBalance(f.ctx, f.orgID, leave.AdjustInput{
		EmployeeID: f.employeeID, PolicyID: casual.ID, Year: 2026, Amount: decimal.Zero,
	}, f.adminID)
	require.ErrorIs(t, err, leave.ErrValidation)

	b, tx, err := f.svc.AdjustBalance(f.ctx, f.orgID, leave.AdjustInput{
		EmployeeID: f.employeeID, PolicyID: casual.ID, Year: 2026, Amount: dec("-1.5"), Notes: "correction",
	}, f.adminID)
	require.NoError(t, err)
	assert.Equal(t, leave.TxAdjustment, tx.TransactionType)
	assert.True(t, tx.BalanceAfter.Equal(dec("10.5")))
	assert.True(t, b.Adjustment.Equal(dec("-1.5")))
	requireAuditTrail(t, f, b)
}

func TestConcurrentAdjustmentsAreSerialized(t *testing.T) {
	f := newFixture(t)
	casual := f.casualPolicy(t)
	_, err := f.svc.InitializeBalances(f.ctx, f.orgID, f.employeeID, 2026, f.adminID)
	require.NoError(t, err)

	const workers = 12
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		amount := dec("0.5")
		if i%3 == 0 {
			amount = dec("-0.25")
		}
		g.Go(func() error {
			_, _, err := f.svc.AdjustBalance(f.ctx, f.orgID, leave.AdjustInput{
				EmployeeID: f.employeeID, PolicyID: casual.ID, Year: 2026, Amount: amount,
			}, f.adminID)
			return err
		})
	}
	require.NoError(t, g.Wait())

	b := f.balance(t, casual.ID, 2026)
	assert.True(t, b.Adjustment.Equal(dec("3")), "lost update: adjustment %s", b.Adjustment)
	assert.True(t, b.CurrentBalance.Equal(dec("15")), "lost update: current %s", b.CurrentBalance)
	txs, err := f.store.ListTransactions(f.ctx, f.orgID, b.ID)
	require.NoError(t, err)
	assert.Len(t, txs, workers+1)
	requireAuditTrail(t, f, b)
}

func TestLedgerConservationAcrossOperations(t *testing.T) {
	f := newFixture(t)
	casual := f.casualPolicy(t)
	_, err := f.svc.InitializeBalances(f.ctx, f.orgID, f.employeeID, 2026, f.adminID)
	require.NoError(t, err)

	for _, amount := range []string{"2", "-0.5", "1.25"} {
		_, _, err := f.svc.AdjustBalance(f.ctx, f.orgID, leave.AdjustInput{
			EmployeeID: f.employeeID, PolicyID: casual.ID, Year: 2026, Amount: dec(amount),
		}, f.adminID)
		require.NoError(t, err)
	}
	for _, d := range []int{3, 10} {
		req, err := f.svc.CreateRequest(f.ctx, f.orgID, f.employeeID, leave.RequestInput{
			PolicyID:  casual.ID,
			StartDate: date(2026, time.August, d),
			EndDate:   date(2026, time.August, d+1),
		})
		require.NoError(t, err)
		_, err = f.svc.ApproveRequest(f.ctx, f.orgID, req.ID, f.adminID, "")
		require.NoError(t, err)
	}

	b := f.balance(t, casual.ID, 2026)
	assert.True(t, b.CurrentBalance.Equal(dec("10.75")), "got %s", b.CurrentBalance)
	requireAuditTrail(t, f, b)
}

func TestPolicyRegistry(t *testing.T) {
	f := newFixture(t)
	casual := f.casualPolicy(t)

	t.Run("duplicate active code conflicts", func(t *testing.T) {
		_, err := f.svc.CreatePolicy(f.ctx, f.orgID, leave.PolicyInput{
			Code: leave.CodeCasual, DisplayName: "Casual 2", AccrualMethod: leave.AccrualYearly, CarryForwardType: leave.CarryForwardNone,
		})
		assert.ErrorIs(t, err, leave.ErrConflict)
	})

	t.Run("carry forward limit is cleared unless limited", func(t *testing.T) {
		sick := f.policy(t, leave.PolicyInput{
			Code: leave.CodeSick, DisplayName: "Sick", AnnualQuota: 8, AccrualMethod: leave.AccrualYearly,
			CarryForwardType: leave.CarryForwardUnlimited, CarryForwardLimit: 5,
		})
		assert.Zero(t, sick.CarryForwardLimit)

		limited := leave.CarryForwardLimited
		limit := 4
		updated, err := f.svc.UpdatePolicy(f.ctx, f.orgID, sick.ID, leave.PolicyPatch{CarryForwardType: &limited, CarryForwardLimit: &limit})
		require.NoError(t, err)
		assert.Equal(t, 4, updated.CarryForwardLimit)

		none := leave.CarryForwardNone
		updated, err = f.svc.UpdatePolicy(f.ctx, f.orgID, sick.ID, leave.PolicyPatch{CarryForwardType: &none})
		require.NoError(t, err)
		assert.Zero(t, updated.CarryForwardLimit)
	})

	t.Run("re-activating into a duplicate conflicts", func(t *testing.T) {
		inactive := false
		old := f.policy(t, leave.PolicyInput{
			Code: leave.CodeCasual, DisplayName: "Old casual", AccrualMethod: leave.AccrualNone,
			CarryForwardType: leave.CarryForwardNone, IsActive: &inactive,
		})
		active := true
		_, err := f.svc.UpdatePolicy(f.ctx, f.orgID, old.ID, leave.PolicyPatch{IsActive: &active})
		assert.ErrorIs(t, err, leave.ErrConflict)
	})

	t.Run("invalid enum", func(t *testing.T) {
		_, err := f.svc.CreatePolicy(f.ctx, f.orgID, leave.PolicyInput{
			Code: "XL", DisplayName: "x", AccrualMethod: leave.AccrualYearly, CarryForwardType: leave.CarryForwardNone,
		})
		assert.ErrorIs(t, err, leave.ErrValidation)
	})

	t.Run("delete while referenced conflicts", func(t *testing.T) {
		_, err := f.svc.InitializeBalances(f.ctx, f.orgID, f.employeeID, 2026, f.adminID)
		require.NoError(t, err)
		err = f.svc.DeletePolicy(f.ctx, f.orgID, casual.ID)
		assert.ErrorIs(t, err, leave.ErrConflict)

		_, err = f.svc.GetPolicy(f.ctx, f.orgID, casual.ID)
		assert.NoError(t, err)
	})

	t.Run("delete unreferenced", func(t *testing.T) {
		earned := f.policy(t, leave.PolicyInput{
			Code: leave.CodePrivilege, DisplayName: "PL", AccrualMethod: leave.AccrualNone, CarryForwardType: leave.CarryForwardNone,
		})
		require.NoError(t, f.svc.DeletePolicy(f.ctx, f.orgID, earned.ID))
		_, err := f.svc.GetPolicy(f.ctx, f.orgID, earned.ID)
		assert.ErrorIs(t, err, leave.ErrNotFound)
	})
}

func TestCompOffRoundTrip(t *testing.T) {
	f := newFixture(t)
	compOff := f.compOffPolicy(t)

	grant, err := f.svc.CreateGrant(f.ctx, f.orgID, leave.GrantInput{
		EmployeeID:  f.employeeID,
		WorkDate:    date(2026, time.March, 7),
		HoursWorked: dec("8"),
		DaysGranted: dec("1"),
		Reason:      "weekend release",
	}, f.adminID)
	require.NoError(t, err)
	assert.False(t, grant.IsApplied)
	assert.Equal(t, "manual", grant.Source)

	applied, err := f.svc.ApplyGrant(f.ctx, f.orgID, grant.ID, f.adminID)
	require.NoError(t, err)
	assert.True(t, applied.Grant.IsApplied)
	assert.Equal(t, grant.ID, applied.Transaction.ReferenceID)
	assert.True(t, applied.Balance.CurrentBalance.Equal(dec("1")))

	b := f.balance(t, compOff.ID, 2026)
	assert.True(t, b.Accrued.Equal(dec("1")))
	requireAuditTrail(t, f, b)

	_, err = f.svc.ApplyGrant(f.ctx, f.orgID, grant.ID, f.adminID)
	assert.ErrorIs(t, err, leave.ErrConflict)
	b = f.balance(t, compOff.ID, 2026)
	assert.True(t, b.CurrentBalance.Equal(dec("1")), "double apply must not credit twice")

	grants, err := f.svc.ListGrants(f.ctx, f.orgID, f.employeeID)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.True(t, grants[0].IsApplied)
}

func TestApplyGrantIgnoresYearlyQuota(t *testing.T) {
	f := newFixture(t)
	compOff := f.policy(t, leave.PolicyInput{
		Code:             leave.CodeCompOff,
		DisplayName:      "Comp Off",
		AnnualQuota:      2,
		AccrualMethod:    leave.AccrualYearly,
		CarryForwardType: leave.CarryForwardNone,
	})
	grant, err := f.svc.CreateGrant(f.ctx, f.orgID, leave.GrantInput{
		EmployeeID:  f.employeeID,
		WorkDate:    date(2026, time.March, 8),
		HoursWorked: dec("8"),
		DaysGranted: dec("1"),
	}, f.adminID)
	require.NoError(t, err)

	applied, err := f.svc.ApplyGrant(f.ctx, f.orgID, grant.ID, f.adminID)
	require.NoError(t, err)
	assert.True(t, applied.Balance.CurrentBalance.Equal(dec("1")), "got %s", applied.Balance.CurrentBalance)

	b := f.balance(t, compOff.ID, 2026)
	assert.True(t, b.Accrued.Equal(dec("1")), "got %s", b.Accrued)
	assert.True(t, b.CurrentBalance.Equal(dec("1")), "got %s", b.CurrentBalance)
	txs, err := f.store.ListTransactions(f.ctx, f.orgID, b.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, grant.ID, txs[0].ReferenceID)
	requireAuditTrail(t, f, b)
}

func TestApplyGrantWithoutCompOffPolicy(t *testing.T) {
	f := newFixture(t)
	grant, err := f.svc.CreateGrant(f.ctx, f.orgID, leave.GrantInput{
		EmployeeID:  f.employeeID,
		WorkDate:    date(2026, time.March, 7),
		HoursWorked: dec("4"),
		DaysGranted: dec("0.5"),
	}, f.adminID)
	require.NoError(t, err)

	_, err = f.svc.ApplyGrant(f.ctx, f.orgID, grant.ID, f.adminID)
	require.ErrorIs(t, err, leave.ErrValidation)
	assert.Equal(t, "no active COMP_OFF policy", err.Error())
}

func TestMonthlyAccrual(t *testing.T) {
	f := newFixture(t)
	earned := f.policy(t, leave.PolicyInput{
		Code:              leave.CodePrivilege,
		DisplayName:       "Privilege Leave",
		AnnualQuota:       10,
		AccrualMethod:     leave.AccrualMonthly,
		CarryForwardType:  leave.CarryForwardLimited,
		CarryForwardLimit: 30,
	})

	first, err := f.svc.RunMonthlyAccrual(f.ctx, f.orgID, 2026, 1, "system")
	require.NoError(t, err)
	assert.Equal(t, 1, first.PoliciesProcessed)
	assert.Equal(t, 1, first.EmployeesAccrued)

	again, err := f.svc.RunMonthlyAccrual(f.ctx, f.orgID, 2026, 1, "system")
	require.NoError(t, err)
	assert.Equal(t, 0, again.PoliciesProcessed)
	assert.Equal(t, 1, again.PoliciesSkipped)

	b := f.balance(t, earned.ID, 2026)
	assert.True(t, b.Accrued.Equal(dec("0.83")), "got %s", b.Accrued)

	for month := 2; month <= 12; month++ {
		_, err := f.svc.RunMonthlyAccrual(f.ctx, f.orgID, 2026, month, "system")
		require.NoError(t, err)
	}
	b = f.balance(t, earned.ID, 2026)
	assert.True(t, b.Accrued.Equal(dec("10")), "year must total the quota, got %s", b.Accrued)
	requireAuditTrail(t, f, b)

	_, err = f.svc.RunMonthlyAccrual(f.ctx, f.orgID, 2026, 13, "system")
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestMonthlyAccrualWithoutEmployeesLeavesMonthOpen(t *testing.T) {
	f := newFixture(t)
	orgID, err := f.store.EnsureOrganization(f.ctx, "Globex")
	require.NoError(t, err)
	earned, err := f.svc.CreatePolicy(f.ctx, orgID, leave.PolicyInput{
		Code:             leave.CodePrivilege,
		DisplayName:      "Privilege Leave",
		AnnualQuota:      12,
		AccrualMethod:    leave.AccrualMonthly,
		CarryForwardType: leave.CarryForwardNone,
	})
	require.NoError(t, err)

	empty, err := f.svc.RunMonthlyAccrual(f.ctx, orgID, 2026, 4, "system")
	require.NoError(t, err)
	assert.Equal(t, 0, empty.PoliciesProcessed)
	assert.Equal(t, 0, empty.PoliciesSkipped)

	userID, err := f.store.EnsureUser(f.ctx, orgID, "sam@globex.test", auth.RoleEmployee)
	require.NoError(t, err)
	employeeID, err := f.store.EnsureEmployee(f.ctx, orgID, userID, "Sam Hire", "sam@globex.test")
	require.NoError(t, err)

	later, err := f.svc.RunMonthlyAccrual(f.ctx, orgID, 2026, 4, "system")
	require.NoError(t, err)
	assert.Equal(t, 1, later.PoliciesProcessed)
	assert.Equal(t, 1, later.EmployeesAccrued)

	b, err := f.store.GetBalance(f.ctx, employeeID, earned.ID, 2026)
	require.NoError(t, err)
	assert.True(t, b.Accrued.Equal(dec("1")), "got %s", b.Accrued)
}

func TestCarryForwardCapsAtLimit(t *testing.T) {
	f := newFixture(t)
	earned := f.policy(t, leave.PolicyInput{
		Code:              leave.CodePrivilege,
		DisplayName:       "Privilege Leave",
		AnnualQuota:       18,
		AccrualMethod:     leave.AccrualYearly,
		CarryForwardType:  leave.CarryForwardLimited,
		CarryForwardLimit: 5,
	})
	f.casualPolicy(t)
	_, err := f.svc.InitializeBalances(f.ctx, f.orgID, f.employeeID, 2025, f.adminID)
	require.NoError(t, err)

	results, err := f.svc.CarryForward(f.ctx, f.orgID, f.employeeID, 2025, "system")
	require.NoError(t, err)
	require.Len(t, results, 1, "casual leave does not carry forward")
	assert.True(t, results[0].Applied)
	assert.True(t, results[0].Carried.Equal(dec("5")))

	next := f.balance(t, earned.ID, 2026)
	assert.True(t, next.OpeningBalance.Equal(dec("5")))
	assert.True(t, next.CurrentBalance.Equal(dec("23")))
	requireAuditTrail(t, f, next)

	repeat, err := f.svc.CarryForward(f.ctx, f.orgID, f.employeeID, 2025, "system")
	require.NoError(t, err)
	require.Len(t, repeat, 1)
	assert.False(t, repeat[0].Applied)
	next = f.balance(t, earned.ID, 2026)
	assert.True(t, next.CurrentBalance.Equal(dec("23")))

	summary, err := f.svc.CarryForwardOrg(f.ctx, f.orgID, 2025, "system")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Employees)
	assert.Equal(t, 0, summary.Applied)
}

func TestStatementAndPDF(t *testing.T) {
	f := newFixture(t)
	casual := f.casualPolicy(t)
	_, err := f.svc.InitializeBalances(f.ctx, f.orgID, f.employeeID, 2026, f.adminID)
	require.NoError(t, err)

	st, err := f.svc.Statement(f.ctx, f.orgID, f.employeeID, casual.ID, 2026)
	require.NoError(t, err)
	assert.Equal(t, casual.ID, st.Policy.ID)
	assert.Len(t, st.Transactions, 1)

	pdf, err := leave.RenderStatementPDF(st, "Jane Doe")
	require.NoError(t, err)
	assert.True(t, len(pdf) > 4 && string(pdf[:4]) == "%PDF")

	_, err = f.svc.Statement(f.ctx, f.orgID, f.employeeID, casual.ID, 2024)
	assert.ErrorIs(t, err, leave.ErrNotFound)
}
