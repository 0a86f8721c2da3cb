package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"hrportal/internal/platform/events"
	"hrportal/internal/requestctx"
)

type AccrualSummary struct {
	Year              int `json:"year"`
	Month             int `json:"month"`
	PoliciesProcessed int `json:"policiesProcessed"`
	PoliciesSkipped   int `json:"policiesSkipped"`
	EmployeesAccrued  int `json:"employeesAccrued"`
}

// RunMonthlyAccrual credits the monthly share of every monthly-accruing
// policy to each active employee. A (policy, year, month) pair runs at most once.
func (s *Service) RunMonthlyAccrual(ctx context.Context, orgID string, year, month int, actor string) (AccrualSummary, error) {
	summary := AccrualSummary{Year: year, Month: month}
	if err := validYear(year); err != nil {
		return summary, err
	}
	if month < 1 || month > 12 {
		return summary, validationError("month must be between 1 and 12")
	}
	if s.Directory == nil {
		return summary, errors.New("employee directory is not configured")
	}

	policies, err := s.Repo.ListPolicies(ctx, orgID)
	if err != nil {
		return summary, err
	}
	employees, err := s.Directory.ActiveEmployeeIDs(ctx, orgID)
	if err != nil {
		return summary, fmt.Errorf("list active employees: %w", err)
	}
	// Leave the month unclaimed so a later run still credits new joiners.
	if len(employees) == 0 {
		requestctx.Logger(ctx).Info().Int("year", year).Int("month", month).
			Msg("monthly leave accrual skipped: no active employees")
		return summary, nil
	}

	for _, policy := range policies {
		if !policy.IsActive || policy.AccrualMethod != AccrualMonthly || policy.AnnualQuota == 0 {
			continue
		}
		credit := MonthlyCredit(policy.AnnualQuota, time.Month(month))
		now := s.now()
		claimed := false
		var changed []Balance

		err := s.Repo.WithTx(ctx, func(repo Repository) error {
			run := AccrualRun{OrganizationID: orgID, PolicyID: policy.ID, Year: year, Month: month, CreatedAt: now}
			ok, err := repo.ClaimAccrualRun(ctx, run)
			if err != nil || !ok {
				return err
			}
			claimed = true

			for _, employeeID := range employees {
				b, _, err := getOrCreateBalance(ctx, repo, policy, employeeID, year, true, actor, now)
				if err != nil {
					return err
				}
				b, _, err = post(ctx, repo, b, posting{
					Type:   TxAccrual,
					Amount: credit,
					Notes:  fmt.Sprintf("monthly accrual %04d-%02d", year, month),
					Actor:  actor,
				}, now)
				if err != nil {
					return err
				}
				changed = append(changed, b)
			}
			run.EmployeesCredited = len(changed)
			return repo.SetAccrualRunCount(ctx, run)
		})
		if err != nil {
			return summary, fmt.Errorf("accrue policy %s: %w", policy.Code, err)
		}
		if !claimed {
			summary.PoliciesSkipped++
			continue
		}
		summary.PoliciesProcessed++
		summary.EmployeesAccrued += len(changed)
		for _, b := range changed {
			s.publish(ctx, events.TypeBalanceChanged, orgID, b.ID, b)
		}
	}

	requestctx.Logger(ctx).Info().
		Int("year", year).Int("month", month).
		Int("policies", summary.PoliciesProcessed).
		Int("skipped", summary.PoliciesSkipped).
		Int("employees", summary.EmployeesAccrued).
		Msg("monthly leave accrual finished")
	return summary, nil
}

type CarryForwardResult struct {
	PolicyID string          `json:"policyId"`
	Code     string          `json:"code"`
	Carried  decimal.Decimal `json:"carried"`
	Applied  bool            `json:"applied"`
	Balance  *Balance        `json:"balance,omitempty"`
}

// CarryForward opens the employee's fromYear+1 balances with what each
// carry-forward policy allows from fromYear. A target balance whose opening is
// already set is left alone, so repeated runs are harmless.
func (s *Service) CarryForward(ctx context.Context, orgID, employeeID string, fromYear int, actor string) ([]CarryForwardResult, error) {
	if err := validYear(fromYear); err != nil {
		return nil, err
	}
	if err := s.ensureEmployee(ctx, orgID, employeeID); err != nil {
		return nil, err
	}
	policies, err := s.Repo.ListPolicies(ctx, orgID)
	if err != nil {
		return nil, err
	}

	results := []CarryForwardResult{}
	for _, policy := range policies {
		if !policy.IsActive || policy.CarryForwardType == CarryForwardNone {
			continue
		}
		res, ok, err := s.carryPolicy(ctx, policy, employeeID, fromYear, actor)
		if err != nil {
			return results, fmt.Errorf("carry forward %s: %w", policy.Code, err)
		}
		if !ok {
			continue
		}
		results = append(results, res)
		if res.Applied {
			s.publish(ctx, events.TypeBalanceChanged, orgID, res.Balance.ID, res.Balance)
		}
	}
	return results, nil
}

func (s *Service) carryPolicy(ctx context.Context, policy LeavePolicy, employeeID string, fromYear int, actor string) (CarryForwardResult, bool, error) {
	res := CarryForwardResult{PolicyID: policy.ID, Code: policy.Code}
	found := false
	err := s.Repo.WithTx(ctx, func(repo Repository) error {
		prev, err := repo.GetBalanceForUpdate(ctx, employeeID, policy.ID, fromYear)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		now := s.now()
		target, _, err := getOrCreateBalance(ctx, repo, policy, employeeID, fromYear+1, true, actor, now)
		if err != nil {
			return err
		}
		res.Carried = CarryAmount(policy, prev.CurrentBalance)
		if !target.OpeningBalance.IsZero() || res.Carried.IsZero() {
			res.Balance = &target
			return nil
		}
		target.OpeningBalance = res.Carried
		target.CurrentBalance = target.CurrentBalance.Add(res.Carried)
		target.UpdatedAt = now
		if err := repo.UpdateBalance(ctx, target); err != nil {
			return err
		}
		res.Applied = true
		res.Balance = &target
		return nil
	})
	return res, found, err
}

type CarryForwardSummary struct {
	FromYear  int `json:"fromYear"`
	Employees int `json:"employees"`
	Applied   int `json:"applied"`
}

// CarryForwardOrg runs CarryForward for every active employee of the organization.
func (s *Service) CarryForwardOrg(ctx context.Context, orgID string, fromYear int, actor string) (CarryForwardSummary, error) {
	summary := CarryForwardSummary{FromYear: fromYear}
	if s.Directory == nil {
		return summary, errors.New("employee directory is not configured")
	}
	employees, err := s.Directory.ActiveEmployeeIDs(ctx, orgID)
	if err != nil {
		return summary, fmt.Errorf("list active employees: %w", err)
	}
	for _, employeeID := range employees {
		results, err := s.CarryForward(ctx, orgID, employeeID, fromYear, actor)
		if err != nil {
			return summary, err
		}
		summary.Employees++
		for _, r := range results {
			if r.Applied {
				summary.Applied++
			}
		}
	}
	return summary, nil
}
