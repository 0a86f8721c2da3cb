package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hrportal/internal/domain/notifications"
	"hrportal/internal/platform/events"
)

type GrantInput struct {
	EmployeeID  string
	WorkDate    time.Time
	HoursWorked decimal.Decimal
	DaysGranted decimal.Decimal
	Source      string
	Reason      string
}

type ApplyResult struct {
	Grant       CompOffGrant `json:"grant"`
	Balance     Balance      `json:"balance"`
	Transaction Transaction  `json:"transaction"`
}

func (s *Service) CreateGrant(ctx context.Context, orgID string, in GrantInput, actor string) (CompOffGrant, error) {
	switch {
	case in.EmployeeID == "":
		return CompOffGrant{}, validationError("employeeId is required")
	case in.WorkDate.IsZero():
		return CompOffGrant{}, validationError("workDate is required")
	case !in.HoursWorked.IsPositive():
		return CompOffGrant{}, validationError("hoursWorked must be greater than zero")
	case !in.DaysGranted.IsPositive():
		return CompOffGrant{}, validationError("daysGranted must be greater than zero")
	}
	if err := s.ensureEmployee(ctx, orgID, in.EmployeeID); err != nil {
		return CompOffGrant{}, err
	}
	source := in.Source
	if source == "" {
		source = "manual"
	}

	g := CompOffGrant{
		ID:             uuid.NewString(),
		EmployeeID:     in.EmployeeID,
		OrganizationID: orgID,
		WorkDate:       DateOnly(in.WorkDate),
		HoursWorked:    in.HoursWorked,
		DaysGranted:    in.DaysGranted,
		Source:         source,
		Reason:         in.Reason,
		GrantedBy:      actor,
		CreatedAt:      s.now(),
	}
	if err := s.Repo.CreateGrant(ctx, g); err != nil {
		return CompOffGrant{}, fmt.Errorf("create comp-off grant: %w", err)
	}
	return g, nil
}

func (s *Service) ListGrants(ctx context.Context, orgID, employeeID string) ([]CompOffGrant, error) {
	grants, err := s.Repo.ListGrants(ctx, orgID, employeeID)
	if err != nil {
		return nil, err
	}
	if grants == nil {
		grants = []CompOffGrant{}
	}
	return grants, nil
}

// ApplyGrant banks a grant into the employee's COMP_OFF balance for the
// current year. A grant can be applied once.
func (s *Service) ApplyGrant(ctx context.Context, orgID, grantID, actor string) (ApplyResult, error) {
	now := s.now()
	var out ApplyResult

	err := s.Repo.WithTx(ctx, func(repo Repository) error {
		g, err := repo.GetGrantForUpdate(ctx, orgID, grantID)
		if errors.Is(err, ErrNotFound) {
			return notFoundError("comp-off grant %s not found", grantID)
		}
		if err != nil {
			return err
		}
		if g.IsApplied {
			return conflictError("comp-off grant %s is already applied", grantID)
		}

		policy, err := activePolicyByCode(ctx, repo, orgID, CodeCompOff)
		if err != nil {
			return err
		}

		// A lazily created comp-off balance starts at zero; only the grant is credited.
		b, _, err := getOrCreateBalance(ctx, repo, policy, g.EmployeeID, now.Year(), false, actor, now)
		if err != nil {
			return err
		}
		b, entry, err := post(ctx, repo, b, posting{
			Type:      TxAccrual,
			Amount:    g.DaysGranted,
			Reference: g.ID,
			Notes:     "comp-off for " + g.WorkDate.Format(time.DateOnly),
			Actor:     actor,
		}, now)
		if err != nil {
			return err
		}

		if err := repo.MarkGrantApplied(ctx, g.ID, now); errors.Is(err, ErrConflict) {
			return conflictError("comp-off grant %s is already applied", grantID)
		} else if err != nil {
			return err
		}
		g.IsApplied = true
		g.AppliedAt = &now
		out = ApplyResult{Grant: g, Balance: b, Transaction: entry}
		return nil
	})
	if err != nil {
		return ApplyResult{}, err
	}

	s.notifyEmployee(ctx, orgID, out.Grant.EmployeeID, notifications.TypeCompOffApplied, "Comp-off credited",
		fmt.Sprintf("%s comp-off day(s) were added to your balance", out.Grant.DaysGranted.String()))
	s.publish(ctx, events.TypeCompOffApplied, orgID, out.Grant.ID, out)
	return out, nil
}

func activePolicyByCode(ctx context.Context, repo Repository, orgID, code string) (LeavePolicy, error) {
	policies, err := repo.ListPolicies(ctx, orgID)
	if err != nil {
		return LeavePolicy{}, err
	}
	for _, p := range policies {
		if p.Code == code && p.IsActive {
			return p, nil
		}
	}
	return LeavePolicy{}, validationError("no active %s policy", code)
}
