package leave

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"hrportal/internal/platform/cache"
	"hrportal/internal/platform/events"
	"hrportal/internal/requestctx"
)

type Service struct {
	Repo      Repository
	Directory Directory
	Notify    Notifier
	Events    events.Publisher
	Cache     *cache.Cache
	Now       func() time.Time
}

func NewService(repo Repository, directory Directory, notify Notifier, publisher events.Publisher, policyCache *cache.Cache) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		Repo:      repo,
		Directory: directory,
		Notify:    notify,
		Events:    publisher,
		Cache:     policyCache,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

type PolicyInput struct {
	Code              string `json:"code" validate:"required,oneof=CL PL SL COMP_OFF"`
	DisplayName       string `json:"displayName" validate:"required,max=100"`
	AnnualQuota       int    `json:"annualQuota" validate:"gte=0,lte=366"`
	AccrualMethod     string `json:"accrualMethod" validate:"required,oneof=yearly monthly none"`
	CarryForwardType  string `json:"carryForwardType" validate:"required,oneof=none limited unlimited"`
	CarryForwardLimit int    `json:"carryForwardLimit" validate:"gte=0"`
	IsActive          *bool  `json:"isActive"`
}

type PolicyPatch struct {
	Code              *string `json:"code" validate:"omitempty,oneof=CL PL SL COMP_OFF"`
	DisplayName       *string `json:"displayName" validate:"omitempty,min=1,max=100"`
	AnnualQuota       *int    `json:"annualQuota" validate:"omitempty,gte=0,lte=366"`
	AccrualMethod     *string `json:"accrualMethod" validate:"omitempty,oneof=yearly monthly none"`
	CarryForwardType  *string `json:"carryForwardType" validate:"omitempty,oneof=none limited unlimited"`
	CarryForwardLimit *int    `json:"carryForwardLimit" validate:"omitempty,gte=0"`
	IsActive          *bool   `json:"isActive"`
}

type InitializeResult struct {
	Created []Balance `json:"created"`
	Skipped []Balance `json:"skipped"`
}

type AdjustInput struct {
	EmployeeID string
	PolicyID   string
	Year       int
	Amount     decimal.Decimal
	Notes      string
}

type Statement struct {
	Policy       LeavePolicy   `json:"policy"`
	Balance      Balance       `json:"balance"`
	Transactions []Transaction `json:"transactions"`
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func policyCacheKey(orgID string) string {
	return "leave:policies:" + orgID
}

func validatePolicy(p LeavePolicy) error {
	switch {
	case !contains(PolicyCodes, p.Code):
		return validationError("code must be one of CL, PL, SL, COMP_OFF")
	case p.DisplayName == "":
		return validationError("displayName is required")
	case p.AnnualQuota < 0:
		return validationError("annualQuota must not be negative")
	case !contains(AccrualMethods, p.AccrualMethod):
		return validationError("accrualMethod must be one of yearly, monthly, none")
	case !contains(CarryForwardTypes, p.CarryForwardType):
		return validationError("carryForwardType must be one of none, limited, unlimited")
	case p.CarryForwardLimit < 0:
		return validationError("carryForwardLimit must not be negative")
	}
	return nil
}

func validYear(year int) error {
	if year < 2000 || year > 2100 {
		return validationError("year %d is out of range", year)
	}
	return nil
}

func (s *Service) ensureEmployee(ctx context.Context, orgID, employeeID string) error {
	if s.Directory == nil {
		return nil
	}
	ok, err := s.Directory.EmployeeInOrg(ctx, orgID, employeeID)
	if err != nil {
		return fmt.Errorf("lookup employee: %w", err)
	}
	if !ok {
		return notFoundError("employee %s not found", employeeID)
	}
	return nil
}

func (s *Service) ListPolicies(ctx context.Context, orgID string) ([]LeavePolicy, error) {
	return cache.Fetch(ctx, s.Cache, policyCacheKey(orgID), func(ctx context.Context) ([]LeavePolicy, error) {
		return s.Repo.ListPolicies(ctx, orgID)
	})
}

func (s *Service) GetPolicy(ctx context.Context, orgID, policyID string) (LeavePolicy, error) {
	p, err := s.Repo.GetPolicy(ctx, orgID, policyID)
	if errors.Is(err, ErrNotFound) {
		return LeavePolicy{}, notFoundError("leave policy %s not found", policyID)
	}
	return p, err
}

func (s *Service) CreatePolicy(ctx context.Context, orgID string, in PolicyInput) (LeavePolicy, error) {
	now := s.now()
	p := LeavePolicy{
		ID:                uuid.NewString(),
		OrganizationID:    orgID,
		Code:              in.Code,
		DisplayName:       in.DisplayName,
		AnnualQuota:       in.AnnualQuota,
		AccrualMethod:     in.AccrualMethod,
		CarryForwardType:  in.CarryForwardType,
		CarryForwardLimit: in.CarryForwardLimit,
		IsActive:          in.IsActive == nil || *in.IsActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	normalizePolicy(&p)
	if err := validatePolicy(p); err != nil {
		return LeavePolicy{}, err
	}

	err := s.Repo.WithTx(ctx, func(repo Repository) error {
		if p.IsActive {
			if err := ensureUniqueCode(ctx, repo, p); err != nil {
				return err
			}
		}
		return repo.CreatePolicy(ctx, p)
	})
	if err != nil {
		return LeavePolicy{}, err
	}
	s.Cache.Invalidate(ctx, policyCacheKey(orgID))
	return p, nil
}

func (s *Service) UpdatePolicy(ctx context.Context, orgID, policyID string, patch PolicyPatch) (LeavePolicy, error) {
	var updated LeavePolicy
	err := s.Repo.WithTx(ctx, func(repo Repository) error {
		p, err := repo.GetPolicy(ctx, orgID, policyID)
		if errors.Is(err, ErrNotFound) {
			return notFoundError("leave policy %s not found", policyID)
		}
		if err != nil {
			return err
		}
		if patch.Code != nil {
			p.Code = *patch.Code
		}
		if patch.DisplayName != nil {
			p.DisplayName = *patch.DisplayName
		}
		if patch.AnnualQuota != nil {
			p.AnnualQuota = *patch.AnnualQuota
		}
		if patch.AccrualMethod != nil {
			p.AccrualMethod = *patch.AccrualMethod
		}
		if patch.CarryForwardType != nil {
			p.CarryForwardType = *patch.CarryForwardType
		}
		if patch.CarryForwardLimit != nil {
			p.CarryForwardLimit = *patch.CarryForwardLimit
		}
		if patch.IsActive != nil {
			p.IsActive = *patch.IsActive
		}
		normalizePolicy(&p)
		if err := validatePolicy(p); err != nil {
			return err
		}
		if p.IsActive {
			if err := ensureUniqueCode(ctx, repo, p); err != nil {
				return err
			}
		}
		p.UpdatedAt = s.now()
		if err := repo.UpdatePolicy(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return LeavePolicy{}, err
	}
	s.Cache.Invalidate(ctx, policyCacheKey(orgID))
	return updated, nil
}

func ensureUniqueCode(ctx context.Context, repo Repository, p LeavePolicy) error {
	count, err := repo.CountActivePolicies(ctx, p.OrganizationID, p.Code, p.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		return conflictError("an active %s policy already exists", p.Code)
	}
	return nil
}

func (s *Service) DeletePolicy(ctx context.Context, orgID, policyID string) error {
	err := s.Repo.WithTx(ctx, func(repo Repository) error {
		inUse, err := repo.PolicyInUse(ctx, orgID, policyID)
		if err != nil {
			return err
		}
		if inUse {
			return conflictError("leave policy %s is referenced by balances; deactivate it instead", policyID)
		}
		if err := repo.DeletePolicy(ctx, orgID, policyID); errors.Is(err, ErrNotFound) {
			return notFoundError("leave policy %s not found", policyID)
		} else if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.Cache.Invalidate(ctx, policyCacheKey(orgID))
	return nil
}

// InitializeBalances creates the year's balance for every active policy the
// employee lacks one for. Existing balances are reported as skipped.
func (s *Service) InitializeBalances(ctx context.Context, orgID, employeeID string, year int, actor string) (InitializeResult, error) {
	if err := validYear(year); err != nil {
		return InitializeResult{}, err
	}
	if err := s.ensureEmployee(ctx, orgID, employeeID); err != nil {
		return InitializeResult{}, err
	}

	result := InitializeResult{Created: []Balance{}, Skipped: []Balance{}}
	now := s.now()
	err := s.Repo.WithTx(ctx, func(repo Repository) error {
		policies, err := repo.ListPolicies(ctx, orgID)
		if err != nil {
			return err
		}
		for _, p := range policies {
			if !p.IsActive {
				continue
			}
			b, created, err := getOrCreateBalance(ctx, repo, p, employeeID, year, true, actor, now)
			if err != nil {
				return err
			}
			if created {
				result.Created = append(result.Created, b)
			} else {
				result.Skipped = append(result.Skipped, b)
			}
		}
		return nil
	})
	if err != nil {
		return InitializeResult{}, err
	}
	for _, b := range result.Created {
		s.publish(ctx, events.TypeBalanceChanged, orgID, b.ID, b)
	}
	return result, nil
}

// AdjustBalance applies a manual signed correction to an existing balance.
func (s *Service) AdjustBalance(ctx context.Context, orgID string, in AdjustInput, actor string) (Balance, Transaction, error) {
	if in.Amount.IsZero() {
		return Balance{}, Transaction{}, validationError("amount must not be zero")
	}
	if err := validYear(in.Year); err != nil {
		return Balance{}, Transaction{}, err
	}
	if err := s.ensureEmployee(ctx, orgID, in.EmployeeID); err != nil {
		return Balance{}, Transaction{}, err
	}

	var (
		balance Balance
		entry   Transaction
	)
	err := s.Repo.WithTx(ctx, func(repo Repository) error {
		b, err := repo.GetBalanceForUpdate(ctx, in.EmployeeID, in.PolicyID, in.Year)
		if errors.Is(err, ErrNotFound) || (err == nil && b.OrganizationID != orgID) {
			return notFoundError("no leave balance record found for year %d", in.Year)
		}
		if err != nil {
			return err
		}
		balance, entry, err = post(ctx, repo, b, posting{
			Type:   TxAdjustment,
			Amount: in.Amount,
			Notes:  in.Notes,
			Actor:  actor,
		}, s.now())
		return err
	})
	if err != nil {
		return Balance{}, Transaction{}, err
	}
	s.publish(ctx, events.TypeBalanceChanged, orgID, balance.ID, balance)
	return balance, entry, nil
}

// ListBalances returns the employee's balances; year 0 lists every year.
func (s *Service) ListBalances(ctx context.Context, orgID, employeeID string, year int) ([]Balance, error) {
	if err := s.ensureEmployee(ctx, orgID, employeeID); err != nil {
		return nil, err
	}
	return s.Repo.ListBalances(ctx, orgID, employeeID, year)
}

func (s *Service) Statement(ctx context.Context, orgID, employeeID, policyID string, year int) (Statement, error) {
	policy, err := s.GetPolicy(ctx, orgID, policyID)
	if err != nil {
		return Statement{}, err
	}
	b, err := s.Repo.GetBalance(ctx, employeeID, policyID, year)
	if errors.Is(err, ErrNotFound) || (err == nil && b.OrganizationID != orgID) {
		return Statement{}, notFoundError("no leave balance record found for year %d", year)
	}
	if err != nil {
		return Statement{}, err
	}
	txs, err := s.Repo.ListTransactions(ctx, orgID, b.ID)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Policy: policy, Balance: b, Transactions: txs}, nil
}

func (s *Service) ListAttendance(ctx context.Context, orgID, employeeID string, from, to time.Time) ([]AttendanceRecord, error) {
	from, to = DateOnly(from), DateOnly(to)
	if to.Before(from) {
		return nil, validationError("to must not be before from")
	}
	if err := s.ensureEmployee(ctx, orgID, employeeID); err != nil {
		return nil, err
	}
	return s.Repo.ListAttendance(ctx, orgID, employeeID, from, to)
}

func (s *Service) publish(ctx context.Context, eventType, orgID, aggregateID string, data any) {
	err := s.Events.Publish(ctx, events.Event{
		Type:           eventType,
		OrganizationID: orgID,
		AggregateID:    aggregateID,
		OccurredAt:     s.now(),
		Data:           data,
	})
	if err != nil {
		requestctx.Logger(ctx).Warn().Err(err).Str("event", eventType).Msg("event publish failed")
	}
}

func (s *Service) notify(ctx context.Context, orgID, userID, ntype, title, body string) {
	if s.Notify == nil || userID == "" {
		return
	}
	if err := s.Notify.Create(ctx, orgID, userID, ntype, title, body); err != nil {
		requestctx.Logger(ctx).Warn().Err(err).Str("type", ntype).Msg("notification failed")
	}
}

func (s *Service) notifyEmployee(ctx context.Context, orgID, employeeID, ntype, title, body string) {
	if s.Directory == nil {
		return
	}
	userID, err := s.Directory.UserIDForEmployee(ctx, orgID, employeeID)
	if err != nil {
		requestctx.Logger(ctx).Warn().Err(err).Str("employeeId", employeeID).Msg("resolve employee user failed")
		return
	}
	s.notify(ctx, orgID, userID, ntype, title, body)
}
