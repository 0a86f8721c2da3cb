package reports

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Service struct {
	Store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{Store: store}
}

// LeaveUtilization summarises balances per policy and requests per status
// for one leave year.
func (s *Service) LeaveUtilization(ctx context.Context, orgID string, year int) (Utilization, error) {
	policies, err := s.Store.PolicyUsage(ctx, orgID, year)
	if err != nil {
		return Utilization{}, fmt.Errorf("policy usage: %w", err)
	}
	requests, err := s.Store.RequestSummary(ctx, orgID, year)
	if err != nil {
		return Utilization{}, fmt.Errorf("request summary: %w", err)
	}

	for i := range policies {
		entitled := policies[i].Entitled()
		if entitled.IsPositive() {
			policies[i].UtilizationPct = policies[i].Used.Div(entitled).Mul(hundred).Round(2)
		}
	}
	if policies == nil {
		policies = []PolicyUsage{}
	}
	if requests == nil {
		requests = []RequestSummary{}
	}
	return Utilization{Year: year, Policies: policies, Requests: requests}, nil
}

func (s *Service) ListJobRuns(ctx context.Context, orgID string, filter JobRunFilter, limit, offset int) (JobRunListResult, error) {
	total, err := s.Store.CountJobRuns(ctx, orgID, filter)
	if err != nil {
		return JobRunListResult{}, err
	}
	runs, err := s.Store.ListJobRuns(ctx, orgID, filter, limit, offset)
	if err != nil {
		return JobRunListResult{}, err
	}
	if runs == nil {
		runs = []JobRun{}
	}
	return JobRunListResult{Items: runs, Total: total}, nil
}

func (s *Service) JobRun(ctx context.Context, orgID, runID string) (JobRun, error) {
	return s.Store.JobRunByID(ctx, orgID, runID)
}
