package reports

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("job run not found")

// PolicyUsage aggregates one policy's balances for a leave year.
type PolicyUsage struct {
	PolicyID       string          `json:"policyId"`
	Code           string          `json:"code"`
	DisplayName    string          `json:"displayName"`
	Employees      int             `json:"employees"`
	Opening        decimal.Decimal `json:"opening"`
	Accrued        decimal.Decimal `json:"accrued"`
	Used           decimal.Decimal `json:"used"`
	Adjustment     decimal.Decimal `json:"adjustment"`
	Current        decimal.Decimal `json:"current"`
	UtilizationPct decimal.Decimal `json:"utilizationPct"`
}

// Entitled is everything credited to the policy's balances in the year.
func (p PolicyUsage) Entitled() decimal.Decimal {
	return p.Opening.Add(p.Accrued).Add(p.Adjustment)
}

type RequestSummary struct {
	Status string          `json:"status"`
	Count  int             `json:"count"`
	Days   decimal.Decimal `json:"days"`
}

type Utilization struct {
	Year     int              `json:"year"`
	Policies []PolicyUsage    `json:"policies"`
	Requests []RequestSummary `json:"requests"`
}

type JobRun struct {
	ID          string          `json:"id"`
	JobType     string          `json:"jobType"`
	Status      string          `json:"status"`
	Details     json.RawMessage `json:"details"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

type JobRunFilter struct {
	JobType     string
	Status      string
	StartedFrom *time.Time
	StartedTo   *time.Time
}

type JobRunListResult struct {
	Items []JobRun `json:"items"`
	Total int      `json:"total"`
}
