package leave

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	half        = decimal.RequireFromString("0.5")
	twelve      = decimal.NewFromInt(12)
	errEndFirst = errors.New("end date before start date")
)

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CalculateDays returns inclusive day count between start and end.
func CalculateDays(start, end time.Time) (int, error) {
	start, end = DateOnly(start), DateOnly(end)
	if end.Before(start) {
		return 0, errEndFirst
	}
	return int(end.Sub(start).Hours()/24) + 1, nil
}

// CalculateRequestDays returns 0.5 for a single-day half-day request and the
// inclusive calendar day count otherwise.
func CalculateRequestDays(start, end time.Time, isHalfDay bool) (decimal.Decimal, error) {
	days, err := CalculateDays(start, end)
	if err != nil {
		return decimal.Zero, err
	}
	if isHalfDay {
		if days != 1 {
			return decimal.Zero, errors.New("half-day leave must start and end on the same date")
		}
		return half, nil
	}
	return decimal.NewFromInt(int64(days)), nil
}

func SpansYears(start, end time.Time) bool {
	return start.Year() != end.Year()
}

// DaysBetween lists every calendar date in [start, end].
func DaysBetween(start, end time.Time) []time.Time {
	start, end = DateOnly(start), DateOnly(end)
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// MonthlyCredit is the monthly share of an annual quota, rounded to two
// places. December absorbs the rounding remainder so a full year sums to the quota.
func MonthlyCredit(annualQuota int, month time.Month) decimal.Decimal {
	quota := decimal.NewFromInt(int64(annualQuota))
	monthly := quota.Div(twelve).Round(2)
	if month == time.December {
		return quota.Sub(monthly.Mul(decimal.NewFromInt(11)))
	}
	return monthly
}

// CarryAmount is what a closing balance carries into the next year under policy.
func CarryAmount(policy LeavePolicy, closing decimal.Decimal) decimal.Decimal {
	if closing.IsNegative() {
		return decimal.Zero
	}
	switch policy.CarryForwardType {
	case CarryForwardUnlimited:
		return closing
	case CarryForwardLimited:
		return decimal.Min(closing, decimal.NewFromInt(int64(policy.CarryForwardLimit)))
	default:
		return decimal.Zero
	}
}

// normalizePolicy forces the carry-forward limit to zero unless the type uses it.
func normalizePolicy(p *LeavePolicy) {
	if p.CarryForwardType != CarryForwardLimited {
		p.CarryForwardLimit = 0
	}
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
