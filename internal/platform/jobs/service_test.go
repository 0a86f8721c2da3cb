package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrportal/internal/domain/leave"
	"hrportal/internal/platform/metrics"
)

type runRecord struct {
	orgID   string
	jobType string
	status  string
	details string
}

type fakeRuns struct {
	mu   sync.Mutex
	runs map[string]*runRecord
}

func newFakeRuns() *fakeRuns {
	return &fakeRuns{runs: map[string]*runRecord{}}
}

func (f *fakeRuns) StartJobRun(_ context.Context, id, orgID, jobType string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[id] = &runRecord{orgID: orgID, jobType: jobType, status: "running"}
	return nil
}

func (f *fakeRuns) FinishJobRun(_ context.Context, id, status string, details []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.runs[id]
	if !ok {
		return errors.New("missing run")
	}
	rec.status = status
	rec.details = string(details)
	return nil
}

func (f *fakeRuns) all() []runRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]runRecord, 0, len(f.runs))
	for _, r := range f.runs {
		out = append(out, *r)
	}
	return out
}

type fakeOrgs []string

func (f fakeOrgs) OrganizationIDs(context.Context) ([]string, error) {
	return f, nil
}

type fakeLeave struct {
	mu        sync.Mutex
	accruals  []string
	carries   []string
	carryYear int
}

func (f *fakeLeave) RunMonthlyAccrual(_ context.Context, orgID string, year, month int, _ string) (leave.AccrualSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accruals = append(f.accruals, orgID)
	return leave.AccrualSummary{Year: year, Month: month}, nil
}

func (f *fakeLeave) CarryForwardOrg(_ context.Context, orgID string, fromYear int, _ string) (leave.CarryForwardSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.carries = append(f.carries, orgID)
	f.carryYear = fromYear
	return leave.CarryForwardSummary{FromYear: fromYear}, nil
}

func TestRunNowRecordsCompletedRun(t *testing.T) {
	runs := newFakeRuns()
	collector := metrics.New()
	svc := New(runs, fakeOrgs{}, &fakeLeave{}, collector, 0)

	out, err := svc.RunNow(context.Background(), JobLeaveAccrual, "org-1", func(context.Context) (any, error) {
		return map[string]int{"employees": 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"employees": 3}, out)

	recorded := runs.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, "completed", recorded[0].status)
	assert.Equal(t, JobLeaveAccrual, recorded[0].jobType)
	assert.JSONEq(t, `{"employees":3}`, recorded[0].details)
	assert.EqualValues(t, 1, collector.Snapshot().JobsCompletedTotal)
}

func TestRunNowRecordsFailure(t *testing.T) {
	runs := newFakeRuns()
	collector := metrics.New()
	svc := New(runs, fakeOrgs{}, &fakeLeave{}, collector, 0)

	_, err := svc.RunNow(context.Background(), JobCarryForward, "org-1", func(context.Context) (any, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)

	recorded := runs.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, "failed", recorded[0].status)
	assert.JSONEq(t, `{"error":"boom"}`, recorded[0].details)
	assert.EqualValues(t, 1, collector.Snapshot().JobsFailedTotal)
}

func TestSweepQueuesAccrualPerOrganization(t *testing.T) {
	runner := &fakeLeave{}
	svc := New(newFakeRuns(), fakeOrgs{"org-1", "org-2"}, runner, nil, 0)
	svc.Now = func() time.Time { return time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC) }

	queued, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, queued)
	assert.Len(t, svc.queue, 2)
}

func TestSweepInJanuaryCarriesForwardPreviousYear(t *testing.T) {
	runner := &fakeLeave{}
	runs := newFakeRuns()
	svc := New(runs, fakeOrgs{"org-1"}, runner, nil, 0)
	svc.Now = func() time.Time { return time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC) }

	queued, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, queued)

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	require.Eventually(t, func() bool {
		recorded := runs.all()
		if len(recorded) != 2 {
			return false
		}
		for _, r := range recorded {
			if r.status != "completed" {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond)
	cancel()
	svc.Wait()

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.Equal(t, []string{"org-1"}, runner.carries)
	assert.Equal(t, []string{"org-1"}, runner.accruals)
	assert.Equal(t, 2026, runner.carryYear)
}
