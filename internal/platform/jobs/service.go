package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hrportal/internal/domain/leave"
	"hrportal/internal/platform/metrics"
)

const (
	JobLeaveAccrual = "leave_accrual"
	JobCarryForward = "leave_carry_forward"

	// SystemActor is recorded as createdBy on ledger entries written by jobs.
	SystemActor = "system"
)

type RunStore interface {
	StartJobRun(ctx context.Context, id, orgID, jobType string, startedAt time.Time) error
	FinishJobRun(ctx context.Context, id, status string, details []byte, completedAt time.Time) error
}

type OrgLister interface {
	OrganizationIDs(ctx context.Context) ([]string, error)
}

type LeaveRunner interface {
	RunMonthlyAccrual(ctx context.Context, orgID string, year, month int, actor string) (leave.AccrualSummary, error)
	CarryForwardOrg(ctx context.Context, orgID string, fromYear int, actor string) (leave.CarryForwardSummary, error)
}

type Service struct {
	Runs     RunStore
	Orgs     OrgLister
	Leave    LeaveRunner
	Metrics  *metrics.Collector
	Interval time.Duration
	Now      func() time.Time

	queue chan job
	wg    sync.WaitGroup
}

type job struct {
	Type  string
	OrgID string
	Run   func(context.Context) (any, error)
}

func New(runs RunStore, orgs OrgLister, leaveRunner LeaveRunner, collector *metrics.Collector, interval time.Duration) *Service {
	return &Service{
		Runs:     runs,
		Orgs:     orgs,
		Leave:    leaveRunner,
		Metrics:  collector,
		Interval: interval,
		Now:      func() time.Time { return time.Now().UTC() },
		queue:    make(chan job, 128),
	}
}

// Start launches the worker and, with a positive interval, the scheduler.
// Both stop when ctx is cancelled; Wait blocks until they have.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker(ctx)
	}()
	if s.Interval > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.schedule(ctx, s.Interval)
		}()
	}
}

func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) Enqueue(jobType, orgID string, run func(context.Context) (any, error)) bool {
	select {
	case s.queue <- job{Type: jobType, OrgID: orgID, Run: run}:
		return true
	default:
		log.Warn().Str("jobType", jobType).Str("organizationId", orgID).Msg("job queue full")
		return false
	}
}

// RunNow executes a job on the caller's goroutine and records it like a queued one.
func (s *Service) RunNow(ctx context.Context, jobType, orgID string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, OrgID: orgID, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				log.Warn().Err(err).Str("jobType", j.Type).Str("organizationId", j.OrgID).Msg("job run failed")
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := uuid.NewString()
	if s.Runs != nil {
		if err := s.Runs.StartJobRun(ctx, runID, j.OrgID, j.Type, s.Now()); err != nil {
			log.Warn().Err(err).Str("jobType", j.Type).Msg("job run insert failed")
			runID = ""
		}
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
		details = map[string]any{"error": err.Error()}
	}
	if s.Metrics != nil {
		s.Metrics.RecordJob(err != nil)
	}

	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		log.Warn().Err(marshalErr).Msg("job details marshal failed")
		detailsJSON = []byte("{}")
	}
	if s.Runs != nil && runID != "" {
		if updErr := s.Runs.FinishJobRun(ctx, runID, status, detailsJSON, s.Now()); updErr != nil {
			log.Warn().Err(updErr).Str("jobType", j.Type).Msg("job run update failed")
		}
	}
	return details, err
}

func (s *Service) schedule(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				log.Warn().Err(err).Msg("leave scheduler organization lookup failed")
			}
		}
	}
}

// Sweep queues this month's accrual for every organization and, in January,
// the carry forward out of the previous year. Both jobs are safe to repeat.
// It returns the number of jobs queued.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	orgs, err := s.Orgs.OrganizationIDs(ctx)
	if err != nil {
		return 0, err
	}
	now := s.Now()
	queued := 0
	for _, orgID := range orgs {
		org := orgID
		if now.Month() == time.January {
			if s.Enqueue(JobCarryForward, org, func(ctx context.Context) (any, error) {
				return s.Leave.CarryForwardOrg(ctx, org, now.Year()-1, SystemActor)
			}) {
				queued++
			}
		}
		if s.Enqueue(JobLeaveAccrual, org, func(ctx context.Context) (any, error) {
			return s.Leave.RunMonthlyAccrual(ctx, org, now.Year(), int(now.Month()), SystemActor)
		}) {
			queued++
		}
	}
	return queued, nil
}
