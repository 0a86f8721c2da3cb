package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector keeps in-process counters for the /metrics probe. All methods
// are safe for concurrent use.
type Collector struct {
	requests      atomic.Uint64
	serverErrors  atomic.Uint64
	rateLimited   atomic.Uint64
	durationMs    atomic.Uint64
	jobsCompleted atomic.Uint64
	jobsFailed    atomic.Uint64

	mu        sync.Mutex
	approvals map[string]uint64
}

type Snapshot struct {
	RequestsTotal      uint64            `json:"requestsTotal"`
	ErrorsTotal        uint64            `json:"errorsTotal"`
	RateLimitedTotal   uint64            `json:"rateLimitedTotal"`
	TotalDurationMs    uint64            `json:"totalDurationMs"`
	AvgDurationMs      float64           `json:"avgDurationMs"`
	JobsCompletedTotal uint64            `json:"jobsCompletedTotal"`
	JobsFailedTotal    uint64            `json:"jobsFailedTotal"`
	LeaveApprovals     map[string]uint64 `json:"leaveApprovals"`
}

func New() *Collector {
	return &Collector{approvals: map[string]uint64{}}
}

func (c *Collector) Record(status int, duration time.Duration) {
	c.requests.Add(1)
	switch {
	case status >= 500:
		c.serverErrors.Add(1)
	case status == 429:
		c.rateLimited.Add(1)
	}
	c.durationMs.Add(uint64(duration.Milliseconds()))
}

// RecordApproval counts approval attempts by outcome.
func (c *Collector) RecordApproval(outcome string) {
	c.mu.Lock()
	c.approvals[outcome]++
	c.mu.Unlock()
}

func (c *Collector) RecordJob(failed bool) {
	if failed {
		c.jobsFailed.Add(1)
		return
	}
	c.jobsCompleted.Add(1)
}

func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		RequestsTotal:      c.requests.Load(),
		ErrorsTotal:        c.serverErrors.Load(),
		RateLimitedTotal:   c.rateLimited.Load(),
		TotalDurationMs:    c.durationMs.Load(),
		JobsCompletedTotal: c.jobsCompleted.Load(),
		JobsFailedTotal:    c.jobsFailed.Load(),
	}
	if s.RequestsTotal > 0 {
		s.AvgDurationMs = float64(s.TotalDurationMs) / float64(s.RequestsTotal)
	}

	c.mu.Lock()
	s.LeaveApprovals = make(map[string]uint64, len(c.approvals))
	for k, v := range c.approvals {
		s.LeaveApprovals[k] = v
	}
	c.mu.Unlock()
	return s
}
