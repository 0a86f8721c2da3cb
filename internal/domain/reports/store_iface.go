package reports

import "context"

type StoreAPI interface {
	PolicyUsage(ctx context.Context, orgID string, year int) ([]PolicyUsage, error)
	RequestSummary(ctx context.Context, orgID string, year int) ([]RequestSummary, error)
	ListJobRuns(ctx context.Context, orgID string, filter JobRunFilter, limit, offset int) ([]JobRun, error)
	CountJobRuns(ctx context.Context, orgID string, filter JobRunFilter) (int, error)
	JobRunByID(ctx context.Context, orgID, runID string) (JobRun, error)
}
