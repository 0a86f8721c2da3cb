package jobs

import (
	"context"
	"fmt"
	"time"

	"hrportal/internal/platform/querier"
)

// PgRunStore records job runs in the job_runs table.
type PgRunStore struct {
	DB querier.Querier
}

func (s PgRunStore) StartJobRun(ctx context.Context, id, orgID, jobType string, startedAt time.Time) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO job_runs (id, organization_id, job_type, status, started_at)
    VALUES ($1,$2,$3,$4,$5)
  `, id, orgID, jobType, "running", startedAt)
	return err
}

func (s PgRunStore) FinishJobRun(ctx context.Context, id, status string, details []byte, completedAt time.Time) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = $3
    WHERE id = $4
  `, status, details, completedAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job run %s not found", id)
	}
	return nil
}
