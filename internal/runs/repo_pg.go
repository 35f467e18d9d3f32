package runs

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
)

// PGRepo stores runs in Postgres.
type PGRepo struct {
	DB *sql.DB
}

// NewPGRepo constructs a Postgres-backed run repository.
func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{DB: db}
}

const insertRunSQL = `
INSERT INTO pipeline_runs (
	id, trigger, mode, started_at, finished_at,
	opportunity_fetched, job_search_fetched, total_count, matched_count,
	applied_count, skipped_count, already_applied_count, failed_count,
	cancelled, reason
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

const selectRunsSQL = `
SELECT id, trigger, mode, started_at, finished_at,
	opportunity_fetched, job_search_fetched, total_count, matched_count,
	applied_count, skipped_count, already_applied_count, failed_count,
	cancelled, reason
FROM pipeline_runs
ORDER BY started_at DESC
LIMIT $1`

func (r *PGRepo) Create(ctx context.Context, run Run) error {
	_, err := r.DB.ExecContext(ctx, insertRunSQL,
		run.ID,
		run.Trigger,
		run.Mode,
		run.StartedAt,
		run.FinishedAt,
		run.OpportunityFetched,
		run.JobSearchFetched,
		run.TotalCount,
		run.MatchedCount,
		run.AppliedCount,
		run.SkippedCount,
		run.AlreadyApplied,
		run.FailedCount,
		run.Cancelled,
		run.Reason,
	)
	if err != nil {
		return errors.Wrapf(err, "insert run %s", run.ID)
	}
	return nil
}

func (r *PGRepo) ListRecent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.DB.QueryContext(ctx, selectRunsSQL, ClampLimit(limit))
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(
			&run.ID,
			&run.Trigger,
			&run.Mode,
			&run.StartedAt,
			&run.FinishedAt,
			&run.OpportunityFetched,
			&run.JobSearchFetched,
			&run.TotalCount,
			&run.MatchedCount,
			&run.AppliedCount,
			&run.SkippedCount,
			&run.AlreadyApplied,
			&run.FailedCount,
			&run.Cancelled,
			&run.Reason,
		); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate runs")
	}
	return out, nil
}

func (r *PGRepo) Latest(ctx context.Context) (Run, bool, error) {
	list, err := r.ListRecent(ctx, 1)
	if err != nil {
		return Run{}, false, err
	}
	if len(list) == 0 {
		return Run{}, false, nil
	}
	return list[0], true, nil
}
