package autoapply

import (
	"time"

	"autoapply-backend/internal/jobs"
	"autoapply-backend/internal/runs"
)

// Result is what one pipeline run reports back to its caller.
type Result struct {
	RunID               string     `json:"runId"`
	Trigger             string     `json:"trigger"`
	Mode                string     `json:"mode"`
	AppliedCount        int        `json:"appliedCount"`
	AppliedJobs         []jobs.Job `json:"appliedJobs"`
	MatchedCount        int        `json:"matchedCount"`
	TotalCount          int        `json:"totalCount"`
	OpportunityFetched  int        `json:"opportunityFetched"`
	JobSearchFetched    int        `json:"jobSearchFetched"`
	SkippedCount        int        `json:"skippedCount"`
	AlreadyAppliedCount int        `json:"alreadyAppliedCount"`
	FailedCount         int        `json:"failedCount"`
	Cancelled           bool       `json:"cancelled"`
	Reason              string     `json:"reason,omitempty"`
	StartedAt           time.Time  `json:"startedAt"`
	FinishedAt          time.Time  `json:"finishedAt"`
}

func (r Result) run() runs.Run {
	return runs.Run{
		ID:                 r.RunID,
		Trigger:            r.Trigger,
		Mode:               r.Mode,
		StartedAt:          r.StartedAt,
		FinishedAt:         r.FinishedAt,
		OpportunityFetched: r.OpportunityFetched,
		JobSearchFetched:   r.JobSearchFetched,
		TotalCount:         r.TotalCount,
		MatchedCount:       r.MatchedCount,
		AppliedCount:       r.AppliedCount,
		SkippedCount:       r.SkippedCount,
		AlreadyApplied:     r.AlreadyAppliedCount,
		FailedCount:        r.FailedCount,
		Cancelled:          r.Cancelled,
		Reason:             r.Reason,
	}
}

// Status is the ledger size plus the last recorded run.
type Status struct {
	AppliedJobsCount int       `json:"appliedJobsCount"`
	AppliedJobKeys   []string  `json:"appliedJobKeys"`
	LastRun          *runs.Run `json:"lastRun,omitempty"`
}
