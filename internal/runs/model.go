// Package runs records a summary of every pipeline run. The history is an
// audit trail; nothing reads it back into pipeline state.
package runs

import "time"

const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerCLI       = "cli"

	ModeFiltered = "filtered"
	ModeAll      = "all"
)

// Run is the summary of one pipeline invocation.
type Run struct {
	ID                 string    `json:"id"`
	Trigger            string    `json:"trigger"`
	Mode               string    `json:"mode"`
	StartedAt          time.Time `json:"startedAt"`
	FinishedAt         time.Time `json:"finishedAt"`
	OpportunityFetched int       `json:"opportunityFetched"`
	JobSearchFetched   int       `json:"jobSearchFetched"`
	TotalCount         int       `json:"totalCount"`
	MatchedCount       int       `json:"matchedCount"`
	AppliedCount       int       `json:"appliedCount"`
	SkippedCount       int       `json:"skippedCount"`
	AlreadyApplied     int       `json:"alreadyAppliedCount"`
	FailedCount        int       `json:"failedCount"`
	Cancelled          bool      `json:"cancelled"`
	Reason             string    `json:"reason,omitempty"`
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
