package jobs

import "encoding/json"

// Source identifies which listing endpoint produced a job.
type Source int

const (
	SourceOpportunity Source = iota + 1
	SourceJobSearch
)

func (s Source) String() string {
	switch s {
	case SourceOpportunity:
		return "opportunity"
	case SourceJobSearch:
		return "job_search"
	default:
		return "unknown"
	}
}

func (s Source) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

const (
	opportunityKeyPrefix = "opp_"
	jobSearchKeyPrefix   = "job_"
)

// Job is the canonical listing produced by normalization. Exactly one of
// PrimaryID and SecondaryID is set, chosen by Source.
type Job struct {
	PrimaryID   string   `json:"opportunityId,omitempty"`
	SecondaryID string   `json:"jobId,omitempty"`
	Title       string   `json:"title"`
	Company     string   `json:"company"`
	Skills      []string `json:"skills"`
	Source      Source   `json:"source"`
	Applied     bool     `json:"applied"`
}

// Key returns the composite identity used for dedup and the applied ledger.
// It is empty when the job lacks the identifier its source requires.
func (j Job) Key() string {
	switch j.Source {
	case SourceOpportunity:
		if j.PrimaryID == "" {
			return ""
		}
		return opportunityKeyPrefix + j.PrimaryID
	case SourceJobSearch:
		if j.SecondaryID == "" {
			return ""
		}
		return jobSearchKeyPrefix + j.SecondaryID
	default:
		return ""
	}
}

// ID returns whichever identifier the source populates.
func (j Job) ID() string {
	if j.Source == SourceJobSearch {
		return j.SecondaryID
	}
	return j.PrimaryID
}
