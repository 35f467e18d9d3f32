// Package autoapply runs the discover, filter and apply pipeline.
package autoapply

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"autoapply-backend/internal/applies"
	"autoapply-backend/internal/jobs"
	"autoapply-backend/internal/listings"
	"autoapply-backend/internal/pacing"
	"autoapply-backend/internal/runs"
	"autoapply-backend/internal/session"
	"autoapply-backend/internal/shared/metrics"
	"autoapply-backend/internal/shared/telemetry"
)

// Authenticator verifies credentials and returns a session handle.
type Authenticator interface {
	Authenticate(ctx context.Context, creds session.Credentials) (*session.Handle, error)
}

// Sources selects the two listing endpoints.
type Sources struct {
	Opportunity        listings.SourceSpec
	JobSearch          listings.SourceSpec
	OpportunityEnabled bool
	JobSearchEnabled   bool
}

// Service wires the pipeline stages together. The ledger is the only state
// shared between runs.
type Service struct {
	Auth        Authenticator
	Credentials session.Credentials
	Fetcher     *listings.Fetcher
	Sources     Sources
	Keywords    []string

	Poster      applies.Poster
	ApplyPath   string
	ApplyPacing pacing.Policy
	// SubmitTimeout bounds each application POST.
	SubmitTimeout time.Duration

	Ledger applies.Ledger
	Runs   runs.Repo

	Now   func() time.Time
	NewID func() string

	manualRunning atomic.Bool
}

// Run executes one pipeline pass as a manual trigger.
func (s *Service) Run(ctx context.Context, filtered bool) (Result, error) {
	return s.RunAs(ctx, runs.TriggerManual, filtered)
}

// TryRun is Run with a guard against overlapping manual triggers. Scheduled
// runs do not take the guard.
func (s *Service) TryRun(ctx context.Context, trigger string, filtered bool) (Result, error) {
	if !s.manualRunning.CompareAndSwap(false, true) {
		return Result{}, ErrRunInProgress
	}
	defer s.manualRunning.Store(false)
	return s.RunAs(ctx, trigger, filtered)
}

// RunAs executes one pipeline pass. Authentication failures end the run with
// zero applications, a Reason and the classified error. Fetch and apply
// failures are contained and only show up in the counts.
func (s *Service) RunAs(ctx context.Context, trigger string, filtered bool) (Result, error) {
	res := Result{
		RunID:       s.newID(),
		Trigger:     trigger,
		Mode:        modeName(filtered),
		AppliedJobs: []jobs.Job{},
		StartedAt:   s.now(),
	}
	metrics.IncRunStarted()
	telemetry.Info("pipeline.run.start", map[string]any{
		"run_id": res.RunID, "trigger": trigger, "mode": res.Mode,
	})

	handle, err := s.authenticate(ctx)
	if err != nil {
		res.Reason = reasonFor(err)
		s.finish(ctx, &res)
		metrics.IncRunAborted()
		telemetry.Error("pipeline.run.aborted", map[string]any{
			"run_id": res.RunID, "reason": res.Reason, "error": err,
		})
		return res, err
	}

	all, opp, search := s.collect(ctx, handle)
	res.OpportunityFetched = opp
	res.JobSearchFetched = search
	res.TotalCount = len(all)

	candidates := all
	if filtered {
		candidates = jobs.Filter(all, s.Keywords)
	}
	res.MatchedCount = len(candidates)

	exec := &applies.Executor{
		Client:        s.Poster,
		Handle:        handle,
		Path:          s.ApplyPath,
		Pacing:        s.ApplyPacing,
		SubmitTimeout: s.SubmitTimeout,
	}
	rep := exec.ApplyAll(ctx, candidates, s.Ledger)

	res.AppliedJobs = rep.Applied
	res.AppliedCount = len(rep.Applied)
	res.SkippedCount = rep.Skipped
	res.AlreadyAppliedCount = rep.AlreadyApplied
	res.FailedCount = rep.Failed
	res.Cancelled = rep.Cancelled || ctx.Err() != nil
	if res.Cancelled {
		res.Reason = "cancelled"
	}

	s.finish(ctx, &res)
	metrics.IncRunCompleted()
	telemetry.Info("pipeline.run.complete", map[string]any{
		"run_id":              res.RunID,
		"trigger":             trigger,
		"mode":                res.Mode,
		"opportunity_fetched": res.OpportunityFetched,
		"job_search_fetched":  res.JobSearchFetched,
		"unique":              res.TotalCount,
		"matched":             res.MatchedCount,
		"applied":             res.AppliedCount,
		"skipped":             res.SkippedCount,
		"already_applied":     res.AlreadyAppliedCount,
		"failed":              res.FailedCount,
		"cancelled":           res.Cancelled,
		"duration_ms":         res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
	})
	return res, nil
}

// ListJobs authenticates and returns the merged listings without applying.
// Jobs already in the ledger are flagged as applied.
func (s *Service) ListJobs(ctx context.Context) ([]jobs.Job, error) {
	handle, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	all, _, _ := s.collect(ctx, handle)
	for i := range all {
		all[i].Applied = s.Ledger.Contains(all[i].Key())
	}
	return all, nil
}

// Verify checks the configured credentials only.
func (s *Service) Verify(ctx context.Context) error {
	_, err := s.authenticate(ctx)
	return err
}

// AppliedCount returns the ledger size.
func (s *Service) AppliedCount() int {
	return s.Ledger.Size()
}

// ResetLedger forgets every applied job.
func (s *Service) ResetLedger() {
	before := s.Ledger.Size()
	s.Ledger.Clear()
	telemetry.Info("pipeline.ledger.reset", map[string]any{"cleared": before})
}

// Status reports the ledger size and the most recent recorded run.
func (s *Service) Status(ctx context.Context) (Status, error) {
	keys := s.Ledger.Keys()
	st := Status{AppliedJobsCount: len(keys), AppliedJobKeys: keys}
	if s.Runs == nil {
		return st, nil
	}
	last, ok, err := s.Runs.Latest(ctx)
	if err != nil {
		return st, errors.Wrap(err, "latest run")
	}
	if ok {
		st.LastRun = &last
	}
	return st, nil
}

// RecentRuns lists recorded runs, newest first.
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]runs.Run, error) {
	if s.Runs == nil {
		return []runs.Run{}, nil
	}
	return s.Runs.ListRecent(ctx, limit)
}

func (s *Service) authenticate(ctx context.Context) (*session.Handle, error) {
	return s.Auth.Authenticate(ctx, s.Credentials)
}

// collect fetches both sources and merges them. A failing source contributes
// whatever it fetched before the failure.
func (s *Service) collect(ctx context.Context, h *session.Handle) (merged []jobs.Job, oppCount, searchCount int) {
	var opp []jobs.Job
	if s.Sources.OpportunityEnabled {
		opp = s.fetchSource(ctx, s.Sources.Opportunity, h)
	} else {
		telemetry.Debug("pipeline.source.disabled", map[string]any{"source": jobs.SourceOpportunity.String()})
	}

	var search []jobs.Job
	if s.Sources.JobSearchEnabled && ctx.Err() == nil {
		if s.Sources.OpportunityEnabled && s.Fetcher.Pacing != nil {
			if err := s.Fetcher.Pacing.Wait(ctx); err != nil && ctx.Err() != nil {
				return jobs.Merge(opp, nil), len(opp), 0
			}
		}
		search = s.fetchSource(ctx, s.Sources.JobSearch, h)
	} else if !s.Sources.JobSearchEnabled {
		telemetry.Debug("pipeline.source.disabled", map[string]any{"source": jobs.SourceJobSearch.String()})
	}

	return jobs.Merge(opp, search), len(opp), len(search)
}

func (s *Service) fetchSource(ctx context.Context, spec listings.SourceSpec, h *session.Handle) []jobs.Job {
	records, err := s.Fetcher.Fetch(ctx, spec, h)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		telemetry.Warn("pipeline.source.failed", map[string]any{
			"source": spec.Source.String(), "kept_records": len(records), "error": err,
		})
	}
	out := listings.NormalizeAll(records, spec.Source)
	if dropped := len(records) - len(out); dropped > 0 {
		telemetry.Debug("pipeline.source.dropped", map[string]any{"source": spec.Source.String(), "dropped": dropped})
	}
	metrics.AddJobsFetched(spec.Source.String(), len(out))
	return out
}

func (s *Service) finish(ctx context.Context, res *Result) {
	res.FinishedAt = s.now()
	metrics.ObserveRunDurationMs(float64(res.FinishedAt.Sub(res.StartedAt).Milliseconds()))
	if s.Runs == nil {
		return
	}
	// Record even when the run itself was cancelled.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.Runs.Create(recordCtx, res.run()); err != nil {
		telemetry.Warn("pipeline.run.record_failed", map[string]any{"run_id": res.RunID, "error": err})
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func modeName(filtered bool) string {
	if filtered {
		return runs.ModeFiltered
	}
	return runs.ModeAll
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, session.ErrMissingCredential):
		return "session credentials are not configured"
	case errors.Is(err, session.ErrSessionExpired):
		return "session expired; refresh the sessionid and csrftoken cookies"
	case errors.Is(err, session.ErrAuthFailed):
		return "could not verify session: " + err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return err.Error()
	}
}
