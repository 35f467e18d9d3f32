package applies

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"autoapply-backend/internal/instahyre"
	"autoapply-backend/internal/jobs"
	"autoapply-backend/internal/pacing"
	"autoapply-backend/internal/session"
	"autoapply-backend/internal/shared/metrics"
	"autoapply-backend/internal/shared/telemetry"
)

var (
	ErrAlreadyApplied = errors.New("already applied")
	ErrApplyFailed    = errors.New("apply failed")
)

const defaultSubmitTimeout = 15 * time.Second

// Poster is the slice of the transport the executor needs.
type Poster interface {
	PostJSON(ctx context.Context, path string, payload any, headers http.Header) (instahyre.Response, error)
}

// Executor submits applications one at a time.
type Executor struct {
	Client Poster
	Handle *session.Handle
	// Path defaults to instahyre.ApplyPath.
	Path string
	// Pacing is waited on after every submitted job.
	Pacing pacing.Policy
	// SubmitTimeout bounds a single POST, which is never cut short by
	// cancellation of the run.
	SubmitTimeout time.Duration
}

// Report summarizes one ApplyAll call.
type Report struct {
	Applied        []jobs.Job
	Skipped        int
	AlreadyApplied int
	Failed         int
	Submitted      int
	Cancelled      bool
}

// ApplyAll walks jobs in order. Jobs whose key is in the ledger, or claimed by
// a concurrent run, are skipped without a request; confirmed successes are
// inserted into the ledger. Only cancellation of ctx stops the walk early.
func (e *Executor) ApplyAll(ctx context.Context, list []jobs.Job, ledger Ledger) Report {
	rep := Report{Applied: []jobs.Job{}}

	for _, job := range list {
		if ctx.Err() != nil {
			rep.Cancelled = true
			break
		}

		key := job.Key()
		if key == "" {
			rep.Failed++
			telemetry.Warn("applies.submit.skipped_invalid", map[string]any{"title": job.Title})
			continue
		}
		if !ledger.Reserve(key) {
			rep.Skipped++
			telemetry.Debug("applies.submit.skipped", map[string]any{"key": key})
			continue
		}

		submitted, err := e.submitOne(ctx, job)
		if err != nil {
			ledger.Release(key)
		}
		if submitted {
			rep.Submitted++
			metrics.IncApplicationsSubmitted()
		}

		switch {
		case err == nil:
			job.Applied = true
			ledger.Insert(key)
			rep.Applied = append(rep.Applied, job)
			metrics.IncApplicationsApplied()
			telemetry.Info("applies.submit.ok", map[string]any{"key": key, "title": job.Title})
		case errors.Is(err, ErrAlreadyApplied):
			rep.AlreadyApplied++
			metrics.IncApplicationsAlreadyApplied()
			telemetry.Info("applies.submit.already_applied", map[string]any{"key": key, "title": job.Title})
		default:
			rep.Failed++
			metrics.IncApplicationsFailed()
			telemetry.Warn("applies.submit.failed", map[string]any{"key": key, "title": job.Title, "error": err})
		}

		if submitted && e.Pacing != nil {
			if werr := e.Pacing.Wait(ctx); werr != nil {
				if ctx.Err() != nil {
					rep.Cancelled = true
					break
				}
				telemetry.Warn("applies.pacing.failed", map[string]any{"error": werr})
			}
		}
	}

	if rep.Cancelled {
		telemetry.Info("applies.run.cancelled", map[string]any{"applied": len(rep.Applied)})
	}
	return rep
}

// submitOne reports whether a request actually went out, and its outcome. A panic is converted into an ErrApplyFailed.
func (e *Executor) submitOne(ctx context.Context, job jobs.Job) (submitted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrApplyFailed, "panic: %v", r)
		}
	}()

	payload, err := Payload(job)
	if err != nil {
		return false, err
	}

	timeout := e.SubmitTimeout
	if timeout <= 0 {
		timeout = defaultSubmitTimeout
	}
	postCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	path := e.Path
	if path == "" {
		path = instahyre.ApplyPath
	}
	var headers http.Header
	if e.Handle != nil {
		headers = e.Handle.Headers()
	}

	submitted = true
	resp, err := e.Client.PostJSON(postCtx, path, payload, headers)
	if err != nil {
		return submitted, errors.Mark(errors.Wrap(err, "submit application"), ErrApplyFailed)
	}
	return submitted, classify(resp)
}

func classify(resp instahyre.Response) error {
	if resp.OK() {
		return nil
	}
	if resp.Status >= 400 && resp.Status < 500 &&
		strings.Contains(strings.ToLower(string(resp.Body)), "already applied") {
		return ErrAlreadyApplied
	}
	return errors.Wrapf(ErrApplyFailed, "status %d", resp.Status)
}

// Payload builds the request body for job. Opportunity ids are sent as
// strings; job-search ids must be numeric.
func Payload(job jobs.Job) (map[string]any, error) {
	payload := map[string]any{
		"is_interested":        true,
		"is_activity_page_job": false,
	}
	switch job.Source {
	case jobs.SourceOpportunity:
		if job.PrimaryID == "" {
			return nil, errors.Wrap(ErrApplyFailed, "missing opportunity id")
		}
		payload["id"] = job.PrimaryID
	case jobs.SourceJobSearch:
		n, err := strconv.ParseInt(job.SecondaryID, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrApplyFailed, "job id %q is not numeric", job.SecondaryID)
		}
		payload["job_id"] = n
	default:
		return nil, errors.Wrapf(ErrApplyFailed, "unknown source %d", job.Source)
	}
	return payload, nil
}
