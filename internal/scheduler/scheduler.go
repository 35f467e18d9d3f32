// Package scheduler triggers the pipeline on a fixed interval.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"

	"autoapply-backend/internal/autoapply"
	"autoapply-backend/internal/runs"
	"autoapply-backend/internal/shared/telemetry"
)

// Runner is the pipeline entry point the scheduler drives.
type Runner interface {
	RunAs(ctx context.Context, trigger string, filtered bool) (autoapply.Result, error)
}

// Config controls the schedule.
type Config struct {
	Interval   time.Duration
	Filtered   bool
	RunOnStart bool
}

// Scheduler runs the pipeline every Interval. A tick that fires while the
// previous scheduled run is still going is skipped.
type Scheduler struct {
	runner Runner
	cfg    Config
	cron   *cron.Cron
	// job wraps runOnce with recovery and skip-if-running. Ticks and the
	// start-up run share it, so they never overlap.
	job cron.Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Scheduler. Start must be called to begin ticking.
func New(runner Runner, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	logger := cronLogger{}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		runner: runner,
		cfg:    cfg,
		cron:   cron.New(cron.WithLogger(logger)),
		ctx:    ctx,
		cancel: cancel,
	}
	s.job = cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(s.runOnce))
	return s
}

// Spec returns the cron spec used for the schedule.
func (s *Scheduler) Spec() string {
	return "@every " + s.cfg.Interval.String()
}

// Start registers the job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddJob(s.Spec(), s.job); err != nil {
		return errors.Wrapf(err, "register schedule %q", s.Spec())
	}
	s.cron.Start()
	telemetry.Info("scheduler.started", map[string]any{
		"spec": s.Spec(), "filtered": s.cfg.Filtered, "run_on_start": s.cfg.RunOnStart,
	})
	if s.cfg.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.job.Run()
		}()
	}
	return nil
}

// Stop cancels any in-flight scheduled run and waits for it to return. The
// cron stop context only completes once running jobs have finished.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	telemetry.Info("scheduler.stopped", nil)
}

func (s *Scheduler) runOnce() {
	if s.ctx.Err() != nil {
		return
	}
	res, err := s.runner.RunAs(s.ctx, runs.TriggerScheduled, s.cfg.Filtered)
	if err != nil {
		telemetry.Warn("scheduler.run.failed", map[string]any{
			"run_id": res.RunID, "reason": res.Reason, "error": err,
		})
		return
	}
	telemetry.Info("scheduler.run.done", map[string]any{
		"run_id": res.RunID, "applied": res.AppliedCount, "cancelled": res.Cancelled,
	})
}

// cronLogger routes cron's own logging through telemetry.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	telemetry.Debug("scheduler.cron."+msg, pairs(keysAndValues))
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := pairs(keysAndValues)
	fields["error"] = err
	telemetry.Error("scheduler.cron."+msg, fields)
}

func pairs(kv []interface{}) map[string]any {
	out := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out[key] = kv[i+1]
	}
	return out
}
