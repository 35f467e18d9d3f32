// Package pacing provides the delay policies inserted between page requests
// and between application submissions.
//
// The pipeline only depends on Policy, so the fixed sleep can be swapped for
// a token bucket without touching fetch or apply logic.
package pacing

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Policy blocks until the next request may be issued. It returns the
// context's error when cancelled while waiting.
type Policy interface {
	Wait(ctx context.Context) error
}

// Fixed waits a constant duration on every call.
type Fixed struct {
	Delay time.Duration
	// After defaults to time.After and is replaced in tests.
	After func(time.Duration) <-chan time.Time
}

// NewFixed returns a Fixed policy for d.
func NewFixed(d time.Duration) *Fixed {
	return &Fixed{Delay: d}
}

func (f *Fixed) Wait(ctx context.Context) error {
	if f == nil || f.Delay <= 0 {
		return ctx.Err()
	}
	after := f.After
	if after == nil {
		after = time.After
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-after(f.Delay):
		return nil
	}
}

// Limited spaces calls through a token bucket. With a burst of 1 it behaves
// like Fixed except that time already spent on the request counts toward the
// interval.
type Limited struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewLimited allows one event per interval with the given burst.
func NewLimited(interval time.Duration, burst int) *Limited {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	l := rate.NewLimiter(limit, burst)
	// Drain the initial burst so the first Wait paces like a sleep would.
	l.AllowN(time.Now(), burst)
	return &Limited{limiter: l, interval: interval}
}

// Wait blocks until a token is available. A deadline shorter than the delay
// does not fail early the way rate.Limiter.Wait does; the only error returned
// is the context's.
func (l *Limited) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := l.limiter.Reserve()
	if !r.OK() {
		return NewFixed(l.interval).Wait(ctx)
	}
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Recorder is a Policy that never blocks and counts calls. Tests use it to
// assert where delays were inserted.
type Recorder struct {
	Calls int
	Err   error
}

func (r *Recorder) Wait(ctx context.Context) error {
	r.Calls++
	if r.Err != nil {
		return r.Err
	}
	return ctx.Err()
}

// ForMode builds the policy selected by configuration ("fixed" or "token_bucket").
func ForMode(mode string, d time.Duration) Policy {
	if mode == "token_bucket" {
		return NewLimited(d, 1)
	}
	return NewFixed(d)
}
