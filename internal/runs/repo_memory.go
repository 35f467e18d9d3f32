package runs

import (
	"context"
	"sync"
)

const defaultMemoryCapacity = 500

// MemoryRepo keeps the most recent runs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu       sync.RWMutex
	runs     []Run
	capacity int
}

// NewMemoryRepo constructs a MemoryRepo holding at most capacity runs.
func NewMemoryRepo(capacity int) *MemoryRepo {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryRepo{capacity: capacity}
}

// Create appends the run, evicting the oldest once full.
func (r *MemoryRepo) Create(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	if over := len(r.runs) - r.capacity; over > 0 {
		r.runs = append([]Run(nil), r.runs[over:]...)
	}
	return nil
}

// ListRecent returns up to limit runs, newest first.
func (r *MemoryRepo) ListRecent(ctx context.Context, limit int) ([]Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = ClampLimit(limit)
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Run, 0, min(limit, len(r.runs)))
	for i := len(r.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.runs[i])
	}
	return out, nil
}

// Latest returns the most recently recorded run.
func (r *MemoryRepo) Latest(ctx context.Context) (Run, bool, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.runs) == 0 {
		return Run{}, false, nil
	}
	return r.runs[len(r.runs)-1], true, nil
}
