package runs

import "context"

// Repo persists run summaries.
type Repo interface {
	Create(ctx context.Context, run Run) error
	ListRecent(ctx context.Context, limit int) ([]Run, error)
	Latest(ctx context.Context) (Run, bool, error)
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// ClampLimit bounds a caller supplied list size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
