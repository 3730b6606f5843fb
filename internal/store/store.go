package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/reverscodes/codes-cli/internal/model"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Game   string          `json:"game,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// DefaultListLimit caps ListRuns when the filter sets no limit.
const DefaultListLimit = 100

// Store defines the persistence interface for run history and the
// fetched-page cache.
type Store interface {
	// Runs
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Page cache
	GetCachedPage(ctx context.Context, url string) (string, bool, error)
	SetCachedPage(ctx context.Context, url, html string, ttl time.Duration) error
	DeleteExpiredPages(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// prepareRun fills the id and creation time of a run about to be saved.
func prepareRun(run *model.Run, now time.Time) {
	if run.ID == "" {
		run.ID = newID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now.UTC()
	}
}

func newID() string {
	return uuid.New().String()
}
