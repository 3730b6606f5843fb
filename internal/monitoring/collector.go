package monitoring

import (
	"context"
	"slices"
	"time"

	"github.com/rotisserie/eris"

	"github.com/reverscodes/codes-cli/internal/model"
	"github.com/reverscodes/codes-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of scrape health.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsSkipped  int     `json:"runs_skipped"`
	RunsFailed   int     `json:"runs_failed"`
	FailRate     float64 `json:"fail_rate"`
	AvgQuality   float64 `json:"avg_quality"`

	// Games with no completed run inside the window.
	StaleGames []string `json:"stale_games,omitempty"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the slice of store.Store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

const collectPageSize = 500

// Collector gathers metrics from run history.
type Collector struct {
	runs  RunLister
	games []string
	now   func() time.Time
}

// NewCollector creates a metrics collector over the given games.
func NewCollector(runs RunLister, games []model.Game) *Collector {
	keys := make([]string, 0, len(games))
	for _, g := range games {
		keys = append(keys, g.Key)
	}
	return &Collector{runs: runs, games: keys, now: time.Now}
}

// Collect gathers a snapshot of run metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.listSince(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	fresh := make(map[string]bool, len(c.games))
	var totalQuality float64
	for _, r := range runs {
		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
			totalQuality += r.QualityScore
			fresh[r.Game] = true
		case model.RunStatusSkipped:
			snap.RunsSkipped++
		case model.RunStatusFailed:
			snap.RunsFailed++
		}
	}

	if snap.RunsTotal > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(snap.RunsTotal)
	}
	if snap.RunsComplete > 0 {
		snap.AvgQuality = totalQuality / float64(snap.RunsComplete)
	}
	for _, g := range c.games {
		if !fresh[g] {
			snap.StaleGames = append(snap.StaleGames, g)
		}
	}
	slices.Sort(snap.StaleGames)

	return snap, nil
}

// listSince pages through run history, newest first, until it passes cutoff.
func (c *Collector) listSince(ctx context.Context, cutoff time.Time) ([]model.Run, error) {
	var out []model.Run
	for offset := 0; ; offset += collectPageSize {
		page, err := c.runs.ListRuns(ctx, store.RunFilter{Limit: collectPageSize, Offset: offset})
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: list runs")
		}
		for _, r := range page {
			if r.CreatedAt.Before(cutoff) {
				return out, nil
			}
			out = append(out, r)
		}
		if len(page) < collectPageSize {
			return out, nil
		}
	}
}
