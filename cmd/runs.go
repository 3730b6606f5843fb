package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/reverscodes/codes-cli/internal/model"
	"github.com/reverscodes/codes-cli/internal/monitoring"
	"github.com/reverscodes/codes-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect run history",
	Long:  "Commands for listing, viewing, and summarizing past game update runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		game, _ := cmd.Flags().GetString("game")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Game:   game,
			Status: model.RunStatus(status),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		game, _ := cmd.Flags().GetString("game")
		since, _ := cmd.Flags().GetDuration("since")

		runs, err := st.ListRuns(ctx, store.RunFilter{Game: game, Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}
		if since > 0 {
			runs = runsSince(runs, time.Now().Add(-since))
		}

		formatRunStats(os.Stdout, computeRunStats(runs))
		return nil
	},
}

// -- runs health --

var runsHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Evaluate run health against the monitoring thresholds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		lookback, _ := cmd.Flags().GetInt("lookback")
		if lookback <= 0 {
			lookback = cfg.Monitoring.LookbackWindowHours
		}

		snap, err := monitoring.NewCollector(st, cfg.Games).Collect(ctx, lookback)
		if err != nil {
			return eris.Wrap(err, "runs health")
		}
		alerts := monitoring.NewAlerter(cfg.Monitoring).Evaluate(snap)

		formatHealth(os.Stdout, snap, alerts)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("game", "", "filter by game key")
	runsListCmd.Flags().String("status", "", "filter by run status (complete, skipped, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Int("offset", 0, "number of runs to skip")

	runsStatsCmd.Flags().String("game", "", "filter by game key")
	runsStatsCmd.Flags().Duration("since", 7*24*time.Hour, "time window for stats (e.g. 24h, 168h); 0 for all")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsHealthCmd.Flags().Int("lookback", 0, "lookback window in hours (default from config)")

	runsCmd.AddCommand(runsStatsCmd)
	runsCmd.AddCommand(runsHealthCmd)
	rootCmd.AddCommand(runsCmd)
}

// runsSince keeps runs created at or after t.
func runsSince(runs []model.Run, t time.Time) []model.Run {
	out := runs[:0:0]
	for _, r := range runs {
		if !r.CreatedAt.Before(t) {
			out = append(out, r)
		}
	}
	return out
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total      int
	Complete   int
	Skipped    int
	Failed     int
	AvgActive  float64
	AvgQuality float64
	// LastUpdate is the newest run that rewrote a page, per game.
	LastUpdate map[string]time.Time
}

// computeRunStats computes aggregate statistics from a list of runs.
func computeRunStats(runs []model.Run) runStats {
	s := runStats{Total: len(runs), LastUpdate: make(map[string]time.Time)}

	var active, quality float64
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			s.Complete++
			active += float64(r.ActiveCount)
			quality += r.QualityScore
			if r.CreatedAt.After(s.LastUpdate[r.Game]) {
				s.LastUpdate[r.Game] = r.CreatedAt
			}
		case model.RunStatusSkipped:
			s.Skipped++
		case model.RunStatusFailed:
			s.Failed++
		}
	}

	if s.Complete > 0 {
		s.AvgActive = active / float64(s.Complete)
		s.AvgQuality = quality / float64(s.Complete)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tGAME\tMODE\tSTATUS\tACTIVE\tEXPIRED\tSOURCES\tQUALITY\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t------\t------\t-------\t-------\t-------\t-------")

	for _, r := range runs {
		game := r.Game
		if len(game) > 30 {
			game = game[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d/%d\t%.2f\t%s\n",
			truncateID(r.ID),
			game,
			r.Mode,
			r.Status,
			r.ActiveCount,
			r.ExpiredCount,
			r.SourcesOK,
			r.SourcesTotal,
			r.QualityScore,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.Complete)
	_, _ = fmt.Fprintf(w, "Skipped:\t%d\n", s.Skipped)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	if s.Complete > 0 {
		_, _ = fmt.Fprintf(w, "Avg active codes:\t%.1f\n", s.AvgActive)
		_, _ = fmt.Fprintf(w, "Avg quality:\t%.2f\n", s.AvgQuality)
	}
	_ = w.Flush()

	if len(s.LastUpdate) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "GAME\tLAST UPDATE")
	for _, g := range sortedKeys(s.LastUpdate) {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", g, s.LastUpdate[g].Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

// formatHealth writes a health snapshot and any alerts it triggered to w.
func formatHealth(out io.Writer, snap *monitoring.MetricsSnapshot, alerts []monitoring.Alert) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window:\t%dh\n", snap.LookbackHours)
	_, _ = fmt.Fprintf(w, "Runs:\t%d (%d complete, %d skipped, %d failed)\n",
		snap.RunsTotal, snap.RunsComplete, snap.RunsSkipped, snap.RunsFailed)
	_, _ = fmt.Fprintf(w, "Failure rate:\t%.1f%%\n", snap.FailRate*100)
	_, _ = fmt.Fprintf(w, "Avg quality:\t%.2f\n", snap.AvgQuality)
	_ = w.Flush()

	if len(alerts) == 0 {
		_, _ = fmt.Fprintln(out, "\nNo alerts.")
		return
	}
	_, _ = fmt.Fprintln(out)
	for _, a := range alerts {
		_, _ = fmt.Fprintf(out, "[%s] %s\n", a.Severity, a.Message)
	}
}

func sortedKeys(m map[string]time.Time) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
