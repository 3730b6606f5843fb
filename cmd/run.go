package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reverscodes/codes-cli/internal/model"
)

var (
	runMode   string
	runDryRun bool
	runJSON   bool
)

var runCmd = &cobra.Command{
	Use:   "run [game...]",
	Short: "Scrape codes and update pages for the given games (default: all)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if runMode != "" {
			cfg.Pipeline.Mode = runMode
		}
		if runDryRun {
			cfg.Pipeline.DryRun = true
		}

		env, err := initPipeline(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		games, err := selectGames(args)
		if err != nil {
			return err
		}

		results := env.Pipeline.RunAll(ctx, games)

		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return eris.Wrap(err, "encode results")
			}
		} else {
			formatRunResults(os.Stdout, results)
		}

		failed := countFailed(results)
		zap.L().Info("run complete",
			zap.Int("games", len(results)),
			zap.Int("failed", failed),
		)
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "run interrupted")
		}
		if failed > 0 {
			return eris.Errorf("%d of %d games failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", "", "extraction mode: sections or precise (default from config)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "scrape and rank without writing pages")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print full results as JSON")
	rootCmd.AddCommand(runCmd)
}

func countFailed(results []model.GameResult) int {
	n := 0
	for _, r := range results {
		if r.Error != "" {
			n++
		}
	}
	return n
}

// formatRunResults writes one row per game result to w.
func formatRunResults(out io.Writer, results []model.GameResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "GAME\tSTATUS\tACTIVE\tEXPIRED\tSOURCES\tQUALITY\tRECOMMENDATION")
	_, _ = fmt.Fprintln(w, "----\t------\t------\t-------\t-------\t-------\t--------------")

	for _, r := range results {
		run := model.NewRun(&r)
		status := string(run.Status)
		if r.UsedManual {
			status += " (manual)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d/%d\t%.2f\t%s\n",
			r.Game,
			status,
			len(r.Active),
			len(r.Expired),
			r.Stats.SourcesOK,
			r.Stats.SourcesTotal,
			r.Analysis.Score,
			r.Analysis.Recommendation,
		)
	}
	_ = w.Flush()

	for _, r := range results {
		if r.Error != "" {
			_, _ = fmt.Fprintf(out, "%s: %s\n", r.Game, r.Error)
		}
		for _, issue := range r.Analysis.Issues {
			_, _ = fmt.Fprintf(out, "%s: %s\n", r.Game, issue)
		}
	}
}
