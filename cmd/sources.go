package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/reverscodes/codes-cli/internal/model"
	"github.com/reverscodes/codes-cli/internal/scrape"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Inspect configured code sources",
}

// -- sources check --

var sourcesCheckCmd = &cobra.Command{
	Use:   "check [game...]",
	Short: "Check that every source URL still answers with content",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("check"); err != nil {
			return err
		}
		games, err := selectGames(args)
		if err != nil {
			return err
		}

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		asJSON, _ := cmd.Flags().GetBool("json")
		if concurrency <= 0 {
			concurrency = cfg.Scrape.Concurrency
		}

		prober := scrape.NewProber(time.Duration(cfg.Scrape.ProbeTimeout)*time.Second, cfg.Scrape.UserAgent)
		results := prober.ProbeAll(ctx, games, concurrency)

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return eris.Wrap(err, "encode probe results")
			}
		} else {
			formatProbeResults(os.Stdout, results)
		}
		return ctx.Err()
	},
}

func init() {
	sourcesCheckCmd.Flags().Int("concurrency", 4, "max sources checked at once")
	sourcesCheckCmd.Flags().Bool("json", false, "print results as JSON")

	sourcesCmd.AddCommand(sourcesCheckCmd)
	rootCmd.AddCommand(sourcesCmd)
}

// formatProbeResults writes one row per source and a status tally to w.
func formatProbeResults(out io.Writer, results []model.ProbeResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "GAME\tSOURCE\tSTATUS\tHTTP\tSIZE\tELAPSED\tDETAIL")
	_, _ = fmt.Fprintln(w, "----\t------\t------\t----\t----\t-------\t------")

	counts := make(map[model.ProbeStatus]int)
	for _, r := range results {
		counts[r.Status]++

		code := "-"
		if r.StatusCode != 0 {
			code = fmt.Sprintf("%d", r.StatusCode)
		}
		detail := r.Error
		if detail == "" && r.FinalURL != "" && r.FinalURL != r.Source.URL {
			detail = "redirected to " + r.FinalURL
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.Game,
			r.Source.Name,
			r.Status,
			code,
			r.ContentLength,
			r.Elapsed.Round(time.Millisecond),
			detail,
		)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\n%d sources: %d working, %d broken, %d timeout, %d connection error, %d error\n",
		len(results),
		counts[model.ProbeWorking],
		counts[model.ProbeBroken],
		counts[model.ProbeTimeout],
		counts[model.ProbeConnectionError],
		counts[model.ProbeError],
	)
}
