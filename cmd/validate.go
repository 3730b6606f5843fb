package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/reverscodes/codes-cli/internal/model"
	"github.com/reverscodes/codes-cli/internal/scorer"
	"github.com/reverscodes/codes-cli/internal/screen"
	"github.com/reverscodes/codes-cli/internal/validate"
)

var (
	validateJSON   bool
	validateStrict bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a YAML or JSON file of code records",
	Long:  "Checks every record's code and reward, removes duplicates, and ranks the valid records by quality score.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := scorer.ValidateConfig(cfg.Scoring); err != nil {
			return err
		}

		raw, err := validate.LoadFile(args[0])
		if err != nil {
			return err
		}

		deny := screen.LoadDenyListOrDefault(cfg.Screen.DenyList, cfg.Screen.ReplaceDefault)
		res := validate.New(deny, cfg.Scoring).Validate(raw)

		if validateJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return eris.Wrap(err, "encode report")
			}
		} else {
			formatValidation(os.Stdout, res)
		}

		if validateStrict && len(res.Invalid) > 0 {
			return eris.Errorf("%d invalid records", len(res.Invalid))
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "print the full report as JSON")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "exit non-zero when any record is invalid")
	rootCmd.AddCommand(validateCmd)
}

// formatValidation writes the report summary, problems, and the ranked
// records to w.
func formatValidation(out io.Writer, res model.ValidationResult) {
	_, _ = fmt.Fprintln(out, res.Summary())

	for _, inv := range res.Invalid {
		for _, e := range inv.Errors {
			_, _ = fmt.Fprintf(out, "invalid: %s\n", e)
		}
	}
	for _, warn := range res.Warnings {
		_, _ = fmt.Fprintf(out, "warning: %s\n", warn)
	}

	if len(res.QualityFiltered) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CODE\tREWARD\tSOURCE\tQUALITY")
	for _, r := range res.QualityFiltered {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\n", r.Code, r.Reward, r.Source, r.QualityScore)
	}
	_ = w.Flush()
}
