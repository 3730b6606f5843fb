// Package validate classifies untrusted code records and assembles the
// validation report for a run.
package validate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/reverscodes/codes-cli/internal/config"
	"github.com/reverscodes/codes-cli/internal/model"
	"github.com/reverscodes/codes-cli/internal/reward"
	"github.com/reverscodes/codes-cli/internal/scorer"
	"github.com/reverscodes/codes-cli/internal/screen"
)

// maxLoggedErrors caps how many record errors LogReport prints.
const maxLoggedErrors = 5

// Aggregator validates raw records with one screener regime and scores the
// survivors for the quality-filtered list.
type Aggregator struct {
	Screener   *screen.Screener
	Quality    scorer.Scorer
	MinQuality float64
}

// New creates an Aggregator from scoring config. A nil deny list uses the
// default.
func New(deny *screen.DenyList, cfg config.ScoringConfig) *Aggregator {
	return NewWithRegime(screen.GeneralRegime(), deny, cfg)
}

// NewWithRegime creates an Aggregator that judges codes with regime, for
// records that were already screened under it during extraction.
func NewWithRegime(regime screen.Regime, deny *screen.DenyList, cfg config.ScoringConfig) *Aggregator {
	s := screen.New(regime, deny)
	return &Aggregator{
		Screener:   s,
		Quality:    scorer.NewQuality(cfg, s),
		MinQuality: cfg.MinQuality,
	}
}

// Validate partitions raw into valid and invalid records, removes
// duplicates from the valid set, and ranks the valid set by quality.
func (a *Aggregator) Validate(raw []model.RawRecord) model.ValidationResult {
	res := model.ValidationResult{
		Total:           len(raw),
		Valid:           []model.CodeRecord{},
		Invalid:         []model.InvalidRecord{},
		QualityFiltered: []model.CodeRecord{},
		Errors:          []string{},
		Warnings:        []string{},
	}

	for _, r := range raw {
		rec, errs := a.check(r)
		if len(errs) > 0 {
			res.Invalid = append(res.Invalid, model.InvalidRecord{Record: r, Errors: errs})
			res.Errors = append(res.Errors, errs...)
			continue
		}
		res.Valid = append(res.Valid, rec)
	}

	before := len(res.Valid)
	res.Valid = scorer.Dedupe(res.Valid)
	res.DuplicatesRemoved = before - len(res.Valid)

	res.QualityFiltered = scorer.Rank(res.Valid, a.Quality, scorer.RankOptions{
		MinScore: a.MinQuality,
		Attach:   scorer.AttachQuality,
	})

	if len(res.Invalid) > len(res.Valid) {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("More invalid codes (%d) than valid codes (%d)", len(res.Invalid), len(res.Valid)))
	}
	if res.DuplicatesRemoved > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("Removed %d duplicate codes", res.DuplicatesRemoved))
	}
	return res
}

// check returns the record built from r, or the reasons it is invalid.
func (a *Aggregator) check(r model.RawRecord) (model.CodeRecord, []string) {
	if r.Code == nil {
		return model.CodeRecord{}, []string{"Missing 'code' field"}
	}
	if r.Reward == nil {
		return model.CodeRecord{}, []string{"Missing 'reward' field"}
	}

	var errs []string
	if ok, reason := a.Screener.Check(*r.Code); !ok {
		errs = append(errs, fmt.Sprintf("Invalid code format: %s (%s)", *r.Code, reason))
	}
	if !reward.Valid(*r.Reward) {
		errs = append(errs, fmt.Sprintf("Invalid reward format: %s", *r.Reward))
	}
	if len(errs) > 0 {
		return model.CodeRecord{}, errs
	}

	source := model.UnknownSource
	if r.Source != nil {
		source = *r.Source
	}
	rec, err := model.NewCodeRecord(*r.Code, *r.Reward, source)
	if err != nil {
		return model.CodeRecord{}, []string{err.Error()}
	}
	rec.SourceURL = r.SourceURL
	rec.Method = r.Method
	return rec, nil
}

// LogReport writes the report for game to the global logger.
func LogReport(game string, res model.ValidationResult) {
	log := zap.L().With(zap.String("game", game))
	log.Info("validate: report",
		zap.Int("total", res.Total),
		zap.Int("valid", len(res.Valid)),
		zap.Int("invalid", len(res.Invalid)),
		zap.Int("duplicates_removed", res.DuplicatesRemoved),
		zap.Int("high_quality", len(res.QualityFiltered)),
	)

	if len(res.Errors) > 0 {
		shown := res.Errors
		if len(shown) > maxLoggedErrors {
			shown = shown[:maxLoggedErrors]
		}
		log.Warn("validate: record errors",
			zap.Int("count", len(res.Errors)),
			zap.Strings("first", shown),
		)
	}
	for _, w := range res.Warnings {
		log.Warn("validate: " + w)
	}
}
