// Package pipeline runs the per-game update: fetch sources, extract and
// validate codes, rank them, and rewrite the game's page.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reverscodes/codes-cli/internal/config"
	"github.com/reverscodes/codes-cli/internal/extract"
	"github.com/reverscodes/codes-cli/internal/model"
	"github.com/reverscodes/codes-cli/internal/pagestore"
	"github.com/reverscodes/codes-cli/internal/scorer"
	"github.com/reverscodes/codes-cli/internal/scrape"
	"github.com/reverscodes/codes-cli/internal/screen"
	"github.com/reverscodes/codes-cli/internal/store"
	"github.com/reverscodes/codes-cli/internal/validate"
)

// ManualSource is the source name recorded on hand-maintained codes.
const ManualSource = "Manual"

// Deps are the collaborators of a Pipeline. Pages and Store are optional.
type Deps struct {
	Fetcher scrape.Fetcher
	Pages   *pagestore.Updater
	Store   store.Store
	Deny    *screen.DenyList
	Scoring config.ScoringConfig
}

// Options tune a Pipeline.
type Options struct {
	Mode           model.Mode
	MinActiveCodes int
	Concurrency    int
	Pacer          *scrape.Pacer
	DryRun         bool
	// Sitemap is bumped after a run that updated at least one page.
	Sitemap string
	Now     func() time.Time
}

// Pipeline orchestrates extraction, validation, ranking and page updates
// for configured games.
type Pipeline struct {
	deps Deps
	opts Options

	sections *extract.Sections
	fallback *extract.Fallback
	precise  *extract.Precise

	aggregator *validate.Aggregator
	manual     *validate.Aggregator
	quality    scorer.Scorer
	confidence scorer.Scorer
}

// New creates a Pipeline with all dependencies.
func New(deps Deps, opts Options) *Pipeline {
	if opts.Mode == "" {
		opts.Mode = model.ModeSections
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Deny == nil {
		deps.Deny = screen.DefaultDenyList()
	}

	// Extractors screen with the strict regime; scraped records are
	// re-validated under it so bare-alpha codes it admits survive.
	agg := validate.NewWithRegime(screen.StrictRegime(), deps.Deny, deps.Scoring)
	return &Pipeline{
		deps:       deps,
		opts:       opts,
		sections:   extract.NewSections(deps.Deny),
		fallback:   extract.NewFallback(deps.Deny),
		precise:    extract.NewPrecise(deps.Deny, screen.DefaultQualityGate()),
		aggregator: agg,
		manual:     validate.New(deps.Deny, deps.Scoring),
		quality:    agg.Quality,
		confidence: scorer.NewConfidence(),
	}
}

// RunGame executes the pipeline for a single game. The returned result is
// never nil; an error is returned only when ctx ends or the page cannot be
// written.
func (p *Pipeline) RunGame(ctx context.Context, game model.Game) (*model.GameResult, error) {
	log := zap.L().With(zap.String("game", game.Key), zap.String("mode", string(p.opts.Mode)))
	log.Info("pipeline: starting game")

	res := &model.GameResult{
		Game:      game.Key,
		Mode:      p.opts.Mode,
		Active:    []model.CodeRecord{},
		Expired:   []string{},
		StartedAt: p.opts.Now().UTC(),
	}

	sources, err := p.collect(ctx, game)
	for _, s := range sources {
		res.Sources = append(res.Sources, s.outcome)
	}
	if err != nil {
		res.Error = err.Error()
		return p.finish(ctx, res), eris.Wrapf(err, "pipeline: collect %s", game.Key)
	}

	candidates, expired := merge(sources)
	raw := make([]model.RawRecord, len(candidates))
	for i, c := range candidates {
		raw[i] = c.Raw()
	}
	res.Report = p.aggregator.Validate(raw)
	validate.LogReport(game.Key, res.Report)

	res.Expired = append(res.Expired, expired...)
	res.Active = p.rank(res.Report.QualityFiltered, expired)

	if len(res.Active) < p.opts.MinActiveCodes && len(game.ManualCodes) > 0 {
		log.Info("pipeline: too few scraped codes, using manual list",
			zap.Int("scraped", len(res.Active)),
			zap.Int("min_active_codes", p.opts.MinActiveCodes),
		)
		res.Active = p.rank(p.manualRecords(game), expired)
		res.UsedManual = true
	}

	res.Stats = p.stats(res)
	res.Analysis = scorer.Analyze(res.Stats)
	log.Info("pipeline: codes ranked",
		zap.Int("active", len(res.Active)),
		zap.Int("expired", len(res.Expired)),
		zap.Float64("quality", res.Analysis.Score),
		zap.String("recommendation", res.Analysis.Recommendation),
	)

	switch {
	case len(res.Active) == 0:
		log.Warn("pipeline: no active codes, page left unchanged")
	case p.opts.DryRun || p.deps.Pages == nil:
		log.Info("pipeline: dry run, page left unchanged")
	default:
		rep, err := p.deps.Pages.Update(ctx, game.Page, res.Active, res.Expired, p.opts.Now())
		if err != nil {
			res.Error = err.Error()
			return p.finish(ctx, res), eris.Wrapf(err, "pipeline: update page for %s", game.Key)
		}
		res.Updated = true
		log.Info("pipeline: page updated",
			zap.String("page", game.Page),
			zap.Strings("regions", rep.Written),
		)
	}

	return p.finish(ctx, res), nil
}

// RunAll runs every game in order. A failing game is recorded in its result
// and does not stop the others; only a cancelled ctx ends the run early.
func (p *Pipeline) RunAll(ctx context.Context, games []model.Game) []model.GameResult {
	results := make([]model.GameResult, 0, len(games))
	updated := 0
	for _, g := range games {
		if ctx.Err() != nil {
			zap.L().Warn("pipeline: run cancelled", zap.Int("remaining", len(games)-len(results)))
			break
		}
		res, err := p.RunGame(ctx, g)
		if err != nil {
			zap.L().Error("pipeline: game failed", zap.String("game", g.Key), zap.Error(err))
		}
		if res.Updated {
			updated++
		}
		results = append(results, *res)
	}

	if updated > 0 && p.opts.Sitemap != "" && !p.opts.DryRun {
		n, err := pagestore.TouchSitemap(p.opts.Sitemap, p.opts.Now())
		if err != nil {
			zap.L().Warn("pipeline: sitemap not updated", zap.String("path", p.opts.Sitemap), zap.Error(err))
		} else {
			zap.L().Info("pipeline: sitemap updated", zap.Int("entries", n))
		}
	}
	return results
}

// rank drops expired codes, orders records with the mode's scorer, caps the
// list, and attaches both scores.
func (p *Pipeline) rank(records []model.CodeRecord, expired []string) []model.CodeRecord {
	gone := make(map[string]bool, len(expired))
	for _, code := range expired {
		gone[code] = true
	}
	pool := make([]model.CodeRecord, 0, len(records))
	for _, r := range records {
		if !gone[r.Code] {
			pool = append(pool, r)
		}
	}

	by, attach := p.quality, scorer.AttachQuality
	if p.opts.Mode == model.ModePrecise {
		by, attach = p.confidence, scorer.AttachConfidence
	}
	ranked := scorer.Rank(pool, by, scorer.RankOptions{
		Limit:  p.deps.Scoring.MaxCodes,
		Attach: attach,
	})
	for i := range ranked {
		ranked[i].QualityScore = p.quality.Score(ranked[i])
		ranked[i].ConfidenceScore = p.confidence.Score(ranked[i])
	}
	return ranked
}

// manualRecords validates the game's manual codes like scraped ones and
// returns every valid record. The quality threshold is not applied since
// the list is curated.
func (p *Pipeline) manualRecords(game model.Game) []model.CodeRecord {
	raw := make([]model.RawRecord, 0, len(game.ManualCodes))
	for _, mc := range game.ManualCodes {
		code, rew, src := mc.Code, mc.Reward, ManualSource
		if rew == "" {
			rew = model.DefaultReward
		}
		raw = append(raw, model.RawRecord{Code: &code, Reward: &rew, Source: &src, Method: model.MethodManual})
	}
	report := p.manual.Validate(raw)
	if len(report.Invalid) > 0 {
		zap.L().Warn("pipeline: manual codes rejected",
			zap.String("game", game.Key),
			zap.Strings("errors", report.Errors),
		)
	}
	return report.Valid
}

func (p *Pipeline) stats(res *model.GameResult) model.ExtractionStats {
	st := model.ExtractionStats{
		SourcesTotal: len(res.Sources),
		Active:       len(res.Active),
		Expired:      len(res.Expired),
	}
	for _, s := range res.Sources {
		if s.Error == "" {
			st.SourcesOK++
		}
	}
	tiers := scorer.Tiers(res.Active)
	st.HighConfidence = tiers.High
	st.MediumConfidence = tiers.Medium
	st.LowConfidence = tiers.Low
	return st
}

// finish stamps the result and records it in run history.
func (p *Pipeline) finish(ctx context.Context, res *model.GameResult) *model.GameResult {
	res.FinishedAt = p.opts.Now().UTC()
	if p.deps.Store == nil {
		return res
	}
	run := model.NewRun(res)
	// History is written even when the run was cancelled.
	if err := p.deps.Store.SaveRun(context.WithoutCancel(ctx), &run); err != nil {
		zap.L().Warn("pipeline: run not saved", zap.String("game", res.Game), zap.Error(err))
	}
	return res
}
