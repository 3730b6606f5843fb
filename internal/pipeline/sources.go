package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reverscodes/codes-cli/internal/extract"
	"github.com/reverscodes/codes-cli/internal/model"
)

// sourceResult is what one source contributed to a game run.
type sourceResult struct {
	outcome model.SourceOutcome
	found   extract.Result
}

// collect fetches and extracts every source of game. Results keep the
// configured source order whether or not sources are fetched concurrently.
func (p *Pipeline) collect(ctx context.Context, game model.Game) ([]sourceResult, error) {
	results := make([]sourceResult, len(game.Sources))

	if p.opts.Concurrency <= 1 || len(game.Sources) <= 1 {
		for i, src := range game.Sources {
			if err := p.opts.Pacer.Wait(ctx); err != nil {
				return results[:i], err
			}
			results[i] = p.scrapeSource(ctx, game.Key, src)
		}
		return results, nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, src := range game.Sources {
		g.Go(func() error {
			results[i] = p.scrapeSource(gCtx, game.Key, src)
			return nil
		})
	}
	_ = g.Wait()
	return results, ctx.Err()
}

// scrapeSource runs fetch, parse and extract for one source. Failures are
// recorded on the outcome and yield zero codes.
func (p *Pipeline) scrapeSource(ctx context.Context, game string, src model.Source) sourceResult {
	log := zap.L().With(zap.String("game", game), zap.String("source", src.Name))
	res := sourceResult{outcome: model.SourceOutcome{Source: src}}

	page, err := p.deps.Fetcher.Fetch(ctx, src.URL)
	if err != nil {
		log.Warn("pipeline: fetch failed", zap.String("url", src.URL), zap.Error(err))
		res.outcome.Error = err.Error()
		return res
	}

	doc, err := extract.Parse(page)
	if err != nil {
		log.Warn("pipeline: parse failed", zap.String("url", src.URL), zap.Error(err))
		res.outcome.Error = err.Error()
		return res
	}

	found := p.extractPage(doc, src.URL)
	for i, c := range found.Active {
		found.Active[i] = c.WithSource(src.Name, src.URL)
	}
	res.found = found
	res.outcome.Active = len(found.Active)
	res.outcome.Expired = len(found.Expired)

	log.Info("pipeline: source scraped",
		zap.Int("active", res.outcome.Active),
		zap.Int("expired", res.outcome.Expired),
	)
	return res
}

// extractPage applies the mode's extractors. In sections mode the fallback
// scan runs only when no labeled active section yielded codes; expired codes
// from the labeled sections are kept either way.
func (p *Pipeline) extractPage(doc *extract.Document, pageURL string) extract.Result {
	if p.opts.Mode == model.ModePrecise {
		return p.precise.Extract(doc, pageURL)
	}

	res := p.sections.Extract(doc, pageURL)
	if len(res.Active) > 0 {
		return res
	}
	fb := p.fallback.Extract(doc, pageURL)
	gone := make(map[string]bool, len(res.Expired))
	for _, code := range res.Expired {
		gone[code] = true
	}
	for _, c := range fb.Active {
		if !gone[c.NormalizedCode] {
			res.Active = append(res.Active, c)
		}
	}
	return res
}

// merge combines per-source results in source order. Expired codes are the
// union over all sources and are removed from the active candidates.
func merge(results []sourceResult) ([]model.CodeCandidate, []string) {
	var expired []string
	gone := make(map[string]bool)
	for _, r := range results {
		for _, code := range r.found.Expired {
			code = model.NormalizeCode(code)
			if code == "" || gone[code] {
				continue
			}
			gone[code] = true
			expired = append(expired, code)
		}
	}

	var active []model.CodeCandidate
	for _, r := range results {
		for _, c := range r.found.Active {
			if !gone[c.NormalizedCode] {
				active = append(active, c)
			}
		}
	}
	return active, expired
}
