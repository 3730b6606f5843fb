package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/reverscodes/codes-cli/internal/model"
	"github.com/reverscodes/codes-cli/internal/pagestore"
	"github.com/reverscodes/codes-cli/internal/pipeline"
	"github.com/reverscodes/codes-cli/internal/resilience"
	"github.com/reverscodes/codes-cli/internal/scorer"
	"github.com/reverscodes/codes-cli/internal/scrape"
	"github.com/reverscodes/codes-cli/internal/screen"
	"github.com/reverscodes/codes-cli/internal/store"
)

// Breaker settings for source hosts.
const (
	breakerThreshold = 5
	breakerCooldown  = 10 * time.Minute
)

// pipelineEnv holds the store and pipeline needed by the run and serve
// commands.
type pipelineEnv struct {
	Store    store.Store // may be nil
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates config for mode, opens the store, and builds the
// Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	if err := scorer.ValidateConfig(cfg.Scoring); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if st != nil {
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
	} else {
		zap.L().Warn("store.driver is empty, run history disabled")
	}

	deny := screen.LoadDenyListOrDefault(cfg.Screen.DenyList, cfg.Screen.ReplaceDefault)

	var sitemap string
	if cfg.Site.Sitemap != "" {
		sitemap = filepath.Join(cfg.Site.Root, cfg.Site.Sitemap)
	}

	p := pipeline.New(pipeline.Deps{
		Fetcher: buildFetcher(st),
		Pages:   pagestore.NewUpdater(pagestore.NewFSStore(cfg.Site.Root)),
		Store:   st,
		Deny:    deny,
		Scoring: cfg.Scoring,
	}, pipeline.Options{
		Mode:           model.Mode(cfg.Pipeline.Mode),
		MinActiveCodes: cfg.Pipeline.MinActiveCodes,
		Concurrency:    cfg.Scrape.Concurrency,
		Pacer:          scrape.NewPacer(cfg.Scrape.MinDelay(), cfg.Scrape.MaxDelay()),
		DryRun:         cfg.Pipeline.DryRun,
		Sitemap:        sitemap,
	})

	zap.L().Info("pipeline ready",
		zap.String("mode", cfg.Pipeline.Mode),
		zap.Int("games", len(cfg.Games)),
		zap.Int("deny_list", deny.Len()),
		zap.Bool("dry_run", cfg.Pipeline.DryRun),
	)

	return &pipelineEnv{Store: st, Pipeline: p}, nil
}

// buildFetcher assembles the HTTP fetcher with retries, per-host rate
// limits and circuit breakers. Pages are cached in st when a cache TTL is
// configured.
func buildFetcher(st store.Store) scrape.Fetcher {
	var f scrape.Fetcher = scrape.NewHTTPFetcher(scrape.Options{
		UserAgent: cfg.Scrape.UserAgent,
		Timeout:   cfg.Scrape.Timeout(),
		MaxBody:   cfg.Scrape.MaxBodyBytes,
		Retry:     resilience.NewPolicy(cfg.Scrape.Retries, 0, 0),
		Rate:      rate.Limit(cfg.Scrape.RatePerSec),
		Burst:     1,
		Breakers:  resilience.NewHostBreakers(breakerThreshold, breakerCooldown),
	})
	if st != nil && cfg.Scrape.CacheTTL() > 0 {
		f = &scrape.CachedFetcher{Next: f, Cache: st, TTL: cfg.Scrape.CacheTTL()}
	}
	return f
}

// selectGames returns the configured games named by keys, or every game
// when keys is empty.
func selectGames(keys []string) ([]model.Game, error) {
	if len(keys) == 0 {
		if len(cfg.Games) == 0 {
			return nil, eris.New("no games configured")
		}
		return cfg.Games, nil
	}
	games := make([]model.Game, 0, len(keys))
	for _, k := range keys {
		g, ok := cfg.Game(k)
		if !ok {
			return nil, eris.Errorf("unknown game %q", k)
		}
		games = append(games, g)
	}
	return games, nil
}
