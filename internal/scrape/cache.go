package scrape

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// PageCache stores fetched pages for a limited time.
type PageCache interface {
	GetCachedPage(ctx context.Context, url string) (string, bool, error)
	SetCachedPage(ctx context.Context, url, html string, ttl time.Duration) error
}

// CachedFetcher serves pages from a PageCache and fills it on a miss.
// Cache failures are logged and never fail a fetch.
type CachedFetcher struct {
	Next  Fetcher
	Cache PageCache
	TTL   time.Duration
}

// Fetch implements Fetcher.
func (c *CachedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	html, ok, err := c.Cache.GetCachedPage(ctx, url)
	if err != nil {
		zap.L().Warn("scrape: cache read failed", zap.String("url", url), zap.Error(err))
	} else if ok {
		zap.L().Debug("scrape: cache hit", zap.String("url", url))
		return html, nil
	}

	html, err = c.Next.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	if err := c.Cache.SetCachedPage(ctx, url, html, c.TTL); err != nil {
		zap.L().Warn("scrape: cache write failed", zap.String("url", url), zap.Error(err))
	}
	return html, nil
}
