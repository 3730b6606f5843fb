// Package scrape fetches source pages from third-party gaming sites.
package scrape

import (
	"context"
	"fmt"
)

// Fetcher retrieves the HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) (string, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, url string) (string, error) { return f(ctx, url) }

// FetchError reports a page that could not be retrieved. StatusCode is 0
// for network failures. Block is set when anti-bot protection was detected.
type FetchError struct {
	URL        string
	StatusCode int
	Block      BlockType
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Block != BlockNone:
		return fmt.Sprintf("scrape: %s blocked (%s)", e.URL, e.Block)
	case e.StatusCode != 0:
		return fmt.Sprintf("scrape: %s returned status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("scrape: %s: %v", e.URL, e.Err)
	}
	return "scrape: " + e.URL + " failed"
}

func (e *FetchError) Unwrap() error { return e.Err }
