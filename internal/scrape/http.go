package scrape

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/reverscodes/codes-cli/internal/resilience"
)

// DefaultUserAgent is sent when Options.UserAgent is empty.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Options configures HTTPFetcher.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// MaxBody caps how many bytes of a page are read.
	MaxBody int64
	Retry   resilience.Policy
	// Rate is the steady per-host request rate.
	Rate  rate.Limit
	Burst int
	// Breakers stops requests to hosts that keep failing. Optional.
	Breakers *resilience.HostBreakers
}

// DefaultOptions returns the fetch settings used by the CLI.
func DefaultOptions() Options {
	return Options{
		UserAgent: DefaultUserAgent,
		Timeout:   15 * time.Second,
		MaxBody:   2 << 20,
		Retry:     resilience.DefaultPolicy(),
		Rate:      1,
		Burst:     1,
	}
}

// HTTPFetcher implements Fetcher over net/http with per-host rate limiting,
// retries on transient failures, block detection, and charset decoding.
type HTTPFetcher struct {
	client   *http.Client
	opts     Options
	limiters *hostLimiters
}

// NewHTTPFetcher creates an HTTPFetcher. Zero-valued options take their
// DefaultOptions value.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	d := DefaultOptions()
	if opts.UserAgent == "" {
		opts.UserAgent = d.UserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = d.Timeout
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = d.MaxBody
	}
	if opts.Rate <= 0 {
		opts.Rate = d.Rate
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: newHostLimiters(opts.Rate, opts.Burst),
	}
}

// Fetch retrieves url and returns its body as UTF-8 text.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	var br *resilience.Breaker
	if f.opts.Breakers != nil {
		br = f.opts.Breakers.For(url)
		if err := br.Allow(); err != nil {
			return "", &FetchError{URL: url, Err: err}
		}
	}

	policy := f.opts.Retry
	policy.OnRetry = resilience.LogRetry("fetch", url)
	body, err := resilience.DoVal(ctx, policy, func(ctx context.Context) (string, error) {
		return f.once(ctx, url)
	})

	if br != nil {
		br.Record(err)
	}
	if err != nil {
		return "", err
	}
	return body, nil
}

func (f *HTTPFetcher) once(ctx context.Context, url string) (string, error) {
	lim, host := f.limiters.get(url)
	if err := lim.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "scrape: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{URL: url, Err: eris.Wrap(err, "scrape: create request")}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		fe := &FetchError{URL: url, Err: err}
		if resilience.IsTransient(err) && !errors.Is(err, context.Canceled) {
			return "", resilience.Transient(fe, 0)
		}
		return "", fe
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBody))
	if err != nil {
		return "", resilience.Transient(&FetchError{URL: url, StatusCode: resp.StatusCode, Err: err}, 0)
	}

	if bt := DetectBlock(resp.StatusCode, resp.Header, raw); bt != BlockNone {
		return "", &FetchError{URL: url, StatusCode: resp.StatusCode, Block: bt}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		lim.onTooManyRequests(host)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fe := &FetchError{URL: url, StatusCode: resp.StatusCode}
		if resilience.IsTransientStatus(resp.StatusCode) {
			return "", resilience.Transient(fe, resp.StatusCode)
		}
		return "", fe
	}
	lim.onSuccess()

	text, err := decodeBody(resp.Header.Get("Content-Type"), raw)
	if err != nil {
		zap.L().Debug("scrape: charset decode failed, using raw bytes", zap.String("url", url), zap.Error(err))
		text = string(raw)
	}
	return text, nil
}
