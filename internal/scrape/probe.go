package scrape

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reverscodes/codes-cli/internal/model"
)

// minContentLen is the body size a working source page is expected to
// exceed.
const minContentLen = 1000

// Prober checks that source URLs still serve a page.
type Prober struct {
	client    *http.Client
	userAgent string
}

// NewProber creates a Prober with the given per-request timeout.
func NewProber(timeout time.Duration, userAgent string) *Prober {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Prober{client: &http.Client{Timeout: timeout}, userAgent: userAgent}
}

// Probe requests src once and classifies the outcome. It never returns an
// error; failures are described in the result.
func (p *Prober) Probe(ctx context.Context, game string, src model.Source) (res model.ProbeResult) {
	res = model.ProbeResult{Game: game, Source: src}
	start := time.Now()
	defer func() { res.Elapsed = time.Since(start) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		res.Status, res.Error = model.ProbeError, err.Error()
		return res
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		res.Status, res.Error = classifyProbeErr(err)
		return res
	}
	defer func() { _ = resp.Body.Close() }()

	res.StatusCode = resp.StatusCode
	res.FinalURL = resp.Request.URL.String()
	if resp.StatusCode != http.StatusOK {
		res.Status = model.ProbeBroken
		res.Error = http.StatusText(resp.StatusCode)
		return res
	}

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		res.Status, res.Error = classifyProbeErr(err)
		return res
	}
	res.Status = model.ProbeWorking
	res.ContentLength = int(n)
	res.HasContent = n > minContentLen
	return res
}

func classifyProbeErr(err error) (model.ProbeStatus, string) {
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return model.ProbeTimeout, "request timeout"
	case errors.As(err, new(*net.OpError)):
		return model.ProbeConnectionError, "connection error"
	}
	return model.ProbeError, err.Error()
}

// ProbeAll checks every source of every game with at most concurrency
// requests in flight. Results keep game then source order.
func (p *Prober) ProbeAll(ctx context.Context, games []model.Game, concurrency int) []model.ProbeResult {
	type job struct {
		idx  int
		game string
		src  model.Source
	}
	var jobs []job
	for _, g := range games {
		for _, s := range g.Sources {
			jobs = append(jobs, job{idx: len(jobs), game: g.Key, src: s})
		}
	}

	out := make([]model.ProbeResult, len(jobs))
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(concurrency, 1))
	for _, j := range jobs {
		eg.Go(func() error {
			r := p.Probe(egCtx, j.game, j.src)
			zap.L().Debug("scrape: probed source",
				zap.String("game", j.game),
				zap.String("url", j.src.URL),
				zap.String("status", string(r.Status)),
			)
			mu.Lock()
			out[j.idx] = r
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return out
}
