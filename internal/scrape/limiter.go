package scrape

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/reverscodes/codes-cli/internal/resilience"
)

// adaptiveLimiter slows down after a 429 and recovers gradually on success,
// staying between a quarter and twice the initial rate.
type adaptiveLimiter struct {
	mu      sync.Mutex
	lim     *rate.Limiter
	initial rate.Limit
	current rate.Limit
}

func newAdaptiveLimiter(r rate.Limit, burst int) *adaptiveLimiter {
	return &adaptiveLimiter{lim: rate.NewLimiter(r, burst), initial: r, current: r}
}

func (a *adaptiveLimiter) Wait(ctx context.Context) error { return a.lim.Wait(ctx) }

func (a *adaptiveLimiter) onSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.set(min(a.current*1.2, a.initial*2))
}

func (a *adaptiveLimiter) onTooManyRequests(host string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.set(max(a.current/2, a.initial/4))
	zap.L().Warn("scrape: slowing down after 429",
		zap.String("host", host),
		zap.Float64("rate", float64(a.current)),
	)
}

func (a *adaptiveLimiter) set(r rate.Limit) {
	a.current = r
	a.lim.SetLimit(r)
}

func (a *adaptiveLimiter) limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// hostLimiters lazily creates one adaptiveLimiter per host.
type hostLimiters struct {
	rate  rate.Limit
	burst int

	mu    sync.Mutex
	hosts map[string]*adaptiveLimiter
}

func newHostLimiters(r rate.Limit, burst int) *hostLimiters {
	if burst < 1 {
		burst = 1
	}
	return &hostLimiters{rate: r, burst: burst, hosts: make(map[string]*adaptiveLimiter)}
}

func (h *hostLimiters) get(rawURL string) (*adaptiveLimiter, string) {
	host := resilience.HostOf(rawURL)
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.hosts[host]
	if !ok {
		l = newAdaptiveLimiter(h.rate, h.burst)
		h.hosts[host] = l
	}
	return l, host
}
