package scrape

import (
	"context"
	"sync"
	"time"

	"github.com/reverscodes/codes-cli/internal/resilience"
)

// Pacer spaces out sequential requests by a random delay in [Min, Max].
// The first Wait returns immediately.
type Pacer struct {
	Min, Max time.Duration

	mu      sync.Mutex
	started bool
}

// NewPacer creates a Pacer.
func NewPacer(lo, hi time.Duration) *Pacer {
	return &Pacer{Min: lo, Max: hi}
}

// Wait sleeps before the next request. It returns ctx.Err() if ctx ends
// first.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return ctx.Err()
	}
	p.mu.Lock()
	first := !p.started
	p.started = true
	p.mu.Unlock()
	if first {
		return ctx.Err()
	}
	return resilience.Sleep(ctx, resilience.Jittered(p.Min, p.Max))
}
